package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestRecorderCounters(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveOutcome("screenshot")
	r.ObserveOutcome("screenshot")
	r.ObserveOutcome("skipped")
	r.ObserveCapture("https://Example.com/", 3*time.Second)
	r.ObserveRun(4, time.Unix(1700000000, 0))

	require.InDelta(t, 2, testutil.ToFloat64(r.projectsTotal.WithLabelValues("screenshot")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.projectsTotal.WithLabelValues("skipped")), 0)
	require.InDelta(t, 4, testutil.ToFloat64(r.ledgerEntries), 0)
	require.InDelta(t, 1700000000, testutil.ToFloat64(r.lastRunTimestamp), 0)
	require.Equal(t, 1, testutil.CollectAndCount(r.captureSeconds))

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 4)
}

func TestRecorderPush(t *testing.T) {
	t.Parallel()

	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		gotBody = buf.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.ObserveOutcome("timestamp_only")
	require.NoError(t, r.Push(context.Background(), srv.URL, "showcase_refresh"))
	require.Equal(t, "/metrics/job/showcase_refresh", gotPath)
	require.NotEmpty(t, gotBody)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	require.Error(t, r.Push(context.Background(), failing.URL, "showcase_refresh"))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
