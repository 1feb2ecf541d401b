// Package github queries the GitHub GraphQL API for repository metadata.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// ErrAPI marks errors reported in the GraphQL "errors" array.
var ErrAPI = errors.New("github graphql error")

// RepoInfo is the per-repository result. Either field is nil when GitHub
// has no value for it.
type RepoInfo struct {
	HomepageURL   *string
	CommittedDate *string
}

// Config controls the client.
type Config struct {
	Endpoint          string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

// Client issues the repository metadata query.
type Client struct {
	gql     *githubv4.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds a Client that authenticates every request with cfg.Token.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("github token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "showcase-refresher"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	}))
	httpClient.Transport = &statusTransport{base: httpClient.Transport, userAgent: cfg.UserAgent}
	httpClient.Timeout = cfg.Timeout

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		gql:     githubv4.NewEnterpriseClient(cfg.Endpoint, httpClient),
		limiter: limiter,
		logger:  logger,
	}, nil
}

type repoInfoQuery struct {
	Repository struct {
		HomepageURL      *string `graphql:"homepageUrl"`
		DefaultBranchRef struct {
			Target struct {
				Commit struct {
					CommittedDate *string
				} `graphql:"... on Commit"`
			}
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// FetchInfo returns the homepage URL and default branch tip commit date of
// owner/name. Absent values come back as nil; transport, HTTP and GraphQL
// failures come back as errors.
func (c *Client) FetchInfo(ctx context.Context, owner, name string) (RepoInfo, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return RepoInfo{}, fmt.Errorf("wait github limiter: %w", err)
		}
	}

	var (
		q      repoInfoQuery
		status int
	)
	start := time.Now()
	err := c.gql.Query(context.WithValue(ctx, statusKey{}, &status), &q, map[string]any{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	})
	c.logger.Debug("github query finished",
		zap.String("repo", owner+"/"+name),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		return RepoInfo{}, classify(owner, name, status, err)
	}

	return q.toRepoInfo(), nil
}

// classify separates errors GitHub reported in a 200 response from
// transport, status and decoding failures.
func classify(owner, name string, status int, err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return fmt.Errorf("decode response for %s/%s: %w", owner, name, err)
	case status == http.StatusOK:
		return fmt.Errorf("%w: %s/%s: %w", ErrAPI, owner, name, err)
	default:
		return fmt.Errorf("query %s/%s: %w", owner, name, err)
	}
}

func (q repoInfoQuery) toRepoInfo() RepoInfo {
	var info RepoInfo
	repo := q.Repository
	if repo.HomepageURL != nil && strings.TrimSpace(*repo.HomepageURL) != "" {
		info.HomepageURL = repo.HomepageURL
	}
	info.CommittedDate = repo.DefaultBranchRef.Target.Commit.CommittedDate
	return info
}

type statusKey struct{}

// statusTransport stamps the User-Agent and reports the response status
// back through the request context.
type statusTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if resp != nil {
		if status, ok := req.Context().Value(statusKey{}).(*int); ok {
			*status = resp.StatusCode
		}
	}
	return resp, err
}
