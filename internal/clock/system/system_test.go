package system_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/showcase-refresher/internal/clock/system"
	"github.com/JakeFAU/showcase-refresher/internal/refresher"
)

var _ refresher.Clock = (*system.Clock)(nil)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	got := system.New().Now()
	after := time.Now().Add(time.Second)

	assert.Equal(t, time.UTC, got.Location())
	assert.WithinRange(t, got, before, after)
}
