package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqimprove/seqimprove-go/pkg/metrics"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakePruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func TestNewServiceRejectsBadSchedule(t *testing.T) {
	_, err := NewService(&fakePruner{}, "every tuesday", time.Hour, nil, nil)
	assert.Error(t, err)

	// disabled retention never parses the schedule
	s, err := NewService(&fakePruner{}, "every tuesday", 0, nil, nil)
	require.NoError(t, err)
	assert.True(t, s.NextRun().IsZero())
}

func TestPruneUsesRetentionWindow(t *testing.T) {
	pruner := &fakePruner{deleted: 3}
	m := metrics.New()
	s, err := NewService(pruner, "@hourly", 24*time.Hour, m, nil)
	require.NoError(t, err)

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	deleted, err := s.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	require.Len(t, pruner.cutoffs, 1)
	assert.Equal(t, fixed.Add(-24*time.Hour), pruner.cutoffs[0])
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RunsPruned))

	assert.Equal(t, time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC), s.NextRun())
}

func TestPrunePropagatesErrors(t *testing.T) {
	pruner := &fakePruner{err: errors.New("disk full")}
	s, err := NewService(pruner, "@daily", time.Hour, nil, nil)
	require.NoError(t, err)

	_, err = s.Prune(context.Background())
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s, err := NewService(&fakePruner{}, "@every 1h", time.Hour, nil, nil)
	require.NoError(t, err)
	s.Start()
	s.Stop()

	disabled, err := NewService(&fakePruner{}, "", 0, nil, nil)
	require.NoError(t, err)
	disabled.Start()
	disabled.Stop()
}
