package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"unera/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type warmerStub struct {
	calls atomic.Int32
	err   error
}

func (s *warmerStub) WarmAnonymousFeed(context.Context) (int, error) {
	s.calls.Add(1)
	return 12, s.err
}

func TestNewWarmer_InvalidSchedule(t *testing.T) {
	_, err := NewWarmer(&warmerStub{}, "every tuesday-ish", time.Second)
	assert.Error(t, err)
}

func TestNewWarmer_AcceptsDescriptorsAndCron(t *testing.T) {
	for _, spec := range []string{"@every 5m", "@hourly", "*/10 * * * *"} {
		_, err := NewWarmer(&warmerStub{}, spec, 0)
		assert.NoError(t, err, spec)
	}
}

func TestWarmer_RunOnce(t *testing.T) {
	okBefore := testutil.ToFloat64(observability.FeedWarmRuns.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(observability.FeedWarmRuns.WithLabelValues("error"))

	stub := &warmerStub{}
	w, err := NewWarmer(stub, "@every 1h", time.Second)
	require.NoError(t, err)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, okBefore+1, testutil.ToFloat64(observability.FeedWarmRuns.WithLabelValues("ok")))

	stub.err = errors.New("db down")
	assert.EqualError(t, w.RunOnce(context.Background()), "db down")
	assert.Equal(t, errBefore+1, testutil.ToFloat64(observability.FeedWarmRuns.WithLabelValues("error")))
}

func TestWarmer_StartRunsOnSchedule(t *testing.T) {
	stub := &warmerStub{}
	w, err := NewWarmer(stub, "@every 1s", time.Second)
	require.NoError(t, err)

	w.Start()
	w.Start()
	assert.Eventually(t, func() bool { return stub.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
	w.Stop(ctx)

	calls := stub.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, calls, stub.calls.Load(), "no runs after Stop")
}
