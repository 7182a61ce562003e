package api

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/agent-research-cli/internal/metrics"
)

// ErrBusy is returned by Jobs.Go when every job slot is taken.
var ErrBusy = eris.New("api: too many jobs in flight")

// Jobs runs orchestrator work in the background with a fixed number of
// slots.
type Jobs struct {
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	metrics *metrics.Metrics
}

// NewJobs creates a runner with limit slots (minimum 1).
func NewJobs(limit int, m *metrics.Metrics) *Jobs {
	if limit < 1 {
		limit = 1
	}
	return &Jobs{sem: semaphore.NewWeighted(int64(limit)), metrics: m}
}

// Go starts fn in a goroutine, or returns ErrBusy without starting it. fn
// receives a context carrying ctx's values but not its cancellation, so a
// job outlives the request that triggered it.
func (j *Jobs) Go(ctx context.Context, name string, fn func(ctx context.Context)) error {
	if !j.sem.TryAcquire(1) {
		return ErrBusy
	}
	j.wg.Add(1)
	j.metrics.JobStarted()

	jobCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("api: job panicked", zap.String("job", name), zap.Any("panic", r))
			}
			j.metrics.JobFinished()
			j.sem.Release(1)
			j.wg.Done()
		}()
		fn(jobCtx)
	}()
	return nil
}

// Wait blocks until every running job returns or ctx is done.
func (j *Jobs) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "api: wait for jobs")
	}
}
