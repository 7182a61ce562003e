package research

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/agent-research-cli/internal/metrics"
	"github.com/sells-group/agent-research-cli/internal/resilience"
)

var (
	// ErrTimeout is returned when a call exceeds the configured timeout.
	ErrTimeout = eris.New("research: call timed out")
	// ErrRateLimited is returned when the context ends while waiting for a
	// rate limiter token.
	ErrRateLimited = eris.New("research: rate limit wait aborted")
)

// Middleware wraps a Backend.
type Middleware func(Backend) Backend

// Chain applies mws to b. The first middleware is the outermost.
func Chain(b Backend, mws ...Middleware) Backend {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			b = mws[i](b)
		}
	}
	return b
}

type wrapped struct {
	name string
	fn   func(ctx context.Context, req Request) (*Response, error)
}

func (w *wrapped) Name() string { return w.name }

func (w *wrapped) Research(ctx context.Context, req Request) (*Response, error) {
	return w.fn(ctx, req)
}

// WithTimeout bounds each call. Expiry is reported as ErrTimeout. d <= 0
// disables the bound.
func WithTimeout(d time.Duration) Middleware {
	return func(next Backend) Backend {
		if d <= 0 {
			return next
		}
		return &wrapped{name: next.Name(), fn: func(ctx context.Context, req Request) (*Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			resp, err := next.Research(ctx, req)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, eris.Wrapf(ErrTimeout, "%s %s after %s", next.Name(), req.Task, d)
			}
			return resp, err
		}}
	}
}

// WithBreaker rejects calls with resilience.ErrCircuitOpen after repeated
// failures.
func WithBreaker(br *resilience.Breaker) Middleware {
	return func(next Backend) Backend {
		if br == nil {
			return next
		}
		return &wrapped{name: next.Name(), fn: func(ctx context.Context, req Request) (*Response, error) {
			var resp *Response
			err := br.Do(ctx, func(ctx context.Context) error {
				var err error
				resp, err = next.Research(ctx, req)
				return err
			})
			if err != nil {
				return nil, err
			}
			return resp, nil
		}}
	}
}

// WithRateLimit waits for a token from l before each call.
func WithRateLimit(l *rate.Limiter) Middleware {
	return func(next Backend) Backend {
		if l == nil {
			return next
		}
		return &wrapped{name: next.Name(), fn: func(ctx context.Context, req Request) (*Response, error) {
			if err := l.Wait(ctx); err != nil {
				return nil, eris.Wrapf(ErrRateLimited, "%s %s: %v", next.Name(), req.Task, err)
			}
			return next.Research(ctx, req)
		}}
	}
}

// PerMinute builds a limiter allowing n calls per minute with a burst of
// one. n <= 0 returns nil, which WithRateLimit treats as unlimited.
func PerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
}

// WithMetrics records call outcomes, latency and token usage, and logs each
// call.
func WithMetrics(m *metrics.Metrics) Middleware {
	return func(next Backend) Backend {
		return &wrapped{name: next.Name(), fn: func(ctx context.Context, req Request) (*Response, error) {
			start := time.Now()
			resp, err := next.Research(ctx, req)
			elapsed := time.Since(start)

			outcome := Outcome(err)
			m.ResearchCall(next.Name(), string(req.Task), outcome, elapsed)

			log := zap.L().With(
				zap.String("provider", next.Name()),
				zap.String("task", string(req.Task)),
				zap.Duration("elapsed", elapsed),
			)
			if err != nil {
				log.Warn("research: call failed", zap.String("outcome", outcome), zap.Error(err))
				return nil, err
			}
			m.Tokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)
			log.Info("research: call complete",
				zap.String("model", resp.Model),
				zap.Int64("input_tokens", resp.Usage.InputTokens),
				zap.Int64("output_tokens", resp.Usage.OutputTokens),
			)
			return resp, nil
		}}
	}
}

// Outcome classifies err as a metrics outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, resilience.ErrCircuitOpen):
		return metrics.OutcomeCircuitOpen
	case errors.Is(err, ErrRateLimited):
		return metrics.OutcomeRateLimited
	}
	return metrics.OutcomeError
}
