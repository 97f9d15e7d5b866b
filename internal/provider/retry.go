package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrying bounds each call with a deadline and repeats transient failures.
type Retrying struct {
	next     Provider
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	log      *slog.Logger
	attempts *prometheus.CounterVec
}

// WithRetry wraps p so every attempt runs under timeout and transient errors
// are retried up to retries more times. attempts may be nil.
func WithRetry(p Provider, timeout time.Duration, retries int, log *slog.Logger, attempts *prometheus.CounterVec) *Retrying {
	if retries < 0 {
		retries = 0
	}
	return &Retrying{
		next:     p,
		timeout:  timeout,
		retries:  retries,
		backoff:  500 * time.Millisecond,
		log:      log,
		attempts: attempts,
	}
}

func (r *Retrying) Generate(ctx context.Context, req Request) (*Media, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff):
			}
		}

		media, err := r.once(ctx, req)
		if err == nil {
			r.observe(req.Model, "ok")
			return media, nil
		}
		lastErr = err

		// A per-attempt deadline is transient; the caller's own cancellation is not.
		if ctx.Err() != nil {
			r.observe(req.Model, "canceled")
			return nil, err
		}
		if !IsTransient(err) && !errors.Is(err, context.DeadlineExceeded) {
			r.observe(req.Model, "failed")
			return nil, err
		}
		r.observe(req.Model, "retryable")
		if r.log != nil {
			r.log.Warn("provider call failed", "model", req.Model, "attempt", attempt+1, "err", err)
		}
	}
	return nil, lastErr
}

func (r *Retrying) once(ctx context.Context, req Request) (*Media, error) {
	if r.timeout <= 0 {
		return r.next.Generate(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.Generate(attemptCtx, req)
}

func (r *Retrying) observe(model, outcome string) {
	if r.attempts != nil {
		r.attempts.WithLabelValues(model, outcome).Inc()
	}
}
