package cassandra

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gocql/gocql"
	"github.com/grafana/dskit/backoff"
	"github.com/pkg/errors"
)

// retryable reports whether err is a transient coordinator failure worth
// another attempt.
func retryable(err error) bool {
	var (
		unavailable  *gocql.RequestErrUnavailable
		readTimeout  *gocql.RequestErrReadTimeout
		writeTimeout *gocql.RequestErrWriteTimeout
	)
	switch {
	case errors.As(err, &unavailable), errors.As(err, &readTimeout), errors.As(err, &writeTimeout):
		return true
	case errors.Is(err, gocql.ErrNoConnections), errors.Is(err, gocql.ErrTimeoutNoResponse):
		return true
	}
	return false
}

// withRetries runs fn until it succeeds, fails with a non retryable error or
// the backoff gives up. A zero MaxRetries runs fn once.
func withRetries(ctx context.Context, cfg backoff.Config, logger log.Logger, metrics *Metrics, op string, fn func() error) error {
	if cfg.MaxRetries <= 0 {
		return fn()
	}

	b := backoff.New(ctx, cfg)
	var lastErr error
	for b.Ongoing() {
		lastErr = fn()
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
		if metrics != nil {
			metrics.retries.WithLabelValues(op).Inc()
		}
		level.Warn(logger).Log("msg", "retrying cassandra request", "op", op, "retries", b.NumRetries(), "err", lastErr)
		b.Wait()
	}
	if lastErr == nil {
		return b.Err()
	}
	return errors.Wrapf(lastErr, "%s failed after %d retries", op, b.NumRetries())
}
