package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/maxpert/mylite/cfg"
	"github.com/maxpert/mylite/telemetry"
	"github.com/rs/zerolog/log"
)

// RetryPolicy retries operations failing with SQLITE_BUSY or SQLITE_LOCKED.
// Every other error is returned immediately.
type RetryPolicy struct {
	// MaxAttempts bounds the number of attempts; 0 retries until success.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a RetryPolicy from configuration
func NewRetryPolicy(c cfg.RetryConfiguration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: time.Duration(c.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(c.MaxBackoffMS) * time.Millisecond,
		Sleep:          sleepContext,
	}
}

// Do runs fn until it succeeds, fails with a non-busy error, exhausts
// MaxAttempts or ctx is done.
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	backoff := p.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !IsBusy(err) {
			return err
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			telemetry.BusyGiveUpsTotal.Inc()
			log.Warn().Err(err).Int("attempts", attempt).Msg("Giving up on busy database")
			return err
		}

		telemetry.BusyRetriesTotal.Inc()
		log.Debug().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("Database busy, retrying")

		sleep := p.Sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if serr := sleep(ctx, backoff); serr != nil {
			return err
		}

		backoff *= 2
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}

// IsBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	// database/sql may wrap driver errors into plain text
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
