// Package uploader performs the remote put for each drained batch, with a
// bounded retry budget and exponential backoff for transient failures.
// Authentication and configuration errors are never retried. An exhausted
// batch is dropped by the caller, never re-queued: re-queuing would require
// unbounded buffer growth on sustained outages.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/logship/logship/internal/metrics"
)

// Bucket is the subset of *blob.Bucket the uploader needs. Tests inject
// fakes; production passes a real bucket.
type Bucket interface {
	WriteAll(ctx context.Context, key string, p []byte, opts *blob.WriterOptions) error
	Attributes(ctx context.Context, key string) (*blob.Attributes, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Kind classifies an upload failure.
type Kind int

const (
	// Transient failures (timeouts, throttling, network) are retried.
	Transient Kind = iota
	// Permanent failures (auth, missing bucket, malformed key) are not.
	Permanent
)

func (k Kind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// Error is the failure surfaced after a put gives up.
type Error struct {
	Key      string
	Attempts int
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload %s (%s, %d attempts): %v", e.Key, e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps a storage error to a failure kind using the portable
// gocloud error codes.
func Classify(err error) Kind {
	switch gcerrors.Code(err) {
	case gcerrors.PermissionDenied, gcerrors.NotFound, gcerrors.InvalidArgument,
		gcerrors.FailedPrecondition, gcerrors.Unimplemented:
		return Permanent
	default:
		return Transient
	}
}

// Backoff returns the delay before the given retry. attempt is 1-based:
// the delay after the first failed attempt is base, then doubles.
func Backoff(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

// Config bounds the retry behavior.
type Config struct {
	Attempts       int           // total attempts per batch
	BackoffBase    time.Duration // delay after the first failure
	AttemptTimeout time.Duration // per-attempt deadline
}

func (c Config) withDefaults() Config {
	if c.Attempts < 1 {
		c.Attempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	return c
}

// Uploader writes batches to a bucket.
type Uploader struct {
	bucket Bucket
	cfg    Config
	log    *slog.Logger
}

// New creates an uploader over the given bucket.
func New(bucket Bucket, cfg Config) *Uploader {
	return &Uploader{
		bucket: bucket,
		cfg:    cfg.withDefaults(),
		log:    slog.With("component", "uploader"),
	}
}

// Put writes data under key. Transient failures are retried up to the
// attempt budget; the per-attempt timeout counts as a transient failure.
// The returned error is always a *Error.
func (u *Uploader) Put(ctx context.Context, key string, data []byte) error {
	var lastErr error

	for attempt := 1; attempt <= u.cfg.Attempts; attempt++ {
		err := u.put(ctx, key, data)
		if err == nil {
			return nil
		}

		if Classify(err) == Permanent {
			return &Error{Key: key, Attempts: attempt, Kind: Permanent, Err: err}
		}
		lastErr = err

		if attempt < u.cfg.Attempts {
			if m := metrics.Get(); m != nil {
				m.UploadRetries.Inc()
			}
			delay := Backoff(u.cfg.BackoffBase, attempt)
			u.log.Warn("upload attempt failed, retrying",
				"key", key, "attempt", attempt, "backoff", delay, "error", err)
			select {
			case <-ctx.Done():
				return &Error{Key: key, Attempts: attempt, Kind: Transient, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}
	}

	return &Error{
		Key:      key,
		Attempts: u.cfg.Attempts,
		Kind:     Transient,
		Err:      fmt.Errorf("all %d attempts failed: %w", u.cfg.Attempts, lastErr),
	}
}

func (u *Uploader) put(ctx context.Context, key string, data []byte) error {
	attemptCtx, cancel := context.WithTimeout(ctx, u.cfg.AttemptTimeout)
	defer cancel()
	return u.bucket.WriteAll(attemptCtx, key, data, nil)
}

// Stat reports the size of a stored object, or exists=false when the key is
// absent.
func (u *Uploader) Stat(ctx context.Context, key string) (size int64, exists bool, err error) {
	attrs, err := u.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat %s: %w", key, err)
	}
	return attrs.Size, true, nil
}
