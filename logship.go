package logship

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gocloud.dev/blob"

	"github.com/logship/logship/config"
	"github.com/logship/logship/internal/buffer"
	"github.com/logship/logship/internal/codec"
	"github.com/logship/logship/internal/flush"
	"github.com/logship/logship/internal/metrics"
	"github.com/logship/logship/internal/partition"
	"github.com/logship/logship/internal/storage"
	"github.com/logship/logship/internal/uploader"
)

// Bucket is the "put object" capability the pipeline ships through.
// *blob.Bucket satisfies it; tests may inject fakes.
type Bucket interface {
	WriteAll(ctx context.Context, key string, p []byte, opts *blob.WriterOptions) error
	Attributes(ctx context.Context, key string) (*blob.Attributes, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ErrorHandler receives flush-path failures. Handlers must return quickly
// and must not call back into the pipeline.
type ErrorHandler func(error)

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithErrorHandler installs a side channel for flush-path errors. The
// default handler logs them through slog.
func WithErrorHandler(h ErrorHandler) Option {
	return func(p *Pipeline) { p.onError = h }
}

// WithClock overrides the partition namer's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline wires ingestion → buffering → scheduled flush → partition
// selection → upload. Emit is safe from any goroutine; a single background
// flush actor owns the drain-and-upload side.
type Pipeline struct {
	cfg     config.Config
	buf     *buffer.Buffer
	namer   *partition.Namer
	up      *uploader.Uploader
	sched   *flush.Scheduler
	enc     codec.Encoder
	onError ErrorHandler
	now     func() time.Time
	log     *slog.Logger

	owned  *blob.Bucket // closed on shutdown when the pipeline opened it
	closed atomic.Bool

	serializeDrops atomic.Uint64
	uploadDrops    atomic.Uint64
}

// Open validates cfg, opens the configured bucket, and starts the pipeline.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bucket, err := storage.OpenBucket(ctx, storage.Config{
		Backend:   cfg.Storage.Backend,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		LocalDir:  cfg.Storage.LocalDir,
	})
	if err != nil {
		return nil, err
	}

	p, err := New(cfg, bucket, opts...)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	p.owned = bucket
	return p, nil
}

// New starts a pipeline over an already-open bucket. The caller keeps
// ownership of the bucket.
func New(cfg config.Config, bucket Bucket, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	enc, err := codec.ForName(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	p := &Pipeline{
		cfg: cfg,
		enc: enc,
		log: slog.With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.onError == nil {
		log := p.log
		p.onError = func(err error) { log.Warn("flush error", "error", err) }
	}

	p.namer, err = partition.New(partition.Config{
		Prefix:          cfg.Prefix,
		Postfix:         cfg.Postfix + enc.Ext(),
		ObjectSizeLimit: cfg.ObjectSizeLimit(),
		StateDir:        cfg.StateDir,
		Now:             p.now,
	})
	if err != nil {
		return nil, err
	}

	threshold := int64(0)
	if cfg.SizeTrigger {
		threshold = cfg.BufferSizeLimit()
	}
	p.buf = buffer.New(threshold)

	p.up = uploader.New(bucket, uploader.Config{
		Attempts:       cfg.Upload.Attempts,
		BackoffBase:    time.Duration(cfg.Upload.BackoffBaseMs) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.Upload.AttemptTimeoutMs) * time.Millisecond,
	})

	var trigger <-chan struct{}
	if cfg.SizeTrigger {
		trigger = p.buf.Threshold()
	}
	p.sched = flush.New(cfg.FlushInterval(), trigger, p.flushCycle)
	p.sched.Start()

	return p, nil
}

// Emit serializes one record and appends it to the buffer. It never blocks
// on network I/O and never fails: a record that cannot be serialized is
// dropped, counted, and reported.
func (p *Pipeline) Emit(r Record) {
	if p.closed.Load() {
		return
	}

	line, err := AppendLine(nil, r)
	if err != nil {
		p.serializeDrops.Add(1)
		if m := metrics.Get(); m != nil {
			m.RecordsDropped.WithLabelValues("serialize").Inc()
		}
		p.onError(err)
		return
	}

	p.buf.Append(line)
	if m := metrics.Get(); m != nil {
		m.RecordsAppended.Inc()
		m.BufferBytes.Set(float64(p.buf.Size()))
	}
}

// Log builds a record stamped now and emits it.
func (p *Pipeline) Log(level Level, target, message string, fields ...Field) {
	p.Emit(NewRecord(level, target, message, fields...))
}

// flushCycle is the scheduler's drain-and-upload cycle. Failure never
// stalls the schedule: the batch is dropped, counted, and reported.
func (p *Pipeline) flushCycle(ctx context.Context) {
	batch := p.buf.Drain()
	if m := metrics.Get(); m != nil {
		m.BufferBytes.Set(0)
	}
	if batch.Records == 0 {
		return
	}

	start := time.Now()

	data, err := p.enc.Encode(batch.Data)
	if err != nil {
		p.dropBatch(batch.Records, "encode")
		p.onError(fmt.Errorf("encode batch: %w", err))
		return
	}

	key := p.namer.KeyFor(int64(len(data)))

	if err := p.up.Put(ctx, key, data); err != nil {
		p.dropBatch(batch.Records, "upload_failed")
		if m := metrics.Get(); m != nil {
			kind := uploader.Transient
			if upErr, ok := err.(*uploader.Error); ok {
				kind = upErr.Kind
			}
			m.BatchesFailed.WithLabelValues(kind.String()).Inc()
		}
		p.onError(err)
		return
	}

	elapsed := time.Since(start)
	if m := metrics.Get(); m != nil {
		m.BatchesShipped.Inc()
		m.BytesShipped.Add(float64(len(data)))
		m.FlushDuration.Observe(elapsed.Seconds())
	}
	p.log.Debug("shipped batch",
		"key", key, "records", batch.Records, "bytes", len(data),
		"duration_ms", elapsed.Milliseconds())
}

func (p *Pipeline) dropBatch(records int, reason string) {
	p.uploadDrops.Add(uint64(records))
	if m := metrics.Get(); m != nil {
		m.RecordsDropped.WithLabelValues(reason).Add(float64(records))
	}
}

// Dropped reports how many records were dropped since start, split into
// serialization failures and failed/abandoned uploads.
func (p *Pipeline) Dropped() (serialize, upload uint64) {
	return p.serializeDrops.Load(), p.uploadDrops.Load()
}

// Close stops ingestion, performs one final best-effort flush bounded by
// ctx, and releases the bucket if the pipeline opened it. Records emitted
// after Close are discarded.
func (p *Pipeline) Close(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}

	p.sched.Stop(ctx)

	if p.owned != nil {
		if err := p.owned.Close(); err != nil {
			return fmt.Errorf("close bucket: %w", err)
		}
	}
	return nil
}
