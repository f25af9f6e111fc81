package batcher

import (
	"log"

	"github.com/chtzvt/forestbatch/internal/listener"
	"github.com/chtzvt/forestbatch/internal/metrics"
	"github.com/chtzvt/forestbatch/internal/transport"
)

// WithTransportFactory supplies the function the engine uses to resolve
// a transport.Client for a given preferred host. Required before Start;
// without it no task can ever issue a transport call.
func WithTransportFactory(f func(host string) (transport.Client, error)) Option {
	return func(b *Batcher) error {
		b.transportFactory = f
		return nil
	}
}

// WithJobName sets the job's display name at construction time.
func WithJobName(name string) Option {
	return func(b *Batcher) error { b.jobName = name; return nil }
}

// WithPageSize sets the initial page size at construction time.
func WithPageSize(n int) Option {
	return func(b *Batcher) error { b.pageSize = n; return nil }
}

// WithThreadCount sets the initial thread count at construction time.
// A non-positive n is accepted; Start resolves the eventual default.
func WithThreadCount(n int) Option {
	return func(b *Batcher) error {
		b.threadCount = n
		return nil
	}
}

// WithSnapshotMode enables consistent-snapshot mode at construction time.
func WithSnapshotMode() Option {
	return func(b *Batcher) error { b.snapshotMode = true; return nil }
}

// WithLogger overrides the default stderr logger at construction time.
func WithLogger(logger *log.Logger) Option {
	return func(b *Batcher) error { b.logger = logger; return nil }
}

// WithMetrics attaches a metrics.Collectors set at construction time.
func WithMetrics(c *metrics.Collectors) Option {
	return func(b *Batcher) error { b.metrics = c; return nil }
}

// WithSuccessListener registers a success listener at construction time.
func WithSuccessListener(l listener.SuccessListener) Option {
	return func(b *Batcher) error { return b.registry.AddSuccess(l) }
}

// WithFailureListener registers a failure listener at construction time.
func WithFailureListener(l listener.FailureListener) Option {
	return func(b *Batcher) error { return b.registry.AddFailure(l) }
}
