// Package batcher implements the parallel query batcher: the query
// engine (C7) and iterator engine (C8) that fan work across a sharded
// document store's forests, stream results through listeners in
// fixed-size batches, and adapt to live directory reconfiguration.
//
// Control-flow is a bounded pool of goroutines pulling work, a
// semaphore-shaped concurrency limit, and atomic counters for shared
// progress, arranged into a directory-driven, per-shard fanout engine
// with mid-flight reconfiguration and synchronous retry.
package batcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chtzvt/forestbatch/internal/idseq"
	"github.com/chtzvt/forestbatch/internal/listener"
	"github.com/chtzvt/forestbatch/internal/metrics"
	"github.com/chtzvt/forestbatch/internal/pool"
	"github.com/chtzvt/forestbatch/internal/shard"
	"github.com/chtzvt/forestbatch/internal/transport"
)

// mode distinguishes the two constructor variants: query and iterator.
type mode int

const (
	modeQuery mode = iota
	modeIterator
)

const defaultPageSize = 1000

// Batcher drives either the query (C7) or iterator (C8) engine against a
// shard directory. Construct with New or NewIterator, configure with the
// setters below, then call Start.
type Batcher struct {
	mode mode

	// query-mode fields
	query string

	// iterator-mode fields
	sequence idseq.Sequence

	mu        sync.Mutex
	directory shard.Snapshot
	resolver  *transport.MapResolver

	registry *listener.Registry
	logger   *log.Logger
	metrics  *metrics.Collectors

	transportFactory func(host string) (transport.Client, error)

	jobName      string
	pageSize     int
	threadCount  int
	snapshotMode bool

	started   bool
	jobTicket string

	jobBatchCounter   counter
	jobResultsSoFar   counter
	snapshotTimestamp tsOnce

	stopped boolFlag

	shardsMu sync.Mutex
	shards   map[string]*shardState

	quarantineMu sync.Mutex
	quarantine   map[string][]task

	p *pool.Pool
}

// New constructs a query-variant Batcher: it fans out page-fetch tasks
// against query over every shard in dir.
func New(query string, dir shard.Directory, opts ...Option) (*Batcher, error) {
	if query == "" {
		return nil, ErrQueryRequired
	}
	b, err := newBase(modeQuery, dir, opts...)
	if err != nil {
		return nil, err
	}
	b.query = query
	return b, nil
}

// NewIterator constructs an iterator-variant Batcher: it drains seq and
// round-robins fixed-size batches across the directory's hosts.
func NewIterator(seq idseq.Sequence, dir shard.Directory, opts ...Option) (*Batcher, error) {
	if seq == nil {
		return nil, ErrSequenceRequired
	}
	b, err := newBase(modeIterator, dir, opts...)
	if err != nil {
		return nil, err
	}
	b.sequence = seq
	return b, nil
}

func newBase(m mode, dir shard.Directory, opts ...Option) (*Batcher, error) {
	shards, err := dir.ListShards()
	if err != nil {
		return nil, fmt.Errorf("batcher: list shards: %w", err)
	}
	snap, err := shard.NewSnapshot(shards)
	if err != nil {
		return nil, err
	}

	b := &Batcher{
		mode:       m,
		directory:  snap,
		registry:   listener.NewRegistry(),
		logger:     log.New(os.Stderr, "[batcher] ", log.LstdFlags),
		pageSize:   defaultPageSize,
		shards:     make(map[string]*shardState),
		quarantine: make(map[string][]task),
	}
	for _, s := range snap.Shards {
		b.ensureShardState(s.ID)
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if err := b.rebuildResolver(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Batcher) ensureShardState(id string) *shardState {
	b.shardsMu.Lock()
	defer b.shardsMu.Unlock()
	st, ok := b.shards[id]
	if !ok {
		st = newShardState()
		b.shards[id] = st
	}
	return st
}

func (b *Batcher) shardStateFor(id string) (*shardState, bool) {
	b.shardsMu.Lock()
	defer b.shardsMu.Unlock()
	st, ok := b.shards[id]
	return st, ok
}

// rebuildResolver derives a fresh host->Client table from the current
// directory snapshot via the configured transport factory, and installs
// it atomically. Callers must hold b.mu, or call this before Start while
// no other goroutine can observe b yet.
func (b *Batcher) rebuildResolver() error {
	if b.transportFactory == nil {
		return nil
	}
	hosts := b.directory.Hosts()
	clients := make(map[string]transport.Client, len(hosts))
	for _, h := range hosts {
		c, err := b.transportFactory(h)
		if err != nil {
			return fmt.Errorf("batcher: resolve transport for host %q: %w", h, err)
		}
		clients[h] = c
	}
	b.resolver = transport.NewMapResolver(hosts, clients)
	return nil
}

// Option configures a Batcher before Start. Options are applied only by
// New and NewIterator, during construction; they set fields directly and
// do not check for ErrAlreadyStarted. After construction, use the Set*
// and Add* methods below, which fail with ErrAlreadyStarted after Start.
type Option func(*Batcher) error

// SetJobName sets the job's display name.
func (b *Batcher) SetJobName(name string) error {
	return b.guardConfig(func() { b.jobName = name })
}

// SetPageSize sets the page length requested per transport call. A
// non-positive value is accepted here and coerced to a default at
// Start, not at the setter.
func (b *Batcher) SetPageSize(n int) error {
	return b.guardConfig(func() { b.pageSize = n })
}

// SetThreadCount sets the worker pool size. The validator checks the
// *current* resolved value rather than the incoming one: a non-positive
// n is accepted here and only coerced once Start resolves a default
// (len(shards) for query mode, len(hosts) for iterator mode). See
// DESIGN.md for why this permissive reading was kept rather than
// rejecting n < 1 up front.
func (b *Batcher) SetThreadCount(n int) error {
	b.mu.Lock()
	current := b.threadCount
	b.mu.Unlock()
	if current < 0 {
		return ErrInvalidThreadCount
	}
	return b.guardConfig(func() { b.threadCount = n })
}

// EnableSnapshotMode turns on consistent-snapshot pinning.
func (b *Batcher) EnableSnapshotMode() error {
	return b.guardConfig(func() { b.snapshotMode = true })
}

// AddSuccessListener registers a success listener, invoked in
// registration order for every delivered batch.
func (b *Batcher) AddSuccessListener(l listener.SuccessListener) error {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if started {
		return ErrAlreadyStarted
	}
	return b.registry.AddSuccess(l)
}

// AddFailureListener registers a failure listener, invoked in
// registration order for every task that fails with
// invokeFailureListeners set.
func (b *Batcher) AddFailureListener(l listener.FailureListener) error {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if started {
		return ErrAlreadyStarted
	}
	return b.registry.AddFailure(l)
}

// SetLogger overrides the default stderr logger.
func (b *Batcher) SetLogger(logger *log.Logger) error {
	return b.guardConfig(func() { b.logger = logger })
}

// SetMetrics attaches a metrics.Collectors set; task execution records
// into it if non-nil.
func (b *Batcher) SetMetrics(c *metrics.Collectors) error {
	return b.guardConfig(func() { b.metrics = c })
}

func (b *Batcher) guardConfig(fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	fn()
	return nil
}

// GetJobTicket returns the opaque ticket fixed at Start.
func (b *Batcher) GetJobTicket() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return "", ErrNotStarted
	}
	return b.jobTicket, nil
}

// IsStopped reports whether the pool has fully terminated.
func (b *Batcher) IsStopped() bool {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p == nil {
		return false
	}
	return p.IsTerminated()
}

// AwaitCompletion blocks until the pool terminates or timeout elapses (0
// means wait forever). Returns true if the pool terminated within the
// timeout, false on timeout. Fails with ErrNotStarted if called before
// Start.
func (b *Batcher) AwaitCompletion(timeout time.Duration) (bool, error) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p == nil {
		return false, ErrNotStarted
	}
	if timeout <= 0 {
		ctx := context.Background()
		return p.AwaitTermination(ctx), nil
	}
	return p.AwaitTerminationTimeout(timeout), nil
}

// Stop sets the stopped latch and requests immediate pool shutdown. Best
// effort: in-flight tasks are not interrupted, but no new tasks will be
// accepted or executed once their bodies observe the latch.
func (b *Batcher) Stop() {
	b.stopped.Set()
	b.mu.Lock()
	p := b.p
	dir := b.directory
	b.mu.Unlock()
	if p != nil {
		p.ShutdownNow()
	}
	if b.mode == modeQuery {
		for _, s := range dir.Shards {
			if st, ok := b.shardStateFor(s.ID); ok && !st.isDone.Load() {
				b.logger.Printf("batcher: stop() called with shard %s not done", s.ID)
			}
		}
	} else if b.sequence != nil && b.sequence.HasNext() {
		b.logger.Printf("batcher: stop() called with sequence not exhausted")
	}
}

func newJobTicket() string {
	return uuid.NewString()
}
