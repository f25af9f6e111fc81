package batcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chtzvt/forestbatch/internal/batch"
	"github.com/chtzvt/forestbatch/internal/listener"
	"github.com/chtzvt/forestbatch/internal/pool"
	"github.com/chtzvt/forestbatch/internal/shard"
	"github.com/chtzvt/forestbatch/internal/transport"
)

// Start resolves defaults, builds the worker pool, and seeds one task
// per shard (query variant) or one driver task (iterator variant).
func (b *Batcher) Start() (string, error) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return "", ErrAlreadyStarted
	}

	if b.pageSize < 1 {
		b.logger.Printf("batcher: page size %d is non-positive, coercing to 1", b.pageSize)
		b.pageSize = 1
	}
	if b.threadCount < 1 {
		if b.mode == modeQuery {
			b.threadCount = len(b.directory.Shards)
		} else {
			b.threadCount = len(b.directory.Hosts())
		}
		if b.threadCount < 1 {
			b.threadCount = 1
		}
	}

	b.jobTicket = newJobTicket()
	b.registry.Lock()
	b.p = pool.New(b.threadCount, b.logger)
	b.started = true

	dirSnapshot := b.directory
	mode := b.mode
	b.mu.Unlock()

	switch mode {
	case modeQuery:
		b.startQuery(dirSnapshot)
	case modeIterator:
		b.startIterator()
	}

	return b.jobTicket, nil
}

func (b *Batcher) startQuery(dir shard.Snapshot) {
	shards := dir.Shards
	if len(shards) == 0 {
		b.p.Shutdown()
		return
	}

	first := shards[0]
	rest := shards[1:]

	firstTask := task{target: first, start: 1, shardBatchNumber: 1, invokeFailureListeners: true}
	if b.snapshotMode {
		_ = b.runTask(firstTask)
	} else {
		b.submitTask(firstTask)
	}

	for _, s := range rest {
		b.submitTask(task{target: s, start: 1, shardBatchNumber: 1, invokeFailureListeners: true})
	}
}

func (b *Batcher) submitTask(t task) {
	_ = b.p.Submit(func() { _ = b.runTask(t) })
}

// runTask executes one page-fetch task through its full lifecycle: page
// fetch, batch delivery, offset advance, terminal check.
// It returns non-nil only on the retry path (t.invokeFailureListeners ==
// false), where the caller of Retry must observe the error directly
// instead of it being absorbed by failure listeners.
func (b *Batcher) runTask(t task) error {
	if b.stopped.IsSet() {
		return nil
	}

	if b.quarantineIfAbsent(t) {
		return nil
	}

	st, ok := b.shardStateFor(t.target.ID)
	if !ok {
		st = b.ensureShardState(t.target.ID)
	}
	if st.isDone.Load() {
		b.logger.Printf("batcher: shard %s already done, dropping late task at offset %d", t.target.ID, t.start)
		return nil
	}

	currentShard, client, err := b.resolveCurrent(t.target)
	if err != nil {
		b.logger.Printf("batcher: cannot resolve transport for shard %s: %v", t.target.ID, err)
		return b.handleTaskError(t, st, batch.Batch{}, err)
	}

	atTS, _ := b.snapshotTimestamp.get()
	page, err := client.Transport.URIs(context.Background(), b.query, currentShard.Name, t.start, b.pageSize, atTS)

	switch {
	case err == nil:
		b.handleSuccess(t, st, currentShard, client, page)
		return nil
	case errors.Is(err, transport.ErrNotFound):
		b.handleTerminal(t, st)
		return nil
	default:
		return b.handleTaskError(t, st, b.buildFailureBatch(t, currentShard, client), err)
	}
}

func (b *Batcher) resolveCurrent(target shard.Shard) (shard.Shard, transport.Client, error) {
	b.mu.Lock()
	current, ok := b.directory.Lookup(target.ID)
	resolver := b.resolver
	b.mu.Unlock()
	if !ok {
		current = target
	}
	if resolver == nil {
		return current, transport.Client{}, fmt.Errorf("batcher: no transport factory configured")
	}
	client, err := resolver.Resolve(current.Host)
	return current, client, err
}

func (b *Batcher) handleSuccess(t task, st *shardState, s shard.Shard, client transport.Client, page transport.Page) {
	if b.snapshotMode {
		b.snapshotTimestamp.trySet(page.ServerTimestamp)
	}

	shardResultsSoFar := st.resultsSoFar.Add(int64(len(page.IDs)))
	jobResultsSoFar := b.jobResultsSoFar.addAndLoad(int64(len(page.IDs)))

	fullPage := len(page.IDs) == b.pageSize
	if fullPage {
		next := task{
			target:                 s,
			start:                  t.start + b.pageSize,
			shardBatchNumber:       t.shardBatchNumber + 1,
			invokeFailureListeners: true,
		}
		b.submitTask(next)
	} else {
		st.isDone.Store(true)
	}

	var jobBatchNum int64
	if t.hasJobBatchOverride {
		jobBatchNum = t.jobBatchOverride
	} else {
		jobBatchNum = b.jobBatchCounter.next()
	}

	bt := batch.NewBuilder().
		IDs(page.IDs).
		JobBatchNumber(jobBatchNum).
		ShardBatchNumber(t.shardBatchNumber).
		JobResultsSoFar(jobResultsSoFar).
		ShardResultsSoFar(shardResultsSoFar).
		Shard(s).
		Client(client).
		ServerTimestamp(page.ServerTimestamp).
		WallClockTimestamp(time.Now()).
		JobTicket(b.jobTicket).
		Build()

	b.recordDelivery(s.ID, len(page.IDs))
	b.invokeSuccessListeners(bt)

	if !fullPage {
		b.tryTerminate()
	}
}

func (b *Batcher) handleTerminal(t task, st *shardState) {
	st.isDone.Store(true)
	b.tryTerminate()
}

func (b *Batcher) buildFailureBatch(t task, s shard.Shard, client transport.Client) batch.Batch {
	shardResultsSoFar := int64(0)
	if st, ok := b.shardStateFor(s.ID); ok {
		shardResultsSoFar = st.resultsSoFar.Load()
	}
	jobBatchNum := t.jobBatchOverride
	if !t.hasJobBatchOverride {
		jobBatchNum = b.jobBatchCounter.load()
	}
	return batch.NewBuilder().
		ShardBatchNumber(t.shardBatchNumber).
		ShardResultsSoFar(shardResultsSoFar).
		JobResultsSoFar(b.jobResultsSoFar.load()).
		JobBatchNumber(jobBatchNum).
		Shard(s).
		Client(client).
		WallClockTimestamp(time.Now()).
		JobTicket(b.jobTicket).
		Build()
}

// handleTaskError marks the shard done, and either invokes failure
// listeners (normal path) or re-raises to the retry() caller (retry
// path, t.invokeFailureListeners == false).
func (b *Batcher) handleTaskError(t task, st *shardState, failBatch batch.Batch, cause error) error {
	st.isDone.Store(true)
	b.recordFailure(t.target.ID)

	if !t.invokeFailureListeners {
		// retry path: propagate directly to the caller of Retry, never
		// re-entering failure listeners.
		return cause
	}

	event := listener.FailureEvent{
		Batch:             failBatch,
		Cause:             cause,
		ShardBatchNumber:  t.shardBatchNumber,
		ShardResultsSoFar: failBatch.ShardResultsSoFar,
		JobBatchNumber:    failBatch.JobBatchNumber,
	}
	b.invokeFailureListeners(event)
	b.tryTerminate()
	return nil
}

func (b *Batcher) invokeSuccessListeners(bt batch.Batch) {
	for _, l := range b.registry.Success() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Printf("batcher: success listener panicked: %v", r)
				}
			}()
			if err := l(bt); err != nil {
				b.logger.Printf("batcher: success listener error: %v", err)
			}
		}()
	}
}

func (b *Batcher) invokeFailureListeners(event listener.FailureEvent) {
	for _, l := range b.registry.Failure() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Printf("batcher: failure listener panicked: %v", r)
				}
			}()
			if err := l(event); err != nil {
				b.logger.Printf("batcher: failure listener error: %v", err)
			}
		}()
	}
}

// tryTerminate is the global termination check: if every shard in the
// current directory is done, request orderly pool shutdown. Shards that
// were removed from the directory are not waited for.
func (b *Batcher) tryTerminate() {
	if b.mode != modeQuery {
		return
	}
	b.mu.Lock()
	shards := b.directory.Shards
	b.mu.Unlock()

	for _, s := range shards {
		st, ok := b.shardStateFor(s.ID)
		if !ok || !st.isDone.Load() {
			return
		}
	}
	b.p.Shutdown()
}

func (b *Batcher) recordDelivery(shardID string, n int) {
	if b.metrics == nil {
		return
	}
	b.metrics.BatchesDelivered.WithLabelValues(b.jobTicket, shardID).Inc()
	b.metrics.ResultsDelivered.WithLabelValues(b.jobTicket, shardID).Add(float64(n))
}

func (b *Batcher) recordFailure(shardID string) {
	if b.metrics == nil {
		return
	}
	b.metrics.TasksFailed.WithLabelValues(b.jobTicket, shardID).Inc()
}
