package batcher

import "github.com/chtzvt/forestbatch/internal/listener"

// Retry re-enters the pipeline at the exact offset a failed batch left
// off at. It looks up the event's shard in the *current* directory
// (failing if it's gone), clears isDone for that shard, and runs a
// single task synchronously on the
// caller's goroutine so a monitoring failure listener can blacklist a
// host and retry in one call without recursing into failure listeners
// again.
func (b *Batcher) Retry(event listener.FailureEvent) error {
	b.mu.Lock()
	current, ok := b.directory.Lookup(event.Batch.Shard.ID)
	b.mu.Unlock()
	if !ok {
		return ErrShardGone
	}

	st := b.ensureShardState(current.ID)
	st.isDone.Store(false)

	start := int(event.ShardResultsSoFar) + 1

	t := task{
		target:                 current,
		start:                  start,
		shardBatchNumber:       event.ShardBatchNumber,
		jobBatchOverride:       event.JobBatchNumber,
		hasJobBatchOverride:    true,
		invokeFailureListeners: false,
	}
	return b.runTask(t)
}
