package batcher

import "sync/atomic"

// shardState is the per-shard pagination state: resultsSoFar (monotonic
// non-negative counter) and isDone (monotonic except that retry may
// transiently clear it). Created on first observation of a shard and
// retained for the job's lifetime, even past the shard's removal from
// the directory.
type shardState struct {
	resultsSoFar atomic.Int64
	isDone       atomic.Bool
}

func newShardState() *shardState {
	return &shardState{}
}
