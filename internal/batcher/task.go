package batcher

import "github.com/chtzvt/forestbatch/internal/shard"

// task is one unit of work: fetch one page from one shard starting at
// one offset. It carries no shared mutable state; every field is set
// once at construction.
type task struct {
	target                 shard.Shard
	start                  int
	shardBatchNumber       int64
	jobBatchOverride       int64 // 0 means "no override, take a fresh counter"
	hasJobBatchOverride    bool
	invokeFailureListeners bool
}
