package batcher

import "errors"

var (
	// ErrAlreadyStarted is returned by configuration setters called after
	// Start: every setter is forbidden once a job is running.
	ErrAlreadyStarted = errors.New("batcher: already started")

	// ErrNotStarted is returned by AwaitCompletion/GetJobTicket before Start.
	ErrNotStarted = errors.New("batcher: not started")

	// ErrInvalidThreadCount is returned by SetThreadCount when the
	// currently configured thread count is negative; the incoming value
	// itself is not checked.
	ErrInvalidThreadCount = errors.New("batcher: thread count must be >= 1")

	// ErrShardGone is returned by Retry when the failed batch's shard is
	// no longer present in the current directory snapshot.
	ErrShardGone = errors.New("batcher: shard no longer in configuration")

	// ErrSequenceRequired/ErrQueryRequired mark construction misuse.
	ErrSequenceRequired = errors.New("batcher: iterator variant requires a non-nil sequence")
	ErrQueryRequired    = errors.New("batcher: query variant requires a non-empty query")
)
