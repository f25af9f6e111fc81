package batcher

import "sync/atomic"

// counter is a monotonic, concurrency-safe atomic scalar. Used for
// jobBatchCounter and jobResultsSoFar.
type counter struct {
	v atomic.Int64
}

// next increments and returns the new value; used to mint a fresh job
// batch number.
func (c *counter) next() int64 {
	return c.v.Add(1)
}

// add adds delta and returns nothing; used for jobResultsSoFar, which
// accumulates rather than mints sequence numbers.
func (c *counter) add(delta int64) {
	c.v.Add(delta)
}

// addAndLoad adds delta and returns the new total in one step.
func (c *counter) addAndLoad(delta int64) int64 {
	return c.v.Add(delta)
}

func (c *counter) load() int64 {
	return c.v.Load()
}

// tsOnce implements snapshotTimestamp: unset (0) or a positive integer,
// write-once via atomic compare-and-swap.
type tsOnce struct {
	v atomic.Int64
}

// trySet sets the timestamp if unset, returning the value now in effect
// (either the one just set, or the one another goroutine beat us to).
func (t *tsOnce) trySet(ts int64) int64 {
	if t.v.CompareAndSwap(0, ts) {
		return ts
	}
	return t.v.Load()
}

func (t *tsOnce) get() (int64, bool) {
	v := t.v.Load()
	return v, v != 0
}

// boolFlag is a monotonic false->true latch (spec's "stopped").
type boolFlag struct {
	v atomic.Bool
}

func (f *boolFlag) Set() {
	f.v.Store(true)
}

func (f *boolFlag) IsSet() bool {
	return f.v.Load()
}
