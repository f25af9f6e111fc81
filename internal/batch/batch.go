// Package batch holds the immutable value handed to listeners: one
// page's worth of identifiers plus the counters and context a listener
// needs to act on it.
package batch

import (
	"time"

	"github.com/chtzvt/forestbatch/internal/shard"
	"github.com/chtzvt/forestbatch/internal/transport"
)

// Batch is the immutable snapshot delivered to success and failure
// listeners. Once built it is never mutated; concurrent listeners reading
// the same Batch never race with each other or with the engine.
type Batch struct {
	IDs                []string
	JobBatchNumber      int64
	ShardBatchNumber    int64
	JobResultsSoFar    int64
	ShardResultsSoFar  int64
	Shard              shard.Shard
	Client             transport.Client
	ServerTimestamp    int64
	WallClockTimestamp time.Time
	JobTicket          string
}

// Builder assembles a Batch across the several fields the task sets at
// different points of the hot path: many optional fields set across a
// short chain favor a builder over a long positional constructor. Zero
// value is ready to use.
type Builder struct {
	b Batch
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) IDs(ids []string) *Builder {
	b.b.IDs = ids
	return b
}

func (b *Builder) JobBatchNumber(n int64) *Builder {
	b.b.JobBatchNumber = n
	return b
}

func (b *Builder) ShardBatchNumber(n int64) *Builder {
	b.b.ShardBatchNumber = n
	return b
}

func (b *Builder) JobResultsSoFar(n int64) *Builder {
	b.b.JobResultsSoFar = n
	return b
}

func (b *Builder) ShardResultsSoFar(n int64) *Builder {
	b.b.ShardResultsSoFar = n
	return b
}

func (b *Builder) Shard(s shard.Shard) *Builder {
	b.b.Shard = s
	return b
}

func (b *Builder) Client(c transport.Client) *Builder {
	b.b.Client = c
	return b
}

func (b *Builder) ServerTimestamp(ts int64) *Builder {
	b.b.ServerTimestamp = ts
	return b
}

func (b *Builder) WallClockTimestamp(t time.Time) *Builder {
	b.b.WallClockTimestamp = t
	return b
}

func (b *Builder) JobTicket(ticket string) *Builder {
	b.b.JobTicket = ticket
	return b
}

// Build returns the finished, immutable Batch value.
func (b *Builder) Build() Batch {
	out := b.b
	ids := make([]string, len(b.b.IDs))
	copy(ids, b.b.IDs)
	out.IDs = ids
	return out
}
