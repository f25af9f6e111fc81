// Package directory provides reference shard.Directory implementations:
// a static, test-friendly directory and an etcd-backed one mirroring a
// live discovery service.
package directory

import "github.com/chtzvt/forestbatch/internal/shard"

// Static is a fixed, in-memory shard.Directory. Used by tests and by any
// caller that already has a ForestConfiguration snapshot in hand and
// doesn't need a live discovery service.
type Static struct {
	shards []shard.Shard
}

// NewStatic builds a Static directory over a fixed shard list.
func NewStatic(shards []shard.Shard) *Static {
	cp := make([]shard.Shard, len(shards))
	copy(cp, shards)
	return &Static{shards: cp}
}

func (s *Static) ListShards() ([]shard.Shard, error) {
	out := make([]shard.Shard, len(s.shards))
	copy(out, s.shards)
	return out, nil
}

// WithHost returns a copy of this directory with shard id's host
// replaced, for tests that simulate a preferred-host change between
// WithForestConfig calls.
func (s *Static) WithHost(id, host string) *Static {
	out := make([]shard.Shard, len(s.shards))
	for i, sh := range s.shards {
		if sh.ID == id {
			sh.Host = host
		}
		out[i] = sh
	}
	return NewStatic(out)
}
