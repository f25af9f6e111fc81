// Package shard models the forest directory the query engine fans work
// across: a snapshot of shards and the host each currently prefers.
package shard

import "fmt"

// Shard (Forest) is a horizontally-partitioned slice of the document store.
// Identity is the ID; Host and Database may change across directory
// snapshots without the shard's identity changing.
type Shard struct {
	ID       string
	Name     string
	Host     string
	Database string
}

// Equal reports whether two shards have the same identity. Host and
// Database are not part of identity: a shard whose preferred host moved
// is still "the same shard".
func (s Shard) Equal(other Shard) bool {
	return s.ID == other.ID
}

func (s Shard) String() string {
	return fmt.Sprintf("shard(%s@%s)", s.ID, s.Host)
}

// Directory is a read-only snapshot source for the shard/host map. The
// query engine calls ListShards once at construction and again every time
// WithForestConfig pushes a new snapshot.
type Directory interface {
	ListShards() ([]Shard, error)
}

// Snapshot is an immutable point-in-time directory capture: the list of
// shards plus the derived host -> shards index used to build the
// per-host transport client list.
type Snapshot struct {
	Shards   []Shard
	byID     map[string]Shard
	hostToID map[string][]string
}

// NewSnapshot validates and indexes a shard list. Every shard must carry
// a non-empty preferred host; the engine rejects a directory that
// doesn't.
func NewSnapshot(shards []Shard) (Snapshot, error) {
	byID := make(map[string]Shard, len(shards))
	hostToID := make(map[string][]string)
	for _, s := range shards {
		if s.Host == "" {
			return Snapshot{}, fmt.Errorf("shard %q: %w", s.ID, ErrNoPreferredHost)
		}
		byID[s.ID] = s
		hostToID[s.Host] = append(hostToID[s.Host], s.ID)
	}
	out := make([]Shard, len(shards))
	copy(out, shards)
	return Snapshot{Shards: out, byID: byID, hostToID: hostToID}, nil
}

// Lookup returns the shard with the given ID as it exists in this
// snapshot, and whether it was found.
func (s Snapshot) Lookup(id string) (Shard, bool) {
	sh, ok := s.byID[id]
	return sh, ok
}

// Hosts returns the distinct preferred hosts in this snapshot, in the
// order first seen.
func (s Snapshot) Hosts() []string {
	seen := make(map[string]struct{}, len(s.hostToID))
	var hosts []string
	for _, sh := range s.Shards {
		if _, ok := seen[sh.Host]; ok {
			continue
		}
		seen[sh.Host] = struct{}{}
		hosts = append(hosts, sh.Host)
	}
	return hosts
}

// Delta describes what changed between a previous and a new snapshot, in
// the terms the reconfiguration algorithm uses.
type Delta struct {
	Added       []Shard // in new, not in old
	BlackListed []Shard // in old, not in new
}

// Diff computes the added/blackListed sets of next relative to prev.
// Shard identity (ID only) drives the comparison; a shard whose host
// changed between snapshots is neither added nor blacklisted.
func Diff(prev, next Snapshot) Delta {
	var d Delta
	for _, s := range next.Shards {
		if _, ok := prev.byID[s.ID]; !ok {
			d.Added = append(d.Added, s)
		}
	}
	for _, s := range prev.Shards {
		if _, ok := next.byID[s.ID]; !ok {
			d.BlackListed = append(d.BlackListed, s)
		}
	}
	return d
}
