package batcher

import "github.com/chtzvt/forestbatch/internal/shard"

// quarantineIfAbsent implements the blacklist half of the
// reconfiguration algorithm without needing to physically drain the
// pool's internal queue: instead of WithForestConfig reaching into the
// queue to pull out tasks targeting a removed shard, every task checks
// at execution time whether its target shard is still present in the
// current directory. A task whose shard has disappeared is filed into
// the quarantine instead of running, which produces the same
// observable behavior: no task targeting a removed shard executes until
// it is re-added, and the original task then executes with its
// original offset, without requiring a queue that
// supports removal.
//
// Retry-path tasks (invokeFailureListeners == false) are never
// quarantined: Retry already checks shard presence before constructing
// the task, and quarantining it here would silently swallow the
// synchronous return value Retry's caller expects.
func (b *Batcher) quarantineIfAbsent(t task) bool {
	if !t.invokeFailureListeners {
		return false
	}
	b.mu.Lock()
	_, present := b.directory.Lookup(t.target.ID)
	b.mu.Unlock()
	if present {
		return false
	}

	b.quarantineMu.Lock()
	b.quarantine[t.target.ID] = append(b.quarantine[t.target.ID], t)
	b.quarantineMu.Unlock()
	return true
}

// WithForestConfig pushes a new directory snapshot. Serialized with
// Start and with itself via b.mu.
func (b *Batcher) WithForestConfig(dir shard.Directory) error {
	shards, err := dir.ListShards()
	if err != nil {
		return err
	}
	next, err := shard.NewSnapshot(shards)
	if err != nil {
		return err
	}

	b.mu.Lock()
	prev := b.directory
	b.directory = next
	resolverErr := b.rebuildResolver()
	b.mu.Unlock()
	if resolverErr != nil {
		return resolverErr
	}

	// delta.BlackListed names exactly the shards whose in-flight/queued
	// tasks quarantineIfAbsent will start catching from this point on;
	// delta.Added is not used to seed tasks below since a shard that
	// reappeared after removal must resurrect its quarantined task at
	// its original offset, not start over at offset 1 (see trulyNew).
	delta := shard.Diff(prev, next)
	for _, s := range delta.BlackListed {
		b.logger.Printf("batcher: shard %s removed from directory, quarantining its tasks", s.ID)
	}

	// "added" is computed against every shard ID this engine has ever
	// observed (b.shards), not just the immediately-prior snapshot: a
	// shard that was removed and has now reappeared is "restarted"
	// (resurrect its quarantined task at its original offset), not
	// "added" again (which would seed a second, duplicate offset-1 task
	// and violate the one-in-flight-task-per-shard invariant).
	var trulyNew []shard.Shard
	for _, s := range next.Shards {
		b.shardsMu.Lock()
		_, known := b.shards[s.ID]
		b.shardsMu.Unlock()
		if !known {
			trulyNew = append(trulyNew, s)
		}
		b.ensureShardState(s.ID)
	}

	if b.mode == modeQuery {
		for _, s := range trulyNew {
			b.submitTask(task{target: s, start: 1, shardBatchNumber: 1, invokeFailureListeners: true})
		}
	}

	for _, s := range next.Shards {
		b.resurrectQuarantined(s.ID)
	}

	return nil
}

// resurrectQuarantined re-enqueues every task quarantined for shardID,
// preserving its original offset and batch numbers, and clears the
// quarantine entry.
func (b *Batcher) resurrectQuarantined(shardID string) {
	b.quarantineMu.Lock()
	tasks := b.quarantine[shardID]
	delete(b.quarantine, shardID)
	b.quarantineMu.Unlock()

	for _, t := range tasks {
		b.submitTask(t)
	}
}
