package batcher

// ShardStatus is a read-only snapshot of one shard's pagination state,
// for external status reporting (cmd/forestbatchctl's /status endpoint).
type ShardStatus struct {
	ShardID      string `json:"shard_id"`
	ResultsSoFar int64  `json:"results_so_far"`
	IsDone       bool   `json:"is_done"`
}

// Status is a read-only snapshot of job-wide progress.
type Status struct {
	JobTicket       string        `json:"job_ticket"`
	Started         bool          `json:"started"`
	Stopped         bool          `json:"stopped"`
	Terminated      bool          `json:"terminated"`
	JobResultsSoFar int64         `json:"job_results_so_far"`
	Shards          []ShardStatus `json:"shards,omitempty"`
}

// Snapshot returns a point-in-time view of job progress, safe to call
// concurrently with a running job.
func (b *Batcher) Snapshot() Status {
	b.mu.Lock()
	started := b.started
	ticket := b.jobTicket
	dir := b.directory
	p := b.p
	b.mu.Unlock()

	st := Status{
		JobTicket:       ticket,
		Started:         started,
		Stopped:         b.stopped.IsSet(),
		JobResultsSoFar: b.jobResultsSoFar.load(),
	}
	if p != nil {
		st.Terminated = p.IsTerminated()
	}
	if b.mode == modeQuery {
		st.Shards = make([]ShardStatus, 0, len(dir.Shards))
		for _, s := range dir.Shards {
			if shState, ok := b.shardStateFor(s.ID); ok {
				st.Shards = append(st.Shards, ShardStatus{
					ShardID:      s.ID,
					ResultsSoFar: shState.resultsSoFar.Load(),
					IsDone:       shState.isDone.Load(),
				})
			}
		}
	}
	return st
}
