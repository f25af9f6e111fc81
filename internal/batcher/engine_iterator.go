package batcher

import (
	"time"

	"github.com/chtzvt/forestbatch/internal/batch"
	"github.com/chtzvt/forestbatch/internal/listener"
	"github.com/chtzvt/forestbatch/internal/transport"
)

// startIterator submits the single long-lived driver task: it drains
// the caller-supplied lazy sequence, buffers ids, and freezes+dispatches
// a batch whenever the buffer fills or the
// sequence is exhausted.
func (b *Batcher) startIterator() {
	_ = b.p.Submit(b.runIteratorDriver)
}

func (b *Batcher) runIteratorDriver() {
	buf := make([]string, 0, b.pageSize)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		frozen := make([]string, len(buf))
		copy(frozen, buf)
		buf = buf[:0]
		b.dispatchIteratorBatch(frozen)
	}

	for {
		if b.stopped.IsSet() {
			break
		}
		if !b.sequence.HasNext() {
			break
		}
		id, err := b.sequence.Next()
		if err != nil {
			b.reportIteratorError(err)
			break
		}
		buf = append(buf, id)
		if len(buf) >= b.pageSize {
			flush()
		}
	}
	flush()
	b.p.Shutdown()
}

// dispatchIteratorBatch assigns a fresh job batch number, selects a
// transport client by batchNumber mod hostCount over a snapshot of the
// current client list (round-robin across hosts), and invokes success
// listeners.
func (b *Batcher) dispatchIteratorBatch(ids []string) {
	jobBatchNum := b.jobBatchCounter.next()

	b.mu.Lock()
	resolver := b.resolver
	b.mu.Unlock()

	var client transport.Client
	var haveClient bool
	if resolver != nil {
		clients := resolver.Snapshot()
		if len(clients) > 0 {
			idx := int(jobBatchNum) % len(clients)
			client, haveClient = clients[idx], true
		}
	}

	jobResultsSoFar := b.jobResultsSoFar.addAndLoad(int64(len(ids)))

	builder := batch.NewBuilder().
		IDs(ids).
		JobBatchNumber(jobBatchNum).
		JobResultsSoFar(jobResultsSoFar).
		WallClockTimestamp(time.Now()).
		JobTicket(b.jobTicket)
	if haveClient {
		builder = builder.Client(client)
	}
	bt := builder.Build()

	if b.metrics != nil {
		b.metrics.BatchesDelivered.WithLabelValues(b.jobTicket, "iterator").Inc()
		b.metrics.ResultsDelivered.WithLabelValues(b.jobTicket, "iterator").Add(float64(len(ids)))
	}
	b.invokeSuccessListeners(bt)
}

func (b *Batcher) reportIteratorError(err error) {
	event := listener.FailureEvent{
		Batch: batch.NewBuilder().
			JobBatchNumber(b.jobBatchCounter.load()).
			WallClockTimestamp(time.Now()).
			JobTicket(b.jobTicket).
			Build(),
		Cause: err,
	}
	b.invokeFailureListeners(event)
}
