package batcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chtzvt/forestbatch/internal/batch"
	"github.com/chtzvt/forestbatch/internal/batcher"
	"github.com/chtzvt/forestbatch/internal/directory"
	"github.com/chtzvt/forestbatch/internal/idseq"
	"github.com/chtzvt/forestbatch/internal/listener"
	"github.com/chtzvt/forestbatch/internal/shard"
	"github.com/chtzvt/forestbatch/internal/transport"
)

// fakeTransport serves fixed pages of ids per shard name, simulating a
// store with pageLength-sized pagination and a terminal ErrNotFound once
// an offset runs past the end.
type fakeTransport struct {
	mu      sync.Mutex
	data    map[string][]string
	calls   []string
	failAt  map[string]int // shard -> offset that returns an error once
	failErr error
	delay   time.Duration
}

func newFakeTransport(data map[string][]string) *fakeTransport {
	return &fakeTransport{data: data, failAt: map[string]int{}}
}

func (f *fakeTransport) URIs(ctx context.Context, query, shardName string, start, pageLength int, atTimestamp int64) (transport.Page, error) {
	f.mu.Lock()
	delay := f.delay
	f.calls = append(f.calls, shardName)
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if off, ok := f.failAt[shardName]; ok && off == start {
		delete(f.failAt, shardName)
		return transport.Page{}, f.failErr
	}

	all := f.data[shardName]
	if start > len(all) {
		return transport.Page{}, transport.ErrNotFound
	}
	end := start - 1 + pageLength
	if end > len(all) {
		end = len(all)
	}
	page := all[start-1 : end]
	out := make([]string, len(page))
	copy(out, page)
	return transport.Page{IDs: out, ServerTimestamp: 42}, nil
}

func singleClientFactory(tr transport.Transport) func(host string) (transport.Client, error) {
	return func(host string) (transport.Client, error) {
		return transport.Client{Host: host, Transport: tr}, nil
	}
}

func collectListener() (listener.SuccessListener, func() []batch.Batch) {
	var mu sync.Mutex
	var got []batch.Batch
	l := func(b batch.Batch) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, b)
		return nil
	}
	return l, func() []batch.Batch {
		mu.Lock()
		defer mu.Unlock()
		out := make([]batch.Batch, len(got))
		copy(out, got)
		return out
	}
}

func TestQueryEngineDeliversAllPagesInOrderAndTerminates(t *testing.T) {
	tr := newFakeTransport(map[string][]string{
		"forest1": {"a", "b", "c", "d", "e"},
	})
	dir := directory.NewStatic([]shard.Shard{{ID: "f1", Name: "forest1", Host: "h1"}})

	l, results := collectListener()
	b, err := batcher.New("//doc", dir,
		batcher.WithTransportFactory(singleClientFactory(tr)),
		batcher.WithPageSize(2),
		batcher.WithSuccessListener(l),
	)
	require.NoError(t, err)

	ticket, err := b.Start()
	require.NoError(t, err)
	require.NotEmpty(t, ticket)

	ok, err := b.AwaitCompletion(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	got := results()
	require.Len(t, got, 3) // [a,b] [c,d] [e]
	require.Equal(t, []string{"a", "b"}, got[0].IDs)
	require.Equal(t, []string{"c", "d"}, got[1].IDs)
	require.Equal(t, []string{"e"}, got[2].IDs)
	require.Equal(t, int64(1), got[0].ShardBatchNumber)
	require.Equal(t, int64(3), got[2].ShardBatchNumber)
	require.Equal(t, int64(5), got[2].ShardResultsSoFar)
	require.Equal(t, ticket, got[0].JobTicket)
}

func TestQueryEngineFansOutAcrossShardsIndependently(t *testing.T) {
	tr := newFakeTransport(map[string][]string{
		"forest1": {"a1", "a2"},
		"forest2": {"b1"},
	})
	dir := directory.NewStatic([]shard.Shard{
		{ID: "f1", Name: "forest1", Host: "h1"},
		{ID: "f2", Name: "forest2", Host: "h1"},
	})

	l, results := collectListener()
	b, err := batcher.New("//doc", dir,
		batcher.WithTransportFactory(singleClientFactory(tr)),
		batcher.WithPageSize(10),
		batcher.WithSuccessListener(l),
	)
	require.NoError(t, err)

	_, err = b.Start()
	require.NoError(t, err)
	ok, err := b.AwaitCompletion(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	got := results()
	require.Len(t, got, 2)
	shardIDs := map[string]bool{got[0].Shard.ID: true, got[1].Shard.ID: true}
	require.True(t, shardIDs["f1"])
	require.True(t, shardIDs["f2"])
}

func TestSnapshotModePinsTimestampAcrossShards(t *testing.T) {
	tr := newFakeTransport(map[string][]string{
		"forest1": {"a"},
		"forest2": {"b"},
	})
	dir := directory.NewStatic([]shard.Shard{
		{ID: "f1", Name: "forest1", Host: "h1"},
		{ID: "f2", Name: "forest2", Host: "h1"},
	})

	l, results := collectListener()
	b, err := batcher.New("//doc", dir,
		batcher.WithTransportFactory(singleClientFactory(tr)),
		batcher.WithPageSize(10),
		batcher.WithSnapshotMode(),
		batcher.WithSuccessListener(l),
	)
	require.NoError(t, err)

	_, err = b.Start()
	require.NoError(t, err)
	ok, err := b.AwaitCompletion(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	got := results()
	require.Len(t, got, 2)
	require.Equal(t, got[0].ServerTimestamp, got[1].ServerTimestamp)
}

func TestRetryReentersAtExactOffset(t *testing.T) {
	tr := newFakeTransport(map[string][]string{
		"forest1": {"a", "b", "c"},
	})
	tr.failAt["forest1"] = 1
	tr.failErr = errors.New("transient failure")

	dir := directory.NewStatic([]shard.Shard{{ID: "f1", Name: "forest1", Host: "h1"}})

	successL, results := collectListener()

	var failureEvent listener.FailureEvent
	var failureSeen sync.WaitGroup
	failureSeen.Add(1)
	failL := func(e listener.FailureEvent) error {
		failureEvent = e
		failureSeen.Done()
		return nil
	}

	b, err := batcher.New("//doc", dir,
		batcher.WithTransportFactory(singleClientFactory(tr)),
		batcher.WithPageSize(10),
		batcher.WithSuccessListener(successL),
		batcher.WithFailureListener(failL),
	)
	require.NoError(t, err)

	_, err = b.Start()
	require.NoError(t, err)

	failureSeen.Wait()
	require.Equal(t, "f1", failureEvent.Batch.Shard.ID)

	retryErr := b.Retry(failureEvent)
	require.NoError(t, retryErr)

	ok, err := b.AwaitCompletion(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	got := results()
	require.Len(t, got, 1)
	require.Equal(t, []string{"a", "b", "c"}, got[0].IDs)
}

func TestRetryFailsWhenShardIsGone(t *testing.T) {
	dir := directory.NewStatic([]shard.Shard{{ID: "f1", Name: "forest1", Host: "h1"}})
	tr := newFakeTransport(map[string][]string{"forest1": {"a"}})

	b, err := batcher.New("//doc", dir, batcher.WithTransportFactory(singleClientFactory(tr)))
	require.NoError(t, err)
	_, err = b.Start()
	require.NoError(t, err)
	_, _ = b.AwaitCompletion(2 * time.Second)

	event := listener.FailureEvent{Batch: batch.NewBuilder().Shard(shard.Shard{ID: "ghost"}).Build()}
	err = b.Retry(event)
	require.ErrorIs(t, err, batcher.ErrShardGone)
}

func TestReconfigurationAddsShardMidFlight(t *testing.T) {
	// forest1's single page is held up briefly so WithForestConfig lands
	// while the job is still mid-flight, not after it has already shut
	// its pool down.
	tr := newFakeTransport(map[string][]string{
		"forest1": {"a"},
		"forest2": {"b"},
	})
	tr.delay = 200 * time.Millisecond

	initial := directory.NewStatic([]shard.Shard{
		{ID: "f1", Name: "forest1", Host: "h1"},
	})

	l, results := collectListener()
	b, err := batcher.New("//doc", initial,
		batcher.WithTransportFactory(singleClientFactory(tr)),
		batcher.WithSuccessListener(l),
	)
	require.NoError(t, err)

	_, err = b.Start()
	require.NoError(t, err)

	withSecond := directory.NewStatic([]shard.Shard{
		{ID: "f1", Name: "forest1", Host: "h1"},
		{ID: "f2", Name: "forest2", Host: "h1"},
	})
	require.NoError(t, b.WithForestConfig(withSecond))

	ok, err := b.AwaitCompletion(3 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	got := results()
	require.Len(t, got, 2)
	seen := map[string]bool{got[0].Shard.ID: true, got[1].Shard.ID: true}
	require.True(t, seen["f1"])
	require.True(t, seen["f2"])
}

func TestReconfigurationQuarantinesRemovedShardTask(t *testing.T) {
	// forest1 pages twice (pageSize 1, two ids); while the first task is
	// in flight we remove f1 from the directory, so the follow-up task
	// for offset 2 should file into quarantine instead of running, then
	// resurrect once f1 reappears.
	tr := newFakeTransport(map[string][]string{
		"forest1": {"a", "b"},
	})
	tr.delay = 150 * time.Millisecond

	initial := directory.NewStatic([]shard.Shard{
		{ID: "f1", Name: "forest1", Host: "h1"},
	})

	l, results := collectListener()
	b, err := batcher.New("//doc", initial,
		batcher.WithTransportFactory(singleClientFactory(tr)),
		batcher.WithPageSize(1),
		batcher.WithSuccessListener(l),
	)
	require.NoError(t, err)

	_, err = b.Start()
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	empty := directory.NewStatic(nil)
	require.NoError(t, b.WithForestConfig(empty))

	time.Sleep(250 * time.Millisecond)
	require.NoError(t, b.WithForestConfig(initial))

	ok, err := b.AwaitCompletion(3 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	got := results()
	require.Len(t, got, 2)
	require.Equal(t, []string{"a"}, got[0].IDs)
	require.Equal(t, []string{"b"}, got[1].IDs)
}

func TestIteratorRoundRobinsAcrossHostsByBatchNumber(t *testing.T) {
	tr := newFakeTransport(nil)
	dir := directory.NewStatic([]shard.Shard{
		{ID: "f1", Host: "h1"},
		{ID: "f2", Host: "h2"},
	})

	l, results := collectListener()
	seq := idseq.NewSliceSequence([]string{"a", "b", "c", "d", "e", "f"})

	b, err := batcher.NewIterator(seq, dir,
		batcher.WithTransportFactory(singleClientFactory(tr)),
		batcher.WithPageSize(2),
		batcher.WithSuccessListener(l),
	)
	require.NoError(t, err)

	_, err = b.Start()
	require.NoError(t, err)
	ok, err := b.AwaitCompletion(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	got := results()
	require.Len(t, got, 3)
	require.Equal(t, "h2", got[0].Client.Host) // batch 1 mod 2 hosts -> index 1
	require.Equal(t, "h1", got[1].Client.Host) // batch 2 mod 2 -> index 0
	require.Equal(t, "h2", got[2].Client.Host) // batch 3 mod 2 -> index 1
}

func TestSuccessListenerPanicDoesNotBlockOtherListeners(t *testing.T) {
	tr := newFakeTransport(map[string][]string{"forest1": {"a"}})
	dir := directory.NewStatic([]shard.Shard{{ID: "f1", Name: "forest1", Host: "h1"}})

	var secondCalled sync.WaitGroup
	secondCalled.Add(1)
	panicky := func(b batch.Batch) error { panic("listener exploded") }
	second := func(b batch.Batch) error {
		secondCalled.Done()
		return nil
	}

	b, err := batcher.New("//doc", dir,
		batcher.WithTransportFactory(singleClientFactory(tr)),
		batcher.WithSuccessListener(panicky),
		batcher.WithSuccessListener(second),
	)
	require.NoError(t, err)
	_, err = b.Start()
	require.NoError(t, err)

	secondCalled.Wait()
}

func TestSetThreadCountIsPermissiveBeforeStart(t *testing.T) {
	dir := directory.NewStatic([]shard.Shard{{ID: "f1", Name: "forest1", Host: "h1"}})
	tr := newFakeTransport(map[string][]string{"forest1": {"a"}})

	b, err := batcher.New("//doc", dir, batcher.WithTransportFactory(singleClientFactory(tr)))
	require.NoError(t, err)

	require.NoError(t, b.SetThreadCount(0))
	require.NoError(t, b.SetThreadCount(-5))

	_, err = b.Start()
	require.NoError(t, err)
	_, _ = b.AwaitCompletion(2 * time.Second)
}

func TestStartTwiceFails(t *testing.T) {
	dir := directory.NewStatic([]shard.Shard{{ID: "f1", Name: "forest1", Host: "h1"}})
	tr := newFakeTransport(map[string][]string{"forest1": {"a"}})

	b, err := batcher.New("//doc", dir, batcher.WithTransportFactory(singleClientFactory(tr)))
	require.NoError(t, err)

	_, err = b.Start()
	require.NoError(t, err)
	_, err = b.Start()
	require.ErrorIs(t, err, batcher.ErrAlreadyStarted)

	_, _ = b.AwaitCompletion(2 * time.Second)
}

func TestSetPageSizeAfterStartFails(t *testing.T) {
	dir := directory.NewStatic([]shard.Shard{{ID: "f1", Name: "forest1", Host: "h1"}})
	tr := newFakeTransport(map[string][]string{"forest1": {"a"}})

	b, err := batcher.New("//doc", dir, batcher.WithTransportFactory(singleClientFactory(tr)))
	require.NoError(t, err)
	_, err = b.Start()
	require.NoError(t, err)

	err = b.SetPageSize(50)
	require.ErrorIs(t, err, batcher.ErrAlreadyStarted)

	_, _ = b.AwaitCompletion(2 * time.Second)
}

func TestStopMarksStoppedAndTerminatesPool(t *testing.T) {
	dir := directory.NewStatic([]shard.Shard{{ID: "f1", Name: "forest1", Host: "h1"}})
	tr := newFakeTransport(map[string][]string{"forest1": {"a", "b", "c"}})

	b, err := batcher.New("//doc", dir,
		batcher.WithTransportFactory(singleClientFactory(tr)),
		batcher.WithPageSize(1),
	)
	require.NoError(t, err)
	_, err = b.Start()
	require.NoError(t, err)

	b.Stop()

	// Stop does not interrupt a task already running, so the pool only
	// reports terminated once that task has returned.
	ok, err := b.AwaitCompletion(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, b.IsStopped())
}

func TestSnapshotReportsProgress(t *testing.T) {
	dir := directory.NewStatic([]shard.Shard{{ID: "f1", Name: "forest1", Host: "h1"}})
	tr := newFakeTransport(map[string][]string{"forest1": {"a", "b"}})

	b, err := batcher.New("//doc", dir, batcher.WithTransportFactory(singleClientFactory(tr)))
	require.NoError(t, err)
	ticket, err := b.Start()
	require.NoError(t, err)

	ok, err := b.AwaitCompletion(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	st := b.Snapshot()
	require.Equal(t, ticket, st.JobTicket)
	require.True(t, st.Started)
	require.Equal(t, int64(2), st.JobResultsSoFar)
	require.Len(t, st.Shards, 1)
	require.True(t, st.Shards[0].IsDone)
}

func TestQueryRequiresNonEmptyQuery(t *testing.T) {
	dir := directory.NewStatic(nil)
	_, err := batcher.New("", dir)
	require.ErrorIs(t, err, batcher.ErrQueryRequired)
}

func TestIteratorRequiresSequence(t *testing.T) {
	dir := directory.NewStatic(nil)
	_, err := batcher.NewIterator(nil, dir)
	require.ErrorIs(t, err, batcher.ErrSequenceRequired)
}
