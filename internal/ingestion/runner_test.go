package ingestion

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/storage/memory"
)

// mockStream implements a controllable live feed for testing.
type mockStream struct {
	ch chan domain.Quote
}

func newMockStream() *mockStream {
	return &mockStream{ch: make(chan domain.Quote, 100)}
}

func (m *mockStream) Quotes() <-chan domain.Quote { return m.ch }
func (m *mockStream) Close() error                { close(m.ch); return nil }
func (m *mockStream) Send(q domain.Quote)         { m.ch <- q }

// mockRecorder counts snapshot calls.
type mockRecorder struct {
	calls atomic.Int32
}

func (m *mockRecorder) Record(ctx context.Context, quotes []domain.Quote) (int, error) {
	m.calls.Add(1)
	return len(quotes), nil
}

func TestRunner_PollsOnInterval(t *testing.T) {
	store := memory.NewCurrentRecordStore()
	source := &mockQuoteSource{quotes: []domain.Quote{validQuote("bitcoin", 50000)}}

	runner := NewRunner(RunnerOptions{
		Ingestor: NewIngestor(IngestorOptions{
			Source: source,
			Store:  store,
			Logger: testLogger(),
		}),
		Store:        store,
		PollInterval: 20 * time.Millisecond,
		Logger:       testLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	all, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunner_ScheduledSnapshots(t *testing.T) {
	store := memory.NewCurrentRecordStore()
	source := &mockQuoteSource{quotes: []domain.Quote{validQuote("bitcoin", 50000)}}
	recorder := &mockRecorder{}

	runner := NewRunner(RunnerOptions{
		Ingestor: NewIngestor(IngestorOptions{
			Source: source,
			Store:  store,
			Logger: testLogger(),
		}),
		Recorder:      recorder,
		Store:         store,
		PollInterval:  10 * time.Millisecond,
		SnapshotEvery: 2,
		Logger:        testLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_ = runner.Run(ctx)

	// ~15 polls in 150ms at one per 10ms; a snapshot every 2 polls means
	// several must have fired.
	assert.GreaterOrEqual(t, recorder.calls.Load(), int32(2))
}

func TestRunner_ConsumesLiveFeed(t *testing.T) {
	store := memory.NewCurrentRecordStore()
	source := &mockQuoteSource{} // empty poll results
	stream := newMockStream()

	runner := NewRunner(RunnerOptions{
		Ingestor: NewIngestor(IngestorOptions{
			Source: source,
			Store:  store,
			Logger: testLogger(),
		}),
		Stream:       stream,
		Store:        store,
		PollInterval: time.Hour,
		Logger:       testLogger(),
	})

	stream.Send(validQuote("bitcoin", 50000))
	stream.Send(domain.Quote{AssetID: "", Name: "bad", Symbol: "bad", PriceUSD: 1})
	stream.Send(validQuote("bitcoin", 51000))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_ = runner.Run(ctx)

	all, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Last valid live quote wins, invalid one dropped.
	assert.Equal(t, 51000.0, all[0].PriceUSD)
}

func TestRunner_SurvivesClosedFeed(t *testing.T) {
	store := memory.NewCurrentRecordStore()
	source := &mockQuoteSource{quotes: []domain.Quote{validQuote("bitcoin", 50000)}}
	stream := newMockStream()

	runner := NewRunner(RunnerOptions{
		Ingestor: NewIngestor(IngestorOptions{
			Source: source,
			Store:  store,
			Logger: testLogger(),
		}),
		Stream:       stream,
		Store:        store,
		PollInterval: 20 * time.Millisecond,
		Logger:       testLogger(),
	})

	stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Polling keeps working after the feed closes
	all, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
