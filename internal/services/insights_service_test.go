package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spendwise/internal/analytics"
	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/storage/memory"
	"spendwise/internal/textgen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource wraps a store and counts full fetches.
type countingSource struct {
	*memory.Store
	fetches atomic.Int32
	gate    chan struct{}
}

func (c *countingSource) AllExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	c.fetches.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.Store.AllExpenses(ctx, userID)
}

func seed(t *testing.T, store *memory.Store) {
	t.Helper()
	for i, date := range []string{"2024-01-10", "2024-02-10", "2024-03-10"} {
		require.NoError(t, store.CreateExpense(context.Background(), core.Expense{
			ID: string(rune('a' + i)), UserID: "u1", Amount: core.Money{Cents: 10000}, Category: "Food", Date: date,
		}))
	}
}

func newInsights(t *testing.T, src *countingSource) *InsightsService {
	t.Helper()
	gen := &textgen.Static{Result: textgen.OK("- You spent the most on Food this quarter\n- Your spending is very steady")}
	p := analytics.NewPipeline(src, gen, time.Second, nil)
	c := cache.New[analytics.Report](cache.Options{MaxEntries: 10, TTL: time.Minute})
	return NewInsightsService(p, src.Store, c, analytics.FullProfile, nil)
}

func TestInsightsService_CachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{Store: memory.New()}
	seed(t, src.Store)
	svc := newInsights(t, src)

	r1, err := svc.Insights(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, r1.Insights, 2)

	_, err = svc.Insights(ctx, "u1", "full")
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.fetches.Load(), "second call is served from cache")

	_, err = svc.Insights(ctx, "u1", "brief")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.fetches.Load(), "profiles are cached separately")

	svc.Invalidate("u1")
	_, err = svc.Insights(ctx, "u1", "full")
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.fetches.Load())
}

// pausingSource reads the store, then holds the result until released.
type pausingSource struct {
	*memory.Store
	read    chan struct{}
	release chan struct{}
	paused  atomic.Bool
}

func (p *pausingSource) AllExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	expenses, err := p.Store.AllExpenses(ctx, userID)
	if p.paused.CompareAndSwap(false, true) {
		close(p.read)
		<-p.release
	}
	return expenses, err
}

func TestInsightsService_InvalidateDuringRunDropsStaleReport(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seed(t, store)
	src := &pausingSource{Store: store, read: make(chan struct{}), release: make(chan struct{})}

	gen := &textgen.Static{Result: textgen.OK("- You spent the most on Food this quarter")}
	p := analytics.NewPipeline(src, gen, time.Second, nil)
	c := cache.New[analytics.Report](cache.Options{MaxEntries: 10, TTL: time.Minute})
	svc := NewInsightsService(p, store, c, analytics.FullProfile, nil)

	staleDone := make(chan analytics.Report)
	go func() {
		r, err := svc.Insights(ctx, "u1", "full")
		assert.NoError(t, err)
		staleDone <- r
	}()
	<-src.read

	require.NoError(t, store.CreateExpense(ctx, core.Expense{
		ID: "d", UserID: "u1", Amount: core.Money{Cents: 5000}, Category: "Bills", Date: "2024-03-20",
	}))
	svc.Invalidate("u1")

	// A request made right after the write must not join the stale run.
	fresh, err := svc.Insights(ctx, "u1", "full")
	require.NoError(t, err)
	assert.Equal(t, 4, fresh.Summary.Count)

	close(src.release)
	stale := <-staleDone
	assert.Equal(t, 3, stale.Summary.Count)

	again, err := svc.Insights(ctx, "u1", "full")
	require.NoError(t, err)
	assert.Equal(t, 4, again.Summary.Count, "cache must not hold the report computed before the write")
}

func TestInsightsService_UnknownProfile(t *testing.T) {
	svc := newInsights(t, &countingSource{Store: memory.New()})
	_, err := svc.Insights(context.Background(), "u1", "verbose")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestInsightsService_CoalescesConcurrentRequests(t *testing.T) {
	src := &countingSource{Store: memory.New(), gate: make(chan struct{})}
	seed(t, src.Store)
	svc := newInsights(t, src)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]analytics.Report, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.Insights(context.Background(), "u1", "full")
			assert.NoError(t, err)
			results[i] = r
		}()
	}

	// Let every caller reach the flight before the fetch completes.
	require.Eventually(t, func() bool { return src.fetches.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.fetches.Load())
	for _, r := range results {
		assert.Equal(t, results[0].Summary, r.Summary)
	}
}

func TestInsightsService_RefreshAndLatest(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{Store: memory.New()}
	seed(t, src.Store)
	svc := newInsights(t, src)

	_, err := svc.Latest(ctx, "u1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, src.Store.MarkStale(ctx, "u1"))
	require.NoError(t, svc.Refresh(ctx, "u1"))

	latest, err := svc.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "full", latest.Profile)

	var report analytics.Report
	require.NoError(t, json.Unmarshal(latest.Report, &report))
	assert.Equal(t, 3, report.Summary.Count)

	stale, err := src.Store.StaleUsers(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestInsightsService_Summary(t *testing.T) {
	src := &countingSource{Store: memory.New()}
	seed(t, src.Store)
	svc := newInsights(t, src)

	s, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, s.ExpenseCount)
	assert.Equal(t, int64(30000), s.TotalExpenses.Cents)
}
