package roomsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/roomsync/internal/models"
)

type searchRecorder struct {
	mu      sync.Mutex
	queries []string
	results []models.SearchResults
}

func (r *searchRecorder) run(ctx context.Context, query string) (models.SearchResults, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	return models.SearchResults{Messages: []models.Message{{ID: query}}}, nil
}

func (r *searchRecorder) settled(res models.SearchResults) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *searchRecorder) snapshot() ([]string, []models.SearchResults) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...), append([]models.SearchResults(nil), r.results...)
}

func TestDebouncerCollapsesRapidQueries(t *testing.T) {
	rec := &searchRecorder{}
	d := NewDebouncer(30*time.Millisecond, rec.run, rec.settled)

	d.SetQuery("a")
	d.SetQuery("ab")
	d.SetQuery("abc")

	require.Eventually(t, func() bool {
		_, results := rec.snapshot()
		return len(results) == 1
	}, time.Second, time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	queries, results := rec.snapshot()
	require.Equal(t, []string{"abc"}, queries)
	require.Len(t, results, 1)
	require.Equal(t, "abc", results[0].Query)
	require.Equal(t, "abc", d.Latest().Query)
	require.False(t, d.Pending())
}

func TestDebouncerEmptyQueryClearsSynchronously(t *testing.T) {
	rec := &searchRecorder{}
	d := NewDebouncer(20*time.Millisecond, rec.run, rec.settled)

	d.SetQuery("x")
	require.Eventually(t, func() bool { return d.Latest().Query == "x" }, time.Second, time.Millisecond)

	d.SetQuery("x")
	d.SetQuery("  ")
	require.Empty(t, d.Latest().Query)
	require.Empty(t, d.Latest().Messages)
	require.False(t, d.Pending())

	time.Sleep(50 * time.Millisecond)
	queries, results := rec.snapshot()
	require.Equal(t, []string{"x"}, queries)
	require.Len(t, results, 2)
	require.Empty(t, results[1].Query)
}

func TestDebouncerDropsSupersededInFlight(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var settled []string
	slow := func(ctx context.Context, query string) (models.SearchResults, error) {
		if query == "slow" {
			<-release
		}
		return models.SearchResults{}, nil
	}
	d := NewDebouncer(time.Millisecond, slow, func(res models.SearchResults) {
		mu.Lock()
		settled = append(settled, res.Query)
		mu.Unlock()
	})

	d.SetQuery("slow")
	require.Eventually(t, d.Pending, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	d.SetQuery("fast")
	require.Eventually(t, func() bool { return d.Latest().Query == "fast" }, time.Second, time.Millisecond)
	close(release)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"fast"}, settled)
}

func TestDebouncerRecordsError(t *testing.T) {
	d := NewDebouncer(time.Millisecond, func(ctx context.Context, query string) (models.SearchResults, error) {
		return models.SearchResults{}, errBoom
	}, nil)

	d.SetQuery("q")
	require.Eventually(t, func() bool { return d.Latest().Err == "boom" }, time.Second, time.Millisecond)
}

func TestDebouncerCancel(t *testing.T) {
	rec := &searchRecorder{}
	d := NewDebouncer(20*time.Millisecond, rec.run, rec.settled)
	d.SetQuery("q")
	d.Cancel()
	require.Equal(t, "q", d.Query())

	time.Sleep(50 * time.Millisecond)
	queries, _ := rec.snapshot()
	require.Empty(t, queries)
}
