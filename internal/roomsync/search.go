package roomsync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tOgg1/roomsync/internal/models"
)

// SearchFunc runs one settled query.
type SearchFunc func(ctx context.Context, query string) (models.SearchResults, error)

// Debouncer collapses rapid query changes into one search that runs after
// the query has been quiet for the configured delay. A newer query
// supersedes both a pending timer and an in-flight search.
type Debouncer struct {
	delay    time.Duration
	run      SearchFunc
	onResult func(models.SearchResults)

	mu       sync.Mutex
	rev      uint64
	query    string
	timer    *time.Timer
	cancel   context.CancelFunc
	inFlight bool
	latest   models.SearchResults
}

// NewDebouncer creates a debouncer. onResult is called for every settled
// query and for clears; it may be nil.
func NewDebouncer(delay time.Duration, run SearchFunc, onResult func(models.SearchResults)) *Debouncer {
	return &Debouncer{delay: delay, run: run, onResult: onResult}
}

// SetQuery records a new query. An empty query clears results synchronously.
func (d *Debouncer) SetQuery(query string) {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	d.rev++
	rev := d.rev
	d.query = query
	d.stopLocked()
	if query == "" {
		d.latest = models.SearchResults{}
		d.mu.Unlock()
		d.notify(models.SearchResults{})
		return
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(rev, query) })
	d.mu.Unlock()
}

// Cancel drops any pending or in-flight search without clearing results.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rev++
	d.stopLocked()
}

// Query returns the most recent query.
func (d *Debouncer) Query() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.query
}

// Latest returns the results of the last settled query.
func (d *Debouncer) Latest() models.SearchResults {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest
}

// Pending reports whether a search is scheduled or running.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil || d.inFlight
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.inFlight = false
}

func (d *Debouncer) fire(rev uint64, query string) {
	d.mu.Lock()
	if rev != d.rev {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.inFlight = true
	d.mu.Unlock()

	res, err := d.run(ctx, query)
	cancel()

	res.Query = query
	if err != nil {
		res.Err = err.Error()
	}

	d.mu.Lock()
	if rev != d.rev {
		d.mu.Unlock()
		return
	}
	d.cancel = nil
	d.inFlight = false
	d.latest = res
	d.mu.Unlock()

	d.notify(res)
}

func (d *Debouncer) notify(res models.SearchResults) {
	if d.onResult != nil {
		d.onResult(res)
	}
}
