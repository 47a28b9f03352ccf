package logwindow

import (
	"context"
	"sync"
	"time"

	"tailview/pkg/core"
)

// Fetcher issues one time-ranged query against the log backend. Implemented
// by fetch.Client; faked in tests.
type Fetcher interface {
	Fetch(ctx context.Context, startMs, endMs int64, limit int, direction core.Direction) ([]core.LogEntry, error)
}

// Options tune the windowing policy.
type Options struct {
	// Slice is the width of each fetched time slice. Defaults to one hour.
	Slice time.Duration
	// Limit is the per-fetch result ceiling. Defaults to 500.
	Limit int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	defaultSlice = time.Hour
	defaultLimit = 500
)

// Controller orchestrates initial, backward, and forward loads against a
// Fetcher and a Store. Each direction carries an in-flight guard: an older
// and a newer load may run concurrently with each other, never with
// themselves. A failed fetch leaves the store exactly as it was.
type Controller struct {
	store   *Store
	fetcher Fetcher
	slice   time.Duration
	limit   int
	now     func() time.Time

	mu            sync.Mutex
	olderInFlight bool
	newerInFlight bool

	onChange func()
	onError  func(error)
}

// NewController wires a controller to its store and fetcher.
func NewController(store *Store, fetcher Fetcher, opts Options) *Controller {
	if opts.Slice <= 0 {
		opts.Slice = defaultSlice
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		store:   store,
		fetcher: fetcher,
		slice:   opts.Slice,
		limit:   opts.Limit,
		now:     opts.Now,
	}
}

// Store returns the window store the controller mutates.
func (c *Controller) Store() *Store { return c.store }

// OnChange registers a callback invoked after any merge that added entries.
// The rendering collaborator subscribes here; there is no implicit
// observation of the store.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// OnError registers the notification channel for fetch failures. Each failed
// operation surfaces its error exactly once.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Loading reports the per-direction in-flight flags (older, newer).
func (c *Controller) Loading() (older, newer bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.olderInFlight, c.newerInFlight
}

// InitialLoad clears the window and populates it with the most recent slice,
// fetching forward over [now-slice, now].
func (c *Controller) InitialLoad(ctx context.Context) (int, error) {
	if !c.acquire(&c.newerInFlight) {
		return 0, nil
	}
	defer c.release(&c.newerInFlight)

	c.store.Clear()

	end := c.now().UnixMilli()
	start := end - c.slice.Milliseconds()
	entries, err := c.fetcher.Fetch(ctx, start, end, c.limit, core.DirectionForward)
	if err != nil {
		c.notifyError(err)
		return 0, err
	}
	return c.merge(entries, false), nil
}

// LoadOlder extends the window backward by one slice ending just before the
// current earliest entry. It is a no-op when an older load is already in
// flight, history is exhausted, or the window is empty (nothing to anchor
// against). An empty backward fetch marks history exhausted until Clear.
func (c *Controller) LoadOlder(ctx context.Context) (int, error) {
	if !c.store.CanLoadOlder() || c.store.Len() == 0 {
		return 0, nil
	}
	if !c.acquire(&c.olderInFlight) {
		return 0, nil
	}
	defer c.release(&c.olderInFlight)

	earliest, _ := c.store.Bounds()
	end := earliest - 1
	start := end - c.slice.Milliseconds()
	entries, err := c.fetcher.Fetch(ctx, start, end, c.limit, core.DirectionBackward)
	if err != nil {
		c.notifyError(err)
		return 0, err
	}
	if len(entries) == 0 {
		// The hour-slice immediately before the window is empty. Treated as
		// permanent exhaustion until re-init, even if older data exists
		// beyond the probed slice; known limitation of the windowing policy.
		c.store.setCanLoadOlder(false)
		return 0, nil
	}
	return c.merge(entries, true), nil
}

// LoadNewer extends the window forward from just after the current latest
// entry up to now, or fetches the most recent slice when the window is empty.
// It returns the number of newly merged entries so callers can react, e.g.
// auto-scroll only when something actually arrived.
func (c *Controller) LoadNewer(ctx context.Context) (int, error) {
	if !c.acquire(&c.newerInFlight) {
		return 0, nil
	}
	defer c.release(&c.newerInFlight)

	end := c.now().UnixMilli()
	var start int64
	if c.store.Len() == 0 {
		start = end - c.slice.Milliseconds()
	} else {
		_, latest := c.store.Bounds()
		start = latest + 1
	}
	if start > end {
		return 0, nil
	}
	entries, err := c.fetcher.Fetch(ctx, start, end, c.limit, core.DirectionForward)
	if err != nil {
		c.notifyError(err)
		return 0, err
	}
	return c.merge(entries, false), nil
}

// Clear wipes the window and re-arms history loading.
func (c *Controller) Clear() {
	c.store.Clear()
	c.notifyChange()
}

func (c *Controller) merge(entries []core.LogEntry, prepend bool) int {
	added := c.store.MergeIn(entries, prepend)
	if added > 0 {
		c.notifyChange()
	}
	return added
}

// acquire flips the given in-flight flag, returning false when a load in
// that direction is already outstanding.
func (c *Controller) acquire(flag *bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *flag {
		return false
	}
	*flag = true
	return true
}

func (c *Controller) release(flag *bool) {
	c.mu.Lock()
	*flag = false
	c.mu.Unlock()
}

func (c *Controller) notifyChange() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Controller) notifyError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
