package logwindow

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"tailview/pkg/core"
)

// fakeFetcher scripts fetch results and records every call it receives.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   []fetchCall
	results [][]core.LogEntry
	err     error
	block   chan struct{} // when set, Fetch waits here before returning
}

type fetchCall struct {
	startMs, endMs int64
	limit          int
	direction      core.Direction
}

func (f *fakeFetcher) Fetch(_ context.Context, startMs, endMs int64, limit int, direction core.Direction) ([]core.LogEntry, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{startMs, endMs, limit, direction})
	var out []core.LogEntry
	if len(f.results) > 0 {
		out = f.results[0]
		f.results = f.results[1:]
	}
	err := f.err
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return out, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) lastCall(t *testing.T) fetchCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no fetch calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

func fixedNow(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

const nowMs = int64(1_700_000_000_000)

func newTestController(f Fetcher) *Controller {
	return NewController(NewStore(), f, Options{Now: fixedNow(nowMs), Limit: 500})
}

func TestInitialLoadFetchesLastHourForward(t *testing.T) {
	f := &fakeFetcher{results: [][]core.LogEntry{{
		entry(1_699_999_000_000, "b"),
		entry(1_699_998_000_000, "a"),
	}}}
	c := newTestController(f)

	added, err := c.InitialLoad(context.Background())
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}
	if added != 2 {
		t.Errorf("added: got %d, want 2", added)
	}

	call := f.lastCall(t)
	if call.startMs != nowMs-3_600_000 || call.endMs != nowMs {
		t.Errorf("range: got [%d, %d], want [%d, %d]", call.startMs, call.endMs, nowMs-3_600_000, nowMs)
	}
	if call.direction != core.DirectionForward {
		t.Errorf("direction: got %q, want forward", call.direction)
	}

	earliest, latest := c.Store().Bounds()
	if earliest != 1_699_998_000_000 || latest != 1_699_999_000_000 {
		t.Errorf("bounds: got (%d, %d)", earliest, latest)
	}
}

func TestLoadOlderQueriesPrecedingSliceBackward(t *testing.T) {
	f := &fakeFetcher{results: [][]core.LogEntry{
		{entry(1_699_998_000_000, "a")}, // initial
		{entry(1_699_990_000_000, "older")},
	}}
	c := newTestController(f)
	if _, err := c.InitialLoad(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	added, err := c.LoadOlder(context.Background())
	if err != nil {
		t.Fatalf("load older: %v", err)
	}
	if added != 1 {
		t.Errorf("added: got %d, want 1", added)
	}

	call := f.lastCall(t)
	wantEnd := int64(1_699_998_000_000) - 1
	if call.endMs != wantEnd || call.startMs != wantEnd-3_600_000 {
		t.Errorf("range: got [%d, %d], want [%d, %d]", call.startMs, call.endMs, wantEnd-3_600_000, wantEnd)
	}
	if call.direction != core.DirectionBackward {
		t.Errorf("direction: got %q, want backward", call.direction)
	}
}

func TestLoadOlderEmptyResultExhaustsHistory(t *testing.T) {
	f := &fakeFetcher{results: [][]core.LogEntry{
		{entry(1_699_998_000_000, "a")},
		{}, // backward probe comes back empty
	}}
	c := newTestController(f)
	if _, err := c.InitialLoad(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	added, err := c.LoadOlder(context.Background())
	if err != nil || added != 0 {
		t.Fatalf("load older: added=%d err=%v", added, err)
	}
	if c.Store().CanLoadOlder() {
		t.Error("empty backward fetch must exhaust history")
	}

	calls := f.callCount()
	if _, err := c.LoadOlder(context.Background()); err != nil {
		t.Fatalf("load older after exhaustion: %v", err)
	}
	if f.callCount() != calls {
		t.Error("exhausted loadOlder must not issue a fetch")
	}

	c.Clear()
	if !c.Store().CanLoadOlder() {
		t.Error("clear must re-arm history loading")
	}
}

func TestLoadOlderNoopOnEmptyWindow(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(f)

	added, err := c.LoadOlder(context.Background())
	if added != 0 || err != nil {
		t.Fatalf("load older: added=%d err=%v", added, err)
	}
	if f.callCount() != 0 {
		t.Error("loadOlder on an empty window must not fetch")
	}
}

func TestLoadNewerDedupsAgainstWindow(t *testing.T) {
	existing := entry(1_699_999_000_000, "dup")
	f := &fakeFetcher{results: [][]core.LogEntry{
		{existing},
		{existing, entry(1_699_999_500_000, "fresh")},
	}}
	c := newTestController(f)
	if _, err := c.InitialLoad(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	added, err := c.LoadNewer(context.Background())
	if err != nil {
		t.Fatalf("load newer: %v", err)
	}
	if added != 1 {
		t.Errorf("added: got %d, want 1", added)
	}

	call := f.lastCall(t)
	if call.startMs != 1_699_999_000_000+1 || call.endMs != nowMs {
		t.Errorf("range: got [%d, %d]", call.startMs, call.endMs)
	}
	if call.direction != core.DirectionForward {
		t.Errorf("direction: got %q, want forward", call.direction)
	}
}

func TestLoadNewerOnEmptyWindowFetchesLastSlice(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(f)

	if _, err := c.LoadNewer(context.Background()); err != nil {
		t.Fatalf("load newer: %v", err)
	}
	call := f.lastCall(t)
	if call.startMs != nowMs-3_600_000 || call.endMs != nowMs {
		t.Errorf("range: got [%d, %d]", call.startMs, call.endMs)
	}
}

func TestInFlightGuardSingleFetchPerDirection(t *testing.T) {
	block := make(chan struct{})
	f := &fakeFetcher{
		block:   block,
		results: [][]core.LogEntry{{entry(10, "a")}, {entry(20, "b")}},
	}
	c := newTestController(f)
	c.Store().MergeIn([]core.LogEntry{entry(1_699_998_000_000, "seed")}, false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.LoadOlder(context.Background())
	}()

	// Wait for the first fetch to be in flight.
	for f.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Second concurrent call returns immediately without fetching.
	added, err := c.LoadOlder(context.Background())
	if added != 0 || err != nil {
		t.Fatalf("guarded loadOlder: added=%d err=%v", added, err)
	}
	if f.callCount() != 1 {
		t.Errorf("fetch count while guarded: got %d, want 1", f.callCount())
	}

	close(block)
	<-done
}

func TestOlderAndNewerMayRunConcurrently(t *testing.T) {
	block := make(chan struct{})
	f := &fakeFetcher{block: block}
	c := newTestController(f)
	c.Store().MergeIn([]core.LogEntry{entry(1_699_998_000_000, "seed")}, false)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = c.LoadOlder(context.Background()) }()
	go func() { defer wg.Done(); _, _ = c.LoadNewer(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected two concurrent fetches, got %d", f.callCount())
		}
		time.Sleep(time.Millisecond)
	}

	close(block)
	wg.Wait()
}

func TestFetchFailureLeavesStoreUntouched(t *testing.T) {
	seed := []core.LogEntry{entry(1_699_998_000_000, "a"), entry(1_699_999_000_000, "b")}
	f := &fakeFetcher{results: [][]core.LogEntry{seed}}
	c := newTestController(f)
	if _, err := c.InitialLoad(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	before := c.Store().Entries()
	e1, l1 := c.Store().Bounds()
	older1 := c.Store().CanLoadOlder()

	f.mu.Lock()
	f.err = errors.New("backend unreachable")
	f.mu.Unlock()

	var notified []error
	c.OnError(func(err error) { notified = append(notified, err) })

	for _, op := range []func(context.Context) (int, error){c.LoadOlder, c.LoadNewer} {
		added, err := op(context.Background())
		if err == nil {
			t.Fatal("expected fetch error")
		}
		if added != 0 {
			t.Errorf("added on failure: got %d, want 0", added)
		}
	}

	if !reflect.DeepEqual(before, c.Store().Entries()) {
		t.Error("entry sequence changed by failed fetches")
	}
	if e2, l2 := c.Store().Bounds(); e2 != e1 || l2 != l1 {
		t.Errorf("bounds changed by failed fetches: (%d,%d) -> (%d,%d)", e1, l1, e2, l2)
	}
	if c.Store().CanLoadOlder() != older1 {
		t.Error("canLoadOlder flipped by a failed fetch")
	}
	if len(notified) != 2 {
		t.Errorf("error notifications: got %d, want 2", len(notified))
	}
}

func TestOnChangeFiresOnlyWhenEntriesAdded(t *testing.T) {
	f := &fakeFetcher{results: [][]core.LogEntry{
		{entry(1_699_998_000_000, "a")},
		{}, // loadNewer finds nothing
	}}
	c := newTestController(f)

	changes := 0
	c.OnChange(func() { changes++ })

	if _, err := c.InitialLoad(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	if changes != 1 {
		t.Fatalf("changes after initial load: got %d, want 1", changes)
	}

	if _, err := c.LoadNewer(context.Background()); err != nil {
		t.Fatalf("load newer: %v", err)
	}
	if changes != 1 {
		t.Errorf("empty merge must not notify: got %d changes", changes)
	}
}
