package collect

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tailview/pkg/core"
	"tailview/pkg/logstore"
)

// stubSource emits a fixed set of entries then closes.
type stubSource struct {
	service string
	entries []core.LogEntry
	fail    bool
}

func (s *stubSource) Name() string    { return "stub" }
func (s *stubSource) Service() string { return s.service }

func (s *stubSource) Start(context.Context) (<-chan core.LogEntry, error) {
	if s.fail {
		return nil, context.Canceled
	}
	ch := make(chan core.LogEntry, len(s.entries))
	for _, e := range s.entries {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func TestCollectorFlushesToStore(t *testing.T) {
	store, err := logstore.Open(filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	src := &stubSource{service: "tl-server", entries: []core.LogEntry{
		core.NewEntry(100, "tl-server", "one"),
		core.NewEntry(200, "tl-server", "two"),
	}}
	c := New(store, []core.Source{src}, 10*time.Millisecond, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := store.Count(context.Background())
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("entries never flushed, count=%d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestCollectorSkipsFailingSource(t *testing.T) {
	store, err := logstore.Open(filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	good := &stubSource{service: "tl-base", entries: []core.LogEntry{core.NewEntry(50, "tl-base", "ok")}}
	bad := &stubSource{service: "tl-ai", fail: true}
	c := New(store, []core.Source{bad, good}, 10*time.Millisecond, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, _ := store.Count(context.Background())
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("good source never flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}
