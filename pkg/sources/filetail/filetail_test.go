package filetail

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTailEmitsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tl-server.log")
	if err := os.WriteFile(path, []byte("history\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	src := New(path, "tl-server", nil)
	ch, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("fresh line\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	select {
	case entry := <-ch:
		if entry.Raw != "fresh line" {
			t.Errorf("raw: got %q, want %q (existing content must be skipped)", entry.Raw, "fresh line")
		}
		if entry.Service != "tl-server" {
			t.Errorf("service: got %q", entry.Service)
		}
		if entry.TimestampMs == 0 || entry.TimeStr == "" {
			t.Errorf("entry not stamped: %+v", entry)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no entry emitted")
	}
}

func TestStartFailsOnMissingFile(t *testing.T) {
	src := New(filepath.Join(t.TempDir(), "absent.log"), "tl-base", nil)
	if _, err := src.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	src := New(path, "tl-ai", nil)
	ch, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Error("expected closed channel after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
