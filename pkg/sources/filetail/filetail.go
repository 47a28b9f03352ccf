package filetail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"tailview/pkg/core"
)

// Source tails one log file and emits an entry per line, stamped with the
// arrival time and the configured service tag. Log content is never parsed.
type Source struct {
	path    string
	service string
	logger  *slog.Logger
}

// New creates a file tail source.
func New(path, service string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{path: path, service: service, logger: logger}
}

func (s *Source) Name() string { return "filetail" }

func (s *Source) Service() string { return s.service }

// Start begins tailing from the current end of file. The returned channel
// closes when the context is cancelled.
func (s *Source) Start(ctx context.Context) (<-chan core.LogEntry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}

	// Seek to end; history comes from the store, not from replaying files.
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek %s: %w", s.path, err)
	}

	ch := make(chan core.LogEntry, 100)
	go s.tail(ctx, f, ch)

	s.logger.Info("tailing file", "path", s.path, "service", s.service)
	return ch, nil
}

func (s *Source) tail(ctx context.Context, f *os.File, ch chan<- core.LogEntry) {
	defer f.Close()
	defer close(ch)

	reader := bufio.NewReader(f)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			// No new data; poll, watching for truncation (rotation).
			select {
			case <-ctx.Done():
				return
			case <-time.After(250 * time.Millisecond):
			}
			info, serr := f.Stat()
			if serr != nil {
				continue
			}
			pos, _ := f.Seek(0, io.SeekCurrent)
			if info.Size() < pos {
				f.Seek(0, io.SeekStart)
				reader.Reset(f)
			}
			continue
		}

		raw := strings.TrimRight(line, "\r\n")
		if raw == "" {
			continue
		}
		entry := core.NewEntry(time.Now().UnixMilli(), s.service, raw)
		select {
		case ch <- entry:
		case <-ctx.Done():
			return
		}
	}
}
