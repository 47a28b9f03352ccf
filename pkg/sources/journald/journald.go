package journald

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"tailview/pkg/core"
)

// Source streams journald output for one systemd unit by following
// journalctl. Entries carry the configured service tag and arrival-time
// stamps; journal text passes through uninspected.
type Source struct {
	unit    string
	service string
	logger  *slog.Logger
}

// New creates a journald source for the given unit.
func New(unit, service string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{unit: unit, service: service, logger: logger}
}

func (s *Source) Name() string { return "journald" }

func (s *Source) Service() string { return s.service }

// Start launches journalctl -f for the unit. The returned channel closes
// when journalctl exits or the context is cancelled.
func (s *Source) Start(ctx context.Context) (<-chan core.LogEntry, error) {
	cmd := exec.CommandContext(ctx, "journalctl", "-f", "-u", s.unit, "-o", "cat", "-n", "0")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("journalctl pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("journalctl start: %w", err)
	}

	ch := make(chan core.LogEntry, 100)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			entry := core.NewEntry(time.Now().UnixMilli(), s.service, scanner.Text())
			select {
			case ch <- entry:
			case <-ctx.Done():
				_ = cmd.Wait()
				return
			}
		}
		_ = cmd.Wait()
	}()

	s.logger.Info("following journal", "unit", s.unit, "service", s.service)
	return ch, nil
}
