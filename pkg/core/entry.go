package core

import "time"

// Direction tells the backend which end of a time range to keep when a
// range matches more lines than the requested limit.
type Direction string

const (
	// DirectionForward keeps the earliest lines in range.
	DirectionForward Direction = "forward"
	// DirectionBackward keeps the latest lines in range.
	DirectionBackward Direction = "backward"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionForward || d == DirectionBackward
}

// LogEntry represents a single log line from any source service.
type LogEntry struct {
	TimestampMs int64  `json:"timestamp"` // ms since epoch
	Service     string `json:"service"`
	Raw         string `json:"raw"`
	TimeStr     string `json:"time_str"` // human-readable, derived
}

// EntryKey identifies an entry for deduplication. Two entries with the same
// timestamp and raw text are the same entry even when fetched twice through
// overlapping windows.
type EntryKey struct {
	TimestampMs int64
	Raw         string
}

// Key returns the entry's deduplication identity.
func (e LogEntry) Key() EntryKey {
	return EntryKey{TimestampMs: e.TimestampMs, Raw: e.Raw}
}

// Time returns the entry timestamp as a time.Time.
func (e LogEntry) Time() time.Time {
	return time.UnixMilli(e.TimestampMs)
}

// FormatTimeStr renders the canonical human-readable form of a timestamp,
// millisecond precision in local time.
func FormatTimeStr(tsMs int64) string {
	return time.UnixMilli(tsMs).Format("2006-01-02 15:04:05.000")
}

// NewEntry builds a LogEntry with its derived time string filled in.
func NewEntry(tsMs int64, service, raw string) LogEntry {
	return LogEntry{
		TimestampMs: tsMs,
		Service:     service,
		Raw:         raw,
		TimeStr:     FormatTimeStr(tsMs),
	}
}
