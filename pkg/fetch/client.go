package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tailview/pkg/core"
)

// Error reports a transport or backend failure from a range query. The core
// never retries; callers recover by issuing the operation again.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func fetchErr(msg string, err error) *Error {
	return &Error{Message: msg, Err: err}
}

// LogsResponse is the backend payload for GET /logs. An empty Logs slice is
// a valid response meaning no matching lines in range.
type LogsResponse struct {
	Logs []core.LogEntry `json:"logs"`
}

// Client issues time-ranged log queries against the backend.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient parses the backend address. A bare host:port is assumed to be
// plain HTTP.
func NewClient(addr string) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("backend address is empty")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse backend address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		// Timeouts belong to the transport, not the windowing core.
		http: &http.Client{},
	}, nil
}

// Fetch queries [startMs, endMs] with a result ceiling and scan direction.
// It has no side effects beyond the outbound query: on failure the caller's
// state is untouched and the error carries a human-readable message.
func (c *Client) Fetch(ctx context.Context, startMs, endMs int64, limit int, direction core.Direction) ([]core.LogEntry, error) {
	if startMs > endMs {
		return nil, fetchErr(fmt.Sprintf("invalid range: start %d after end %d", startMs, endMs), nil)
	}
	if limit <= 0 {
		return nil, fetchErr(fmt.Sprintf("invalid limit %d", limit), nil)
	}
	if !direction.Valid() {
		return nil, fetchErr(fmt.Sprintf("invalid direction %q", direction), nil)
	}

	values := url.Values{}
	values.Set("start_ms", strconv.FormatInt(startMs, 10))
	values.Set("end_ms", strconv.FormatInt(endMs, 10))
	values.Set("limit", strconv.Itoa(limit))
	values.Set("direction", string(direction))

	endpoint := c.base.ResolveReference(&url.URL{Path: "/logs", RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fetchErr("build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fetchErr("query logs", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fetchErr(fmt.Sprintf("backend returned status %d", resp.StatusCode), nil)
	}

	var payload LogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fetchErr("decode logs response", err)
	}
	return payload.Logs, nil
}
