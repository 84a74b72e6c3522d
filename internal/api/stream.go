package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Event is one server-sent payload from the task stream. The service emits
// progress events while transcoding and exactly one terminal event: done or
// error.
type Event struct {
	Type    string  `json:"type"`
	Message string  `json:"message"`
	Percent float64 `json:"percent"`
}

const (
	EventProgress = "progress"
	EventDone     = "done"
	EventError    = "error"
)

// Terminal reports whether the event ends the wait stage.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// EventStream consumes "data:" lines from GET /stream/{task_id}. The wire
// format is permissive: non-data lines and malformed JSON payloads are
// skipped silently rather than treated as errors.
type EventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// OpenStream starts the long-lived event stream for a task.
func (c *Client) OpenStream(ctx context.Context, taskID string) (*EventStream, error) {
	streamURL := fmt.Sprintf("%s/stream/%s", c.baseURL, url.PathEscape(taskID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streaming.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("open stream: %w", statusError(resp))
	}

	body := newIdleReader(resp.Body, c.streamReadTimeout)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &EventStream{body: body, scanner: scanner}, nil
}

// Next returns the next parsed event. It returns io.EOF when the server
// closes the stream without a terminal event, and the read error when the
// connection drops or the idle timeout fires.
func (s *EventStream) Next() (Event, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimSpace(line[len("data: "):])
		if payload == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		return ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// Close releases the underlying connection.
func (s *EventStream) Close() error {
	return s.body.Close()
}
