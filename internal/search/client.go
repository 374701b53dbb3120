package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client pushes course and timetable documents to the external search
// service so its index tracks the primary database.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient constructs a search client against the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type removePayload struct {
	ID string `json:"id"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// AddCourse indexes a course document.
func (c *Client) AddCourse(ctx context.Context, doc interface{}) error {
	return c.send(ctx, http.MethodPost, "/course/add", doc)
}

// RemoveCourse drops a course document from the index.
func (c *Client) RemoveCourse(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/course/remove", removePayload{ID: id})
}

// AddTimetable indexes a public timetable document.
func (c *Client) AddTimetable(ctx context.Context, doc interface{}) error {
	return c.send(ctx, http.MethodPost, "/timetable/add", doc)
}

// RemoveTimetable drops a timetable document from the index.
func (c *Client) RemoveTimetable(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/timetable/remove", removePayload{ID: id})
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("search request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("search request %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
		return fmt.Errorf("search request %s %s: %s", method, path, envelope.Error)
	}

	c.logger.Debug("search sync request succeeded",
		zap.String("method", method),
		zap.String("path", path))
	return nil
}
