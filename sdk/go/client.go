package tasknodesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Tasknode HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Transaction mirrors the API transaction model.
type Transaction struct {
	Hash        string  `json:"hash"`
	Account     string  `json:"account"`
	Destination string  `json:"destination"`
	MemoType    string  `json:"memo_type"`
	MemoFormat  string  `json:"memo_format,omitempty"`
	MemoData    string  `json:"memo_data,omitempty"`
	ValueAmount float64 `json:"value_amount"`
	TS          string  `json:"ts"`
	Success     bool    `json:"success"`
}

// Outcome describes what the pipeline did with one transaction.
type Outcome struct {
	Hash      string         `json:"hash"`
	PatternID string         `json:"pattern_id,omitempty"`
	Archetype string         `json:"archetype,omitempty"`
	Status    string         `json:"status"`
	Notes     string         `json:"notes,omitempty"`
	Response  *Transaction   `json:"response,omitempty"`
	Memo      map[string]any `json:"memo,omitempty"`
}

// Task is the reconstructed task aggregate with its derived state.
type Task struct {
	ID           string  `json:"task_id"`
	Account      string  `json:"account"`
	State        string  `json:"state"`
	RewardAmount float64 `json:"reward_amount,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	Account    string `json:"account,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

// Authorization represents an address authorization row.
type Authorization struct {
	Address    string  `json:"address"`
	Authorized bool    `json:"authorized"`
	Flag       *string `json:"flag,omitempty"`
	FlaggedAt  *string `json:"flagged_at,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Ingest records a ledger transaction.
func (c *Client) Ingest(ctx context.Context, t Transaction) error {
	return c.do(ctx, http.MethodPost, "v0/transactions", t, nil)
}

// Process runs the pipeline over an ingested transaction.
func (c *Client) Process(ctx context.Context, hash string) (Outcome, error) {
	var resp Outcome
	endpoint := fmt.Sprintf("v0/transactions/%s/process", url.PathEscape(hash))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Tasks lists an account's reconstructed tasks, optionally filtered by state.
func (c *Client) Tasks(ctx context.Context, account, state string) ([]Task, error) {
	endpoint := fmt.Sprintf("v0/accounts/%s/tasks", url.PathEscape(account))
	if state != "" {
		endpoint += "?state=" + url.QueryEscape(state)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Context fetches the assembled account context document.
func (c *Client) Context(ctx context.Context, account string) (string, error) {
	var resp struct {
		Context string `json:"context"`
	}
	endpoint := fmt.Sprintf("v0/accounts/%s/context", url.PathEscape(account))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Context, err
}

// Authorize flips an address's authorization gate.
func (c *Client) Authorize(ctx context.Context, address string, authorized bool) (Authorization, error) {
	var resp Authorization
	endpoint := fmt.Sprintf("v0/addresses/%s/authorization", url.PathEscape(address))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"authorized": authorized}, &resp)
	return resp, err
}

// Events returns recent audit events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
