// Package oracle answers SQL-sourced rule conditions.
//
// Client calls a remote oracle over HTTP and satisfies rules.ConditionOracle.
// PostgresEvaluator is the server side of the same contract: it runs the
// expression against a database inside a read-only transaction.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrOracleStatus is returned when the oracle answers with a non-2xx status
var ErrOracleStatus = errors.New("oracle returned an error status")

// DefaultTimeout bounds a single oracle call when the client has no timeout set
const DefaultTimeout = 5 * time.Second

// Request is the oracle wire request
type Request struct {
	SQLExpression string `json:"sql_expression"`
	ContextID     string `json:"context_id"`
}

// Response is the oracle wire response. A null result is false.
type Response struct {
	Result bool `json:"result"`
}

// Client posts conditions to a remote oracle endpoint
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client for the oracle at url (the full endpoint URL).
// A zero timeout uses DefaultTimeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EvaluateCondition asks the oracle whether sqlExpression holds for contextID
func (c *Client) EvaluateCondition(ctx context.Context, sqlExpression, contextID string) (bool, error) {
	body, err := json.Marshal(Request{SQLExpression: sqlExpression, ContextID: contextID})
	if err != nil {
		return false, fmt.Errorf("failed to encode oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("%w: %d %s", ErrOracleStatus, resp.StatusCode, bytes.TrimSpace(detail))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode oracle response: %w", err)
	}
	return out.Result, nil
}
