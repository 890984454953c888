// Package httpapi provides the HTTP fallback path for commands when the
// realtime channel is down.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/arpangupta1805/web-assistant/internal/model"
	"github.com/arpangupta1805/web-assistant/pkg/logger"
	"github.com/arpangupta1805/web-assistant/pkg/metrics"
)

const tracerName = "github.com/arpangupta1805/web-assistant/internal/httpapi"

// Client calls the assistant server's command endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

// New creates a Client with the given request timeout.
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  log,
	}
}

type commandBody struct {
	Command string `json:"command"`
	Type    string `json:"type"`
}

// ProcessCommand posts a command to /api/command and returns the single
// resulting reply.
func (c *Client) ProcessCommand(ctx context.Context, command string) (*model.CommandResponse, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ProcessCommand")
	defer span.End()

	start := time.Now()

	body, err := json.Marshal(commandBody{Command: command, Type: "text"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/command", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		metrics.CommandDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("command request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		metrics.CommandDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("command request returned %s", resp.Status)
	}

	var out model.CommandResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode command response: %w", err)
	}

	metrics.CommandDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return &out, nil
}
