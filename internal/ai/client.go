// Package ai is an HTTP client for the platform's conversational-scheduling
// reply generator. Generation may fail; callers carry a fixed fallback
// message so the caller still receives exactly one reply.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ReplyGenerator produces a contextual reply to a voicemail transcription.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, transcription, callerNumber, channel string) (string, error)
}

// replyRequest is the payload sent to POST /v1/replies.
type replyRequest struct {
	Transcription string `json:"transcription"`
	Caller        string `json:"caller"`
	Channel       string `json:"channel"`
}

// replyResponse is the response from POST /v1/replies.
type replyResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

// Client is an HTTP client for the reply-generation gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewClient creates a reply-generator client.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger.With("component", "ai_client"),
	}
}

// Configured returns true if the client has a gateway URL.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// GenerateReply asks the gateway for a contextual reply to the transcription.
func (c *Client) GenerateReply(ctx context.Context, transcription, callerNumber, channel string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("ai: gateway not configured")
	}

	body, err := json.Marshal(replyRequest{
		Transcription: transcription,
		Caller:        callerNumber,
		Channel:       channel,
	})
	if err != nil {
		return "", fmt.Errorf("ai: marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/replies", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("ai: reading response: %w", err)
	}

	var parsed replyResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != "" {
			return "", fmt.Errorf("ai: gateway error (status %d): %s", resp.StatusCode, parsed.Error)
		}
		return "", fmt.Errorf("ai: gateway returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("ai: decoding response: %w", err)
	}
	if strings.TrimSpace(parsed.Reply) == "" {
		return "", fmt.Errorf("ai: gateway returned empty reply")
	}

	c.logger.Debug("reply generated", "caller", callerNumber, "channel", channel)
	return parsed.Reply, nil
}

// Ensure Client satisfies the ReplyGenerator interface.
var _ ReplyGenerator = (*Client)(nil)
