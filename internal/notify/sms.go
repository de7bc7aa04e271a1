package notify

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

	"golang.org/x/time/rate"
)

// SMSSender delivers one text message. Delivery status tracking is out of
// scope; an error means the provider rejected the submit.
type SMSSender interface {
	Send(ctx context.Context, to, from, body string) error
}

// smsRequest is the payload sent to the SMS provider's send endpoint.
type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

// smsError is the provider's error envelope.
type smsError struct {
	Error string `json:"error,omitempty"`
}

// SMSClient is a rate-limited HTTP client for the SMS provider.
type SMSClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewSMSClient creates an SMSClient. perSecond caps the outbound send rate
// across all tenants; zero or negative disables limiting.
func NewSMSClient(apiURL, apiKey string, perSecond float64, logger *slog.Logger) *SMSClient {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &SMSClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With("component", "sms_client"),
	}
}

// Configured returns true if the client has a provider URL.
func (c *SMSClient) Configured() bool {
	return c.apiURL != ""
}

// Send submits one message to the provider.
func (c *SMSClient) Send(ctx context.Context, to, from, body string) error {
	if !c.Configured() {
		return fmt.Errorf("sms: provider not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms: rate limiter: %w", err)
	}

	payload, err := json.Marshal(smsRequest{To: to, From: from, Body: body})
	if err != nil {
		return fmt.Errorf("sms: marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sms: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var env smsError
		if json.Unmarshal(respBody, &env) == nil && env.Error != "" {
			return fmt.Errorf("sms: provider error (status %d): %s", resp.StatusCode, env.Error)
		}
		return fmt.Errorf("sms: provider returned status %d", resp.StatusCode)
	}

	c.logger.Debug("sms submitted", "to", to, "from", from)
	return nil
}

// Ensure SMSClient satisfies the SMSSender interface.
var _ SMSSender = (*SMSClient)(nil)
