package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shineum/smtp-send-lite/internal/message"
	"github.com/shineum/smtp-send-lite/internal/transport"
)

// Config holds the configuration for creating a Transport.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// maxRetries is the maximum number of retry attempts for transient API
// failures within one delivery.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// Transport sends messages via the Microsoft Graph API using OAuth2
// client credentials authentication. The sender mailbox is taken from the
// message's From address; the SMTP host and port of the resolved target do
// not apply.
type Transport struct {
	graphBaseURL string
	httpClient   *http.Client
	token        *tokenCache
}

// New creates a new Graph Transport with the given configuration.
func New(cfg Config) *Transport {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		cfg.TenantID,
	)

	client := &http.Client{Timeout: 30 * time.Second}

	return &Transport{
		graphBaseURL: "https://graph.microsoft.com/v1.0",
		httpClient:   client,
		token:        newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// newWithOverrides creates a Transport with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg Config, graphBaseURL, tokenURL string, client *http.Client) *Transport {
	return &Transport{
		graphBaseURL: graphBaseURL,
		httpClient:   client,
		token:        newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "msgraph"
}

// Deliver submits the message via the Graph sendMail endpoint. It retries
// transient HTTP failures with exponential backoff, respects Retry-After
// on 429 responses, and refreshes the token once on 401.
func (t *Transport) Deliver(ctx context.Context, _ transport.Target, msg *message.Message) error {
	reqBody, err := buildSendMailRequest(msg)
	if err != nil {
		return &transport.SessionError{Op: "build message", Err: err}
	}
	bodyJSON, err := json.Marshal(reqBody)
	if err != nil {
		return &transport.SessionError{Op: "build message", Err: err}
	}

	if msg.Notify != message.NotifyNone {
		slog.Debug("delivery notifications are not forwarded by the msgraph transport",
			"notify", msg.Notify,
		)
	}

	sendURL := fmt.Sprintf("%s/users/%s/sendMail", t.graphBaseURL, url.PathEscape(msg.From.Address))

	var lastErr error
	tokenRefreshed := false

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying Graph API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
		}

		err := t.doSendRequest(ctx, sendURL, bodyJSON)
		if err == nil {
			return nil
		}

		lastErr = err

		graphErr, ok := err.(*sendError)
		if !ok {
			return &transport.SessionError{Op: "msgraph send", Err: err}
		}

		switch {
		case graphErr.permanent:
			return &transport.SessionError{Op: "msgraph send", Err: graphErr}
		case graphErr.statusCode == http.StatusUnauthorized && !tokenRefreshed:
			// Refresh token once and retry immediately
			slog.Info("refreshing Graph API token after 401")
			if _, refreshErr := t.token.ForceRefresh(ctx); refreshErr != nil {
				return &transport.SessionError{
					Op:  "msgraph auth",
					Err: fmt.Errorf("token refresh failed: %w", refreshErr),
				}
			}
			tokenRefreshed = true
			continue
		case graphErr.statusCode == http.StatusTooManyRequests:
			delay := t.retryAfterDelay(graphErr.retryAfter, attempt)
			slog.Info("rate limited by Graph API",
				"retry_after", delay,
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return &transport.SessionError{Op: "retry wait", Err: err}
			}
			continue
		case graphErr.transient:
			delay := backoffDelay(attempt)
			slog.Info("transient Graph API error, retrying",
				"status", graphErr.statusCode,
				"delay", delay,
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return &transport.SessionError{Op: "retry wait", Err: err}
			}
			continue
		default:
			return &transport.SessionError{Op: "msgraph send", Err: graphErr}
		}
	}

	return &transport.SessionError{
		Op:  "msgraph send",
		Err: fmt.Errorf("Graph API request failed after %d retries: %w", maxRetries, lastErr),
	}
}

// doSendRequest performs a single HTTP request to the Graph API sendMail endpoint.
func (t *Transport) doSendRequest(ctx context.Context, sendURL string, bodyJSON []byte) error {
	token, err := t.token.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &sendError{
			message:   fmt.Sprintf("HTTP request failed: %v", err),
			transient: true,
		}
	}
	defer resp.Body.Close()

	// HTTP 202 Accepted is success for sendMail
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var graphErrResp graphErrorResponse
	if jsonErr := json.Unmarshal(body, &graphErrResp); jsonErr == nil && graphErrResp.Error.Message != "" {
		return classifyError(resp.StatusCode, graphErrResp.Error.Message, resp.Header.Get("Retry-After"))
	}

	return classifyError(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
}

// sendError represents an error from the Graph API send operation with
// classification for retry logic.
type sendError struct {
	message    string
	statusCode int
	permanent  bool
	transient  bool
	retryAfter string
}

func (e *sendError) Error() string {
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.statusCode, e.message)
}

// classifyError categorizes an HTTP error response for retry decisions.
func classifyError(statusCode int, message, retryAfter string) *sendError {
	err := &sendError{
		message:    message,
		statusCode: statusCode,
		retryAfter: retryAfter,
	}

	switch {
	case statusCode == http.StatusBadRequest || statusCode == http.StatusForbidden:
		err.permanent = true
	case statusCode == http.StatusUnauthorized:
		err.transient = true
	case statusCode == http.StatusTooManyRequests:
		err.transient = true
	case statusCode >= 500:
		err.transient = true
	default:
		err.permanent = true
	}

	return err
}

// retryAfterDelay parses the Retry-After header value and returns the appropriate delay.
// Falls back to exponential backoff if the header is missing or unparseable.
func (t *Transport) retryAfterDelay(retryAfter string, attempt int) time.Duration {
	if retryAfter == "" {
		return backoffDelay(attempt)
	}

	seconds, err := strconv.Atoi(retryAfter)
	if err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return backoffDelay(attempt)
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
// Delays are: 1s, 2s, 4s
func backoffDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
