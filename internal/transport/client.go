// Package transport talks to the chat REST backend.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/andertben/skillspot-chat/internal/auth"
	"github.com/andertben/skillspot-chat/internal/logging"
	"github.com/andertben/skillspot-chat/internal/metrics"
	"github.com/andertben/skillspot-chat/internal/models"
)

// ErrEmptyServiceID is returned by CreateThread for a blank service ID.
var ErrEmptyServiceID = errors.New("service id is required")

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Options configures a Client.
type Options struct {
	BaseURL string
	Tokens  auth.TokenProvider

	// Timeout bounds each request (default 15s). Ignored when HTTPClient is set.
	Timeout time.Duration

	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	RateBurst int

	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Client is the chat backend client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	tokens     auth.TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewClient constructs a chat backend client.
func NewClient(opts Options) (*Client, error) {
	normalized, err := NormalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.Tokens == nil {
		return nil, errors.New("token provider is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL:    normalized,
		tokens:     opts.Tokens,
		httpClient: httpClient,
		limiter:    limiter,
		metrics:    opts.Metrics,
		logger:     logging.Component("transport"),
	}, nil
}

// NormalizeBaseURL trims the base URL and ensures it has a scheme.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("base url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("base url must include scheme and host (https://...)")
	}
	return strings.TrimRight(value, "/"), nil
}

// ListThreads returns the caller's thread summaries.
func (c *Client) ListThreads(ctx context.Context) ([]models.ThreadSummary, error) {
	var out []models.ThreadSummary
	if err := c.doJSON(ctx, "list_threads", CategoryLoad, http.MethodGet, "/chat/threads", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount returns the total unread message count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out models.UnreadCount
	if err := c.doJSON(ctx, "unread_count", CategoryLoad, http.MethodGet, "/chat/unread-count", nil, &out); err != nil {
		return 0, err
	}
	if out.UnreadCount < 0 {
		return 0, nil
	}
	return out.UnreadCount, nil
}

// CreateThread opens (or returns the existing) thread for a service listing.
func (c *Client) CreateThread(ctx context.Context, serviceID string) (models.Thread, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return models.Thread{}, ErrEmptyServiceID
	}
	var out models.Thread
	req := models.CreateThreadRequest{ServiceID: serviceID}
	if err := c.doJSON(ctx, "create_thread", CategorySend, http.MethodPost, "/chat/threads", req, &out); err != nil {
		return models.Thread{}, err
	}
	return out, nil
}

// GetThread returns thread metadata.
func (c *Client) GetThread(ctx context.Context, threadID string) (models.Thread, error) {
	var out models.Thread
	if err := c.doJSON(ctx, "get_thread", CategoryLoad, http.MethodGet, threadPath(threadID, ""), nil, &out); err != nil {
		return models.Thread{}, err
	}
	return out, nil
}

// MarkRead marks all messages in the thread as read for the caller.
func (c *Client) MarkRead(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, "mark_read", CategoryLoad, http.MethodPost, threadPath(threadID, "read"), nil, nil)
}

// Messages returns the thread's full message history in server order.
func (c *Client) Messages(ctx context.Context, threadID string) ([]models.Message, error) {
	var out []models.Message
	if err := c.doJSON(ctx, "messages", CategoryLoad, http.MethodGet, threadPath(threadID, "messages"), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Message{}
	}
	return out, nil
}

// SendMessage posts text and returns the server-confirmed message.
func (c *Client) SendMessage(ctx context.Context, threadID, text string) (models.Message, error) {
	var out models.Message
	req := models.SendMessageRequest{Text: text}
	if err := c.doJSON(ctx, "send_message", CategorySend, http.MethodPost, threadPath(threadID, "messages"), req, &out); err != nil {
		return models.Message{}, err
	}
	return out, nil
}

func threadPath(threadID, suffix string) string {
	p := "/chat/threads/" + url.PathEscape(threadID)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (c *Client) doJSON(ctx context.Context, op string, fallback Category, method, path string, reqBody, respBody any) error {
	fail := func(cat Category, status int, err error) error {
		return &Error{Category: cat, Op: op, Status: status, Err: err}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fail(CategoryAuth, 0, err)
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fail(fallback, 0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fail(fallback, 0, err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(RequestIDHeader, requestID)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fail(CategoryNetwork, 0, err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(op, 0, time.Since(start))
		c.logger.Debug().
			Str("op", op).
			Str("request_id", requestID).
			Str("error", logging.Redact(err.Error())).
			Msg("request failed")
		return fail(CategoryNetwork, 0, err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.ObserveRequest(op, resp.StatusCode, elapsed)
	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Str("request_id", requestID).
		Msg("request")
	if err != nil {
		return fail(CategoryNetwork, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload apiErrorPayload
		if err := json.Unmarshal(respData, &payload); err == nil {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = logging.Redact(strings.TrimSpace(string(respData)))
		}
		return fail(categorize(resp.StatusCode, fallback), resp.StatusCode, apiErr)
	}

	if respBody == nil || len(bytes.TrimSpace(respData)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respData, respBody); err != nil {
		return fail(fallback, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
