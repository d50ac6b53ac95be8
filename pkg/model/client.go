package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 5 * time.Minute

	// Conservative proactive rate limit: most gateway tiers allow far more,
	// but eval suites run many models at once against one key.
	defaultRateLimit = rate.Limit(2)
	defaultBurstSize = 10

	catalogTTL = 24 * time.Hour
)

// RetryConfig configures the completion retry policy: up to MaxAttempts
// attempts with exponential backoff plus jitter, capped at MaxDelay.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// DefaultTransport returns an http.Transport tuned for many concurrent
// long-lived completion requests.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	transport      *LoggingTransport
	rateLimiter    *rate.Limiter
	circuitBreaker *CircuitBreaker
	retryConfig    RetryConfig

	catalogMu  sync.RWMutex
	catalog    *ModelCatalog
	catalogAge time.Time
}

// ClientOptions tweaks optional client behavior.
type ClientOptions struct {
	// NetworkLogDir enables JSONL request/response logging when non-empty.
	NetworkLogDir string
	// CircuitBreakerConfig is optional; if nil, defaults are used.
	CircuitBreakerConfig *CircuitBreakerConfig
	// RetryConfig is optional; if nil, defaults are used.
	RetryConfig *RetryConfig
}

// NewClient creates a client with default options.
func NewClient(apiKey, baseURL string) *Client {
	return NewClientWithOptions(apiKey, baseURL, ClientOptions{})
}

// NewClientWithOptions creates a client with explicit options.
func NewClientWithOptions(apiKey, baseURL string, opts ClientOptions) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	transport := NewLoggingTransport(DefaultTransport(), opts.NetworkLogDir)

	cbConfig := DefaultCircuitBreakerConfig()
	if opts.CircuitBreakerConfig != nil {
		cbConfig = *opts.CircuitBreakerConfig
	}
	retryConfig := DefaultRetryConfig()
	if opts.RetryConfig != nil {
		retryConfig = *opts.RetryConfig
	}

	return &Client{
		apiKey:         apiKey,
		baseURL:        baseURL,
		transport:      transport,
		rateLimiter:    rate.NewLimiter(defaultRateLimit, defaultBurstSize),
		circuitBreaker: NewCircuitBreaker(cbConfig),
		retryConfig:    retryConfig,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
	}
}

// Close releases client resources.
func (c *Client) Close() error {
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}

// Complete performs one non-streaming chat completion with retries.
// The caller bounds the call with ctx (the per-step timeout); backoff sleeps
// respect the same deadline.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*Completion, error) {
	req.Stream = false

	start := time.Now()
	var resp *ChatResponse
	err := c.circuitBreaker.Call(func() error {
		var callErr error
		resp, callErr = c.completeWithRetry(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion for %s returned no choices", req.Model)
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage:   resp.Usage,
		Cost:    c.costFor(req.Model, resp.Usage),
		Latency: time.Since(start),
	}, nil
}

func (c *Client) completeWithRetry(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		c.setHeaders(httpReq)
		httpReq.Header.Set("Content-Type", "application/json")

		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Network-level failures are retryable.
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := c.parseError(resp)
			resp.Body.Close()
			lastErr = apiErr
			if isRetryable(apiErr) {
				continue
			}
			return nil, apiErr
		}

		var chatResp ChatResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&chatResp)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("decoding response: %w", decodeErr)
		}
		return &chatResp, nil
	}

	return nil, fmt.Errorf("max attempts (%d) exceeded: %w", c.retryConfig.MaxAttempts, lastErr)
}

// retryDelay computes exponential backoff with jitter, honoring Retry-After
// when the last error carried one.
func (c *Client) retryDelay(attempt int, lastErr error) time.Duration {
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > 0 {
		if apiErr.RetryAfter > c.retryConfig.MaxDelay {
			return c.retryConfig.MaxDelay
		}
		return apiErr.RetryAfter
	}

	delay := float64(c.retryConfig.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}
	// Jitter spreads synchronized retries across workers.
	jitter := rand.Float64() * delay * 0.5
	total := time.Duration(delay*0.75 + jitter)
	if total > c.retryConfig.MaxDelay {
		total = c.retryConfig.MaxDelay
	}
	return total
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return err != nil
}

// FetchCatalog fetches the model catalog, cached for 24h. Safe to call
// concurrently with Complete; overlapping fetches may both hit the gateway.
func (c *Client) FetchCatalog(ctx context.Context) (*ModelCatalog, error) {
	c.catalogMu.RLock()
	cached, age := c.catalog, c.catalogAge
	c.catalogMu.RUnlock()
	if cached != nil && time.Since(age) < catalogTTL {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var catalog ModelCatalog
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	c.catalogMu.Lock()
	c.catalog = &catalog
	c.catalogAge = time.Now()
	c.catalogMu.Unlock()
	return &catalog, nil
}

// costFor computes USD cost from cached catalog pricing; nil when unknown.
func (c *Client) costFor(modelID string, usage Usage) *float64 {
	c.catalogMu.RLock()
	catalog := c.catalog
	c.catalogMu.RUnlock()
	if catalog == nil {
		return nil
	}
	for _, info := range catalog.Data {
		if info.ID == modelID {
			cost := float64(usage.PromptTokens)*info.Pricing.Prompt/1_000_000 +
				float64(usage.CompletionTokens)*info.Pricing.Completion/1_000_000
			return &cost
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/odvcencio/wordbench")
	req.Header.Set("X-Title", "Wordbench")
}

// parseError parses an error response and classifies it for retries.
func (c *Client) parseError(resp *http.Response) error {
	retryable := resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode >= 500

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status, Retryable: retryable}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		rawBody := string(body)
		if len(rawBody) > 500 {
			rawBody = rawBody[:500] + "..."
		}
		message := resp.Status
		if rawBody != "" {
			message = fmt.Sprintf("%s (raw: %s)", resp.Status, rawBody)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Retryable:  retryable,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Error.Message,
		Type:       errResp.Error.Type,
		Code:       errResp.Error.Code,
		Retryable:  retryable,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter parses the Retry-After header.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		return time.Until(t)
	}
	return 0
}
