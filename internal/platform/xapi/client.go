// Package xapi implements platform.Client on top of the X API v2.
// Requests go through a failsafe-go executor: 429 and 5xx responses are
// retried with jittered backoff and a circuit breaker stops hammering the
// API while it keeps failing. Tweet creation is not idempotent, so it only
// retries 429, which X rejects before processing the request.
package xapi

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
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/platform"
)

const (
	DefaultBaseURL = "https://api.x.com"
	DefaultTimeout = 30 * time.Second

	duplicateMarker = "duplicate content"
)

// Config configures the client.
type Config struct {
	BaseURL     string
	AccessToken string // OAuth 2.0 user-context token
	Timeout     time.Duration
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Client talks to the X API v2.
type Client struct {
	cfg      Config
	http     *http.Client
	executor failsafe.Executor[*response]
	creates  failsafe.Executor[*response]
	breaker  circuitbreaker.CircuitBreaker[*response]
	logger   *logger.Logger

	mu   sync.Mutex
	self *platform.Identity
}

var _ platform.Client = (*Client)(nil)

// response is a fully read HTTP response, so retries never leak bodies.
type response struct {
	status int
	header http.Header
	body   []byte
}

func retryable(resp *response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return resp.status == http.StatusTooManyRequests || resp.status >= 500
}

func rateLimited(resp *response, err error) bool {
	return err == nil && resp.status == http.StatusTooManyRequests
}

// New creates a client.
func New(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("xapi")

	newRetry := func(handle func(*response, error) bool) retrypolicy.RetryPolicy[*response] {
		return retrypolicy.NewBuilder[*response]().
			HandleIf(handle).
			WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
			WithJitterFactor(0.1).
			WithMaxRetries(cfg.MaxRetries).
			ReturnLastFailure().
			OnRetry(func(e failsafe.ExecutionEvent[*response]) {
				log.Warn("retrying platform request", logger.Field{Key: "attempt", Value: e.Attempts()})
			}).
			Build()
	}

	breaker := circuitbreaker.NewBuilder[*response]().
		HandleIf(retryable).
		WithFailureThresholdRatio(5, 10).
		WithDelay(time.Minute).
		WithSuccessThreshold(1).
		OnOpen(func(circuitbreaker.StateChangedEvent) {
			log.Error("platform circuit breaker opened", nil)
		}).
		Build()

	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		executor: failsafe.With[*response](newRetry(retryable), breaker),
		creates:  failsafe.With[*response](newRetry(rateLimited), breaker),
		breaker:  breaker,
		logger:   log,
	}
}

// BreakerOpen reports whether requests are currently short-circuited.
func (c *Client) BreakerOpen() bool {
	return c.breaker.IsOpen()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*response, error) {
	return c.doWith(ctx, c.executor, method, path, query, body)
}

// create sends a non-idempotent POST. A lost response is not retried: the
// resource may already exist.
func (c *Client) create(ctx context.Context, path string, body any) (*response, error) {
	return c.doWith(ctx, c.creates, http.MethodPost, path, nil, body)
}

func (c *Client) doWith(ctx context.Context, exec failsafe.Executor[*response], method, path string,
	query url.Values, body any) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	return c.send(ctx, exec, func() (*http.Request, error) {
		u := c.cfg.BaseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, r)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
}

// send builds a fresh request for every attempt and returns the decoded
// error for non-2xx responses.
func (c *Client) send(ctx context.Context, exec failsafe.Executor[*response],
	build func() (*http.Request, error)) (*response, error) {
	resp, err := exec.WithContext(ctx).Get(func() (*response, error) {
		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, fmt.Errorf("platform unavailable: %w", err)
		}
		return nil, err
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, decodeError(resp)
	}
	return resp, nil
}

type apiProblem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Errors []struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	} `json:"errors"`
}

func decodeError(resp *response) error {
	apiErr := &platform.APIError{StatusCode: resp.status, Body: string(resp.body)}
	var problem apiProblem
	if json.Unmarshal(resp.body, &problem) == nil {
		apiErr.Detail = problem.Detail
		if apiErr.Detail == "" && len(problem.Errors) > 0 {
			apiErr.Detail = problem.Errors[0].Message
		}
	}

	lower := strings.ToLower(apiErr.Detail + " " + apiErr.Body)
	switch {
	case strings.Contains(lower, duplicateMarker):
		return fmt.Errorf("%w: %w", platform.ErrDuplicateContent, apiErr)
	case resp.status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", platform.ErrNotFound, apiErr)
	}
	return apiErr
}

func decode(resp *response, v any) error {
	if err := json.Unmarshal(resp.body, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
