package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://backend-rakj.onrender.com/api/v1"

// Client talks to the admissions REST backend. It implements the auth, profile,
// admission, payment-record and course catalog gateways.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "backend base url", err)
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}, nil
}

// envelope is the {success, message, data} wrapper every backend response uses.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type request struct {
	method    string
	path      string
	payload   any
	operation string
	// failure is the message shown when the backend gives none.
	failure string
	// idempotent requests are retried on retryable statuses; others only on transport errors.
	idempotent bool
}

func (c *Client) call(ctx context.Context, req request, out any) error {
	var body []byte
	if req.payload != nil {
		encoded, err := json.Marshal(req.payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", req.operation, err)
		}
		body = encoded
	}

	classifier := resilience.ClassifyHTTPError
	if !req.idempotent {
		classifier = classifyNonIdempotent
	}

	env, err := resilience.Call(ctx, c.executor, req.operation, func(callCtx context.Context) (envelope, error) {
		return c.roundTrip(callCtx, req, body)
	}, classifier)
	if err != nil {
		return mapBackendError(req, err)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return domain.WrapError(domain.ErrUpstream, req.operation, fmt.Errorf("decode response data: %w", err))
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request, body []byte) (envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("create %s request: %w", req.operation, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return envelope{}, fmt.Errorf("%s request: %w", req.operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return envelope{}, resilience.NewHTTPStatusError(req.operation, resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, domain.WrapError(domain.ErrUpstream, req.operation, fmt.Errorf("decode response: %w", err))
	}
	return env, nil
}

func classifyNonIdempotent(err error) resilience.ErrorClassification {
	class := resilience.ClassifyHTTPError(err)
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		class.Retryable = false
	}
	return class
}

// mapBackendError turns a failed call into an error carrying the backend's own message.
func mapBackendError(req request, err error) error {
	var statusErr *resilience.HTTPStatusError
	if !errors.As(err, &statusErr) {
		return resilience.WrapTemporaryIfNeeded(req.operation, err)
	}

	message := statusErr.Message
	if message == "" {
		message = req.failure
	}
	switch {
	case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
		return domain.NewPublicError(domain.ErrUnauthorized, message, err)
	case statusErr.StatusCode == http.StatusNotFound:
		return domain.NewPublicError(domain.ErrNotFound, message, err)
	case statusErr.StatusCode < http.StatusInternalServerError && statusErr.StatusCode != http.StatusTooManyRequests && statusErr.StatusCode != http.StatusRequestTimeout:
		return domain.NewPublicError(domain.ErrInvalidInput, message, err)
	default:
		return domain.NewPublicError(domain.ErrUpstream, message, err)
	}
}
