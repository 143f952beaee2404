package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/admission-portal/internal/core/domain"
	"github.com/kirillkom/admission-portal/internal/infrastructure/resilience"
)

const DefaultAPIURL = "https://api.razorpay.com"

// Client creates orders through the Razorpay orders API.
type Client struct {
	apiURL     string
	keyID      string
	keySecret  string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

func New(apiURL, keyID, keySecret string, options Options) *Client {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiURL:     apiURL,
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.GatewayOrder, error) {
	if c.keyID == "" || c.keySecret == "" {
		return domain.GatewayOrder{}, domain.WrapError(domain.ErrConfiguration, "razorpay create order",
			fmt.Errorf("missing key id or secret"))
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.GatewayOrder{}, fmt.Errorf("marshal order request: %w", err)
	}

	// Order creation is not idempotent, so only transport failures are retried.
	order, err := resilience.Call(ctx, c.executor, "razorpay.create_order", func(callCtx context.Context) (domain.GatewayOrder, error) {
		return c.createOrder(callCtx, body)
	}, classifyOrderError)
	if err != nil {
		return domain.GatewayOrder{}, resilience.WrapTemporaryIfNeeded("razorpay create order", err)
	}
	return order, nil
}

func (c *Client) createOrder(ctx context.Context, body []byte) (domain.GatewayOrder, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return domain.GatewayOrder{}, fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.GatewayOrder{}, fmt.Errorf("razorpay create order request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.GatewayOrder{}, resilience.NewHTTPStatusError("razorpay create order", resp)
	}

	var order domain.GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return domain.GatewayOrder{}, domain.WrapError(domain.ErrUpstream, "razorpay create order", fmt.Errorf("decode response: %w", err))
	}
	if order.ID == "" {
		return domain.GatewayOrder{}, domain.WrapError(domain.ErrUpstream, "razorpay create order", fmt.Errorf("response has no order id"))
	}
	return order, nil
}

func classifyOrderError(err error) resilience.ErrorClassification {
	class := resilience.ClassifyHTTPError(err)
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		class.Retryable = false
	}
	return class
}
