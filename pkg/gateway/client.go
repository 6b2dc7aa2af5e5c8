package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/freshmarket/grocery-backend/pkg/config"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL             = "https://api.razorpay.com/v1"
	defaultTimeout             = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errCredentialsRequired = errors.New("payment gateway key id and secret are required")

// Client talks to the Razorpay Orders REST API. It is never retried: a failed
// call fails the checkout outright.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	metrics    *metrics.Domain
	tracer     trace.Tracer
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics records call latency on the domain metrics.
func WithMetrics(m *metrics.Domain) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds the gateway client from the payments config.
func NewClient(cfg config.PaymentsConfig, opts ...Option) (*Client, error) {
	if !cfg.GatewayEnabled() {
		return nil, errCredentialsRequired
	}

	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		keyID:      strings.TrimSpace(cfg.KeyID),
		keySecret:  strings.TrimSpace(cfg.KeySecret),
		tracer:     otel.Tracer("freshmarket.gateway"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// KeyID is the public key the storefront needs to open the checkout widget.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt,omitempty"`
	PaymentCapture int    `json:"payment_capture"`
}

// Order is the subset of the gateway order resource the backend reads.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt"`
}

// CreateOrder opens a gateway payment session for amountMinor (paise for INR)
// and returns the gateway order reference.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodePaymentsDisabled, "payment gateway not configured")
	}
	if amountMinor <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}

	ctx, span := c.tracer.Start(ctx, "gateway.create_order",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("payment.amount_minor", amountMinor),
			attribute.String("payment.currency", currency),
		),
	)
	defer span.End()

	start := time.Now()
	order, err := c.createOrder(ctx, CreateOrderRequest{
		Amount:         amountMinor,
		Currency:       currency,
		Receipt:        receipt,
		PaymentCapture: 1,
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
	} else {
		span.SetAttributes(attribute.String("payment.gateway_order_id", order.ID))
		span.SetStatus(codes.Ok, "")
	}
	c.metrics.ObserveGatewayCall("create_order", outcome, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return order.ID, nil
}

func (c *Client) createOrder(ctx context.Context, body CreateOrderRequest) (*Order, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal gateway order request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway order request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "payment gateway unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"payment gateway rejected order creation")
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode gateway order response")
	}
	if strings.TrimSpace(order.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway returned an order without id")
	}
	return &order, nil
}
