package http

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

	x402 "github.com/x402-foundation/x402-entitlements"
)

// ============================================================================
// Paying Client
// ============================================================================

// PaymentSigner produces a payment header for a challenge option
type PaymentSigner interface {
	CreatePaymentHeader(ctx context.Context, option x402.PaymentOption) (string, error)
}

// DataStatus tags the outcome of a data request
type DataStatus string

const (
	DataOK              DataStatus = "ok"
	DataPaymentRequired DataStatus = "payment_required"
	DataError           DataStatus = "error"
)

// DataResult is the outcome of GetData. Exactly one of Data and Challenge is
// set for the ok and payment_required statuses.
type DataResult struct {
	Status     DataStatus
	StatusCode int
	Data       json.RawMessage
	Challenge  *x402.PaymentRequired
	Error      string
}

// PayResult is the outcome of Pay.
type PayResult struct {
	StatusCode int
	Result     *x402.SettlementResult
	Error      *x402.PaymentError
}

// OK reports whether the server granted the entitlement
func (r *PayResult) OK() bool {
	return r != nil && r.Result != nil && r.Result.OK
}

// ErrPaymentNotAccepted is returned by FetchWithPayment when the server
// refuses the settlement.
var ErrPaymentNotAccepted = errors.New("x402: payment not accepted")

// Client calls a paywall's data and settlement endpoints.
type Client struct {
	baseURL        string
	dataPath       string
	settlementPath string
	httpClient     *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithPaths overrides the data and settlement paths
func WithPaths(dataPath, settlementPath string) ClientOption {
	return func(c *Client) {
		if dataPath != "" {
			c.dataPath = dataPath
		}
		if settlementPath != "" {
			c.settlementPath = settlementPath
		}
	}
}

// NewClient creates a client for the paywall at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		dataPath:       DataPath,
		settlementPath: SettlementPath,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetData requests the protected resource, presenting paymentID when set.
// Only transport failures are returned as errors.
func (c *Client) GetData(ctx context.Context, paymentID string) (*DataResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.dataPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create data request: %w", err)
	}
	if paymentID != "" {
		req.Header.Set(x402.PaymentIDHeader, paymentID)
	}

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return &DataResult{Status: DataOK, StatusCode: status, Data: body}, nil
	case http.StatusPaymentRequired:
		var challenge x402.PaymentRequired
		if err := json.Unmarshal(body, &challenge); err != nil {
			return nil, fmt.Errorf("failed to parse payment requirements: %w", err)
		}
		return &DataResult{Status: DataPaymentRequired, StatusCode: status, Challenge: &challenge}, nil
	default:
		return &DataResult{Status: DataError, StatusCode: status, Error: errorText(body)}, nil
	}
}

// Pay posts a settlement request. Only transport failures are returned as errors.
func (c *Client) Pay(ctx context.Context, settlement x402.SettlementRequest) (*PayResult, error) {
	payload, err := json.Marshal(settlement)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settlement request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.settlementPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create settlement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	result := &PayResult{StatusCode: status}

	// Settlement results carry "ok"; request errors only carry "error"
	var shape struct {
		OK *bool `json:"ok"`
	}
	if json.Unmarshal(body, &shape) == nil && shape.OK != nil {
		var settled x402.SettlementResult
		if err := json.Unmarshal(body, &settled); err != nil {
			return nil, fmt.Errorf("failed to parse settlement result: %w", err)
		}
		result.Result = &settled
		return result, nil
	}

	var payErr x402.PaymentError
	if err := json.Unmarshal(body, &payErr); err != nil || payErr.Code == "" {
		payErr = x402.PaymentError{Code: http.StatusText(status), Message: string(body)}
	}
	result.Error = &payErr
	return result, nil
}

// FetchWithPayment requests the resource and, when challenged, pays the first
// accepted option with signer and requests it again with the paid id.
func (c *Client) FetchWithPayment(ctx context.Context, signer PaymentSigner) (*DataResult, error) {
	first, err := c.GetData(ctx, "")
	if err != nil {
		return nil, err
	}
	if first.Status != DataPaymentRequired {
		return first, nil
	}
	if len(first.Challenge.Accepts) == 0 {
		return nil, errors.New("x402: payment required but no payment options offered")
	}

	option := first.Challenge.Accepts[0]
	paymentID := option.PaymentID()
	if paymentID == "" {
		return nil, errors.New("x402: payment option has no paymentId")
	}

	header, err := signer.CreatePaymentHeader(ctx, option)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	paid, err := c.Pay(ctx, x402.SettlementRequest{
		PaymentID:           paymentID,
		PaymentHeader:       header,
		PaymentRequirements: option,
	})
	if err != nil {
		return nil, err
	}
	if !paid.OK() {
		return nil, fmt.Errorf("%w (%d): %s", ErrPaymentNotAccepted, paid.StatusCode, describePayResult(paid))
	}

	return c.GetData(ctx, paymentID)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFacilitatorResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func describePayResult(r *PayResult) string {
	switch {
	case r.Error != nil:
		return r.Error.Error()
	case r.Result != nil && r.Result.Error != "":
		return string(r.Result.Error)
	default:
		return "unknown failure"
	}
}

func errorText(body []byte) string {
	var payErr x402.PaymentError
	if json.Unmarshal(body, &payErr) == nil && payErr.Code != "" {
		return payErr.Error()
	}
	return strings.TrimSpace(string(body))
}
