package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// ============================================================================
// HTTP Facilitator Client
// ============================================================================

// HTTPFacilitatorClient talks to a Cronos x402 facilitator over HTTP.
// It implements x402.FacilitatorClient.
type HTTPFacilitatorClient struct {
	url          string
	httpClient   *http.Client
	authProvider AuthProvider
	identifier   string

	supportedRetries     uint64
	retryInitialInterval time.Duration
}

// AuthProvider generates authentication headers for facilitator requests
type AuthProvider interface {
	// GetAuthHeaders returns authentication headers for each endpoint
	GetAuthHeaders(ctx context.Context) (AuthHeaders, error)
}

// AuthHeaders contains authentication headers for facilitator endpoints
type AuthHeaders struct {
	Verify    map[string]string
	Settle    map[string]string
	Supported map[string]string
}

// BearerAuthProvider sends the same API key to every endpoint.
type BearerAuthProvider struct {
	APIKey string
}

// GetAuthHeaders implements AuthProvider
func (p BearerAuthProvider) GetAuthHeaders(context.Context) (AuthHeaders, error) {
	h := map[string]string{"Authorization": "Bearer " + p.APIKey}
	return AuthHeaders{Verify: h, Settle: h, Supported: h}, nil
}

// FacilitatorConfig configures the HTTP facilitator client
type FacilitatorConfig struct {
	// URL is the base URL of the facilitator service
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// AuthProvider provides authentication headers (optional)
	AuthProvider AuthProvider

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration

	// Identifier for this facilitator (optional)
	Identifier string

	// SupportedRetries bounds retries of GET /supported (optional, defaults to 3)
	SupportedRetries int

	// RetryInitialInterval is the first backoff delay (optional, defaults to 1s)
	RetryInitialInterval time.Duration
}

// DefaultFacilitatorURL is the public Cronos x402 facilitator
const DefaultFacilitatorURL = "https://facilitator.cronoslabs.org/v2/x402"

// X402VersionHeader announces the protocol version to the facilitator
const X402VersionHeader = "X402-Version"

const (
	defaultFacilitatorTimeout   = 30 * time.Second
	defaultSupportedRetries     = 3
	defaultRetryInitialInterval = 1 * time.Second
	maxFacilitatorResponseBytes = 1 << 20
)

// NewHTTPFacilitatorClient creates a new HTTP facilitator client
func NewHTTPFacilitatorClient(config *FacilitatorConfig) *HTTPFacilitatorClient {
	if config == nil {
		config = &FacilitatorConfig{}
	}

	url := config.URL
	if url == "" {
		url = DefaultFacilitatorURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultFacilitatorTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	identifier := config.Identifier
	if identifier == "" {
		identifier = url
	}

	retries := uint64(defaultSupportedRetries)
	if config.SupportedRetries > 0 {
		retries = uint64(config.SupportedRetries)
	}
	interval := config.RetryInitialInterval
	if interval <= 0 {
		interval = defaultRetryInitialInterval
	}

	return &HTTPFacilitatorClient{
		url:                  url,
		httpClient:           httpClient,
		authProvider:         config.AuthProvider,
		identifier:           identifier,
		supportedRetries:     retries,
		retryInitialInterval: interval,
	}
}

// Identifier returns the facilitator's identifier
func (c *HTTPFacilitatorClient) Identifier() string {
	return c.identifier
}

// ============================================================================
// FacilitatorClient Implementation
// ============================================================================

// Verify posts the request to {url}/verify. A non-2xx reply that still carries
// a verify answer is returned as that answer; anything else is a
// *x402.FacilitatorError.
func (c *HTTPFacilitatorClient) Verify(ctx context.Context, req x402.FacilitatorRequest) (*x402.VerifyResponse, error) {
	status, body, err := c.post(ctx, "verify", req)
	if err != nil {
		return nil, err
	}

	var answer struct {
		IsValid       *bool  `json:"isValid"`
		InvalidReason string `json:"invalidReason"`
	}
	decodeErr := json.Unmarshal(body, &answer)
	if decodeErr == nil && answer.IsValid != nil && (isSuccess(status) || !*answer.IsValid) {
		return &x402.VerifyResponse{IsValid: *answer.IsValid, InvalidReason: answer.InvalidReason}, nil
	}
	if !isSuccess(status) {
		return nil, &x402.FacilitatorError{Op: "verify", StatusCode: status, Body: string(body)}
	}
	if decodeErr == nil {
		decodeErr = errors.New("response has no isValid field")
	}
	return nil, &x402.FacilitatorError{Op: "verify", StatusCode: status, Body: string(body), Err: decodeErr}
}

// Settle posts the request to {url}/settle. A reply is a facilitator answer
// when it decodes and names an event, whatever its status code.
func (c *HTTPFacilitatorClient) Settle(ctx context.Context, req x402.FacilitatorRequest) (*x402.SettleResponse, error) {
	status, body, err := c.post(ctx, "settle", req)
	if err != nil {
		return nil, err
	}

	var answer x402.SettleResponse
	decodeErr := json.Unmarshal(body, &answer)
	if decodeErr == nil && answer.Event != "" {
		return &answer, nil
	}
	if !isSuccess(status) {
		return nil, &x402.FacilitatorError{Op: "settle", StatusCode: status, Body: string(body)}
	}
	if decodeErr == nil {
		decodeErr = errors.New("response has no event field")
	}
	return nil, &x402.FacilitatorError{Op: "settle", StatusCode: status, Body: string(body), Err: decodeErr}
}

// Supported fetches {url}/supported, retrying with exponential backoff on 429
// and 5xx responses.
func (c *HTTPFacilitatorClient) Supported(ctx context.Context) (x402.SupportedResponse, error) {
	var supported x402.SupportedResponse

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInitialInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, c.supportedRetries-1), ctx)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/supported", nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create supported request: %w", err))
		}
		req.Header.Set(X402VersionHeader, strconv.Itoa(x402.X402Version))
		if err := c.addAuthHeaders(ctx, req, func(h AuthHeaders) map[string]string { return h.Supported }); err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return backoff.Permanent(&x402.FacilitatorError{Op: "supported", Err: err})
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFacilitatorResponseBytes))
		resp.Body.Close()
		if err != nil {
			return backoff.Permanent(&x402.FacilitatorError{Op: "supported", StatusCode: resp.StatusCode, Err: err})
		}

		if resp.StatusCode == http.StatusOK {
			if err := json.Unmarshal(body, &supported); err != nil {
				return backoff.Permanent(&x402.FacilitatorError{Op: "supported", StatusCode: resp.StatusCode, Body: string(body), Err: err})
			}
			return nil
		}

		facErr := &x402.FacilitatorError{Op: "supported", StatusCode: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return facErr
		}
		return backoff.Permanent(facErr)
	}

	if err := backoff.Retry(operation, retry); err != nil {
		return x402.SupportedResponse{}, err
	}
	return supported, nil
}

// ============================================================================
// Internal HTTP Methods
// ============================================================================

func (c *HTTPFacilitatorClient) post(ctx context.Context, op string, payload x402.FacilitatorRequest) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/"+op, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(X402VersionHeader, strconv.Itoa(x402.X402Version))

	pick := func(h AuthHeaders) map[string]string { return h.Verify }
	if op == "settle" {
		pick = func(h AuthHeaders) map[string]string { return h.Settle }
	}
	if err := c.addAuthHeaders(ctx, req, pick); err != nil {
		return 0, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &x402.FacilitatorError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxFacilitatorResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, &x402.FacilitatorError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, responseBody, nil
}

func (c *HTTPFacilitatorClient) addAuthHeaders(ctx context.Context, req *http.Request, pick func(AuthHeaders) map[string]string) error {
	if c.authProvider == nil {
		return nil
	}
	authHeaders, err := c.authProvider.GetAuthHeaders(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth headers: %w", err)
	}
	for k, v := range pick(authHeaders) {
		req.Header.Set(k, v)
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

var _ x402.FacilitatorClient = (*HTTPFacilitatorClient)(nil)
