package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	x402 "github.com/x402-foundation/x402-entitlements"
)

func testFacilitatorRequest() x402.FacilitatorRequest {
	return x402.FacilitatorRequest{
		X402Version:         x402.X402Version,
		PaymentHeader:       "eyJ4NDAyVmVyc2lvbiI6MX0=",
		PaymentRequirements: testRequirements(),
	}
}

func TestNewHTTPFacilitatorClient(t *testing.T) {
	// Test with default config
	client := NewHTTPFacilitatorClient(nil)
	if client == nil {
		t.Fatal("Expected client to be created")
	}
	if client.url != DefaultFacilitatorURL {
		t.Errorf("Expected default URL %s, got %s", DefaultFacilitatorURL, client.url)
	}
	if client.identifier != DefaultFacilitatorURL {
		t.Errorf("Expected default identifier %s, got %s", DefaultFacilitatorURL, client.identifier)
	}
	if client.httpClient.Timeout != defaultFacilitatorTimeout {
		t.Errorf("Expected default timeout %s, got %s", defaultFacilitatorTimeout, client.httpClient.Timeout)
	}

	// Test with custom config
	config := &FacilitatorConfig{
		URL:        "https://custom.facilitator.com",
		Identifier: "custom",
		Timeout:    5 * time.Second,
	}

	client = NewHTTPFacilitatorClient(config)
	if client.url != config.URL {
		t.Errorf("Expected URL %s, got %s", config.URL, client.url)
	}
	if client.Identifier() != "custom" {
		t.Errorf("Expected identifier 'custom', got %s", client.Identifier())
	}
	if client.httpClient.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %s", client.httpClient.Timeout)
	}
}

func TestHTTPFacilitatorClientVerify(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("Expected path /verify, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get(X402VersionHeader) != "1" {
			t.Errorf("Expected X402-Version 1, got %q", r.Header.Get(X402VersionHeader))
		}

		var requestBody x402.FacilitatorRequest
		if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if requestBody.X402Version != 1 {
			t.Errorf("Expected version 1 in request, got %d", requestBody.X402Version)
		}
		if requestBody.PaymentRequirements.PaymentID() != "p1" {
			t.Errorf("Expected echoed paymentId p1, got %q", requestBody.PaymentRequirements.PaymentID())
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"isValid": true})
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	response, err := client.Verify(ctx, testFacilitatorRequest())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !response.IsValid {
		t.Error("Expected valid response")
	}
}

func TestHTTPFacilitatorClientVerifyRejection(t *testing.T) {
	// A 400 carrying a definite answer is that answer, not a transport error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"isValid":false,"invalidReason":"invalid_signature"}`))
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	response, err := client.Verify(context.Background(), testFacilitatorRequest())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if response.IsValid {
		t.Error("Expected invalid response")
	}
	if response.InvalidReason != "invalid_signature" {
		t.Errorf("Expected reason invalid_signature, got %q", response.InvalidReason)
	}
}

func TestHTTPFacilitatorClientSettle(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Errorf("Expected path /settle, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"x402Version":1,"event":"payment.settled","txHash":"0xabc","blockNumber":17,"network":"cronos-testnet"}`))
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	response, err := client.Settle(ctx, testFacilitatorRequest())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !response.Settled() {
		t.Errorf("Expected settled response, got event %q", response.Event)
	}
	if response.TxHash != "0xabc" {
		t.Errorf("Expected tx hash 0xabc, got %s", response.TxHash)
	}
	if response.BlockNumber.String() != "17" {
		t.Errorf("Expected block 17, got %s", response.BlockNumber)
	}
}

func TestHTTPFacilitatorClientSettleFailedEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"event":"payment.failed","error":"authorization expired"}`))
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	response, err := client.Settle(context.Background(), testFacilitatorRequest())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if response.Settled() {
		t.Error("Expected unsettled response")
	}
	if response.Error != "authorization expired" {
		t.Errorf("Expected error detail, got %q", response.Error)
	}
}

func TestHTTPFacilitatorClientGetSupported(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/supported" {
			t.Errorf("Expected path /supported, got %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(x402.SupportedResponse{
			Kinds: []x402.SupportedKind{
				{X402Version: 1, Scheme: "exact", Network: x402.NetworkCronosTestnet},
				{X402Version: 1, Scheme: "exact", Network: x402.NetworkCronosMainnet},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	response, err := client.Supported(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(response.Kinds) != 2 {
		t.Errorf("Expected 2 kinds, got %d", len(response.Kinds))
	}
}

func TestHTTPFacilitatorClientSupportedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(x402.SupportedResponse{Kinds: []x402.SupportedKind{{X402Version: 1, Scheme: "exact"}}})
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{
		URL:                  server.URL,
		SupportedRetries:     3,
		RetryInitialInterval: time.Millisecond,
	})

	response, err := client.Supported(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(response.Kinds) != 1 {
		t.Errorf("Expected 1 kind, got %d", len(response.Kinds))
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestHTTPFacilitatorClientSupportedDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{
		URL:                  server.URL,
		RetryInitialInterval: time.Millisecond,
	})

	_, err := client.Supported(context.Background())
	var facErr *x402.FacilitatorError
	if !errors.As(err, &facErr) {
		t.Fatalf("Expected FacilitatorError, got %v", err)
	}
	if facErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", facErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestHTTPFacilitatorClientWithAuth(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-key" {
			t.Errorf("Expected 'Bearer test-key', got %s", auth)
		}

		switch r.URL.Path {
		case "/verify":
			json.NewEncoder(w).Encode(x402.VerifyResponse{IsValid: true})
		case "/settle":
			json.NewEncoder(w).Encode(x402.SettleResponse{Event: x402.SettledEvent})
		case "/supported":
			json.NewEncoder(w).Encode(x402.SupportedResponse{})
		}
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{
		URL:          server.URL,
		AuthProvider: BearerAuthProvider{APIKey: "test-key"},
	})

	if _, err := client.Verify(ctx, testFacilitatorRequest()); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if _, err := client.Settle(ctx, testFacilitatorRequest()); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if _, err := client.Supported(ctx); err != nil {
		t.Fatalf("Supported failed: %v", err)
	}
}

func TestHTTPFacilitatorClientErrorHandling(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("Bad gateway"))
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{
		URL:                  server.URL,
		SupportedRetries:     1,
		RetryInitialInterval: time.Millisecond,
	})

	var facErr *x402.FacilitatorError

	_, err := client.Verify(ctx, testFacilitatorRequest())
	if !errors.As(err, &facErr) || facErr.StatusCode != http.StatusBadGateway || facErr.Op != "verify" {
		t.Errorf("Expected verify FacilitatorError with 502, got %v", err)
	}

	_, err = client.Settle(ctx, testFacilitatorRequest())
	if !errors.As(err, &facErr) || facErr.Op != "settle" {
		t.Errorf("Expected settle FacilitatorError, got %v", err)
	}

	_, err = client.Supported(ctx)
	if !errors.As(err, &facErr) || facErr.Op != "supported" {
		t.Errorf("Expected supported FacilitatorError, got %v", err)
	}
}

func TestHTTPFacilitatorClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: url})

	_, err := client.Verify(context.Background(), testFacilitatorRequest())
	var facErr *x402.FacilitatorError
	if !errors.As(err, &facErr) {
		t.Fatalf("Expected FacilitatorError, got %v", err)
	}
	if facErr.StatusCode != 0 || facErr.Unwrap() == nil {
		t.Errorf("Expected a connection error, got %+v", facErr)
	}
}

func TestHTTPFacilitatorClientOKWithoutAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewHTTPFacilitatorClient(&FacilitatorConfig{URL: server.URL})

	if _, err := client.Verify(context.Background(), testFacilitatorRequest()); err == nil {
		t.Error("Expected error for verify without isValid")
	}
	if _, err := client.Settle(context.Background(), testFacilitatorRequest()); err == nil {
		t.Error("Expected error for settle without event")
	}
}

func TestBearerAuthProvider(t *testing.T) {
	headers, err := BearerAuthProvider{APIKey: "api-key-123"}.GetAuthHeaders(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := "Bearer api-key-123"
	for name, h := range map[string]map[string]string{
		"verify":    headers.Verify,
		"settle":    headers.Settle,
		"supported": headers.Supported,
	} {
		if h["Authorization"] != expected {
			t.Errorf("Expected %s auth %q, got %q", name, expected, h["Authorization"])
		}
	}
}
