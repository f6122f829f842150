package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-entitlements"
	x402http "github.com/x402-foundation/x402-entitlements/http"
)

// Tool names
const (
	ToolGetData = "get_data"
	ToolPay     = "pay"
)

// ServerConfig wires the tools to the entitlement flow
type ServerConfig struct {
	Gate      *x402.AccessGate
	Processor *x402http.SettlementProcessor
	// Payload is returned by get_data once admitted
	Payload interface{}
	// Implementation identifies the server to clients (optional)
	Implementation *mcpsdk.Implementation
	Logger         *zap.Logger
}

// Tools holds the tool handlers. NewServer registers them; they can also be
// called directly.
type Tools struct {
	gate      *x402.AccessGate
	processor *x402http.SettlementProcessor
	payload   interface{}
	logger    *zap.Logger
}

// NewTools validates cfg and returns the tool handlers
func NewTools(cfg ServerConfig) (*Tools, error) {
	if cfg.Gate == nil {
		return nil, x402.ErrNilGate
	}
	if cfg.Processor == nil {
		return nil, x402.ErrNilCoordinator
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tools{
		gate:      cfg.Gate,
		processor: cfg.Processor,
		payload:   cfg.Payload,
		logger:    logger,
	}, nil
}

// NewServer creates an MCP server exposing get_data and pay
func NewServer(cfg ServerConfig) (*mcpsdk.Server, error) {
	tools, err := NewTools(cfg)
	if err != nil {
		return nil, err
	}

	impl := cfg.Implementation
	if impl == nil {
		impl = &mcpsdk.Implementation{Name: "x402-entitlements", Version: "1.0.0"}
	}
	server := mcpsdk.NewServer(impl, nil)

	server.AddTool(&mcpsdk.Tool{
		Name:        ToolGetData,
		Description: "Return the paid content. Without a settled paymentId the result is an x402 payment challenge.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"paymentId":{"type":"string"}}}`),
	}, tools.GetData)

	server.AddTool(&mcpsdk.Tool{
		Name:        ToolPay,
		Description: "Settle an x402 payment for the paymentId of a challenge.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{` +
			`"paymentId":{"type":"string"},` +
			`"paymentHeader":{"type":"string"},` +
			`"paymentRequirements":{"type":"object"}},` +
			`"required":["paymentId","paymentHeader","paymentRequirements"]}`),
	}, tools.Pay)

	return server, nil
}

// Handler serves server over the streamable HTTP transport
func Handler(server *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return server
	}, nil)
}

// GetData implements the get_data tool
func (t *Tools) GetData(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args struct {
		PaymentID string `json:"paymentId"`
	}
	if req.Params != nil && len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errorResult(fmt.Sprintf("failed to unmarshal arguments: %v", err)), nil
		}
	}

	decision, err := t.gate.Admit(ctx, args.PaymentID)
	if err != nil {
		t.logger.Error("entitlement lookup failed", zap.String("payment_id", args.PaymentID), zap.Error(err))
		return jsonResult(x402.NewPaymentError(x402.ErrCodeEntitlementLookup, "", nil), true)
	}
	if !decision.Admitted {
		return jsonResult(decision.Challenge, true)
	}
	return jsonResult(t.payload, false)
}

// Pay implements the pay tool. Arguments are decoded exactly like the HTTP
// settlement body.
func (t *Tools) Pay(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var raw []byte
	if req.Params != nil {
		raw = req.Params.Arguments
	}
	status, body := t.processor.Process(ctx, bytes.NewReader(raw))
	return jsonResult(body, status != http.StatusOK)
}

func jsonResult(v interface{}, isError bool) (*mcpsdk.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	var structured map[string]interface{}
	if err := json.Unmarshal(data, &structured); err != nil {
		// Non-object payloads are returned as text only
		structured = nil
	}

	result := &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: isError,
	}
	if structured != nil {
		result.StructuredContent = structured
	}
	return result, nil
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}

// resultText returns the text of the first text content item
func resultText(result *mcpsdk.CallToolResult) (string, error) {
	for _, item := range result.Content {
		if text, ok := item.(*mcpsdk.TextContent); ok {
			return text.Text, nil
		}
	}
	return "", errors.New("tool result has no text content")
}
