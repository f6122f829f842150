package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	x402 "github.com/x402-foundation/x402-entitlements"
	x402http "github.com/x402-foundation/x402-entitlements/http"
)

// ToolCaller is the part of *mcpsdk.ClientSession the client needs
type ToolCaller interface {
	CallTool(ctx context.Context, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error)
}

// ErrPaymentRequired is returned by GetData when the tool answered with a challenge
var ErrPaymentRequired = errors.New("x402: payment required")

// Client pays for get_data over an MCP session
type Client struct {
	session ToolCaller
}

// NewClient wraps a connected session
func NewClient(session ToolCaller) *Client {
	return &Client{session: session}
}

// GetData calls get_data. When access is denied it returns the challenge
// together with ErrPaymentRequired.
func (c *Client) GetData(ctx context.Context, paymentID string) (json.RawMessage, *x402.PaymentRequired, error) {
	args := map[string]interface{}{}
	if paymentID != "" {
		args["paymentId"] = paymentID
	}
	result, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: ToolGetData, Arguments: args})
	if err != nil {
		return nil, nil, fmt.Errorf("call %s: %w", ToolGetData, err)
	}
	text, err := resultText(result)
	if err != nil {
		return nil, nil, err
	}
	if !result.IsError {
		return json.RawMessage(text), nil, nil
	}

	var challenge x402.PaymentRequired
	if err := json.Unmarshal([]byte(text), &challenge); err != nil || len(challenge.Accepts) == 0 {
		return nil, nil, fmt.Errorf("%s failed: %s", ToolGetData, text)
	}
	return nil, &challenge, ErrPaymentRequired
}

// Pay calls the pay tool
func (c *Client) Pay(ctx context.Context, req x402.SettlementRequest) (*x402.SettlementResult, error) {
	result, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: ToolPay, Arguments: req})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", ToolPay, err)
	}
	text, err := resultText(result)
	if err != nil {
		return nil, err
	}

	var shape struct {
		OK *bool `json:"ok"`
	}
	if err := json.Unmarshal([]byte(text), &shape); err != nil || shape.OK == nil {
		return nil, fmt.Errorf("%s failed: %s", ToolPay, text)
	}
	var settled x402.SettlementResult
	if err := json.Unmarshal([]byte(text), &settled); err != nil {
		return nil, fmt.Errorf("failed to parse settlement result: %w", err)
	}
	return &settled, nil
}

// FetchWithPayment calls get_data and, when challenged, pays the first option
// with signer and calls get_data again with the paid id.
func (c *Client) FetchWithPayment(ctx context.Context, signer x402http.PaymentSigner) (json.RawMessage, error) {
	data, challenge, err := c.GetData(ctx, "")
	if !errors.Is(err, ErrPaymentRequired) {
		return data, err
	}

	option := challenge.Accepts[0]
	paymentID := option.PaymentID()
	if paymentID == "" {
		return nil, errors.New("x402: payment option has no paymentId")
	}

	header, err := signer.CreatePaymentHeader(ctx, option)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	settled, err := c.Pay(ctx, x402.SettlementRequest{
		PaymentID:           paymentID,
		PaymentHeader:       header,
		PaymentRequirements: option,
	})
	if err != nil {
		return nil, err
	}
	if !settled.OK {
		return nil, fmt.Errorf("%w: %s", x402http.ErrPaymentNotAccepted, settled.Error)
	}

	data, _, err = c.GetData(ctx, paymentID)
	return data, err
}

var _ ToolCaller = (*mcpsdk.ClientSession)(nil)
