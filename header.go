package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// PaymentHeader is the decoded form of the base64 paymentHeader a client
// submits: an EIP-3009 transferWithAuthorization signed for the exact scheme.
type PaymentHeader struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     Network         `json:"network"`
	Payload     ExactEvmPayload `json:"payload"`
}

// ExactEvmPayload carries the signed authorization.
type ExactEvmPayload struct {
	From        string      `json:"from"`
	To          string      `json:"to"`
	Value       string      `json:"value"`
	ValidAfter  json.Number `json:"validAfter"`
	ValidBefore json.Number `json:"validBefore"`
	Nonce       string      `json:"nonce"`
	Signature   string      `json:"signature"`
	Asset       string      `json:"asset"`
}

// EncodePaymentHeader serializes h as base64 JSON.
func EncodePaymentHeader(h PaymentHeader) (string, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("x402: encode payment header: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentHeader parses a base64 JSON payment header. It checks only the
// encoding; see http.ValidatePaymentHeader for semantic checks.
func DecodePaymentHeader(header string) (*PaymentHeader, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("x402: payment header is not valid base64: %w", err)
	}
	var h PaymentHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("x402: payment header is not valid JSON: %w", err)
	}
	return &h, nil
}
