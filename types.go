package x402

import (
	"encoding/json"
	"time"
)

// X402Version is the protocol version spoken on the wire.
const X402Version = 1

// SchemeExact is the only payment scheme offered by challenges.
const SchemeExact = "exact"

// SettledEvent is the facilitator event that confirms a settlement.
const SettledEvent = "payment.settled"

// Network identifies a Cronos network, e.g. "cronos-testnet".
type Network string

// OutputSchema describes the input and output of a paid resource for discovery
// clients (Base-like discovery schema).
type OutputSchema struct {
	Input  *OutputSchemaInput     `json:"input,omitempty"`
	Output map[string]interface{} `json:"output,omitempty"`
}

// OutputSchemaInput describes how the resource is requested.
type OutputSchemaInput struct {
	Type   string `json:"type"`
	Method string `json:"method,omitempty"`
}

// DefaultOutputSchema is the schema advertised for the JSON data endpoint.
func DefaultOutputSchema() *OutputSchema {
	return &OutputSchema{
		Input: &OutputSchemaInput{Type: "http", Method: "GET"},
		Output: map[string]interface{}{
			"type": "object",
			"fields": map[string]interface{}{
				"response": map[string]interface{}{"type": "string"},
			},
		},
	}
}

// PaymentOption is one entry of a challenge's accepts list (x402 v1 payment
// requirements). Anything not covered by a named field lives under Extra.
type PaymentOption struct {
	Scheme            string                 `json:"scheme"`
	Network           Network                `json:"network"`
	Asset             string                 `json:"asset"`
	PayTo             string                 `json:"payTo"`
	MaxAmountRequired string                 `json:"maxAmountRequired"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Description       string                 `json:"description"`
	MimeType          string                 `json:"mimeType"`
	Resource          string                 `json:"resource"`
	OutputSchema      *OutputSchema          `json:"outputSchema,omitempty"`
	Extra             map[string]interface{} `json:"extra"`
}

// PaymentID returns extra.paymentId, or "" when absent.
func (o PaymentOption) PaymentID() string {
	if o.Extra == nil {
		return ""
	}
	id, _ := o.Extra[ExtraPaymentIDKey].(string)
	return id
}

// ExtraPaymentIDKey is the extra field carrying the challenge's payment id.
const ExtraPaymentIDKey = "paymentId"

// PaymentRequired is the body of a 402 response.
type PaymentRequired struct {
	X402Version int             `json:"x402Version"`
	Error       string          `json:"error"`
	Accepts     []PaymentOption `json:"accepts"`
}

// SettlementRecord is the entitlement recorded for a key after a confirmed settlement.
type SettlementRecord struct {
	Settled         bool      `json:"settled"`
	TransactionHash string    `json:"txHash,omitempty"`
	RecordedAt      time.Time `json:"recordedAt"`
}

// SettlementRequest is the body of a settlement call.
type SettlementRequest struct {
	PaymentID           string        `json:"paymentId"`
	PaymentHeader       string        `json:"paymentHeader"`
	PaymentRequirements PaymentOption `json:"paymentRequirements"`
}

// SettlementFailure classifies a rejected payment.
type SettlementFailure string

const (
	FailureVerify SettlementFailure = "verify_failed"
	FailureSettle SettlementFailure = "settle_failed"
)

// SettlementResult is the outcome of a settlement call. On failure Details
// carries the facilitator response verbatim.
type SettlementResult struct {
	OK      bool              `json:"ok"`
	TxHash  string            `json:"txHash,omitempty"`
	Error   SettlementFailure `json:"error,omitempty"`
	Details interface{}       `json:"details,omitempty"`
}

// FacilitatorRequest is the body sent to the facilitator's verify and settle endpoints.
type FacilitatorRequest struct {
	X402Version         int           `json:"x402Version"`
	PaymentHeader       string        `json:"paymentHeader"`
	PaymentRequirements PaymentOption `json:"paymentRequirements"`

	// PaymentID is the entitlement key the settlement is recorded under.
	// It is not sent to the facilitator.
	PaymentID string `json:"-"`
}

// VerifyResponse is the facilitator's answer to a verify call.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// SettleResponse is the facilitator's answer to a settle call.
type SettleResponse struct {
	X402Version int         `json:"x402Version,omitempty"`
	Event       string      `json:"event"`
	TxHash      string      `json:"txHash,omitempty"`
	From        string      `json:"from,omitempty"`
	To          string      `json:"to,omitempty"`
	Value       string      `json:"value,omitempty"`
	BlockNumber json.Number `json:"blockNumber,omitempty"`
	Network     Network     `json:"network,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Settled reports whether the response confirms settlement.
func (r *SettleResponse) Settled() bool {
	return r != nil && r.Event == SettledEvent
}

// SupportedKind is one scheme/network pair a facilitator can settle.
type SupportedKind struct {
	X402Version int     `json:"x402Version"`
	Scheme      string  `json:"scheme"`
	Network     Network `json:"network"`
}

// SupportedResponse lists what a facilitator supports.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}
