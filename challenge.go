package x402

import (
	"github.com/x402-foundation/x402-entitlements/extensions/paymentidentifier"
)

// ChallengeConfig holds the inputs of a payment challenge.
type ChallengeConfig struct {
	Network           Network
	PayTo             string
	Asset             string
	MaxAmountRequired string
	Description       string
	Resource          string
	MimeType          string
	MaxTimeoutSeconds int
	OutputSchema      *OutputSchema
	// Extra fields copied into every option's extra object
	Extra map[string]interface{}
}

// IssueChallenge builds a payment-required body with a single exact-scheme
// option and a freshly generated payment id.
func IssueChallenge(cfg ChallengeConfig) PaymentRequired {
	return issueChallenge(cfg, paymentidentifier.GeneratePaymentID(""))
}

func issueChallenge(cfg ChallengeConfig, paymentID string) PaymentRequired {
	maxTimeout := cfg.MaxTimeoutSeconds
	if maxTimeout <= 0 {
		maxTimeout = DefaultMaxTimeoutSeconds
	}
	mimeType := cfg.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	extra := make(map[string]interface{}, len(cfg.Extra)+1)
	for k, v := range cfg.Extra {
		extra[k] = v
	}
	extra[ExtraPaymentIDKey] = paymentID

	return PaymentRequired{
		X402Version: X402Version,
		Error:       ErrCodePaymentRequired,
		Accepts: []PaymentOption{{
			Scheme:            SchemeExact,
			Network:           cfg.Network,
			Asset:             cfg.Asset,
			PayTo:             cfg.PayTo,
			MaxAmountRequired: cfg.MaxAmountRequired,
			MaxTimeoutSeconds: maxTimeout,
			Description:       cfg.Description,
			MimeType:          mimeType,
			Resource:          cfg.Resource,
			OutputSchema:      cfg.OutputSchema,
			Extra:             extra,
		}},
	}
}

// ChallengeIssuer issues challenges for one validated Config.
type ChallengeIssuer struct {
	config       ChallengeConfig
	newPaymentID paymentidentifier.Generator
}

// IssuerOption configures a ChallengeIssuer
type IssuerOption func(*ChallengeIssuer)

// WithPaymentIDGenerator replaces the payment id generator.
func WithPaymentIDGenerator(gen paymentidentifier.Generator) IssuerOption {
	return func(i *ChallengeIssuer) {
		i.newPaymentID = gen
	}
}

// NewChallengeIssuer creates an issuer for cfg. The config is validated here so
// a bad payee fails at startup rather than on the first request.
func NewChallengeIssuer(cfg *Config, opts ...IssuerOption) (*ChallengeIssuer, error) {
	if cfg == nil {
		return nil, ErrMissingPayTo
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	issuer := &ChallengeIssuer{
		config:       cfg.ChallengeConfig(),
		newPaymentID: paymentidentifier.NewGenerator(paymentidentifier.DefaultPrefix),
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// Issue returns a new challenge.
func (i *ChallengeIssuer) Issue() PaymentRequired {
	return issueChallenge(i.config, i.newPaymentID())
}

// Config returns the challenge inputs the issuer was built with.
func (i *ChallengeIssuer) Config() ChallengeConfig {
	return i.config
}
