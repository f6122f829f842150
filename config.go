package x402

import (
	"github.com/ethereum/go-ethereum/common"
)

// DefaultMaxTimeoutSeconds is the payment signature validity window advertised
// when none is configured.
const DefaultMaxTimeoutSeconds = 300

// DefaultMimeType is the advertised content type of the protected resource.
const DefaultMimeType = "application/json"

// Config holds the payment parameters of a protected resource. Build it once at
// startup with NewConfig and pass it to NewChallengeIssuer / NewAccessGate.
type Config struct {
	// Network is the Cronos network payments are made on
	Network Network `json:"network"`
	// PayTo is the merchant address receiving payments
	PayTo string `json:"payTo"`
	// Asset is the token contract; defaults to the network's stablecoin
	Asset string `json:"asset"`
	// Price is the amount in base units of the asset (e.g. 1000000 for 1 USDCe)
	Price string `json:"price"`
	// Resource is the canonical identifier of the protected resource
	Resource string `json:"resource"`

	Description       string                 `json:"description,omitempty"`
	MimeType          string                 `json:"mimeType,omitempty"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds,omitempty"`
	OutputSchema      *OutputSchema          `json:"outputSchema,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// Option configures a Config
type Option func(*Config)

// WithDescription sets the description shown in challenges
func WithDescription(description string) Option {
	return func(c *Config) {
		c.Description = description
	}
}

// WithMimeType sets the advertised content type
func WithMimeType(mimeType string) Option {
	return func(c *Config) {
		c.MimeType = mimeType
	}
}

// WithMaxTimeoutSeconds sets the payment signature validity window
func WithMaxTimeoutSeconds(seconds int) Option {
	return func(c *Config) {
		c.MaxTimeoutSeconds = seconds
	}
}

// WithOutputSchema sets the discovery output schema
func WithOutputSchema(schema *OutputSchema) Option {
	return func(c *Config) {
		c.OutputSchema = schema
	}
}

// WithResource sets the resource identifier
func WithResource(resource string) Option {
	return func(c *Config) {
		c.Resource = resource
	}
}

// WithAsset overrides the network's default asset
func WithAsset(asset string) Option {
	return func(c *Config) {
		c.Asset = asset
	}
}

// WithExtra adds fields to every challenge's extra object. paymentId is always
// generated per challenge and cannot be set here.
func WithExtra(key string, value interface{}) Option {
	return func(c *Config) {
		if key == ExtraPaymentIDKey {
			return
		}
		if c.Extra == nil {
			c.Extra = make(map[string]interface{})
		}
		c.Extra[key] = value
	}
}

// NewConfig builds a validated Config. It fails fast on a missing or malformed
// payee, an unknown network without an explicit asset, or a bad price.
func NewConfig(network Network, payTo, price string, opts ...Option) (*Config, error) {
	cfg := &Config{
		Network: network,
		PayTo:   payTo,
		Price:   price,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Network == "" {
		c.Network = DefaultNetwork
	}
	if c.Asset == "" {
		c.Asset = DefaultAssetFor(c.Network)
	}
	if c.MimeType == "" {
		c.MimeType = DefaultMimeType
	}
	if c.MaxTimeoutSeconds <= 0 {
		c.MaxTimeoutSeconds = DefaultMaxTimeoutSeconds
	}
}

// Validate checks that the config has all required fields
func (c *Config) Validate() error {
	if c.PayTo == "" {
		return ErrMissingPayTo
	}
	if !common.IsHexAddress(c.PayTo) {
		return ErrInvalidPayTo
	}
	if c.Network == "" {
		return ErrMissingNetwork
	}
	if c.Asset == "" {
		return ErrUnknownNetwork
	}
	if !common.IsHexAddress(c.Asset) {
		return ErrInvalidAsset
	}
	if err := ValidateBaseUnits(c.Price); err != nil {
		return err
	}
	if c.Resource == "" {
		return ErrMissingResource
	}
	return nil
}

// GetMaxTimeoutSeconds returns the max timeout seconds, defaulting to 300 if not set
func (c *Config) GetMaxTimeoutSeconds() int {
	if c.MaxTimeoutSeconds <= 0 {
		return DefaultMaxTimeoutSeconds
	}
	return c.MaxTimeoutSeconds
}

// ChallengeConfig converts the config into challenge inputs.
func (c *Config) ChallengeConfig() ChallengeConfig {
	return ChallengeConfig{
		Network:           c.Network,
		PayTo:             c.PayTo,
		Asset:             c.Asset,
		MaxAmountRequired: c.Price,
		Description:       c.Description,
		Resource:          c.Resource,
		MimeType:          c.MimeType,
		MaxTimeoutSeconds: c.GetMaxTimeoutSeconds(),
		OutputSchema:      c.OutputSchema,
		Extra:             c.Extra,
	}
}
