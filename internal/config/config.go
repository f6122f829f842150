// Package config loads the paywall server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	x402 "github.com/x402-foundation/x402-entitlements"
	x402http "github.com/x402-foundation/x402-entitlements/http"
)

const (
	defaultResourceURL  = "http://localhost:8787/api/secret"
	defaultPriceUnits   = "1000000"
	defaultDescription  = "Unlock /api/data"
	defaultPort         = "8787"
	defaultStoreURL     = "memory://"
	defaultIdemTTL      = 10 * time.Minute
	defaultRateLimitRPS = 5
	defaultRateBurst    = 10
)

// Config is the process configuration of cmd/paywall-server
type Config struct {
	Network         x402.Network
	MerchantAddress string
	ResourceURL     string
	// PriceBaseUnits is the resolved price; PRICE wins over PRICE_BASE_UNITS
	PriceBaseUnits string
	Asset          string
	Description    string

	Port    string
	GinMode string

	FacilitatorURL     string
	FacilitatorAPIKey  string
	FacilitatorTimeout time.Duration

	EntitlementStoreURL  string
	SettleIdempotencyTTL time.Duration

	PayRateLimitRPS    float64
	PayRateLimitBurst  int
	CORSAllowedOrigins []string

	MCPEnabled          bool
	StrictPaymentHeader bool
}

// LookupFunc reads one variable, like os.LookupEnv
type LookupFunc func(key string) (string, bool)

// Load seeds the environment from a .env file when one exists and reads the
// configuration from it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup reads and validates the configuration through lookup.
func FromLookup(lookup LookupFunc) (*Config, error) {
	env := reader{lookup: lookup}

	cfg := &Config{
		Network:              x402.Network(env.str("NETWORK", string(x402.DefaultNetwork))),
		MerchantAddress:      env.str("MERCHANT_ADDRESS", ""),
		ResourceURL:          env.str("PUBLIC_RESOURCE_URL", defaultResourceURL),
		PriceBaseUnits:       env.str("PRICE_BASE_UNITS", defaultPriceUnits),
		Asset:                env.str("ASSET", ""),
		Description:          env.str("DESCRIPTION", defaultDescription),
		Port:                 env.str("PORT", defaultPort),
		GinMode:              env.str("GIN_MODE", ""),
		FacilitatorURL:       env.str("FACILITATOR_URL", x402http.DefaultFacilitatorURL),
		FacilitatorAPIKey:    env.str("FACILITATOR_API_KEY", ""),
		FacilitatorTimeout:   env.duration("FACILITATOR_TIMEOUT", 30*time.Second),
		EntitlementStoreURL:  env.str("ENTITLEMENT_STORE_URL", defaultStoreURL),
		SettleIdempotencyTTL: env.duration("SETTLE_IDEMPOTENCY_TTL", defaultIdemTTL),
		PayRateLimitRPS:      env.float("PAY_RATE_LIMIT_RPS", defaultRateLimitRPS),
		PayRateLimitBurst:    env.int("PAY_RATE_LIMIT_BURST", defaultRateBurst),
		CORSAllowedOrigins:   env.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MCPEnabled:           env.bool("MCP_ENABLED", false),
		StrictPaymentHeader:  env.bool("STRICT_PAYMENT_HEADER", true),
	}

	if price := env.str("PRICE", ""); price != "" && env.err == nil {
		decimals := int32(6)
		if netCfg, ok := x402.GetNetworkConfig(cfg.Network); ok {
			decimals = netCfg.DefaultAsset.Decimals
		}
		units, err := x402.ParsePrice(price, decimals)
		if err != nil {
			return nil, fmt.Errorf("PRICE: %w", err)
		}
		cfg.PriceBaseUnits = units
	}

	if env.err != nil {
		return nil, env.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that the payment config does not cover
func (c *Config) Validate() error {
	if c.MerchantAddress == "" {
		return errors.New("MERCHANT_ADDRESS is required")
	}
	if !common.IsHexAddress(c.MerchantAddress) {
		return fmt.Errorf("MERCHANT_ADDRESS %q is not a valid EVM address", c.MerchantAddress)
	}
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.FacilitatorTimeout <= 0 {
		return errors.New("FACILITATOR_TIMEOUT must be positive")
	}
	if c.SettleIdempotencyTTL < 0 {
		return errors.New("SETTLE_IDEMPOTENCY_TTL must not be negative")
	}
	if c.PayRateLimitRPS <= 0 || c.PayRateLimitBurst <= 0 {
		return errors.New("PAY_RATE_LIMIT_RPS and PAY_RATE_LIMIT_BURST must be positive")
	}
	if _, err := c.PaymentConfig(); err != nil {
		return err
	}
	return nil
}

// PaymentConfig builds the challenge configuration
func (c *Config) PaymentConfig() (*x402.Config, error) {
	opts := []x402.Option{
		x402.WithResource(c.ResourceURL),
		x402.WithDescription(c.Description),
	}
	if c.Asset != "" {
		opts = append(opts, x402.WithAsset(c.Asset))
	}
	return x402.NewConfig(c.Network, c.MerchantAddress, c.PriceBaseUnits, opts...)
}

// Addr is the listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}

// reader parses variables and keeps the first error
type reader struct {
	lookup LookupFunc
	err    error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	if v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *reader) float(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *reader) int(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *reader) list(key string, def []string) []string {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (r *reader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s=%q: %w", key, value, err)
	}
}
