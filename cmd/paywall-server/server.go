package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-entitlements"
	"github.com/x402-foundation/x402-entitlements/extensions/bazaar"
	"github.com/x402-foundation/x402-entitlements/extensions/idempotency"
	x402http "github.com/x402-foundation/x402-entitlements/http"
	x402gin "github.com/x402-foundation/x402-entitlements/http/gin"
	"github.com/x402-foundation/x402-entitlements/internal/config"
	"github.com/x402-foundation/x402-entitlements/internal/resource"
	"github.com/x402-foundation/x402-entitlements/mcp"
)

// app holds the wired components of the server
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	gate      *x402.AccessGate
	processor *x402http.SettlementProcessor
	limiter   *x402gin.RateLimiter
	mcp       http.Handler
}

// newApp wires the entitlement flow around store and facilitator. A nil
// settleStore deduplicates settles in memory.
func newApp(cfg *config.Config, logger *zap.Logger, store x402.EntitlementStore, facilitator x402.FacilitatorClient, settleStore idempotency.SettlementStore) (*app, error) {
	paymentCfg, err := cfg.PaymentConfig()
	if err != nil {
		return nil, fmt.Errorf("payment config: %w", err)
	}

	issuer, err := x402.NewChallengeIssuer(paymentCfg)
	if err != nil {
		return nil, err
	}
	if result := bazaar.ValidateChallenge(issuer.Issue()); !result.Valid {
		return nil, fmt.Errorf("challenge does not match the discovery schema: %s", result.Error())
	}

	gate, err := x402.NewAccessGate(store, issuer, x402.WithGateLogger(logger))
	if err != nil {
		return nil, err
	}
	logPaywall(logger, gate)

	coordinator, err := x402.NewSettlementCoordinator(store, x402.WithCoordinatorLogger(logger))
	if err != nil {
		return nil, err
	}
	coordinator.
		OnEntitlementGranted(func(ctx x402.EntitlementGrantedContext) {
			logger.Info("entitlement granted",
				zap.String("correlation_id", x402gin.CorrelationIDFromContext(ctx.Ctx)),
				zap.String("payment_id", ctx.PaymentID),
				zap.String("tx_hash", ctx.Record.TransactionHash),
				zap.Duration("duration", ctx.Duration))
		}).
		OnSettlementFailed(func(ctx x402.SettlementFailedContext) {
			fields := []zap.Field{
				zap.String("correlation_id", x402gin.CorrelationIDFromContext(ctx.Ctx)),
				zap.String("payment_id", ctx.PaymentID),
				zap.Duration("duration", ctx.Duration),
			}
			if ctx.Error != nil {
				fields = append(fields, zap.Error(ctx.Error))
			}
			if ctx.Result != nil {
				fields = append(fields, zap.String("reason", string(ctx.Result.Error)))
			}
			logger.Warn("settlement failed", fields...)
		})

	if cfg.SettleIdempotencyTTL > 0 {
		opts := []idempotency.Option{idempotency.WithTTL(cfg.SettleIdempotencyTTL), idempotency.WithLogger(logger)}
		if settleStore != nil {
			opts = append(opts, idempotency.WithStore(settleStore))
		}
		facilitator = idempotency.Wrap(facilitator, opts...)
	}

	processor, err := x402http.NewSettlementProcessor(coordinator, facilitator,
		x402http.WithStrictHeaders(cfg.StrictPaymentHeader),
		x402http.WithProcessorLogger(logger))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		gate:      gate,
		processor: processor,
		limiter:   x402gin.NewRateLimiter(cfg.PayRateLimitRPS, cfg.PayRateLimitBurst, logger),
	}

	if cfg.MCPEnabled {
		server, err := mcp.NewServer(mcp.ServerConfig{
			Gate:      gate,
			Processor: processor,
			Payload:   resource.Payload(),
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		a.mcp = mcp.Handler(server)
	}
	return a, nil
}

// router builds the gin engine
func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(x402gin.RequestLogger(a.logger))
	r.Use(corsMiddleware(a.cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"network": string(a.cfg.Network),
			"payTo":   a.cfg.MerchantAddress,
		})
	})

	r.GET(x402http.DataPath, x402gin.RequirePayment(a.gate), func(c *gin.Context) {
		c.JSON(http.StatusOK, resource.Payload())
	})
	r.POST(x402http.SettlementPath, a.limiter.Middleware(), x402gin.SettlementHandler(a.processor))

	if a.mcp != nil {
		r.Any("/mcp", a.limiter.Middleware(), gin.WrapH(a.mcp))
	}
	return r
}

// logPaywall describes the configured offer once at startup.
func logPaywall(logger *zap.Logger, gate *x402.AccessGate) {
	offer := gate.Issuer().Config()
	fields := []zap.Field{
		zap.String("network", string(offer.Network)),
		zap.String("pay_to", offer.PayTo),
		zap.String("asset", offer.Asset),
		zap.String("price_base_units", offer.MaxAmountRequired),
	}
	if network, ok := x402.GetNetworkConfig(offer.Network); ok && strings.EqualFold(network.DefaultAsset.Address, offer.Asset) {
		if price, err := x402.FormatBaseUnits(offer.MaxAmountRequired, network.DefaultAsset.Decimals); err == nil {
			fields = append(fields, zap.String("price", price+" "+network.DefaultAsset.Name))
		}
	}
	if info := bazaar.ExtractDiscoveryInfo(gate.Issuer().Issue().Accepts[0]); info != nil {
		fields = append(fields, zap.String("resource", info.ResourceURL), zap.String("method", info.Method))
	}
	logger.Info("paywall configured", fields...)
}

func (a *app) Close() {
	a.limiter.Close()
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", x402.PaymentIDHeader, x402gin.CorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{"Retry-After", x402gin.CorrelationIDHeader}
	return cors.New(corsConfig)
}

// openSettleStore shares settle deduplication through Redis when entitlements
// live there. It returns nil for other stores.
func openSettleStore(cfg *config.Config) (idempotency.SettlementStore, func(), error) {
	if cfg.SettleIdempotencyTTL <= 0 {
		return nil, func() {}, nil
	}
	u, err := url.Parse(cfg.EntitlementStoreURL)
	if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
		return nil, func() {}, nil
	}
	query := u.Query()
	query.Del("prefix")
	u.RawQuery = query.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return idempotency.NewRedisStore(client, cfg.SettleIdempotencyTTL), func() { _ = client.Close() }, nil
}

// checkFacilitator logs what the facilitator supports. A failure is not fatal.
func checkFacilitator(ctx context.Context, logger *zap.Logger, client *x402http.HTTPFacilitatorClient, network x402.Network) {
	supported, err := client.Supported(ctx)
	if err != nil {
		logger.Warn("facilitator supported check failed", zap.String("facilitator", client.Identifier()), zap.Error(err))
		return
	}
	for _, kind := range supported.Kinds {
		if kind.Network == network && kind.Scheme == x402.SchemeExact {
			logger.Info("facilitator supports network", zap.String("network", string(network)))
			return
		}
	}
	logger.Warn("facilitator does not list network", zap.String("network", string(network)))
}
