// Command paywall-server serves a resource behind an x402 payment on Cronos.
//
// Routes:
//
//	GET  /health     liveness, no payment
//	GET  /api/data   paid resource; send the settled id in x-payment-id
//	POST /api/pay    settle a payment for a challenge's paymentId
//	     /mcp        get_data and pay tools when MCP_ENABLED=true
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/x402-foundation/x402-entitlements/entitlement"
	x402http "github.com/x402-foundation/x402-entitlements/http"
	"github.com/x402-foundation/x402-entitlements/internal/config"
	"github.com/x402-foundation/x402-entitlements/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "paywall-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	log, err := logger.New(gin.Mode())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := entitlement.Open(ctx, cfg.EntitlementStoreURL, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var auth x402http.AuthProvider
	if cfg.FacilitatorAPIKey != "" {
		auth = x402http.BearerAuthProvider{APIKey: cfg.FacilitatorAPIKey}
	}
	facilitator := x402http.NewHTTPFacilitatorClient(&x402http.FacilitatorConfig{
		URL:          cfg.FacilitatorURL,
		Timeout:      cfg.FacilitatorTimeout,
		AuthProvider: auth,
	})

	settleStore, closeSettleStore, err := openSettleStore(cfg)
	if err != nil {
		return err
	}
	defer closeSettleStore()

	a, err := newApp(cfg, log, store, facilitator, settleStore)
	if err != nil {
		return err
	}
	defer a.Close()

	go checkFacilitator(ctx, log, facilitator, cfg.Network)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("paywall server listening",
			zap.String("addr", srv.Addr),
			zap.String("network", string(cfg.Network)),
			zap.String("pay_to", cfg.MerchantAddress),
			zap.String("price", cfg.PriceBaseUnits),
			zap.Bool("mcp", cfg.MCPEnabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
