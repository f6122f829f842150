// Package echo adapts the x402 entitlement flow to the Echo web framework.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	x402 "github.com/x402-foundation/x402-entitlements"
	x402http "github.com/x402-foundation/x402-entitlements/http"
)

// EntitlementKey is the echo context key holding the admitting *x402.SettlementRecord
const EntitlementKey = "x402.entitlement"

// RequirePayment returns Echo middleware guarding a paid route.
func RequirePayment(gate *x402.AccessGate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision, err := gate.Check(c.Request())
			if err != nil {
				c.Logger().Errorf("entitlement lookup: %v", err)
				return c.JSON(http.StatusInternalServerError, x402.NewPaymentError(x402.ErrCodeEntitlementLookup, "", nil))
			}
			if !decision.Admitted {
				return c.JSON(http.StatusPaymentRequired, decision.Challenge)
			}
			c.Set(EntitlementKey, decision.Record)
			return next(c)
		}
	}
}

// SettlementHandler serves the settlement endpoint.
func SettlementHandler(processor *x402http.SettlementProcessor) echo.HandlerFunc {
	return func(c echo.Context) error {
		status, body := processor.Process(c.Request().Context(), c.Request().Body)
		return c.JSON(status, body)
	}
}

// GetEntitlement returns the record stored by RequirePayment.
func GetEntitlement(c echo.Context) (*x402.SettlementRecord, bool) {
	record, ok := c.Get(EntitlementKey).(*x402.SettlementRecord)
	return record, ok && record != nil
}
