// Package gin adapts the x402 entitlement flow to the Gin web framework.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	x402 "github.com/x402-foundation/x402-entitlements"
	x402http "github.com/x402-foundation/x402-entitlements/http"
)

// EntitlementKey is the gin context key holding the admitting *x402.SettlementRecord
const EntitlementKey = "x402.entitlement"

// RequirePayment is the Gin middleware guarding a paid route. Requests without
// a settled entitlement are aborted with 402 and a fresh challenge.
func RequirePayment(gate *x402.AccessGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := gate.Check(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, x402.NewPaymentError(x402.ErrCodeEntitlementLookup, "", nil))
			return
		}
		if !decision.Admitted {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, decision.Challenge)
			return
		}
		c.Set(EntitlementKey, decision.Record)
		c.Next()
	}
}

// SettlementHandler serves the settlement endpoint.
func SettlementHandler(processor *x402http.SettlementProcessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, body := processor.Process(c.Request.Context(), c.Request.Body)
		c.JSON(status, body)
	}
}

// GetEntitlement returns the record stored by RequirePayment.
func GetEntitlement(c *gin.Context) (*x402.SettlementRecord, bool) {
	v, exists := c.Get(EntitlementKey)
	if !exists {
		return nil, false
	}
	record, ok := v.(*x402.SettlementRecord)
	return record, ok && record != nil
}
