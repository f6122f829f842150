package bazaar

import (
	"strings"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// DiscoveredResource is the catalog view of a paid resource.
type DiscoveredResource struct {
	ResourceURL string
	Method      string
	X402Version int
	Network     x402.Network
	Price       string
	Output      map[string]interface{}
}

// ExtractDiscoveryInfo reads the discovery data of a payment option from its
// outputSchema. It returns nil when the option carries no input description.
func ExtractDiscoveryInfo(option x402.PaymentOption) *DiscoveredResource {
	if option.OutputSchema == nil || option.OutputSchema.Input == nil {
		return nil
	}
	method := strings.ToUpper(option.OutputSchema.Input.Method)
	if method == "" {
		method = "GET"
	}
	return &DiscoveredResource{
		ResourceURL: option.Resource,
		Method:      method,
		X402Version: x402.X402Version,
		Network:     option.Network,
		Price:       option.MaxAmountRequired,
		Output:      option.OutputSchema.Output,
	}
}
