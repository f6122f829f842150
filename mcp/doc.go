// Package mcp exposes the x402 entitlement flow as Model Context Protocol tools.
//
// # Server Usage
//
//	server, err := mcp.NewServer(mcp.ServerConfig{
//	    Gate:      gate,
//	    Processor: processor,
//	    Payload:   resource.Payload(),
//	})
//	router.Any("/mcp", gin.WrapH(mcp.Handler(server)))
//
// Two tools are registered:
//   - get_data {paymentId?} returns the protected payload, or an error result whose
//     structured content is the x402 payment challenge.
//   - pay {paymentId, paymentHeader, paymentRequirements} settles a payment and
//     returns the settlement result.
//
// Both tools share the gate, coordinator and entitlement store of the HTTP routes,
// so an id paid over one transport unlocks the other.
//
// # Client Usage
//
//	session, _ := mcpClient.Connect(ctx, transport, nil)
//	client := mcp.NewClient(session)
//	payload, err := client.FetchWithPayment(ctx, signer)
package mcp
