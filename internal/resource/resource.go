// Package resource holds the protected content served once a payment settles.
package resource

// Response is the paid payload
type Response struct {
	OK       bool   `json:"ok"`
	Response string `json:"response"`
}

// Payload returns the body of GET /api/data for an entitled caller
func Payload() Response {
	return Response{OK: true, Response: "paid content unlocked"}
}
