// Package paymentidentifier generates and checks the ids that key entitlements.
//
// An id is issued in every challenge under extra.paymentId. The payer settles
// under it and then presents it in x-payment-id, so it works as a bearer
// credential and must be unguessable.
package paymentidentifier

import (
	"regexp"

	"github.com/google/uuid"
)

// DefaultPrefix starts every generated id.
const DefaultPrefix = "pay_"

// Length bounds of an id issued by this package
const (
	MinLength = 16
	MaxLength = 128
)

var idChars = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Generator returns a fresh payment id on every call.
type Generator func() string

// GeneratePaymentID returns prefix followed by a random UUID, for example
// "pay_0f8fad5b-d9cb-469f-a165-70867728950e". An empty prefix means DefaultPrefix.
func GeneratePaymentID(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + uuid.NewString()
}

// NewGenerator binds prefix to GeneratePaymentID.
func NewGenerator(prefix string) Generator {
	return func() string { return GeneratePaymentID(prefix) }
}

// IsValidPaymentID reports whether id has the shape of an issued id. Keys chosen
// by clients may fail this check and are still accepted by the store.
func IsValidPaymentID(id string) bool {
	return len(id) >= MinLength && len(id) <= MaxLength && idChars.MatchString(id)
}
