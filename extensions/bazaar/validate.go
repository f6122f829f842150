package bazaar

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	x402 "github.com/x402-foundation/x402-entitlements"
)

//go:embed challenge_schema.json
var challengeSchemaJSON []byte

var (
	challengeSchemaOnce sync.Once
	challengeSchema     *gojsonschema.Schema
	challengeSchemaErr  error
)

func loadChallengeSchema() (*gojsonschema.Schema, error) {
	challengeSchemaOnce.Do(func() {
		challengeSchema, challengeSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(challengeSchemaJSON))
	})
	return challengeSchema, challengeSchemaErr
}

// ValidationResult represents the result of validating a challenge
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Error joins the validation errors.
func (r ValidationResult) Error() string {
	return strings.Join(r.Errors, "; ")
}

// ValidateChallenge checks a 402 body against the Base-like discovery schema
// consumed by third-party x402 clients and catalogs.
//
// Example:
//
//	result := bazaar.ValidateChallenge(issuer.Issue())
//	if !result.Valid {
//	    log.Fatalf("challenge is not discoverable: %s", result.Error())
//	}
func ValidateChallenge(challenge x402.PaymentRequired) ValidationResult {
	document, err := json.Marshal(challenge)
	if err != nil {
		return ValidationResult{Errors: []string{fmt.Sprintf("Failed to marshal challenge: %v", err)}}
	}
	return ValidateChallengeJSON(document)
}

// ValidateChallengeJSON validates a raw 402 body.
func ValidateChallengeJSON(document []byte) ValidationResult {
	schema, err := loadChallengeSchema()
	if err != nil {
		return ValidationResult{Errors: []string{fmt.Sprintf("Schema load failed: %v", err)}}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return ValidationResult{Errors: []string{fmt.Sprintf("Schema validation failed: %v", err)}}
	}
	if result.Valid() {
		return ValidationResult{Valid: true}
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return ValidationResult{Errors: errors}
}
