package prompts

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError is a schema mismatch in an LLM module response. The
// pipeline treats it as a retryable stage failure: the model is simply
// asked again.
type ValidationError struct {
	Module string
	Errors []FieldError
}

// FieldError is one validation failure at a specific field path.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s response failed schema validation:", e.Module)
	for _, fe := range e.Errors {
		fmt.Fprintf(&sb, " %s: %s;", fe.Field, fe.Message)
	}
	return sb.String()
}

// Validate checks a raw JSON response against a module schema.
func Validate(module, schema, raw string) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewStringLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		// Malformed JSON is a validation failure too, not an internal error.
		return &ValidationError{
			Module: module,
			Errors: []FieldError{{Field: "(document)", Message: err.Error()}},
		}
	}

	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Module: module}
	for _, desc := range result.Errors() {
		verr.Errors = append(verr.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return verr
}

// Module response schemas. Arrays of strings default to required but
// may be empty; extra fields are rejected so drift in model output is
// caught at the boundary.

const gapAnalysisSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["gaps", "opportunities", "risks", "messagingOverlap", "missingObjections", "differentiationGaps", "pricingClarityIssues"],
	"properties": {
		"gaps": {"type": "array", "items": {"type": "string"}},
		"opportunities": {"type": "array", "items": {"type": "string"}},
		"risks": {"type": "array", "items": {"type": "string"}},
		"messagingOverlap": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["competitor", "overlap"],
				"properties": {
					"competitor": {"type": "string"},
					"overlap": {"type": "integer", "minimum": 0, "maximum": 100}
				}
			}
		},
		"missingObjections": {"type": "array", "items": {"type": "string"}},
		"differentiationGaps": {"type": "array", "items": {"type": "string"}},
		"pricingClarityIssues": {"type": "array", "items": {"type": "string"}}
	}
}`

const heroSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["headline", "subheadline", "primaryCta"],
	"properties": {
		"headline": {"type": "string", "minLength": 1},
		"subheadline": {"type": "string", "minLength": 1},
		"primaryCta": {"type": "string", "minLength": 1},
		"secondaryCta": {"type": "string"}
	}
}`

const pricingSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["valueMetric", "anchor", "packagingNotes"],
	"properties": {
		"valueMetric": {"type": "string", "minLength": 1},
		"anchor": {"type": "string", "minLength": 1},
		"packagingNotes": {"type": "array", "items": {"type": "string"}}
	}
}`

const objectionsSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["objections"],
	"properties": {
		"objections": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["objection", "response"],
				"properties": {
					"objection": {"type": "string", "minLength": 1},
					"response": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

const differentiationSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["differentiators"],
	"properties": {
		"differentiators": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["claim", "proof"],
				"properties": {
					"claim": {"type": "string", "minLength": 1},
					"proof": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

const countersSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["counters"],
	"properties": {
		"counters": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["competitor", "counter"],
				"properties": {
					"competitor": {"type": "string", "minLength": 1},
					"counter": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

// CompetitorExtractionSchema validates the per-competitor insight
// extraction used by the competitor analysis stage.
const CompetitorExtractionSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["summary", "strengths", "weaknesses", "positioning"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"weaknesses": {"type": "array", "items": {"type": "string"}},
		"positioning": {"type": "string"}
	}
}`
