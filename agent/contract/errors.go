package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
	ErrRequirement     = errors.New("agent requirement not satisfied")
	ErrToolUnavailable = errors.New("tool unavailable")
	ErrFormUnavailable = errors.New("form input unavailable")
)
