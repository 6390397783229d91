package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrJobTerminal       = errors.New("job already terminal")
	ErrUnknownClipType   = errors.New("unknown clip type")
	ErrUnknownEffectType = errors.New("unknown effect type")
	ErrUnknownTransition = errors.New("unknown transition type")
	ErrAssetUnavailable  = errors.New("asset unavailable")
	ErrRendererFailed    = errors.New("renderer failed")
)

// Failure codes shared across the pipeline. Structural and contract codes
// are non-retryable; EXECUTION_FAILED is retried with backoff.
const (
	CodeInvalidTimeline      = "INVALID_TIMELINE"
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeFieldTypeMismatch    = "FIELD_TYPE_MISMATCH"
	CodeFieldTooLong         = "FIELD_TOO_LONG"
	CodeFieldValueNotAllowed = "FIELD_VALUE_NOT_ALLOWED"
	CodeAssetUnavailable     = "ASSET_UNAVAILABLE"
	CodeCompilationFailed    = "COMPILATION_FAILED"
	CodeExecutionFailed      = "EXECUTION_FAILED"
	CodePublishFailed        = "PUBLISH_FAILED"
	CodeCancelled            = "CANCELLED"
)

// NewFailure builds a structured failure for a job's terminal state.
func NewFailure(code, message, detail string) *Failure {
	return &Failure{Code: code, Message: message, Detail: detail}
}
