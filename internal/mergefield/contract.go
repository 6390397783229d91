package mergefield

import (
	"fmt"
	"reflect"

	"vidforge/internal/domain"
)

// ContractError reports every field-contract violation found during the
// pre-check. Any violation blocks the render before substitution runs.
type ContractError struct {
	Violations []domain.Failure
}

func (e *ContractError) Error() string {
	if len(e.Violations) == 1 {
		return e.Violations[0].Error()
	}
	return fmt.Sprintf("%d merge field contract violations (first: %s)", len(e.Violations), e.Violations[0].Error())
}

// First returns the first violation, which callers surface as the job's
// terminal failure.
func (e *ContractError) First() *domain.Failure {
	f := e.Violations[0]
	return &f
}

// Validate checks supplied values against the declared field contracts.
// Missing optional fields fall back to their declared default; missing
// required fields, type mismatches, over-long strings and disallowed
// values are hard errors. Returns the effective value map on success.
func Validate(specs []domain.MergeFieldSpec, values map[string]any) (map[string]any, error) {
	effective := make(map[string]any, len(values))
	for k, v := range values {
		effective[k] = v
	}

	var violations []domain.Failure
	for _, spec := range specs {
		v, ok := effective[spec.Name]
		if !ok {
			if spec.DefaultValue != nil {
				effective[spec.Name] = spec.DefaultValue
				continue
			}
			if spec.Required {
				violations = append(violations, domain.Failure{
					Code:    domain.CodeMissingRequiredField,
					Message: fmt.Sprintf("merge field %q is required but was not supplied", spec.Name),
				})
			}
			continue
		}

		if spec.Type != "" && !typeMatches(spec.Type, v) {
			violations = append(violations, domain.Failure{
				Code:    domain.CodeFieldTypeMismatch,
				Message: fmt.Sprintf("merge field %q: declared type %s, got %T", spec.Name, spec.Type, v),
			})
			continue
		}

		if spec.MaxLength > 0 {
			if s, isStr := v.(string); isStr && len(s) > spec.MaxLength {
				violations = append(violations, domain.Failure{
					Code:    domain.CodeFieldTooLong,
					Message: fmt.Sprintf("merge field %q exceeds max length %d", spec.Name, spec.MaxLength),
				})
				continue
			}
		}

		if len(spec.AllowedValues) > 0 && !valueAllowed(spec.AllowedValues, v) {
			violations = append(violations, domain.Failure{
				Code:    domain.CodeFieldValueNotAllowed,
				Message: fmt.Sprintf("merge field %q: value not in allowed set", spec.Name),
			})
		}
	}

	if len(violations) > 0 {
		return nil, &ContractError{Violations: violations}
	}
	return effective, nil
}

func typeMatches(declared string, v any) bool {
	switch declared {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	}
	return true
}

func valueAllowed(allowed []any, v any) bool {
	for _, a := range allowed {
		if reflect.DeepEqual(a, v) {
			return true
		}
	}
	return false
}
