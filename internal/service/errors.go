package service

import "fmt"

// ValidationError marks caller mistakes (bad URL, unknown event type) so
// the HTTP layer can answer 400 instead of 500.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
