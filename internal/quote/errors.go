package quote

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidationFailed is matched by every validation error from this package.
	ErrValidationFailed = errors.New("validation failed")
	// ErrOutOfRange reports an item index that does not exist in the draft.
	ErrOutOfRange = errors.New("item index out of range")
	// ErrLaborNotIncluded reports an hours change on a labor option that is switched off.
	ErrLaborNotIncluded = errors.New("labor option is not included")
	// ErrUnknownField reports a SetItem call with a field other than price or quantity.
	ErrUnknownField = errors.New("unknown item field")
	// ErrPersistence reports that history could not be read from the store.
	ErrPersistence = errors.New("quote history persistence unavailable")
	ErrNoClipboard = errors.New("no clipboard configured")
)

// FieldError is a rejected edit of one item field. The stored value is left unchanged.
type FieldError struct {
	Index   int
	Field   Field
	Value   string
	Message string
	Cause   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("item %d %s: %s", e.Index+1, e.Field, e.Message)
}

func (e *FieldError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrValidationFailed}
	}
	return []error{ErrValidationFailed, e.Cause}
}

// Problem is one reason a save was rejected.
type Problem struct {
	Index   int    `json:"index"`
	Field   Field  `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem that blocked Save.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("item %d %s: %s", p.Index+1, p.Field, p.Message))
	}
	return "quote validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
