package ledger

import "fmt"

// ValidationError reports bad input. It is always returned before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// Is implements the errors.Is interface for ValidationError.
// Empty target fields act as wildcards.
func (e ValidationError) Is(target error) bool {
	t, ok := target.(ValidationError)
	if !ok {
		return false
	}
	if t.Field != "" && t.Field != e.Field {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// NotFoundError indicates that an entry, class or student id does not resolve.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return e.Resource + " not found: " + e.ID
}

// Is implements the errors.Is interface for NotFoundError.
// Empty target fields act as wildcards.
func (e NotFoundError) Is(target error) bool {
	t, ok := target.(NotFoundError)
	if !ok {
		return false
	}
	if t.Resource != "" && t.Resource != e.Resource {
		return false
	}
	return t.ID == "" || t.ID == e.ID
}

// TransientIOError wraps a persistence or network failure.
type TransientIOError struct {
	Op  string
	Err error
}

func (e TransientIOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e TransientIOError) Unwrap() error {
	return e.Err
}

// Is implements the errors.Is interface for TransientIOError.
func (e TransientIOError) Is(target error) bool {
	_, ok := target.(TransientIOError)
	return ok
}
