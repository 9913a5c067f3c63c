package ledger

import "strings"

// Caller is the identity resolved once at the transport boundary and passed
// explicitly into every ledger operation.
type Caller struct {
	Scope  string // school id
	UserID string
}

func (c Caller) Validate() error {
	if strings.TrimSpace(c.Scope) == "" {
		return NewValidationError("scope", "school scope is required")
	}
	return nil
}
