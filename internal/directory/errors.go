package directory

import (
	"errors"
	"fmt"
)

// NotFoundError reports an operation against an absent record.
type NotFoundError struct {
	Kind string
	EID  string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.EID)
}

// IsNotFound reports whether err is a missing-record error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
