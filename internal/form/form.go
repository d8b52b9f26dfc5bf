// Package form implements the create and edit dialogs: a scratch draft is
// seeded from an existing record or from defaults, validated, and turned
// into the payload the backend expects.
package form

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/listing"
)

// ValidationError reports a required field left empty.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q is required", e.Field)
}

// ErrorCategory lets the enhanced error builder pick the right category.
func (e *ValidationError) ErrorCategory() errors.ErrorCategory { return errors.CategoryValidation }

func required(field, value string) error {
	if isBlank(value) {
		return errors.New(&ValidationError{Field: field}).
			Component("form").
			Context("field", field).
			Build()
	}
	return nil
}

// HashPassword returns the lowercase hex SHA-256 of clave. The backend
// stores and compares this digest; it carries no security guarantee.
func HashPassword(clave string) string {
	sum := sha256.Sum256([]byte(clave))
	return hex.EncodeToString(sum[:])
}

// Mutator is the controller a form submits through.
// *listing.Controller satisfies it.
type Mutator[T any] interface {
	Create(ctx context.Context, p listing.Payload) (T, error)
	Update(ctx context.Context, id int, p listing.Payload) error
}
