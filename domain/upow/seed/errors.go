package seed

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedSeedField is the sentinel matched by every MalformedSeedFieldError.
var ErrMalformedSeedField = errors.New("malformed seed field")

// MalformedSeedFieldError is returned when a seed field has the wrong length.
// Actual is -1 when the field could not be decoded at all.
type MalformedSeedFieldError struct {
	Field    string
	Expected int
	Actual   int
}

func newMalformedSeedFieldError(field string, expected, actual int) error {
	return errors.WithStack(&MalformedSeedFieldError{Field: field, Expected: expected, Actual: actual})
}

func (e *MalformedSeedFieldError) Error() string {
	if e.Actual < 0 {
		return fmt.Sprintf("%s: %s is not valid hex (expected %d bytes)", ErrMalformedSeedField, e.Field, e.Expected)
	}
	return fmt.Sprintf("%s: %s must be %d bytes, got %d", ErrMalformedSeedField, e.Field, e.Expected, e.Actual)
}

// Is lets errors.Is match ErrMalformedSeedField.
func (e *MalformedSeedFieldError) Is(target error) bool {
	return target == ErrMalformedSeedField
}
