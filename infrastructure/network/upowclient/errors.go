package upowclient

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrExternalIO is matched by every ExternalIOError.
var ErrExternalIO = errors.New("external I/O error")

// ExternalIOError is returned when talking to the challenge server fails,
// either in transport or while decoding its answer.
type ExternalIOError struct {
	Op  string
	Err error
}

func newExternalIOError(op string, err error) error {
	return errors.WithStack(&ExternalIOError{Op: op, Err: err})
}

func (e *ExternalIOError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExternalIOError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrExternalIO) hold for any ExternalIOError.
func (e *ExternalIOError) Is(target error) bool {
	return target == ErrExternalIO
}

// statusError is returned for non-2xx responses.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// retriable reports whether a request that failed with err may succeed when
// repeated. Client errors other than throttling are final.
func retriable(err error) bool {
	var status *statusError
	if errors.As(err, &status) {
		return status.code >= 500 || status.code == 429
	}
	return true
}
