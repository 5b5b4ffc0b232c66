package listing

import (
	"github.com/rotisserie/eris"
)

var (
	// ErrQueryFailure marks a storage or transport failure during a bounds or
	// similarity query. It never carries matched data.
	ErrQueryFailure = eris.New("listing: query failure")

	// ErrInvalidReference marks a similarity lookup whose reference listing is
	// missing or has no usable price.
	ErrInvalidReference = eris.New("listing: invalid reference")

	// ErrNotFound is returned by repositories when no listing has the given id.
	ErrNotFound = eris.New("listing: not found")
)

// queryError wraps a storage error so that errors.Is(err, ErrQueryFailure)
// holds while the cause stays inspectable.
type queryError struct {
	op  string
	err error
}

func (e *queryError) Error() string { return "listing: " + e.op + ": " + e.err.Error() }

func (e *queryError) Unwrap() error { return e.err }

func (e *queryError) Is(target error) bool { return target == ErrQueryFailure }

func newQueryError(op string, err error) error {
	return &queryError{op: op, err: err}
}

// referenceError reports why a reference listing was rejected.
type referenceError struct {
	id       string
	reason   string
	notFound bool
}

func (e *referenceError) Error() string {
	return "listing: invalid reference " + e.id + ": " + e.reason
}

func (e *referenceError) Is(target error) bool {
	if target == ErrInvalidReference {
		return true
	}
	return e.notFound && target == ErrNotFound
}
