package fetch

import (
	"errors"
	"fmt"
)

// IntegrityError indicates a transferred file did not match its expected
// checksum. The offending file has already been deleted when this error is
// returned, so a subsequent attempt starts from a clean slate.
type IntegrityError struct {
	URL         string
	Destination string
	Algo        Algo
	Expected    string
	Actual      string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch for %s: %s expected %s, got %s", e.URL, e.Algo, e.Expected, e.Actual)
}

// TransportError indicates a network-level failure (connection, HTTP status,
// interrupted body). It is retryable at the caller's discretion; a previously
// valid destination file is guaranteed to be untouched.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsIntegrityError reports whether err is (or wraps) an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Retryable reports whether a fetch error is worth another attempt under a
// caller's retry policy. Both integrity and transport failures qualify:
// integrity failures clean up after themselves, transport failures leave no
// partial state.
func Retryable(err error) bool {
	return IsIntegrityError(err) || IsTransportError(err)
}
