package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Decode failure kinds. Every decode error returned by this package wraps one
// of these sentinels, so callers can classify failures with errors.Is.
var (
	// ErrTruncated means the input ran out before a required read completed.
	ErrTruncated = errors.New("truncated input")

	// ErrOverflow means a varint did not terminate within the width of the
	// target integer.
	ErrOverflow = errors.New("varint overflow")

	// ErrInvalidWireType means a tag's low 3 bits do not name a known wire type.
	ErrInvalidWireType = errors.New("invalid wire type")

	// ErrInvalidFieldNumber means a tag carried a field number below 1 or
	// above MaxFieldNumber.
	ErrInvalidFieldNumber = errors.New("invalid field number")

	// ErrMalformedLength means a length-delimited field declared a length that
	// cannot be represented as an int on this platform.
	ErrMalformedLength = errors.New("malformed length")
)

// FieldError annotates an encode/decode error with the path of message field
// names leading to the failure.
type FieldError struct {
	FieldPath []string // e.g. ["order", "items", "unit_price"]
	Err       error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.FieldPath) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("field %s: %v", strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// wrapField prepends fieldName to the error's field path, creating a
// FieldError if err is not one already.
func wrapField(err error, fieldName string) error {
	if err == nil {
		return nil
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{
			FieldPath: append([]string{fieldName}, fe.FieldPath...),
			Err:       fe.Err,
		}
	}
	return &FieldError{
		FieldPath: []string{fieldName},
		Err:       err,
	}
}
