package protocol

import (
	"errors"
	"fmt"

	"github.com/danmuck/iogate/internal/protocol/schema"
)

// ErrDecode is the root of every decode failure. Decode failures drop one
// record and are never fatal to the gateway.
var ErrDecode = errors.New("protocol: decode")

var (
	ErrUnknownType    = fmt.Errorf("%w: unknown message type", ErrDecode)
	ErrLengthMismatch = fmt.Errorf("%w: length mismatch", ErrDecode)
	ErrInvalidEnum    = fmt.Errorf("%w: invalid enum value", ErrDecode)
	ErrInvalidField   = fmt.Errorf("%w: field out of range", ErrDecode)
)

// DecodeError carries the record context of a failed decode.
type DecodeError struct {
	Type   uint8
	Length uint8
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode type=0x%02x (%s) length=%d: %s", e.Type, schema.Name(e.Type), e.Length, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Kind returns a short label for metrics.
func (e *DecodeError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrUnknownType):
		return "unknown_type"
	case errors.Is(e.Err, ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(e.Err, ErrInvalidEnum):
		return "invalid_enum"
	case errors.Is(e.Err, ErrInvalidField):
		return "invalid_field"
	default:
		return "other"
	}
}
