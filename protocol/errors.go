package protocol

import (
	"errors"
	"fmt"
)

// ResponseError represents a malformed or unexpected response from the bootloader.
// The protocol has no status codes, so any response that does not echo the
// expected opcode or carries impossible field values is reported this way.
type ResponseError struct {
	// Operation is the command that was being answered
	Operation string

	// Opcode is the opcode found in the response
	Opcode Opcode

	// Reason describes what was wrong
	Reason string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s failed: %s (opcode %s 0x%02X)", e.Operation, e.Reason, e.Opcode, byte(e.Opcode))
}

// IsResponseError returns true if the error is, or wraps, a ResponseError.
func IsResponseError(err error) bool {
	var re *ResponseError
	return errors.As(err, &re)
}
