package scpi

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMisuse indicates the protocol was used in a way the transport can not
	// serve, such as an exchange on a closed link or a serial poll on a link
	// without one.
	ErrMisuse = errors.New("scpi: protocol misuse")

	// ErrTimeout matches every *TimeoutError with errors.Is.
	ErrTimeout = errors.New("scpi: timeout")

	// ErrUnknownBit indicates a status bit name that is not defined.
	ErrUnknownBit = errors.New("scpi: unknown status bit")
)

// TimeoutError is returned when an exchange did not complete in time and the
// instrument's error queue did not explain why.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scpi: %q timed out after %v", e.Command, e.Timeout)
}

// Is makes a TimeoutError match ErrTimeout and context.DeadlineExceeded.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == context.DeadlineExceeded
}

// CommandError is a non-zero entry read from the instrument's error queue.
type CommandError struct {
	// Command is the command the error is attributed to, "" when unknown.
	Command string
	Code    int
	Message string
}

func (e *CommandError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("scpi: instrument error %d: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("scpi: %q returned error %d: %s", e.Command, e.Code, e.Message)
}

// FormatError is returned when a reply does not have the expected shape.
type FormatError struct {
	// Kind names what was being parsed, e.g. "error queue" or "identity".
	Kind  string
	Reply string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("scpi: malformed %s reply %q", e.Kind, e.Reply)
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsCommandError reports whether err is, or wraps, a *CommandError.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// IsFormatError reports whether err is, or wraps, a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
