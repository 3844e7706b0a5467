package prologix

import "errors"

var (
	// ErrControllerUnresponsive indicates a controller query got no answer
	// within the controller timeout. The bus should be considered unusable.
	ErrControllerUnresponsive = errors.New("prologix: controller unresponsive")

	// ErrAddressMismatch indicates the controller reports a different address
	// than the one just selected.
	ErrAddressMismatch = errors.New("prologix: address mismatch")

	// ErrInvalidReply indicates a controller reply that could not be parsed.
	ErrInvalidReply = errors.New("prologix: invalid controller reply")
)
