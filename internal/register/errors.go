package register

import "errors"

// Domain errors for register access.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrOutOfRange is returned when an address or address range falls
	// outside the bank.
	ErrOutOfRange = errors.New("register: address out of range")

	// ErrShortRead is returned when a remote peer answers a range read with
	// fewer words than requested.
	ErrShortRead = errors.New("register: short read")

	// ErrBankUnavailable is returned when a remote bank cannot be reached or
	// answers with a malformed response. Callers retry on their next access.
	ErrBankUnavailable = errors.New("register: bank unavailable")

	// ErrInvalidTagValue is returned when a tag holds a value outside its
	// defined domain. The bank stores such values; consumers decide how to
	// interpret them.
	ErrInvalidTagValue = errors.New("register: invalid tag value")

	// ErrUnknownTag is returned when a tag name is not defined.
	ErrUnknownTag = errors.New("register: unknown tag")

	// ErrReadOnlyTag is returned when writing a tag owned by the control loop.
	ErrReadOnlyTag = errors.New("register: tag is read-only")
)
