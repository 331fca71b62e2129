package csrgo

import (
	"errors"
	"fmt"
)

var (
	// ErrMagicMismatch is returned when a binary stream does not start with Magic.
	ErrMagicMismatch = errors.New("magic number mismatch")

	// ErrTruncated is returned when a binary stream ends before the structure is complete.
	ErrTruncated = errors.New("truncated input")

	// ErrInconsistentCSR is returned when row offsets and row data disagree.
	ErrInconsistentCSR = errors.New("inconsistent csr structure")

	// ErrMissingIndex is returned when a parser block carries no index array.
	ErrMissingIndex = errors.New("row block has no index array")

	// ErrMalformedBlock is returned when a parser block's arrays do not line up.
	ErrMalformedBlock = errors.New("malformed row block")

	// ErrComplexLength is returned when the complex channel does not hold one value per row.
	ErrComplexLength = errors.New("complex feature count does not match row count")
)

// FormatError reports a malformed or truncated binary stream.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type FormatError struct {
	// Section names the part of the layout being decoded.
	Section string
	cause   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid dataset format: %s: %v", e.Section, e.cause)
}

func (e *FormatError) Unwrap() error { return e.cause }

// NewFormatError returns a FormatError for section wrapping cause.
func NewFormatError(section string, cause error) *FormatError {
	return &FormatError{Section: section, cause: cause}
}

// ContractViolation reports input that breaks an ingestion or save precondition.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ContractViolation struct {
	// Op is the operation that detected the violation.
	Op    string
	cause error
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("contract violation in %s: %v", e.Op, e.cause)
}

func (e *ContractViolation) Unwrap() error { return e.cause }

func newContractViolation(op string, cause error) *ContractViolation {
	return &ContractViolation{Op: op, cause: cause}
}
