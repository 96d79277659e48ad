package convert

import "fmt"

// ErrorKind classifies conversion failures by recovery path.
type ErrorKind string

const (
	// KindInput covers unreadable, malformed, or encrypted sources.
	// Nothing was written.
	KindInput ErrorKind = "input"
	// KindStructure covers source structures that cannot be converted,
	// such as a cyclic outline tree. Nothing was written.
	KindStructure ErrorKind = "structure"
	// KindOutput covers destination write failures. Partial output is
	// removed before the error is returned.
	KindOutput ErrorKind = "output"
)

// Error wraps a pipeline failure with its class and failing operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("convert: %s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func inputErr(op string, err error) *Error {
	return &Error{Kind: KindInput, Op: op, Err: err}
}

func structureErr(op string, err error) *Error {
	return &Error{Kind: KindStructure, Op: op, Err: err}
}

func outputErr(op string, err error) *Error {
	return &Error{Kind: KindOutput, Op: op, Err: err}
}
