package pciid

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord is returned for a line that does not match any record
	// layout for the current mode and indentation.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrDanglingReference is returned when a record refers to a parent that
	// is not open, or a bridge marker names an unknown vendor or device.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrDuplicateKey is returned in strict mode when an id is reused within
	// its parent scope.
	ErrDuplicateKey = errors.New("duplicate key")

	ErrNoSuchDevice  = errors.New("no such device")
	ErrNotController = errors.New("device is not a controller")
)

// ParseError reports the file and line at which parsing stopped.
type ParseError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	file := e.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d: %v (line %q)", file, e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
