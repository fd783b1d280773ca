package png2exr

import (
	"errors"
	"fmt"
)

// Process exit codes for conversion failures.
const (
	ExitOK     = 0
	ExitDecode = 1
	ExitEncode = 2
	ExitShape  = 3
)

// DecodeError reports an unreadable or invalid input file.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ShapeError reports a decodable input that cannot be converted, such as a
// grayscale source, a zero-sized image or a bit depth other than 8.
type ShapeError struct {
	Width    int
	Height   int
	Channels int
	BitDepth int
	Reason   string
}

func (e *ShapeError) Error() string {
	return "invalid input shape: " + e.Reason
}

// EncodeError reports a failure to produce the output file.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("encode: %v", e.Err)
	}
	return fmt.Sprintf("encode %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// ExitCode maps an error to a process exit code.
// Errors outside the conversion taxonomy map to ExitDecode.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		shapeErr  *ShapeError
		encodeErr *EncodeError
	)
	switch {
	case errors.As(err, &shapeErr):
		return ExitShape
	case errors.As(err, &encodeErr):
		return ExitEncode
	default:
		return ExitDecode
	}
}
