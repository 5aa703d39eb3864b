package wire

import "github.com/go-faster/errors"

var (
	// ErrTruncated indicates the stream or payload ended inside a field.
	ErrTruncated = errors.New("truncated")

	// ErrDesync indicates the marker was not found within the resync limit.
	ErrDesync = errors.New("marker not found within resync limit")

	// ErrMalformed indicates a structurally invalid header field.
	ErrMalformed = errors.New("malformed header")
)
