package ingestion

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrUnsupportedFormat is the sentinel every InputFormatError matches.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// InputFormatError means the input bytes cannot be interpreted at all.
// It is the only ingestion failure that aborts a run before any record is read.
type InputFormatError struct {
	Path   string
	Format string
	Reason string
}

func (e *InputFormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("input format error: %s", e.Reason)
	}
	return fmt.Sprintf("input format error (%s): %s", e.Path, e.Reason)
}

// Is lets errors.Is(err, ErrUnsupportedFormat) match any InputFormatError.
func (e *InputFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// IsInputFormatError reports whether err is or wraps an InputFormatError.
func IsInputFormatError(err error) bool {
	var ife *InputFormatError
	return errors.As(err, &ife)
}
