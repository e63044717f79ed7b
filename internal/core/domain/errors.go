package domain

import "errors"

// Error taxonomy for the ingestion pipeline. Detection and enqueue errors
// surface synchronously to the caller; once a job is running, errors are
// recorded on the Job row instead of crashing the worker.
var (
	// ErrFileNotFound: the referenced scan file is missing on disk.
	ErrFileNotFound = errors.New("scan file not found")

	// ErrInvalidFormat: the content cannot be decoded as the detected format.
	ErrInvalidFormat = errors.New("invalid scan file format")

	// ErrUnsupportedFormat: the file matches no known parser. Raised at
	// detection time, before any job is marked running.
	ErrUnsupportedFormat = errors.New("unsupported scan file format")

	// ErrInvalidJobType: rejected synchronously at enqueue time.
	ErrInvalidJobType = errors.New("invalid job type")
)

// ErrorClass names the taxonomy bucket for a job failure message.
// Anything not otherwise classified counts as a merge failure.
func ErrorClass(err error) string {
	switch {
	case errors.Is(err, ErrFileNotFound):
		return "file_not_found"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	default:
		return "merge_failure"
	}
}
