package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes the pipeline distinguishes.
var (
	// ErrConfig is fatal: it aborts a run before any record is processed.
	ErrConfig = errors.New("configuration error")
	// ErrExtraction marks OCR/parse failures; callers skip the document.
	ErrExtraction = errors.New("text extraction failed")
	// ErrClassification marks a malformed remote response; callers skip the
	// document rather than substituting a stub label silently.
	ErrClassification = errors.New("classification failed")
	// ErrCacheInconsistent marks an on-disk file failing the completeness
	// check; the cache treats it as a miss.
	ErrCacheInconsistent = errors.New("cached file incomplete")
	// ErrNotFound is returned when no label files exist for a load.
	ErrNotFound = errors.New("not found")
)

// TransportError reports a non-2xx HTTP status.
type TransportError struct {
	Status int
	URL    string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: status %d for %s", e.Status, e.URL)
}

// Tolerated reports whether attachment fallback discovery may treat this
// failure as "this strategy has nothing" and advance the chain.
func (e *TransportError) Tolerated() bool {
	switch e.Status {
	case 401, 403, 404:
		return true
	}
	return false
}

// Retryable reports whether a caller may retry the attempt with backoff.
func (e *TransportError) Retryable() bool {
	return e.Status >= 500
}

// AsTransport unwraps err into a *TransportError if it is one.
func AsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	ok := errors.As(err, &te)
	return te, ok
}
