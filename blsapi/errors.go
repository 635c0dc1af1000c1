// backend/blsapi/errors.go
package blsapi

import "fmt"

// ErrorKind classifies an API failure structurally, so callers branch on the
// kind instead of matching upstream message text.
type ErrorKind int

const (
	// KindValidation means a client-side structural constraint was violated
	// (too many series, span too wide). Never sent upstream, never retried.
	KindValidation ErrorKind = iota

	// KindTransient covers 429/5xx responses and network failures. Handled
	// inside the client with backoff; callers only see it if retries are
	// exhausted, at which point it has already been reclassified.
	KindTransient

	// KindPermanent covers non-retryable 4xx responses, failure envelopes
	// inside an HTTP 200, and exhausted retries on 5xx.
	KindPermanent

	// KindQuota means the upstream daily request threshold was hit
	// (exhausted retries on HTTP 429). An update cycle stops early on this.
	KindQuota
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindQuota:
		return "quota"
	default:
		return "unknown"
	}
}

// APIError is the one error type the client surfaces for request failures.
type APIError struct {
	Kind       ErrorKind
	StatusCode int    // last HTTP status seen, 0 for network/validation errors
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bls api: %s error (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bls api: %s error: %s", e.Kind, e.Message)
}

func validationError(format string, args ...interface{}) *APIError {
	return &APIError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}
