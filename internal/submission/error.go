package submission

import (
	"errors"
	"fmt"
)

// Kind classifies a delivery failure. The distinction drives the retry
// budget: Offline failures are expected while the device has no network and
// never consume an attempt; everything else does.
type Kind int

const (
	KindUnknown Kind = iota
	KindOffline
	KindTransient
	KindRejected
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindOffline:
		return "offline"
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	case KindExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Error wraps a delivery failure with its classification and, when the
// backend answered at all, the HTTP status.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("delivery %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("delivery %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from any error. Unclassified errors are
// treated as Transient for safety: they consume retry budget but stay
// retryable.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		if de.Kind == KindUnknown {
			return KindTransient
		}
		return de.Kind
	}
	return KindTransient
}

// Retryable reports whether the failure should be attempted again at all.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindExpired:
		return false
	default:
		return true
	}
}

// ConsumesRetry reports whether the failure counts against the retry ceiling.
func ConsumesRetry(err error) bool {
	return KindOf(err) != KindOffline
}
