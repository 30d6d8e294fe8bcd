package fetcher

import (
	"fmt"
	"net/http"
	"strings"
)

// Outcome is the result of processing one index.
type Outcome int

const (
	// Success means the item was fetched and written.
	Success Outcome = iota
	// NotFound means a non-200 status or an empty body.
	NotFound
	// WrongType means a non-empty 200 whose content-type was not accepted.
	WrongType
	// TransportError means no response could be obtained or read.
	TransportError
	// Skipped means the output already existed and no request was sent.
	Skipped
	// Cancelled means the context ended before or during the request.
	Cancelled
	// WriteFailed means the response was good but storage rejected it.
	WriteFailed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotFound:
		return "not found"
	case WrongType:
		return "wrong type"
	case TransportError:
		return "transport error"
	case Skipped:
		return "skipped"
	case Cancelled:
		return "cancelled"
	case WriteFailed:
		return "write failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Classify is the end-of-collection heuristic for a received response.
// empty reports whether the body had no bytes.
func Classify(status int, contentType string, empty bool, accept string) Outcome {
	if status != http.StatusOK || empty {
		return NotFound
	}
	if !Accepts(contentType, accept) {
		return WrongType
	}
	return Success
}

// Accepts reports whether contentType begins with prefix, ignoring case and
// leading whitespace.
func Accepts(contentType, prefix string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, strings.ToLower(prefix))
}

// Reason says why a run stopped.
type Reason int

const (
	// HaltRangeExhausted means every index up to End succeeded or was skipped.
	HaltRangeExhausted Reason = iota
	// HaltEndOfCollection means a missing or non-matching item was found
	// after earlier progress, or a non-matching item at any point.
	HaltEndOfCollection
	// HaltConfiguration means the first index was missing, which usually
	// points at a wrong start index, base URL or extension.
	HaltConfiguration
	// HaltTransport means a network failure.
	HaltTransport
	// HaltStorage means writing or checking output failed.
	HaltStorage
	// HaltInterrupted means the context was cancelled.
	HaltInterrupted
)

func (r Reason) String() string {
	switch r {
	case HaltRangeExhausted:
		return "range exhausted"
	case HaltEndOfCollection:
		return "end of collection"
	case HaltConfiguration:
		return "configuration error"
	case HaltTransport:
		return "transport failure"
	case HaltStorage:
		return "storage failure"
	case HaltInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// HaltReason maps the outcome that stopped the loop to a Reason. progressed
// reports whether any earlier index succeeded or was skipped.
func HaltReason(o Outcome, progressed bool) Reason {
	switch o {
	case WrongType:
		return HaltEndOfCollection
	case NotFound:
		if progressed {
			return HaltEndOfCollection
		}
		return HaltConfiguration
	case TransportError:
		return HaltTransport
	case WriteFailed:
		return HaltStorage
	case Cancelled:
		return HaltInterrupted
	default:
		return HaltRangeExhausted
	}
}
