package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for error classification. Wrap tags errors with one of
// these so transport layers can map failures without string matching.
var (
	// ErrUpstream marks a dependency (library API, indexer, download client,
	// bibliography provider) as unreachable or erroring.
	ErrUpstream = errors.New("upstream unavailable")
	// ErrValidation marks malformed requests or missing required settings.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks unknown author/book/job identifiers.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks operations that collide with existing state.
	ErrConflict = errors.New("conflict")
	// ErrNoMatch marks an indexer search that returned nothing. This is an
	// expected job outcome, not a system fault.
	ErrNoMatch = errors.New("no results")
	// ErrTimeout marks a per-call deadline expiring against a dependency.
	ErrTimeout = errors.New("timeout")
)

// Kind is the transport-facing classification of an error.
type Kind string

const (
	KindUpstream   Kind = "upstream_unavailable"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindNoMatch    Kind = "no_match"
	KindUnknown    Kind = "unknown"
)

// Wrap builds an error message that includes the failing dependency and
// operation while tagging it with the provided marker for later
// classification. The marker should be one of the exported sentinels above.
func Wrap(marker error, dependency, operation, message string, err error) error {
	detail := buildDetail(dependency, operation, message)
	if marker == nil {
		marker = ErrUpstream
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its transport-facing kind. Timeouts are reported
// as upstream failures since the dependency never answered.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNoMatch):
		return KindNoMatch
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrTimeout):
		return KindUpstream
	default:
		return KindUnknown
	}
}

func buildDetail(dependency, operation, message string) string {
	parts := make([]string, 0, 3)
	if dependency = strings.TrimSpace(dependency); dependency != "" {
		parts = append(parts, dependency)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
