package content

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrRemoteUnavailable is returned (wrapped) when the remote tier is offline or not configured.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	// ErrConflict reports a remote write rejected because the remote version moved.
	ErrConflict = errors.New("remote version conflict")
	// ErrUnsupported is returned for operations a kind does not offer.
	ErrUnsupported = errors.New("operation not supported for this kind")
)

// StorageError is a failed write to the local tier. It is the only save failure surfaced to callers.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError describes a document or form input that cannot be accepted.
type ValidationError struct {
	Reason string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Reason
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Reason, strings.Join(parts, "; "))
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Kind Kind
	ID   int
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Kind, e.ID) }
