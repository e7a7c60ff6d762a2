package segmentvc

import (
	"fmt"
)

// TreeErrorKind identifies the structural failure raised by the tree or its history store.
type TreeErrorKind uint8

const (
	KeyExists TreeErrorKind = iota + 1
	KeyNotFound
	IndexOutOfBounds
	InvalidProof
	HistoryStore
)

func (k TreeErrorKind) String() string {
	switch k {
	case KeyExists:
		return "key already exists"
	case KeyNotFound:
		return "key not found"
	case IndexOutOfBounds:
		return "index out of bounds"
	case InvalidProof:
		return "invalid proof"
	case HistoryStore:
		return "history store error"
	default:
		return "unknown tree error"
	}
}

// TreeError is the structural error type of the vector commitment.
//
// Errors of the same kind match with errors.Is regardless of Reason, so callers
// compare against the sentinel values below.
type TreeError struct {
	Kind   TreeErrorKind
	Reason string
}

func (e *TreeError) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is reports whether target is a TreeError of the same kind.
func (e *TreeError) Is(target error) bool {
	t, ok := target.(*TreeError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrKeyExists        = &TreeError{Kind: KeyExists}
	ErrKeyNotFound      = &TreeError{Kind: KeyNotFound}
	ErrIndexOutOfBounds = &TreeError{Kind: IndexOutOfBounds}
	ErrInvalidProof     = &TreeError{Kind: InvalidProof}
	ErrHistoryStore     = &TreeError{Kind: HistoryStore}
)

func historyStoreError(reason string) error {
	return &TreeError{Kind: HistoryStore, Reason: reason}
}

func invalidProof(format string, args ...any) error {
	return &TreeError{Kind: InvalidProof, Reason: fmt.Sprintf(format, args...)}
}
