package journal

import (
	"errors"
	"fmt"
)

// Kind classifies the failures the client distinguishes.
type Kind string

const (
	KindCaptureUnavailable    Kind = "capture_unavailable"
	KindChunkUploadFailed     Kind = "chunk_upload_failed"
	KindFinalizeFailed        Kind = "finalize_failed"
	KindEntryFetchFailed      Kind = "entry_fetch_failed"
	KindSearchHydrationFailed Kind = "search_hydration_failed"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrCaptureUnavailable    = &Error{Kind: KindCaptureUnavailable}
	ErrChunkUploadFailed     = &Error{Kind: KindChunkUploadFailed}
	ErrFinalizeFailed        = &Error{Kind: KindFinalizeFailed}
	ErrEntryFetchFailed      = &Error{Kind: KindEntryFetchFailed}
	ErrSearchHydrationFailed = &Error{Kind: KindSearchHydrationFailed}
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches by kind so callers can compare against the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message renders err as the one-line text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	var prefix string
	switch e.Kind {
	case KindCaptureUnavailable:
		prefix = "Microphone unavailable"
	case KindChunkUploadFailed:
		prefix = "Live preview upload failed"
	case KindFinalizeFailed:
		prefix = "Could not finalize recording, please record again"
	case KindEntryFetchFailed:
		prefix = "Could not load entries"
	case KindSearchHydrationFailed:
		prefix = "Search could not load every entry"
	default:
		prefix = string(e.Kind)
	}
	if e.Err == nil {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}
