package app

import (
	"github.com/Winstonlu01/Lunori/internal/capture"
	"github.com/Winstonlu01/Lunori/internal/draft"
	"github.com/Winstonlu01/Lunori/internal/entries"
	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/session"
)

// HealthMsg carries the result of a backend health probe.
type HealthMsg struct {
	Status string
	Err    error
}

// HealthTickMsg triggers another health probe while disconnected.
type HealthTickMsg struct{}

// EntriesLoadedMsg carries a snapshot of the entry cache.
type EntriesLoadedMsg struct {
	Entries []journal.Entry
	Stats   entries.Aggregates
	Err     error
}

// SearchResultMsg carries the entries matching Query.
type SearchResultMsg struct {
	Query   string
	Entries []journal.Entry
	Err     error
}

// DetailLoadedMsg carries one fully hydrated entry.
type DetailLoadedMsg struct {
	Detail journal.EntryDetail
	Err    error
}

// SessionEventMsg wraps an event published by the recorder.
type SessionEventMsg struct {
	Event session.Event
}

// StartedMsg is the outcome of starting a recording.
type StartedMsg struct {
	Err error
}

// StoppedMsg is the outcome of the stop handshake.
type StoppedMsg struct {
	Result journal.FinalizeResult
	Err    error
}

// DraftLoadedMsg carries the draft restored at launch, if any.
type DraftLoadedMsg struct {
	Draft *draft.Draft
	Err   error
}

// DraftStoredMsg reports that the current draft was written locally.
type DraftStoredMsg struct {
	Draft draft.Draft
	Err   error
}

// DraftsListedMsg carries every stored draft, newest first, for the draft
// picker.
type DraftsListedMsg struct {
	Drafts []draft.Draft
	Err    error
}

// AttachedMsg is the outcome of staging an image.
type AttachedMsg struct {
	Image journal.Image
	Err   error
}

// SavedMsg is the outcome of saving the draft as an entry.
type SavedMsg struct {
	ID  string
	Err error
}

// DeletedMsg is the outcome of deleting an entry.
type DeletedMsg struct {
	ID  string
	Err error
}

// DevicesMsg carries the capture devices.
type DevicesMsg struct {
	Devices []capture.Device
	Err     error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
