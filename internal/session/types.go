// Package session coordinates one recording at a time: it accumulates
// captured fragments, re-uploads the cumulative audio after every fragment
// for a live preview, and runs the stop/flush/finalize handshake.
package session

import (
	"context"

	"github.com/Winstonlu01/Lunori/internal/audio"
	"github.com/Winstonlu01/Lunori/internal/journal"
)

// State is the coordinator's lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
)

// Fragment is one slice of captured audio. Flush marks the fragment emitted
// in answer to Stream.RequestData.
type Fragment struct {
	Data  []byte
	Flush bool
}

// Source opens the microphone.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open capture. Fragments arrive on a fixed timeslice; the
// channel is closed after Stop once the device has been released.
type Stream interface {
	Fragments() <-chan Fragment
	RequestData()
	Stop()
	Released() <-chan struct{}
}

// Transcriber is the remote transcription contract.
type Transcriber interface {
	SubmitChunk(ctx context.Context, sessionID string, index int, p audio.Payload) (journal.ChunkResult, error)
	Finalize(ctx context.Context, sessionID string) (journal.FinalizeResult, error)
}

// Encoder turns the cumulative fragment sequence into one upload payload.
type Encoder interface {
	Encode(chunks [][]byte) (audio.Payload, error)
}

// Outcome of a chunk upload.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Upload is a tracked cumulative upload.
type Upload struct {
	SessionID string
	Index     int
	Size      int
	Outcome   Outcome
}

// EventKind identifies coordinator events.
type EventKind string

const (
	EventState     EventKind = "state"
	EventPreview   EventKind = "preview"
	EventLevel     EventKind = "level"
	EventFinalized EventKind = "finalized"
	EventError     EventKind = "error"
)

// Event is published on Coordinator.Events. Publishing never blocks; events
// are dropped when the buffer is full.
type Event struct {
	Kind      EventKind
	SessionID string
	State     State
	Text      string
	Level     float32
	Result    *journal.FinalizeResult
	Err       error
}
