package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Winstonlu01/Lunori/internal/audio"
	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/logging"
)

// DefaultMaxTracked is how many upload handles a session retains.
const DefaultMaxTracked = 8

const defaultEventBuffer = 64

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrBusy             = errors.New("finalizing previous recording")
)

// Coordinator owns the lifecycle of one recording session at a time.
type Coordinator struct {
	source     Source
	tr         Transcriber
	enc        Encoder
	log        *slog.Logger
	maxTracked int
	newID      func() string
	events     chan Event

	mu       sync.Mutex
	state    State
	starting bool
	rec      *recording
	preview string
	last    *journal.FinalizeResult
}

// recording is the mutable state of the live session. Fields other than the
// channels are guarded by Coordinator.mu.
type recording struct {
	id       string
	stream   Stream
	ctx      context.Context
	chunks   [][]byte
	next     int
	shown    int
	tracked  []*Upload
	pending  sync.WaitGroup
	flushed  chan struct{}
	flushMu  sync.Once
	loopDone chan struct{}
}

func (r *recording) markFlushed() { r.flushMu.Do(func() { close(r.flushed) }) }

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithEncoder sets the payload encoder. The default is 16 kHz mono WAV.
func WithEncoder(e Encoder) Option { return func(c *Coordinator) { c.enc = e } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Coordinator) { c.log = l } }

// WithMaxTracked overrides how many upload handles are retained.
func WithMaxTracked(n int) Option { return func(c *Coordinator) { c.maxTracked = n } }

// WithEventBuffer sets the Events channel capacity.
func WithEventBuffer(n int) Option {
	return func(c *Coordinator) { c.events = make(chan Event, n) }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(f func() string) Option { return func(c *Coordinator) { c.newID = f } }

// New creates an idle coordinator.
func New(src Source, tr Transcriber, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:     src,
		tr:         tr,
		enc:        audio.NewWAVEncoder(audio.DefaultFormat),
		log:        logging.Discard(),
		maxTracked: DefaultMaxTracked,
		newID:      uuid.NewString,
		events:     make(chan Event, defaultEventBuffer),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxTracked < 1 {
		c.maxTracked = DefaultMaxTracked
	}
	c.log = c.log.With("component", "session")
	return c
}

// Events returns the coordinator's event stream.
func (c *Coordinator) Events() <-chan Event { return c.events }

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the live session id, or "" when idle.
func (c *Coordinator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return ""
	}
	return c.rec.id
}

// Preview returns the latest live transcript preview.
func (c *Coordinator) Preview() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview
}

// Last returns the result of the most recent successful finalize.
func (c *Coordinator) Last() (journal.FinalizeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return journal.FinalizeResult{}, false
	}
	return *c.last, true
}

// Uploads returns a snapshot of the retained upload handles, oldest first.
func (c *Coordinator) Uploads() []Upload {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return nil
	}
	out := make([]Upload, len(c.rec.tracked))
	for i, u := range c.rec.tracked {
		out[i] = *u
	}
	return out
}

// Start opens the capture source and begins a fresh session.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateRecording:
		c.mu.Unlock()
		return ErrAlreadyRecording
	case StateFinalizing:
		c.mu.Unlock()
		return ErrBusy
	}
	if c.starting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.starting = true
	c.mu.Unlock()

	stream, err := c.source.Open(ctx)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		c.log.Warn("capture unavailable", "error", err)
		if errors.Is(err, journal.ErrCaptureUnavailable) {
			return err
		}
		return journal.Wrap(journal.KindCaptureUnavailable, "open capture", err)
	}

	rec := &recording{
		id:       c.newID(),
		stream:   stream,
		ctx:      context.WithoutCancel(ctx),
		shown:    -1,
		flushed:  make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	c.rec = rec
	c.state = StateRecording
	c.preview = ""
	c.mu.Unlock()

	c.log.Info("recording started", "session_id", rec.id)
	c.publish(Event{Kind: EventState, SessionID: rec.id, State: StateRecording})

	go c.captureLoop(rec)
	return nil
}

// Stop runs the stop handshake: flush the tail fragment, release the
// device, upload the full audio once more, wait for every upload of the
// session to settle, then finalize exactly once. The session is reset to
// idle whatever the outcome.
func (c *Coordinator) Stop(ctx context.Context) (journal.FinalizeResult, error) {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		c.mu.Unlock()
		return journal.FinalizeResult{}, ErrNotRecording
	case StateFinalizing:
		c.mu.Unlock()
		return journal.FinalizeResult{}, ErrBusy
	}
	rec := c.rec
	c.state = StateFinalizing
	c.mu.Unlock()
	c.publish(Event{Kind: EventState, SessionID: rec.id, State: StateFinalizing})

	res, err := c.finish(ctx, rec)

	c.mu.Lock()
	c.rec = nil
	c.state = StateIdle
	c.preview = ""
	if err == nil {
		c.last = &res
	}
	c.mu.Unlock()

	c.publish(Event{Kind: EventState, SessionID: rec.id, State: StateIdle})
	if err != nil {
		c.log.Error("finalize failed", "session_id", rec.id, "error", err)
		c.publish(Event{Kind: EventError, SessionID: rec.id, Err: err})
		return journal.FinalizeResult{}, err
	}

	c.log.Info("recording finalized", "session_id", rec.id, "words", res.WordCount, "audio", res.AudioFilename)
	c.publish(Event{Kind: EventFinalized, SessionID: rec.id, Result: &res, Text: res.Transcript})
	return res, nil
}

// Toggle starts a session when idle and stops it when recording. The
// returned result is nil when a session was started.
func (c *Coordinator) Toggle(ctx context.Context) (*journal.FinalizeResult, error) {
	switch c.State() {
	case StateIdle:
		return nil, c.Start(ctx)
	case StateRecording:
		res, err := c.Stop(ctx)
		if err != nil {
			return nil, err
		}
		return &res, nil
	default:
		return nil, ErrBusy
	}
}

// Abort releases the device and drops the live session without
// finalizing. It is a no-op when idle.
func (c *Coordinator) Abort() {
	c.mu.Lock()
	rec := c.rec
	if rec == nil || c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	c.rec = nil
	c.state = StateIdle
	c.preview = ""
	c.mu.Unlock()

	rec.stream.Stop()
	<-rec.loopDone
	c.log.Info("recording aborted", "session_id", rec.id)
	c.publish(Event{Kind: EventState, SessionID: rec.id, State: StateIdle})
}

func (c *Coordinator) finish(ctx context.Context, rec *recording) (journal.FinalizeResult, error) {
	rec.stream.RequestData()
	flushErr := wait(ctx, rec.flushed)

	// The device is released even when the flush wait was abandoned.
	rec.stream.Stop()
	if flushErr != nil {
		return journal.FinalizeResult{}, fmt.Errorf("wait for flush: %w", flushErr)
	}
	if err := wait(ctx, rec.stream.Released()); err != nil {
		return journal.FinalizeResult{}, fmt.Errorf("wait for device release: %w", err)
	}
	if err := wait(ctx, rec.loopDone); err != nil {
		return journal.FinalizeResult{}, fmt.Errorf("wait for capture loop: %w", err)
	}

	c.mu.Lock()
	up, chunks := c.beginUpload(rec)
	c.mu.Unlock()
	if err := c.upload(rec, up, chunks); err != nil {
		c.log.Warn("final upload failed", "session_id", rec.id, "error", err)
	}

	settled := make(chan struct{})
	go func() {
		rec.pending.Wait()
		close(settled)
	}()
	if err := wait(ctx, settled); err != nil {
		return journal.FinalizeResult{}, fmt.Errorf("wait for uploads: %w", err)
	}

	res, err := c.tr.Finalize(ctx, rec.id)
	if err != nil {
		return journal.FinalizeResult{}, journal.Wrap(journal.KindFinalizeFailed, "finalize", err)
	}
	if res.SessionID == "" {
		res.SessionID = rec.id
	}
	return res, nil
}

func (c *Coordinator) captureLoop(rec *recording) {
	defer close(rec.loopDone)
	defer rec.markFlushed()

	for frag := range rec.stream.Fragments() {
		c.appendFragment(rec, frag)
		if frag.Flush {
			rec.markFlushed()
		}
	}
}

func (c *Coordinator) appendFragment(rec *recording, frag Fragment) {
	if len(frag.Data) == 0 {
		return
	}
	c.publish(Event{Kind: EventLevel, SessionID: rec.id, Level: audio.Level(frag.Data)})

	c.mu.Lock()
	if c.rec != rec {
		c.mu.Unlock()
		return
	}
	rec.chunks = append(rec.chunks, frag.Data)
	if c.state != StateRecording {
		// The final upload of the stop handshake covers it.
		c.mu.Unlock()
		return
	}
	up, chunks := c.beginUpload(rec)
	c.mu.Unlock()

	go func() { _ = c.upload(rec, up, chunks) }()
}

// beginUpload allocates the next index and registers the upload. Callers
// hold c.mu.
func (c *Coordinator) beginUpload(rec *recording) (*Upload, [][]byte) {
	chunks := make([][]byte, len(rec.chunks))
	copy(chunks, rec.chunks)

	up := &Upload{SessionID: rec.id, Index: rec.next, Outcome: OutcomePending}
	rec.next++
	rec.tracked = append(rec.tracked, up)
	if len(rec.tracked) > c.maxTracked {
		// Eviction only stops tracking; the request keeps running and is
		// still part of the settle set.
		rec.tracked = rec.tracked[len(rec.tracked)-c.maxTracked:]
	}
	rec.pending.Add(1)
	return up, chunks
}

func (c *Coordinator) upload(rec *recording, up *Upload, chunks [][]byte) error {
	defer rec.pending.Done()

	payload, err := c.enc.Encode(chunks)
	if err != nil {
		c.settle(up, OutcomeFailed)
		c.log.Warn("encode chunk", "session_id", rec.id, "index", up.Index, "error", err)
		return journal.Wrap(journal.KindChunkUploadFailed, "encode", err)
	}

	res, err := c.tr.SubmitChunk(rec.ctx, rec.id, up.Index, payload)
	if err != nil {
		c.settle(up, OutcomeFailed)
		c.log.Debug("chunk upload failed", "session_id", rec.id, "index", up.Index, "error", err)
		return journal.Wrap(journal.KindChunkUploadFailed, "submit chunk", err)
	}

	c.mu.Lock()
	up.Outcome = OutcomeSucceeded
	up.Size = len(payload.Data)
	text := strings.TrimSpace(res.Transcript)
	apply := c.rec == rec &&
		c.state == StateRecording &&
		(res.SessionID == "" || res.SessionID == rec.id) &&
		text != "" &&
		up.Index > rec.shown
	if apply {
		rec.shown = up.Index
		c.preview = text
	}
	c.mu.Unlock()

	if !apply {
		c.log.Debug("preview ignored", "session_id", rec.id, "index", up.Index)
		return nil
	}
	c.publish(Event{Kind: EventPreview, SessionID: rec.id, Text: text})
	return nil
}

func (c *Coordinator) settle(up *Upload, o Outcome) {
	c.mu.Lock()
	up.Outcome = o
	c.mu.Unlock()
}

func (c *Coordinator) publish(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}

func wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
