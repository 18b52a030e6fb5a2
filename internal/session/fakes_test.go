package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Winstonlu01/Lunori/internal/audio"
	"github.com/Winstonlu01/Lunori/internal/journal"
)

// callLog records the order of collaborator calls across goroutines.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

func (l *callLog) index(entry string) int {
	return slices.Index(l.snapshot(), entry)
}

func (l *callLog) count(entry string) int {
	n := 0
	for _, e := range l.snapshot() {
		if e == entry {
			n++
		}
	}
	return n
}

// fakeStream is a capture stream driven by the test.
type fakeStream struct {
	log      *callLog
	frags    chan Fragment
	released chan struct{}
	tail     []byte
	// holdFlush, when set, delays the flush fragment until it is closed.
	holdFlush chan struct{}

	mu     sync.Mutex
	closed bool
}

func newFakeStream(log *callLog) *fakeStream {
	return &fakeStream{
		log:      log,
		frags:    make(chan Fragment, 256),
		released: make(chan struct{}),
	}
}

func (s *fakeStream) Fragments() <-chan Fragment { return s.frags }
func (s *fakeStream) Released() <-chan struct{}  { return s.released }

// emit delivers a regular timeslice fragment.
func (s *fakeStream) emit(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.frags <- Fragment{Data: data}
}

func (s *fakeStream) RequestData() {
	s.log.add("request-data")
	send := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.log.add("flush-delivered")
		s.frags <- Fragment{Data: s.tail, Flush: true}
	}
	if s.holdFlush == nil {
		send()
		return
	}
	go func() {
		<-s.holdFlush
		send()
	}()
}

func (s *fakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.log.add("stop")
	close(s.frags)
	close(s.released)
}

// fakeSource hands out prepared streams in order.
type fakeSource struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
	opened  int
	// gate, when set, blocks Open until it is closed. entered is signalled
	// once Open is waiting on it.
	gate    chan struct{}
	entered chan struct{}
}

func (s *fakeSource) Open(context.Context) (Stream, error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		if s.entered != nil {
			s.entered <- struct{}{}
		}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	st := s.streams[s.opened]
	s.opened++
	return st, nil
}

// fakeTranscriber records submissions and lets tests gate them.
type fakeTranscriber struct {
	log *callLog

	mu          sync.Mutex
	payloads    map[string]map[int][]byte
	gates       map[int]chan struct{}
	text        func(sessionID string, index int) string
	chunkErr    func(index int) error
	finalizeErr error
	finalized   []string
}

func newFakeTranscriber(log *callLog) *fakeTranscriber {
	return &fakeTranscriber{
		log:      log,
		payloads: make(map[string]map[int][]byte),
		gates:    make(map[int]chan struct{}),
	}
}

func (f *fakeTranscriber) gate(index int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[index] = ch
	return ch
}

func (f *fakeTranscriber) SubmitChunk(_ context.Context, sessionID string, index int, p audio.Payload) (journal.ChunkResult, error) {
	f.mu.Lock()
	if f.payloads[sessionID] == nil {
		f.payloads[sessionID] = make(map[int][]byte)
	}
	f.payloads[sessionID][index] = p.Data
	gate := f.gates[index]
	f.mu.Unlock()
	f.log.add("chunk-start:%d", index)

	if gate != nil {
		if s.entered != nil {
			s.entered <- struct{}{}
		}
		<-gate
	}
	defer f.log.add("chunk-done:%d", index)

	if f.chunkErr != nil {
		if err := f.chunkErr(index); err != nil {
			return journal.ChunkResult{}, err
		}
	}
	text := ""
	if f.text != nil {
		text = f.text(sessionID, index)
	}
	return journal.ChunkResult{SessionID: sessionID, Index: index, Transcript: text}, nil
}

func (f *fakeTranscriber) Finalize(_ context.Context, sessionID string) (journal.FinalizeResult, error) {
	f.log.add("finalize")
	f.mu.Lock()
	f.finalized = append(f.finalized, sessionID)
	f.mu.Unlock()
	if f.finalizeErr != nil {
		return journal.FinalizeResult{}, f.finalizeErr
	}
	return journal.FinalizeResult{
		SessionID:     sessionID,
		Transcript:    "final words here",
		WordCount:     3,
		AudioFilename: "2026-10-17T10-00-00.wav",
	}, nil
}

func (f *fakeTranscriber) payload(sessionID string, index int) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payloads[sessionID][index]
	return p, ok
}

func (f *fakeTranscriber) submissions(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads[sessionID])
}
