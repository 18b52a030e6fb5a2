package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Winstonlu01/Lunori/internal/session"
)

const fragmentBuffer = 32

// device is the part of a malgo device a stream drives.
type device interface {
	Start() error
	Stop() error
	Uninit()
}

// stream slices the device's sample callbacks into fixed-timeslice
// fragments. It implements session.Stream.
type stream struct {
	log       *slog.Logger
	timeslice time.Duration
	dev       device

	frags    chan session.Fragment
	released chan struct{}
	done     chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	pending []byte
	closed  bool
}

func newStream(timeslice time.Duration, log *slog.Logger) *stream {
	return &stream{
		log:       log,
		timeslice: timeslice,
		frags:     make(chan session.Fragment, fragmentBuffer),
		released:  make(chan struct{}),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
}

// start launches the timeslice ticker. A zero timeslice only emits on
// RequestData and Stop.
func (s *stream) start() {
	if s.timeslice <= 0 {
		close(s.loopDone)
		return
	}
	go func() {
		defer close(s.loopDone)
		t := time.NewTicker(s.timeslice)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.emit(false)
			case <-s.done:
				return
			}
		}
	}()
}

// write buffers samples from the device callback.
func (s *stream) write(samples []byte) {
	if len(samples) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, samples...)
}

// emit hands the buffered samples to the consumer. A regular tick with
// nothing buffered emits nothing; a flush always emits.
func (s *stream) emit(flush bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.pending) == 0 && !flush {
		return
	}
	data := s.pending
	s.pending = nil
	s.frags <- session.Fragment{Data: data, Flush: flush}
}

func (s *stream) Fragments() <-chan session.Fragment { return s.frags }

func (s *stream) Released() <-chan struct{} { return s.released }

// RequestData emits whatever has been captured since the last fragment,
// marked as the flush fragment.
func (s *stream) RequestData() { s.emit(true) }

// Stop halts the ticker, releases the device, emits any samples captured
// after the last fragment and closes the fragment channel.
func (s *stream) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		<-s.loopDone

		if s.dev != nil {
			if err := s.dev.Stop(); err != nil {
				s.log.Warn("stop capture device", "error", err)
			}
			s.dev.Uninit()
		}

		s.mu.Lock()
		if len(s.pending) > 0 {
			s.frags <- session.Fragment{Data: s.pending}
			s.pending = nil
		}
		s.closed = true
		close(s.frags)
		s.mu.Unlock()

		close(s.released)
		s.log.Debug("capture released")
	})
}

// deviceStopped is the malgo stop callback. It fires on Stop as well as
// when the device disappears.
func (s *stream) deviceStopped() {
	select {
	case <-s.done:
	default:
		s.log.Warn("capture device stopped unexpectedly")
	}
}
