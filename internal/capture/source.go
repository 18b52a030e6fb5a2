// Package capture records the microphone through miniaudio (malgo) and
// delivers 16-bit little-endian PCM in fixed timeslices.
package capture

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/logging"
	"github.com/Winstonlu01/Lunori/internal/session"
)

// Config selects the device and format.
type Config struct {
	// Device is a device name, a decoded device id, or "" for the system
	// default.
	Device     string
	SampleRate uint32
	Channels   uint32
	Timeslice  time.Duration
}

// DefaultConfig is 16 kHz mono in 3 second slices.
var DefaultConfig = Config{SampleRate: 16000, Channels: 1, Timeslice: 3 * time.Second}

// ErrDeviceNotFound means no capture device matched Config.Device.
var ErrDeviceNotFound = errors.New("capture device not found")

// Device describes one capture device.
type Device struct {
	Index   int
	Name    string
	ID      string
	Default bool
}

// Source opens malgo capture devices. It implements session.Source.
type Source struct {
	log *slog.Logger

	mu  sync.Mutex
	cfg Config
}

// NewSource returns a source for cfg. Zero fields take DefaultConfig values.
func NewSource(cfg Config, log *slog.Logger) *Source {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultConfig.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = DefaultConfig.Channels
	}
	if cfg.Timeslice == 0 {
		cfg.Timeslice = DefaultConfig.Timeslice
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Source{cfg: cfg, log: log.With("component", "capture")}
}

// SetDevice changes the device used by the next Open.
func (s *Source) SetDevice(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Device = name
}

// Config returns the effective configuration.
func (s *Source) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func backend() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

func (s *Source) initContext() (*malgo.AllocatedContext, error) {
	return malgo.InitContext([]malgo.Backend{backend()}, malgo.ContextConfig{}, func(msg string) {
		s.log.Debug("miniaudio", "message", strings.TrimSpace(msg))
	})
}

// Open starts capturing. Every failure is a capture-unavailable error.
func (s *Source) Open(ctx context.Context) (session.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := s.Config()
	mctx, err := s.initContext()
	if err != nil {
		return nil, journal.Wrap(journal.KindCaptureUnavailable, "init audio context", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = want.Channels
	cfg.SampleRate = want.SampleRate
	cfg.Alsa.NoMMap = 1

	if want.Device != "" {
		infos, err := mctx.Devices(malgo.Capture)
		if err != nil {
			_ = mctx.Uninit()
			mctx.Free()
			return nil, journal.Wrap(journal.KindCaptureUnavailable, "list devices", err)
		}
		info, err := selectDevice(infos, want.Device)
		if err != nil {
			_ = mctx.Uninit()
			mctx.Free()
			return nil, journal.Wrap(journal.KindCaptureUnavailable, "select device", err)
		}
		cfg.Capture.DeviceID = info.ID.Pointer()
	}

	st := newStream(want.Timeslice, s.log)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) { st.write(in) },
		Stop: st.deviceStopped,
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, journal.Wrap(journal.KindCaptureUnavailable, "init device", err)
	}
	st.dev = &malgoDevice{dev: dev, ctx: mctx}

	if err := dev.Start(); err != nil {
		st.dev.Uninit()
		return nil, journal.Wrap(journal.KindCaptureUnavailable, "start device", err)
	}
	st.start()

	s.log.Info("capture started", "device", want.Device, "rate", dev.SampleRate(),
		"channels", want.Channels, "timeslice", want.Timeslice)
	return st, nil
}

// malgoDevice owns a device and the context it was created in.
type malgoDevice struct {
	dev *malgo.Device
	ctx *malgo.AllocatedContext
}

func (d *malgoDevice) Start() error { return d.dev.Start() }
func (d *malgoDevice) Stop() error  { return d.dev.Stop() }

func (d *malgoDevice) Uninit() {
	d.dev.Uninit()
	_ = d.ctx.Uninit()
	d.ctx.Free()
}

// Devices lists the capture devices.
func (s *Source) Devices() ([]Device, error) {
	mctx, err := s.initContext()
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}
	out := make([]Device, 0, len(infos))
	for i := range infos {
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		out = append(out, Device{
			Index:   i,
			Name:    infos[i].Name(),
			ID:      decodeID(infos[i].ID.String()),
			Default: infos[i].IsDefault == 1,
		})
	}
	return out, nil
}

// selectDevice matches name against device names first, then decoded ids.
func selectDevice(infos []malgo.DeviceInfo, name string) (*malgo.DeviceInfo, error) {
	for i := range infos {
		if infos[i].Name() == name {
			return &infos[i], nil
		}
	}
	for i := range infos {
		if decodeID(infos[i].ID.String()) == name {
			return &infos[i], nil
		}
	}
	for i := range infos {
		if strings.Contains(infos[i].Name(), name) {
			return &infos[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// decodeID turns miniaudio's hex device id into its printable form, keeping
// the raw id when it does not decode.
func decodeID(id string) string {
	b, err := hex.DecodeString(id)
	if err != nil {
		return id
	}
	return strings.TrimRight(string(b), "\x00")
}
