// Package audio turns captured S16LE fragments into upload payloads and
// meter levels.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Payload is one encoded upload body.
type Payload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Format describes the PCM stream the capture source produces.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is 16 kHz mono, what the transcription service prefers.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1}

const bitDepth = 16

// WAVEncoder encodes the cumulative fragment sequence as a single WAV file.
type WAVEncoder struct {
	Format Format
}

// NewWAVEncoder returns an encoder for f, defaulting zero fields.
func NewWAVEncoder(f Format) *WAVEncoder {
	if f.SampleRate == 0 {
		f.SampleRate = DefaultFormat.SampleRate
	}
	if f.Channels == 0 {
		f.Channels = DefaultFormat.Channels
	}
	return &WAVEncoder{Format: f}
}

// Encode concatenates chunks in order and wraps them in a WAV container.
func (e *WAVEncoder) Encode(chunks [][]byte) (Payload, error) {
	pcm := Concat(chunks)

	out := &memFile{}
	enc := wav.NewEncoder(out, e.Format.SampleRate, bitDepth, e.Format.Channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           samplesFromPCM(pcm),
		Format:         &goaudio.Format{SampleRate: e.Format.SampleRate, NumChannels: e.Format.Channels},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return Payload{}, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Payload{}, fmt.Errorf("close wav: %w", err)
	}

	return Payload{Data: out.buf, Filename: "live.wav", ContentType: "audio/wav"}, nil
}

// RawEncoder sends the concatenated PCM without a container.
type RawEncoder struct{}

// Encode concatenates chunks in order.
func (RawEncoder) Encode(chunks [][]byte) (Payload, error) {
	return Payload{Data: Concat(chunks), Filename: "live.pcm", ContentType: "application/octet-stream"}, nil
}

// Concat joins chunks in order into a fresh slice.
func Concat(chunks [][]byte) []byte {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// samplesFromPCM reads little-endian 16-bit samples; a trailing odd byte is
// ignored.
func samplesFromPCM(pcm []byte) []int {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return samples
}

// memFile is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		m.buf = append(m.buf, make([]byte, need-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
