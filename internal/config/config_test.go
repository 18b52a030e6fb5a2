package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", s.Server.URL)
	assert.Equal(t, 60*time.Second, s.Server.Timeout)
	assert.Equal(t, uint32(16000), s.Capture.SampleRate)
	assert.Equal(t, uint32(1), s.Capture.Channels)
	assert.Equal(t, 3*time.Second, s.Capture.Timeslice)
	assert.Equal(t, 4, s.Search.HydrateConcurrency)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "drafts.sqlite", filepath.Base(s.Drafts.Path))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  url: http://journal.local:9000
  timeout: 15s
capture:
  device: USB Microphone
  timeslice: 2s
search:
  hydrate_concurrency: 8
drafts:
  path: ~/journal/drafts.sqlite
log:
  level: debug
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://journal.local:9000", s.Server.URL)
	assert.Equal(t, 15*time.Second, s.Server.Timeout)
	assert.Equal(t, "USB Microphone", s.Capture.Device)
	assert.Equal(t, 2*time.Second, s.Capture.Timeslice)
	assert.Equal(t, uint32(16000), s.Capture.SampleRate, "unset keys keep defaults")
	assert.Equal(t, 8, s.Search.HydrateConcurrency)
	assert.Equal(t, "debug", s.Log.Level)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "journal", "drafts.sqlite"), s.Drafts.Path)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  url: http://from-file:8000\n")
	t.Setenv("LUNORI_SERVER_URL", "https://from-env.example")
	t.Setenv("LUNORI_CAPTURE_SAMPLE_RATE", "48000")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example", s.Server.URL)
	assert.Equal(t, uint32(48000), s.Capture.SampleRate)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Settings {
		return Settings{
			Server:  ServerSettings{URL: "http://localhost:8000", Timeout: time.Second},
			Capture: CaptureSettings{SampleRate: 16000, Channels: 1, Timeslice: time.Second},
			Search:  SearchSettings{HydrateConcurrency: 1},
			Log:     LogSettings{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"bad scheme", func(s *Settings) { s.Server.URL = "ftp://host" }},
		{"no host", func(s *Settings) { s.Server.URL = "http://" }},
		{"zero timeout", func(s *Settings) { s.Server.Timeout = 0 }},
		{"low rate", func(s *Settings) { s.Capture.SampleRate = 100 }},
		{"three channels", func(s *Settings) { s.Capture.Channels = 3 }},
		{"tiny timeslice", func(s *Settings) { s.Capture.Timeslice = 10 * time.Millisecond }},
		{"no concurrency", func(s *Settings) { s.Search.HydrateConcurrency = 0 }},
		{"bad level", func(s *Settings) { s.Log.Level = "loud" }},
	}

	s := valid()
	require.NoError(t, s.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}
