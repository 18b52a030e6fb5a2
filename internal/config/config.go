// Package config loads client settings from defaults, an optional YAML file
// and LUNORI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LUNORI_SERVER_URL.
const EnvPrefix = "LUNORI"

// Settings is the full client configuration.
type Settings struct {
	Server  ServerSettings  `mapstructure:"server"`
	Capture CaptureSettings `mapstructure:"capture"`
	Search  SearchSettings  `mapstructure:"search"`
	Drafts  DraftSettings   `mapstructure:"drafts"`
	Log     LogSettings     `mapstructure:"log"`
}

// ServerSettings locates the backend.
type ServerSettings struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CaptureSettings selects the microphone and slicing.
type CaptureSettings struct {
	Device     string        `mapstructure:"device"`
	SampleRate uint32        `mapstructure:"sample_rate"`
	Channels   uint32        `mapstructure:"channels"`
	Timeslice  time.Duration `mapstructure:"timeslice"`
}

// SearchSettings tunes the entry search.
type SearchSettings struct {
	HydrateConcurrency int `mapstructure:"hydrate_concurrency"`
}

// DraftSettings locates the draft database.
type DraftSettings struct {
	Path string `mapstructure:"path"`
}

// LogSettings configures the file logger.
type LogSettings struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// Dir is the per-user data directory, ~/.lunori.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lunori"
	}
	return filepath.Join(home, ".lunori")
}

func setDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("server.url", "http://127.0.0.1:8000")
	v.SetDefault("server.timeout", 60*time.Second)
	v.SetDefault("capture.device", "")
	v.SetDefault("capture.sample_rate", 16000)
	v.SetDefault("capture.channels", 1)
	v.SetDefault("capture.timeslice", 3*time.Second)
	v.SetDefault("search.hydrate_concurrency", 4)
	v.SetDefault("drafts.path", filepath.Join(dir, "drafts.sqlite"))
	v.SetDefault("log.path", filepath.Join(dir, "lunori.log"))
	v.SetDefault("log.level", "info")
}

// Load reads settings. An explicit path must exist; otherwise config.yaml
// is looked up in the data directory and the working directory, and a
// missing file means defaults.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	s.Drafts.Path = expandHome(s.Drafts.Path)
	s.Log.Path = expandHome(s.Log.Path)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the client cannot run with.
func (s *Settings) Validate() error {
	var errs []error

	u, err := url.Parse(s.Server.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("server.url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("server.url: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("server.url: missing host"))
	}
	if s.Server.Timeout <= 0 {
		errs = append(errs, errors.New("server.timeout must be positive"))
	}
	if s.Capture.SampleRate < 8000 || s.Capture.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d out of range [8000,192000]", s.Capture.SampleRate))
	}
	if s.Capture.Channels != 1 && s.Capture.Channels != 2 {
		errs = append(errs, fmt.Errorf("capture.channels must be 1 or 2, got %d", s.Capture.Channels))
	}
	if s.Capture.Timeslice < 250*time.Millisecond {
		errs = append(errs, fmt.Errorf("capture.timeslice %s shorter than 250ms", s.Capture.Timeslice))
	}
	if s.Search.HydrateConcurrency < 1 {
		errs = append(errs, errors.New("search.hydrate_concurrency must be at least 1"))
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q unknown", s.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
