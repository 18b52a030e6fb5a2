// Command lunori is a voice journaling client: it records, transcribes
// through the Lunori backend and browses the saved entries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Winstonlu01/Lunori/internal/app"
	"github.com/Winstonlu01/Lunori/internal/attachments"
	"github.com/Winstonlu01/Lunori/internal/audio"
	"github.com/Winstonlu01/Lunori/internal/capture"
	"github.com/Winstonlu01/Lunori/internal/config"
	"github.com/Winstonlu01/Lunori/internal/draft"
	"github.com/Winstonlu01/Lunori/internal/entries"
	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/logging"
	"github.com/Winstonlu01/Lunori/internal/remote"
	"github.com/Winstonlu01/Lunori/internal/session"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "lunori:", journal.Message(err))
		os.Exit(1)
	}
}

// client holds what every subcommand shares once flags are parsed.
type client struct {
	configPath string
	serverURL  string

	settings *config.Settings
	log      *slog.Logger
	closeLog func() error
	remote   *remote.Client
	cache    *entries.Cache
}

func rootCommand() *cobra.Command {
	c := &client{}

	root := &cobra.Command{
		Use:           "lunori",
		Short:         "Voice journaling client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTUI(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.lunori/config.yaml)")
	root.PersistentFlags().StringVar(&c.serverURL, "server", "", "backend URL, overrides server.url")

	root.AddCommand(
		transcribeCommand(c),
		draftsCommand(c),
		entriesCommand(c),
		showCommand(c),
		searchCommand(c),
		statsCommand(c),
		deleteCommand(c),
		devicesCommand(c),
		modelCommand(c),
		mcpCommand(c),
	)
	return root
}

func (c *client) setup() error {
	s, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.serverURL != "" {
		s.Server.URL = c.serverURL
		if err := s.Validate(); err != nil {
			return err
		}
	}
	c.settings = s

	log, closeLog, err := logging.NewFileLogger(s.Log.Path, "lunori", logging.ParseLevel(s.Log.Level))
	if err != nil {
		return err
	}
	c.log, c.closeLog = log, closeLog

	c.remote, err = remote.New(s.Server.URL, remote.WithTimeout(s.Server.Timeout), remote.WithLogger(log))
	if err != nil {
		return err
	}
	c.cache = entries.NewCache(c.remote,
		entries.WithLogger(log),
		entries.WithHydrateConcurrency(s.Search.HydrateConcurrency),
	)
	return nil
}

func (c *client) close() error {
	if c.closeLog == nil {
		return nil
	}
	return c.closeLog()
}

func (c *client) captureSource() *capture.Source {
	cs := c.settings.Capture
	return capture.NewSource(capture.Config{
		Device:     cs.Device,
		SampleRate: cs.SampleRate,
		Channels:   cs.Channels,
		Timeslice:  cs.Timeslice,
	}, c.log)
}

func (c *client) openDrafts() (*draft.Store, error) {
	return draft.Open(c.settings.Drafts.Path)
}

func (c *client) runTUI(ctx context.Context) error {
	src := c.captureSource()
	enc := audio.NewWAVEncoder(audio.Format{
		SampleRate: int(c.settings.Capture.SampleRate),
		Channels:   int(c.settings.Capture.Channels),
	})
	coord := session.New(src, c.remote, session.WithEncoder(enc), session.WithLogger(c.log))
	defer coord.Abort()

	drafts, err := c.openDrafts()
	if err != nil {
		return err
	}
	defer drafts.Close()

	m := app.New(app.Deps{
		Ctx:      ctx,
		Recorder: coord,
		Journal:  c.cache,
		Staging:  attachments.NewTracker(c.remote, c.log),
		Drafts:   drafts,
		Devices:  src,
		Health:   c.remote,
		Server:   c.remote.BaseURL(),
		Log:      c.log,
	})

	c.log.Info("tui starting", "version", version, "server", c.remote.BaseURL())
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
