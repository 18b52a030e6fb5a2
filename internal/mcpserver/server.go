// Package mcpserver exposes the journal to MCP clients over stdio: entry
// search, entry detail and the derived stats.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Winstonlu01/Lunori/internal/entries"
	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/logging"
)

const defaultLimit = 20

// DefaultMaxAge is how long a fetched entry list is served before the next
// tool call reloads it.
const DefaultMaxAge = time.Minute

// Journal is the read side of the entry cache.
type Journal interface {
	Loaded() bool
	FetchedAt() time.Time
	Refresh(ctx context.Context) error
	Search(ctx context.Context, query string) ([]journal.Entry, error)
	Detail(ctx context.Context, id string) (journal.EntryDetail, error)
	Stats() entries.Aggregates
}

// Server serves journal tools.
type Server struct {
	j      Journal
	log    *slog.Logger
	mcp    *server.MCPServer
	maxAge time.Duration
	now    func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMaxAge sets how old the entry list may get before a tool call
// reloads it.
func WithMaxAge(d time.Duration) Option { return func(s *Server) { s.maxAge = d } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New registers the journal tools.
func New(j Journal, version string, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{
		j:      j,
		log:    log.With("component", "mcp"),
		mcp:    server.NewMCPServer("lunori", version, server.WithToolCapabilities(false)),
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Search journal entries. Every whitespace-separated term must appear in the transcript or the image tags. An empty query lists all entries, newest first."),
		mcp.WithString("query", mcp.Description("Search terms")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 20)")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Return one journal entry with its transcript, mood, emotions and images."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id, e.g. 2026-10-17T09-30-00")),
	), s.getEntry)

	s.mcp.AddTool(mcp.NewTool("journal_stats",
		mcp.WithDescription("Return the day streak, entry count, average mood and this week's top emotions."),
	), s.journalStats)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("mcp server starting")
	return server.ServeStdio(s.mcp)
}

// ensureLoaded reloads the entry list when it was never fetched or is older
// than maxAge. A failed reload of a stale list keeps serving the old one.
func (s *Server) ensureLoaded(ctx context.Context) error {
	loaded := s.j.Loaded()
	if loaded && s.now().Sub(s.j.FetchedAt()) < s.maxAge {
		return nil
	}
	err := s.j.Refresh(ctx)
	if err != nil && loaded {
		s.log.Warn("reload entries failed, serving previous list", "error", err)
		return nil
	}
	return err
}

type entrySummary struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Words      int       `json:"words"`
	Mood       *int      `json:"mood,omitempty"`
	TopEmotion string    `json:"top_emotion,omitempty"`
	Images     int       `json:"image_count"`
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	limit := req.GetInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}

	if err := s.ensureLoaded(ctx); err != nil {
		return mcp.NewToolResultError(journal.Message(err)), nil
	}
	found, err := s.j.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(journal.Message(err)), nil
	}
	s.log.Debug("search_entries", "query", query, "matches", len(found))

	out := struct {
		Total   int            `json:"total"`
		Entries []entrySummary `json:"entries"`
	}{Total: len(found), Entries: []entrySummary{}}
	for i, e := range found {
		if i == limit {
			break
		}
		out.Entries = append(out.Entries, entrySummary{
			ID: e.ID, CreatedAt: e.CreatedAt, Words: e.WordCount, Mood: e.Mood,
			TopEmotion: e.TopEmotion(), Images: e.ImageCount,
		})
	}
	return jsonResult(out)
}

func (s *Server) getEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return mcp.NewToolResultError(journal.Message(err)), nil
	}
	d, err := s.j.Detail(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(journal.Message(err)), nil
	}
	return jsonResult(d)
}

func (s *Server) journalStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return mcp.NewToolResultError(journal.Message(err)), nil
	}
	st := s.j.Stats()
	out := struct {
		Streak      int                  `json:"streak_days"`
		Total       int                  `json:"total_entries"`
		AverageMood *float64             `json:"average_mood,omitempty"`
		Weekly      []entries.LabelCount `json:"weekly_top_emotions"`
	}{Streak: st.Streak, Total: st.Total, AverageMood: st.AverageMood, Weekly: st.Ranked()}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
