package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Winstonlu01/Lunori/internal/attachments"
	"github.com/Winstonlu01/Lunori/internal/capture"
	"github.com/Winstonlu01/Lunori/internal/draft"
	"github.com/Winstonlu01/Lunori/internal/entries"
	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/logging"
	"github.com/Winstonlu01/Lunori/internal/session"
	"github.com/Winstonlu01/Lunori/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// Recorder runs recording sessions.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (journal.FinalizeResult, error)
	Abort()
	Events() <-chan session.Event
}

// Journal is the entry cache as the TUI uses it.
type Journal interface {
	Refresh(ctx context.Context) error
	Entries() []journal.Entry
	Stats() entries.Aggregates
	Search(ctx context.Context, query string) ([]journal.Entry, error)
	Detail(ctx context.Context, id string) (journal.EntryDetail, error)
	Delete(ctx context.Context, id string) error
	Save(ctx context.Context, req journal.SaveRequest) (string, error)
}

// Staging holds the images staged for the next save.
type Staging interface {
	Add(ctx context.Context, path string) (journal.Image, error)
	Remove(i int) (journal.Image, error)
	Items() []journal.Image
	Load(images []journal.Image)
	Commit(ctx context.Context, s attachments.Saver, audioFilename, transcript string) (string, error)
}

// Drafts persists the unsaved transcript.
type Drafts interface {
	Put(d draft.Draft) (draft.Draft, error)
	Latest() (*draft.Draft, error)
	List() ([]draft.Draft, error)
	Delete(id string) error
}

// Devices lists and selects capture devices.
type Devices interface {
	Devices() ([]capture.Device, error)
	SetDevice(name string)
}

// Health probes the backend.
type Health interface {
	Health(ctx context.Context) (string, error)
}

// Deps are the collaborators of the TUI. Drafts, Devices and Health may be
// nil.
type Deps struct {
	Ctx      context.Context
	Recorder Recorder
	Journal  Journal
	Staging  Staging
	Drafts   Drafts
	Devices  Devices
	Health   Health
	Server   string
	Log      *slog.Logger
}

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusEntries PanelFocus = iota
	FocusTranscript
)

type inputKind int

const (
	inputNone inputKind = iota
	inputSearch
	inputAttach
)

// Model is the root bubbletea model for the Lunori TUI.
type Model struct {
	deps Deps
	ctx  context.Context
	log  *slog.Logger

	// Backend state
	connected        bool
	connError        string
	serverStatus     string
	reconnectAttempt int

	// Recording state
	state   session.State
	preview string
	level   float32

	// Devices
	devices     []capture.Device
	deviceIndex int
	deviceName  string

	// Draft waiting to be saved
	draft     *draft.Draft
	staged    []journal.Image
	stagedSel int
	saving    bool

	// Entries
	all           []journal.Entry
	list          []journal.Entry
	stats         entries.Aggregates
	loaded        bool
	query         string
	selected      int
	detail        *journal.EntryDetail
	pendingDelete string

	// UI state
	focusedPanel PanelFocus
	width        int
	height       int
	scroll       int
	input        inputKind
	inputText    string

	// Errors and notices
	errorMessage   string
	errorTransient bool
	notice         string
}

// New creates a Model over deps.
func New(deps Deps) Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	return Model{
		deps:         deps,
		ctx:          deps.Ctx,
		log:          deps.Log.With("component", "tui"),
		state:        session.StateIdle,
		focusedPanel: FocusEntries,
		serverStatus: "connecting",
	}
}

// Init probes the backend, restores the draft, lists devices and starts
// listening for recorder events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		healthCmd(m.ctx, m.deps.Health),
		waitEventCmd(m.deps.Recorder),
		loadDraftCmd(m.deps.Drafts),
		devicesCmd(m.deps.Devices),
	)
}

func healthCmd(ctx context.Context, h Health) tea.Cmd {
	return func() tea.Msg {
		if h == nil {
			return HealthMsg{Status: "ok"}
		}
		status, err := h.Health(ctx)
		return HealthMsg{Status: status, Err: err}
	}
}

// waitEventCmd reads the next recorder event.
func waitEventCmd(r Recorder) tea.Cmd {
	if r == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-r.Events()
		if !ok {
			return nil
		}
		return SessionEventMsg{Event: ev}
	}
}

func loadDraftCmd(d Drafts) tea.Cmd {
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		latest, err := d.Latest()
		return DraftLoadedMsg{Draft: latest, Err: err}
	}
}

func storeDraftCmd(d Drafts, dr draft.Draft) tea.Cmd {
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		stored, err := d.Put(dr)
		return DraftStoredMsg{Draft: stored, Err: err}
	}
}

func listDraftsCmd(d Drafts) tea.Cmd {
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		list, err := d.List()
		return DraftsListedMsg{Drafts: list, Err: err}
	}
}

func devicesCmd(d Devices) tea.Cmd {
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		devs, err := d.Devices()
		return DevicesMsg{Devices: devs, Err: err}
	}
}

// entriesCmd snapshots the cache, refreshing it first when asked.
func entriesCmd(ctx context.Context, j Journal, refresh bool) tea.Cmd {
	return func() tea.Msg {
		if refresh {
			if err := j.Refresh(ctx); err != nil {
				return EntriesLoadedMsg{Entries: j.Entries(), Stats: j.Stats(), Err: err}
			}
		}
		return EntriesLoadedMsg{Entries: j.Entries(), Stats: j.Stats()}
	}
}

func searchCmd(ctx context.Context, j Journal, query string) tea.Cmd {
	return func() tea.Msg {
		found, err := j.Search(ctx, query)
		return SearchResultMsg{Query: query, Entries: found, Err: err}
	}
}

func detailCmd(ctx context.Context, j Journal, id string) tea.Cmd {
	return func() tea.Msg {
		d, err := j.Detail(ctx, id)
		return DetailLoadedMsg{Detail: d, Err: err}
	}
}

func deleteCmd(ctx context.Context, j Journal, id string) tea.Cmd {
	return func() tea.Msg {
		return DeletedMsg{ID: id, Err: j.Delete(ctx, id)}
	}
}

func startCmd(ctx context.Context, r Recorder) tea.Cmd {
	return func() tea.Msg {
		return StartedMsg{Err: r.Start(ctx)}
	}
}

func stopCmd(ctx context.Context, r Recorder) tea.Cmd {
	return func() tea.Msg {
		res, err := r.Stop(ctx)
		return StoppedMsg{Result: res, Err: err}
	}
}

func attachCmd(ctx context.Context, s Staging, path string) tea.Cmd {
	return func() tea.Msg {
		img, err := s.Add(ctx, path)
		return AttachedMsg{Image: img, Err: err}
	}
}

// saveCmd commits the draft with the staged images and drops the local
// draft once the entry exists.
func saveCmd(ctx context.Context, deps Deps, d draft.Draft) tea.Cmd {
	return func() tea.Msg {
		id, err := deps.Staging.Commit(ctx, deps.Journal, d.AudioFilename, d.Transcript)
		if id != "" && deps.Drafts != nil {
			if derr := deps.Drafts.Delete(d.ID); derr != nil {
				err = errors.Join(err, fmt.Errorf("delete draft: %w", derr))
			}
		}
		return SavedMsg{ID: id, Err: err}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a health probe with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return HealthTickMsg{}
	})
}

func (m *Model) fail(err error) tea.Cmd {
	m.errorMessage = journal.Message(err)
	m.errorTransient = true
	return clearTransientErrorCmd()
}

func (m *Model) say(text string) tea.Cmd {
	m.notice = text
	return clearTransientErrorCmd()
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		if m.input != inputNone {
			return m.handleInput(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case HealthMsg:
		if msg.Err != nil {
			m.connected = false
			m.connError = msg.Err.Error()
			m.serverStatus = "offline"
			m.log.Warn("backend unreachable", "error", msg.Err)
			return m, reconnectCmd(m.reconnectAttempt)
		}
		m.connected = true
		m.connError = ""
		m.reconnectAttempt = 0
		m.serverStatus = msg.Status
		return m, entriesCmd(m.ctx, m.deps.Journal, true)

	case HealthTickMsg:
		m.reconnectAttempt++
		return m, healthCmd(m.ctx, m.deps.Health)

	case EntriesLoadedMsg:
		m.all = msg.Entries
		m.stats = msg.Stats
		var cmd tea.Cmd
		if msg.Err != nil {
			cmd = m.fail(msg.Err)
		} else {
			m.loaded = true
		}
		if m.query != "" {
			return m, tea.Batch(cmd, searchCmd(m.ctx, m.deps.Journal, m.query))
		}
		m.setList(m.all)
		return m, cmd

	case SearchResultMsg:
		if msg.Query != m.query {
			return m, nil
		}
		if msg.Err != nil {
			return m, m.fail(msg.Err)
		}
		m.setList(msg.Entries)
		return m, nil

	case DetailLoadedMsg:
		if msg.Err != nil {
			return m, m.fail(msg.Err)
		}
		d := msg.Detail
		m.detail = &d
		m.scroll = 0
		return m, nil

	case SessionEventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, waitEventCmd(m.deps.Recorder))

	case StartedMsg:
		if msg.Err != nil {
			return m, m.fail(msg.Err)
		}
		m.state = session.StateRecording
		m.preview = ""
		m.detail = nil
		m.focusedPanel = FocusTranscript
		return m, nil

	case StoppedMsg:
		m.state = session.StateIdle
		m.level = 0
		if msg.Err != nil {
			m.preview = ""
			return m, m.fail(msg.Err)
		}
		d := draft.FromFinalize(msg.Result)
		m.preview = ""
		var notice tea.Cmd
		if prev := m.draft; prev != nil && prev.ID != d.ID {
			// The previous draft stays in the store with its own images.
			// Only images staged with no draft open carry over.
			m.setStaged(nil)
			notice = m.say("Kept draft " + prev.ID + ", press n to switch drafts")
		}
		d.Images = m.staged
		m.draft = &d
		store := storeDraftCmd(m.deps.Drafts, d)
		if notice != nil {
			return m, tea.Batch(notice, store)
		}
		return m, store

	case DraftLoadedMsg:
		if msg.Err != nil {
			return m, m.fail(fmt.Errorf("load draft: %w", msg.Err))
		}
		if msg.Draft != nil && m.draft == nil {
			m.draft = msg.Draft
			m.setStaged(msg.Draft.Images)
			return m, m.say("Restored unsaved draft")
		}
		return m, nil

	case DraftsListedMsg:
		if msg.Err != nil {
			return m, m.fail(fmt.Errorf("list drafts: %w", msg.Err))
		}
		if len(msg.Drafts) == 0 {
			return m, m.say("No unsaved drafts")
		}
		next := 0
		if m.draft != nil {
			for i, d := range msg.Drafts {
				if d.ID == m.draft.ID {
					next = (i + 1) % len(msg.Drafts)
					break
				}
			}
		}
		d := msg.Drafts[next]
		m.draft = &d
		m.detail = nil
		m.scroll = 0
		m.setStaged(d.Images)
		return m, m.say(fmt.Sprintf("Draft %d of %d", next+1, len(msg.Drafts)))

	case DraftStoredMsg:
		if msg.Err != nil {
			return m, m.fail(fmt.Errorf("store draft: %w", msg.Err))
		}
		if m.draft != nil && m.draft.ID == msg.Draft.ID {
			d := msg.Draft
			m.draft = &d
		}
		return m, nil

	case AttachedMsg:
		if msg.Err != nil {
			return m, m.fail(msg.Err)
		}
		m.staged = m.deps.Staging.Items()
		m.stagedSel = len(m.staged) - 1
		cmd := m.say("Attached " + msg.Image.Filename)
		if m.draft != nil {
			m.draft.Images = m.staged
			return m, tea.Batch(cmd, storeDraftCmd(m.deps.Drafts, *m.draft))
		}
		return m, cmd

	case SavedMsg:
		m.saving = false
		if msg.ID != "" {
			m.draft = nil
			m.staged = m.deps.Staging.Items()
			m.stagedSel = 0
		}
		var cmds []tea.Cmd
		if msg.Err != nil {
			cmds = append(cmds, m.fail(msg.Err))
		}
		if msg.ID != "" {
			if msg.Err == nil {
				cmds = append(cmds, m.say("Saved entry "+msg.ID))
			}
			cmds = append(cmds, entriesCmd(m.ctx, m.deps.Journal, false), loadDraftCmd(m.deps.Drafts))
		}
		return m, tea.Batch(cmds...)

	case DeletedMsg:
		if msg.Err != nil {
			return m, m.fail(msg.Err)
		}
		if m.detail != nil && m.detail.ID == msg.ID {
			m.detail = nil
		}
		return m, tea.Batch(m.say("Deleted "+msg.ID), entriesCmd(m.ctx, m.deps.Journal, false))

	case DevicesMsg:
		if msg.Err != nil {
			m.log.Warn("list devices", "error", msg.Err)
			return m, nil
		}
		m.devices = msg.Devices
		for i, d := range m.devices {
			if d.Default {
				m.deviceIndex = i
				m.deviceName = d.Name
			}
		}
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		m.notice = ""
		return m, nil
	}

	return m, nil
}

// handleEvent processes a recorder event and returns any resulting command.
func (m *Model) handleEvent(ev session.Event) tea.Cmd {
	switch ev.Kind {
	case session.EventState:
		m.state = ev.State
		if ev.State != session.StateRecording {
			m.level = 0
		}

	case session.EventPreview:
		if m.state == session.StateRecording {
			m.preview = ev.Text
		}

	case session.EventLevel:
		m.level = ev.Level

	case session.EventFinalized:
		m.preview = ""

	case session.EventError:
		// Stop returns the same error; StoppedMsg reports it.
		m.log.Debug("session error", "session_id", ev.SessionID, "error", ev.Err)
	}
	return nil
}

// setStaged replaces the staged set with images, in the tracker and on
// screen.
func (m *Model) setStaged(images []journal.Image) {
	m.deps.Staging.Load(images)
	m.staged = m.deps.Staging.Items()
	m.stagedSel = 0
}

func (m *Model) setList(list []journal.Entry) {
	m.list = list
	if m.selected >= len(m.list) {
		m.selected = max(0, len(m.list)-1)
	}
}

func (m Model) selectedEntry() (journal.Entry, bool) {
	if m.selected < 0 || m.selected >= len(m.list) {
		return journal.Entry{}, false
	}
	return m.list[m.selected], true
}

// handleInput edits the search or attach prompt.
func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyCtrlC:
		return m.quit()

	case KeyEsc:
		if m.input == inputSearch && m.query != "" {
			m.query = ""
			m.setList(m.all)
		}
		m.input = inputNone
		m.inputText = ""
		return m, nil

	case KeyEnter:
		kind, text := m.input, strings.TrimSpace(m.inputText)
		m.input = inputNone
		m.inputText = ""
		switch kind {
		case inputSearch:
			m.query = text
			m.selected = 0
			if text == "" {
				m.setList(m.all)
				return m, nil
			}
			return m, searchCmd(m.ctx, m.deps.Journal, text)
		case inputAttach:
			if text == "" {
				return m, nil
			}
			return m, attachCmd(m.ctx, m.deps.Staging, text)
		}
		return m, nil

	case KeyBackspace:
		if r := []rune(m.inputText); len(r) > 0 {
			m.inputText = string(r[:len(r)-1])
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		m.inputText += string(msg.Runes)
	case tea.KeySpace:
		m.inputText += " "
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.state == session.StateRecording && m.deps.Recorder != nil {
		m.deps.Recorder.Abort()
	}
	return m, tea.Quit
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != KeyDelete {
		m.pendingDelete = ""
	}

	switch key {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m.quit()

	case KeySpace:
		switch m.state {
		case session.StateRecording:
			m.state = session.StateFinalizing
			return m, stopCmd(m.ctx, m.deps.Recorder)
		case session.StateIdle:
			if !m.connected {
				return m, m.fail(errors.New("backend offline"))
			}
			return m, startCmd(m.ctx, m.deps.Recorder)
		}
		return m, nil

	case KeyTab:
		if m.focusedPanel == FocusEntries {
			m.focusedPanel = FocusTranscript
		} else {
			m.focusedPanel = FocusEntries
		}
		return m, nil

	case KeyJ:
		switch {
		case m.focusedPanel == FocusEntries && m.selected < len(m.list)-1:
			m.selected++
		case m.focusedPanel == FocusTranscript && m.stagedSel < len(m.staged)-1:
			m.stagedSel++
		}
		return m, nil

	case KeyK:
		switch {
		case m.focusedPanel == FocusEntries && m.selected > 0:
			m.selected--
		case m.focusedPanel == FocusTranscript && m.stagedSel > 0:
			m.stagedSel--
		}
		return m, nil

	case KeyUp:
		if m.scroll > 0 {
			m.scroll--
		}
		return m, nil

	case KeyDown:
		m.scroll++
		return m, nil

	case KeyEnter:
		if e, ok := m.selectedEntry(); ok && m.focusedPanel == FocusEntries {
			m.focusedPanel = FocusTranscript
			return m, detailCmd(m.ctx, m.deps.Journal, e.ID)
		}
		return m, nil

	case KeyEsc:
		m.detail = nil
		m.scroll = 0
		return m, nil

	case KeySearch:
		m.input = inputSearch
		m.inputText = m.query
		return m, nil

	case KeyAttach:
		m.input = inputAttach
		m.inputText = ""
		return m, nil

	case KeyUnstage:
		if len(m.staged) == 0 {
			return m, nil
		}
		if _, err := m.deps.Staging.Remove(min(m.stagedSel, len(m.staged)-1)); err != nil {
			return m, m.fail(err)
		}
		m.staged = m.deps.Staging.Items()
		m.stagedSel = max(0, min(m.stagedSel, len(m.staged)-1))
		if m.draft != nil {
			m.draft.Images = m.staged
			return m, storeDraftCmd(m.deps.Drafts, *m.draft)
		}
		return m, nil

	case KeySave:
		if m.draft == nil || m.saving {
			return m, nil
		}
		m.saving = true
		return m, saveCmd(m.ctx, m.deps, *m.draft)

	case KeyDelete:
		e, ok := m.selectedEntry()
		if !ok || m.focusedPanel != FocusEntries {
			return m, nil
		}
		if m.pendingDelete != e.ID {
			m.pendingDelete = e.ID
			return m, m.say("Press d again to delete " + e.ID)
		}
		m.pendingDelete = ""
		return m, deleteCmd(m.ctx, m.deps.Journal, e.ID)

	case KeyRefresh:
		return m, tea.Batch(entriesCmd(m.ctx, m.deps.Journal, true), devicesCmd(m.deps.Devices))

	case KeyNextDraft:
		if m.state != session.StateIdle || m.saving {
			return m, nil
		}
		return m, listDraftsCmd(m.deps.Drafts)

	case KeyCycleDevice:
		if len(m.devices) == 0 || m.deps.Devices == nil {
			return m, nil
		}
		if m.state != session.StateIdle {
			return m, m.say("Device changes apply when idle")
		}
		m.deviceIndex = (m.deviceIndex + 1) % len(m.devices)
		m.deviceName = m.devices[m.deviceIndex].Name
		m.deps.Devices.SetDevice(m.deviceName)
		return m, nil
	}

	return m, nil
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + stats(1) + status(1) + dividers(2) + prompt(1) + error(1) + footer(1)
	reserved := 8
	return max(5, m.height-reserved)
}

func (m Model) entriesPanelWidth() int {
	if m.width == 0 {
		return 36
	}
	return max(24, m.width*38/100)
}

func (m Model) transcriptPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.entriesPanelWidth()-1)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))
	sections := []string{
		m.renderHeader(),
		m.renderStats(),
		m.renderStatusBar(),
		divider,
		m.renderMainContent(),
		divider,
	}
	if m.input != inputNone {
		sections = append(sections, m.renderPrompt())
	}
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	} else if m.notice != "" {
		sections = append(sections, ui.NoticeStyle.Render(m.notice))
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("LUNORI")

	var server string
	if m.connected {
		server = ui.OnlineStyle.Render(" ● " + m.deps.Server)
	} else {
		server = ui.OfflineStyle.Render(" ○ " + m.serverStatus)
	}

	var device string
	if m.deviceName != "" {
		device = ui.DimStyle.Render("  mic: " + m.deviceName)
	}
	return title + server + device
}

func (m Model) renderStats() string {
	s := m.stats
	parts := []string{
		fmt.Sprintf("streak %dd", s.Streak),
		fmt.Sprintf("%d entries", s.Total),
	}
	if s.AverageMood != nil {
		parts = append(parts, fmt.Sprintf("avg mood %+.0f", *s.AverageMood))
	}
	if ranked := s.Ranked(); len(ranked) > 0 {
		parts = append(parts, fmt.Sprintf("week: %s ×%d", ranked[0].Label, ranked[0].Count))
	}
	return ui.StatusStyle.Render(strings.Join(parts, " · "))
}

func (m Model) renderStatusBar() string {
	var dot string
	switch m.state {
	case session.StateRecording:
		dot = ui.RecordingDotStyle.Render("● REC") + "  " + renderLevelMeter(m.level)
	case session.StateFinalizing:
		dot = ui.FinalizingDotStyle.Render("◐ FINALIZING")
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}
	if m.draft != nil {
		dot += ui.DimStyle.Render(fmt.Sprintf("  draft: %d words, %d images", m.draft.Words, len(m.staged)))
	} else if len(m.staged) > 0 {
		dot += ui.DimStyle.Render(fmt.Sprintf("  %d images staged", len(m.staged)))
	}
	return dot
}

func renderLevelMeter(level float32) string {
	const barLen = 10
	filled := min(int(level*barLen), barLen)

	var bar strings.Builder
	for i := 0; i < barLen; i++ {
		switch {
		case i >= filled:
			bar.WriteString(ui.LevelGrayStyle.Render("░"))
		case float32(i)/barLen > 0.6:
			bar.WriteString(ui.LevelYellowStyle.Render("█"))
		default:
			bar.WriteString(ui.LevelGreenStyle.Render("█"))
		}
	}
	return bar.String()
}

func (m Model) renderMainContent() string {
	leftW := m.entriesPanelWidth()
	height := m.contentHeight()

	left := strings.Split(m.renderEntriesPanel(leftW, height), "\n")
	right := strings.Split(m.renderRightPanel(m.transcriptPanelWidth(), height), "\n")
	divider := ui.DividerStyle.Render("│")

	rows := make([]string, 0, height)
	for i := 0; i < height; i++ {
		l := strings.Repeat(" ", leftW)
		if i < len(left) {
			l = padRight(left[i], leftW)
		}
		r := ""
		if i < len(right) {
			r = right[i]
		}
		rows = append(rows, l+divider+r)
	}
	return strings.Join(rows, "\n")
}

func (m Model) panelTitle(text string, panel PanelFocus) string {
	if m.focusedPanel == panel {
		return ui.PanelTitleActiveStyle.Render(text)
	}
	return ui.PanelTitleStyle.Render(text)
}

func (m Model) renderEntriesPanel(width, height int) string {
	title := fmt.Sprintf("ENTRIES (%d)", len(m.list))
	if m.query != "" {
		title = fmt.Sprintf("SEARCH %q (%d)", m.query, len(m.list))
	}
	lines := []string{m.panelTitle(title, FocusEntries)}

	switch {
	case !m.connected && !m.loaded:
		lines = append(lines, ui.DimStyle.Render("  Waiting for server..."))
	case len(m.list) == 0 && m.query != "":
		lines = append(lines, ui.DimStyle.Render("  No matches"))
	case len(m.list) == 0:
		lines = append(lines, ui.DimStyle.Render("  No entries yet"))
	default:
		visible := height - 1
		start := 0
		if m.selected >= visible {
			start = m.selected - visible + 1
		}
		for i := start; i < len(m.list) && len(lines) < height; i++ {
			lines = append(lines, truncateToWidth(m.entryLine(i), width))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) entryLine(i int) string {
	e := m.list[i]
	ts := e.CreatedAt.Local().Format("01-02 15:04")
	line := ts
	if l := e.TopEmotion(); l != "" {
		line += " " + l
	}
	if e.Mood != nil {
		line += " " + ui.MoodStyle(*e.Mood).Render(fmt.Sprintf("%+d", *e.Mood))
	}
	if e.ImageCount > 0 {
		line += ui.DimStyle.Render(fmt.Sprintf(" [%d img]", e.ImageCount))
	}
	if i == m.selected && m.focusedPanel == FocusEntries {
		if m.pendingDelete == e.ID {
			return ui.ErrorStyle.Render("x ") + line
		}
		return ui.SelectedStyle.Render("> ") + line
	}
	return "  " + line
}

func (m Model) renderRightPanel(width, height int) string {
	var title string
	var body []string
	textW := max(10, width-4)

	switch {
	case m.detail != nil:
		title = "ENTRY " + m.detail.ID
		body = detailLines(*m.detail, textW)
	case m.state == session.StateRecording:
		title = "LIVE TRANSCRIPT"
		if m.preview == "" {
			body = []string{ui.DimStyle.Render("Listening...")}
			break
		}
		for _, l := range wrapText(m.preview+"▌", textW) {
			body = append(body, ui.PreviewTextStyle.Render(l))
		}
	case m.state == session.StateFinalizing:
		title = "FINALIZING"
		body = []string{ui.DimStyle.Render("Uploading the full recording...")}
	case m.draft != nil:
		title = "DRAFT"
		body = append(body, ui.TimestampStyle.Render(m.draft.CreatedAt.Local().Format("Mon Jan 2 15:04")))
		body = append(body, wrapText(m.draft.Transcript, textW)...)
		body = append(body, "", ui.DimStyle.Render("s save · a attach image · x unstage selected · n next draft"))
	default:
		title = "TRANSCRIPT"
		body = []string{"", ui.DimStyle.Render("Press Space to start recording")}
	}

	if len(m.staged) > 0 && m.detail == nil {
		body = append(body, "", ui.PanelTitleStyle.Render(fmt.Sprintf("STAGED IMAGES (%d)", len(m.staged))))
		sel := -1
		if m.focusedPanel == FocusTranscript {
			sel = m.stagedSel
		}
		body = append(body, imageLines(m.staged, sel, textW)...)
	}

	start := min(m.scroll, max(0, len(body)-(height-1)))
	lines := []string{m.panelTitle(title, FocusTranscript)}
	for i := start; i < len(body) && len(lines) < height; i++ {
		lines = append(lines, "  "+body[i])
	}
	return strings.Join(lines, "\n")
}

func detailLines(d journal.EntryDetail, width int) []string {
	lines := []string{ui.TimestampStyle.Render(d.CreatedAt.Local().Format("Monday, Jan 2 2006 15:04"))}

	meta := fmt.Sprintf("%d words", d.WordCount)
	if d.Mood != nil {
		meta += " · mood " + ui.MoodStyle(*d.Mood).Render(fmt.Sprintf("%+d", *d.Mood))
	}
	lines = append(lines, meta)
	if len(d.TopEmotions) > 0 {
		var parts []string
		for _, e := range d.TopEmotions {
			parts = append(parts, fmt.Sprintf("%s %.0f%%", e.Label, e.Score*100))
		}
		lines = append(lines, ui.TagStyle.Render(strings.Join(parts, "  ")))
	}
	lines = append(lines, "")
	lines = append(lines, wrapText(d.Transcript, width)...)
	if len(d.Images) > 0 {
		lines = append(lines, "", ui.PanelTitleStyle.Render(fmt.Sprintf("IMAGES (%d)", len(d.Images))))
		lines = append(lines, imageLines(d.Images, -1, width)...)
	}
	return lines
}

// imageLines lists images; the one at sel, if any, is highlighted.
func imageLines(images []journal.Image, sel, width int) []string {
	var lines []string
	for i, im := range images {
		line := fmt.Sprintf("[%d] %s", i+1, im.Filename)
		if i == sel {
			line = ui.SelectedStyle.Render("> " + line)
		}
		lines = append(lines, line)
		if im.Caption != "" {
			for _, l := range wrapText(im.Caption, max(10, width-4)) {
				lines = append(lines, "    "+ui.DimStyle.Render(l))
			}
		}
		if len(im.Tags) > 0 {
			lines = append(lines, "    "+ui.TagStyle.Render(strings.Join(im.Tags, ", ")))
		}
	}
	return lines
}

func (m Model) renderPrompt() string {
	label := "search: "
	if m.input == inputAttach {
		label = "attach image path: "
	}
	return ui.PromptStyle.Render(label) + m.inputText + "▌"
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
	}

	var parts []string
	switch m.state {
	case session.StateRecording:
		parts = append(parts, key("Space", "Stop"))
	case session.StateIdle:
		if m.connected {
			parts = append(parts, key("Space", "Record"))
		}
	}
	if m.draft != nil {
		parts = append(parts, key("s", "Save"))
	}
	if len(m.staged) > 0 {
		parts = append(parts, key("x", "Unstage"))
	}
	parts = append(parts,
		key("a", "Attach"),
		key("/", "Search"),
		key("Enter", "Open"),
		key("d", "Delete"),
		key("r", "Refresh"),
		key("n", "Drafts"),
		key("i", "Device"),
		key("Tab", "Focus"),
		key("q", "Quit"),
	)
	return strings.Join(parts, "  ")
}

// Helpers

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
