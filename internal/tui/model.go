package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/valentindosimont/keyquery/internal/config"
	"github.com/valentindosimont/keyquery/internal/export"
	"github.com/valentindosimont/keyquery/internal/lookup"
	"github.com/valentindosimont/keyquery/internal/present"
	"github.com/valentindosimont/keyquery/internal/store"
	"github.com/valentindosimont/keyquery/internal/token"
	"github.com/valentindosimont/keyquery/internal/tui/messages"
	"github.com/valentindosimont/keyquery/internal/usage"
)

// History reads the lookup journal
type History interface {
	RecentLookups(limit int) ([]store.LookupEntry, error)
	OutcomeCounts() (map[string]int, error)
}

type focusArea int

const (
	focusInput focusArea = iota
	focusTable
)

// Model is the main Bubbletea model
type Model struct {
	// Dependencies
	ctx       context.Context
	session   *lookup.Session
	presenter *present.Presenter
	config    *config.Config
	history   History
	clipboard export.Clipboard
	logger    *zap.Logger
	now       func() time.Time

	// UI state
	width  int
	height int
	focus  focusArea

	tokenInput textinput.Model
	table      table.Model
	spinner    spinner.Model

	// Rows currently shown, after filter and sort
	visible  []usage.Row
	sortKey  string
	sortDesc bool

	// Filter mode
	filterMode  bool
	filterInput textinput.Model
	filter      string

	// Status line
	notice      string
	noticeError bool

	// Overlays
	showHelp     bool
	showHistory  bool
	historyRows  []store.LookupEntry
	historySum   map[string]int
	fallbackText string
}

// New creates a new TUI model. history and clipboard may be nil.
func New(ctx context.Context, session *lookup.Session, p *present.Presenter, cfg *config.Config, history History, cb export.Clipboard, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cb == nil {
		cb = export.SystemClipboard{}
	}

	ti := textinput.New()
	ti.Placeholder = "sk-..."
	ti.Prompt = "Token: "
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 256
	ti.Width = 60
	ti.Focus()

	fi := textinput.New()
	fi.Prompt = "/"
	fi.Placeholder = "model or detail"
	fi.CharLimit = 64

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statStyle))

	m := &Model{
		ctx:         ctx,
		session:     session,
		presenter:   p,
		config:      cfg,
		history:     history,
		clipboard:   cb,
		logger:      logger,
		now:         time.Now,
		tokenInput:  ti,
		filterInput: fi,
		spinner:     sp,
	}
	m.table = table.New(
		table.WithColumns(m.tableColumns()),
		table.WithHeight(cfg.PageSize()),
		table.WithStyles(tableStyles()),
	)
	return m
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(max(40, msg.Width-6))
		return m, nil

	case spinner.TickMsg:
		if m.session.Busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case messages.LookupDoneMsg:
		m.handleLookupDone(msg)
		return m, nil

	case messages.ExportDoneMsg:
		if msg.Err != nil {
			m.logger.Warn("export failed", zap.Error(msg.Err))
			m.setError("Export failed: %v", msg.Err)
		} else {
			m.setNotice("Exported %d rows to %s (%s)", msg.Rows, msg.Path, humanize.Bytes(uint64(msg.Bytes)))
		}
		return m, nil

	case messages.CopyDoneMsg:
		var copyErr *export.CopyError
		switch {
		case errors.As(msg.Err, &copyErr):
			m.logger.Warn("clipboard unavailable", zap.Error(copyErr.Err))
			m.fallbackText = copyErr.Text
		case msg.Err != nil:
			m.setError("Copy failed: %v", msg.Err)
		default:
			m.setNotice("Copied %s", msg.Label)
		}
		return m, nil

	case messages.HistoryMsg:
		if msg.Err != nil {
			m.setError("Could not read history: %v", msg.Err)
			return m, nil
		}
		m.historyRows = msg.Entries
		m.historySum = msg.Counts
		m.showHistory = true
		return m, nil

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}

	// Overlays close on any key
	if m.showHelp || m.showHistory || m.fallbackText != "" {
		m.showHelp = false
		m.showHistory = false
		m.fallbackText = ""
		return nil
	}

	if m.filterMode {
		return m.handleFilterKey(msg)
	}

	if m.focus == focusInput {
		return m.handleInputKey(msg)
	}
	return m.handleTableKey(msg)
}

func (m *Model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		return m.submit()
	case "tab":
		m.setFocus(focusTable)
		return nil
	case "esc":
		m.tokenInput.Reset()
		return nil
	}
	var cmd tea.Cmd
	m.tokenInput, cmd = m.tokenInput.Update(msg)
	return cmd
}

func (m *Model) handleTableKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "tab", "i":
		m.setFocus(focusInput)
		return nil
	case "?":
		m.showHelp = true
		return nil
	case "h":
		return m.loadHistory()
	case "c":
		return m.copyBalance()
	}

	if !m.detailActive() {
		return nil
	}

	switch msg.String() {
	case "1", "2", "3", "4", "5", "6", "7", "8":
		m.toggleSort(int(msg.String()[0] - '1'))
		return nil
	case "/":
		m.filterMode = true
		m.filterInput.SetValue(m.filter)
		return m.filterInput.Focus()
	case "esc":
		if m.filter != "" {
			m.filter = ""
			m.refreshRows()
		}
		return nil
	case "e":
		return m.exportCSV()
	case "y":
		return m.copyModel()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return cmd
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		m.filterMode = false
		m.filterInput.Blur()
		return nil
	case "esc":
		m.filterMode = false
		m.filterInput.Blur()
		m.filter = ""
		m.refreshRows()
		return nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if v := m.filterInput.Value(); v != m.filter {
		m.filter = v
		m.refreshRows()
	}
	return cmd
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.table.Blur()
		m.tokenInput.Focus()
		return
	}
	m.tokenInput.Blur()
	m.table.Focus()
}

// submit validates the entered token and starts the fetch
func (m *Model) submit() tea.Cmd {
	req, err := m.session.Begin(m.tokenInput.Value())
	switch {
	case errors.Is(err, lookup.ErrBusy):
		m.setError("A lookup is already running")
		return nil
	case errors.Is(err, token.ErrEmpty):
		m.setError("Please enter a token")
		return nil
	case errors.Is(err, token.ErrMalformed):
		m.setError("That does not look like a valid token")
		return nil
	case err != nil:
		m.setError("%v", err)
		return nil
	}

	m.setNotice("Looking up %s", token.Mask(req.Token))
	return tea.Batch(m.lookupCmd(req), m.spinner.Tick)
}

func (m *Model) lookupCmd(req lookup.Request) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		out := m.session.Execute(ctx, req)
		return messages.LookupDoneMsg{Request: req, Outcome: out}
	}
}

func (m *Model) handleLookupDone(msg messages.LookupDoneMsg) {
	if !m.session.Complete(msg.Request, msg.Outcome) {
		return
	}

	st := m.session.State()
	switch msg.Outcome.Kind {
	case lookup.OutcomeFailure:
		m.logger.Warn("lookup failed", zap.Error(msg.Outcome.Err))
		m.setError("%s", lookup.ErrFetchFailed.Error())
	case lookup.OutcomePartial:
		reason := st.LogFailure
		if reason == "" {
			reason = "no reason given"
		}
		m.setError("Usage records unavailable: %s", reason)
		m.tokenInput.Reset()
	default:
		m.setNotice("Lookup complete")
		m.tokenInput.Reset()
	}

	m.table.SetCursor(0)
	m.refreshRows()
	if st.TokenValid && m.config.Lookup.ShowDetail && len(m.visible) > 0 {
		m.setFocus(focusTable)
	}
}

// detailActive reports whether the usage panel accepts interaction
func (m *Model) detailActive() bool {
	return m.config.Lookup.ShowDetail && m.session.State().TokenValid
}

func (m *Model) refreshRows() {
	st := m.session.State()
	rows := present.Filter(st.Rows, m.filter)
	if col, ok := m.presenter.Column(m.sortKey); ok {
		rows = present.Sort(rows, col, m.sortDesc)
	}
	m.visible = rows

	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row(m.presenter.Cells(r))
	}
	m.table.SetColumns(m.tableColumns())
	m.table.SetRows(tableRows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(0, len(rows)-1))
	}
}

func (m *Model) tableColumns() []table.Column {
	cols := m.presenter.Columns()
	out := make([]table.Column, len(cols))
	for i, c := range cols {
		title := c.Title
		if c.Key == m.sortKey {
			if m.sortDesc {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		out[i] = table.Column{Title: title, Width: c.Width}
	}
	return out
}

// toggleSort sorts by the idx-th column; repeating the key flips direction.
func (m *Model) toggleSort(idx int) {
	cols := m.presenter.Columns()
	if idx < 0 || idx >= len(cols) {
		return
	}
	col := cols[idx]
	if !col.Sortable() {
		m.setError("%s column cannot be sorted", col.Title)
		return
	}
	if m.sortKey == col.Key {
		m.sortDesc = !m.sortDesc
	} else {
		m.sortKey = col.Key
		m.sortDesc = false
	}
	m.refreshRows()
}

func (m *Model) selectedRow() (usage.Row, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return usage.Row{}, false
	}
	return m.visible[i], true
}

func (m *Model) exportCSV() tea.Cmd {
	if len(m.visible) == 0 {
		m.setError("Nothing to export")
		return nil
	}
	rows := m.visible
	dir := m.config.Export.Dir
	name := export.FileName(m.now())
	formatTime := m.presenter.FormatTime
	return func() tea.Msg {
		data, err := export.CSV(rows, formatTime)
		if err != nil {
			return messages.ExportDoneMsg{Err: err}
		}
		path, err := export.WriteFile(dir, name, data)
		return messages.ExportDoneMsg{Path: path, Rows: len(rows), Bytes: len(data), Err: err}
	}
}

func (m *Model) copyBalance() tea.Cmd {
	st := m.session.State()
	if !m.config.Lookup.ShowBalance || !st.TokenValid {
		m.setError("No balance to copy")
		return nil
	}
	return m.copyCmd("balance", m.presenter.Balance(st).CopyText())
}

func (m *Model) copyModel() tea.Cmd {
	row, ok := m.selectedRow()
	if !ok || !row.Billable() || row.ModelName == "" {
		m.setError("No model name on this row")
		return nil
	}
	return m.copyCmd("model name", row.ModelName)
}

func (m *Model) copyCmd(label, text string) tea.Cmd {
	cb := m.clipboard
	return func() tea.Msg {
		return messages.CopyDoneMsg{Label: label, Err: export.Copy(cb, text)}
	}
}

func (m *Model) loadHistory() tea.Cmd {
	if m.history == nil {
		m.setError("History is disabled, set history.enabled in the config")
		return nil
	}
	h := m.history
	limit := m.config.HistoryLimit()
	return func() tea.Msg {
		entries, err := h.RecentLookups(limit)
		if err != nil {
			return messages.HistoryMsg{Err: err}
		}
		counts, err := h.OutcomeCounts()
		return messages.HistoryMsg{Entries: entries, Counts: counts, Err: err}
	}
}

func (m *Model) setNotice(format string, args ...any) {
	m.notice = fmt.Sprintf(format, args...)
	m.noticeError = false
}

func (m *Model) setError(format string, args ...any) {
	m.notice = fmt.Sprintf(format, args...)
	m.noticeError = true
}
