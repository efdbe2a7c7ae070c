package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alchemmist/lazy-rec/internal/config"
	"github.com/alchemmist/lazy-rec/internal/host"
	"github.com/alchemmist/lazy-rec/internal/notify"
	"github.com/alchemmist/lazy-rec/internal/recorder"
	"github.com/alchemmist/lazy-rec/internal/recording"
	"github.com/alchemmist/lazy-rec/internal/settings"
)

type panel int

const (
	panelRecorder panel = iota
	panelSettings
	panelHistory
	panelAbout
	panelCount
)

var panelTitles = [panelCount]string{"Recorder", "Settings", "History", "About"}

const noticeInterval = 250 * time.Millisecond

var errUIClosed = errors.New("ui closed before a destination was chosen")

type (
	statusMsg     recorder.Status
	outcomeMsg    recorder.Outcome
	versionsMsg   host.Versions
	noticeTickMsg time.Time
	audioMsg      struct {
		devices []string
		err     error
	}
	controlErrMsg struct{ err error }
	// saveRequestMsg asks the UI for a destination; reply receives the path,
	// or "" when the user cancels.
	saveRequestMsg struct {
		defaultName string
		exts        []string
		reply       chan<- string
	}
)

// uiPrompter routes save prompts into the running program. A prompt still
// open when the program exits is answered by fallback.
type uiPrompter struct {
	send     func(tea.Msg)
	done     <-chan struct{}
	fallback host.Prompter
}

func (p uiPrompter) Prompt(ctx context.Context, defaultName string, exts []string) (string, error) {
	reply := make(chan string, 1)
	p.send(saveRequestMsg{defaultName: defaultName, exts: exts, reply: reply})
	select {
	case path := <-reply:
		return path, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		if p.fallback != nil {
			return p.fallback.Prompt(ctx, defaultName, exts)
		}
		return "", errUIClosed
	}
}

type saveDialog struct {
	input textinput.Model
	exts  []string
	reply chan<- string
}

// settings editor rows
const (
	fieldQuality = iota
	fieldFPS
	fieldAudio
	fieldDevice
	fieldCount
)

type uiModel struct {
	app    *App
	ctx    context.Context
	panel  panel
	status recorder.Status

	sources  table.Model
	history  table.Model
	sessions []recording.Session
	spinner  spinner.Model

	field   int
	pending recording.Settings
	devices []string

	confirmDelete string
	save          *saveDialog
	versions      *host.Versions

	quitArmed bool
	width     int
	height    int
}

func newUIModel(ctx context.Context, a *App) uiModel {
	sources := table.New(
		table.WithColumns([]table.Column{
			{Title: "KIND", Width: 8},
			{Title: "NAME", Width: 40},
			{Title: "ID", Width: 28},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	hist := table.New(
		table.WithColumns([]table.Column{
			{Title: "NAME", Width: 30},
			{Title: "STARTED", Width: 19},
			{Title: "DURATION", Width: 9},
			{Title: "PATH", Width: 36},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = recordingStyle

	m := uiModel{
		app:     a,
		ctx:     ctx,
		sources: sources,
		history: hist,
		spinner: sp,
		pending: a.settings.Current(),
		status:  a.recorder.Status(),
	}
	m.syncTables()
	return m
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		noticeTick(),
		m.enqueue(recorder.TriggerNew),
		loadVersions(m.ctx, m.app),
		loadAudioInputs(m.ctx, m.app),
	)
}

func noticeTick() tea.Cmd {
	return tea.Tick(noticeInterval, func(t time.Time) tea.Msg { return noticeTickMsg(t) })
}

func loadVersions(ctx context.Context, a *App) tea.Cmd {
	return func() tea.Msg { return versionsMsg(a.Versions(ctx)) }
}

func loadAudioInputs(ctx context.Context, a *App) tea.Cmd {
	return func() tea.Msg {
		devices, err := a.AudioInputs(ctx)
		return audioMsg{devices: devices, err: err}
	}
}

func (m uiModel) enqueue(t recorder.Trigger) tea.Cmd {
	return func() tea.Msg {
		if !m.app.Enqueue(t) {
			m.app.notes.Push(notify.LevelWarning, "Busy", "Too many pending commands, try again")
		}
		return nil
	}
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case statusMsg:
		m.status = recorder.Status(msg)
		m.syncTables()
		return m, nil
	case outcomeMsg:
		m.handleOutcome(recorder.Outcome(msg))
		m.status = m.app.recorder.Status()
		m.syncTables()
		return m, nil
	case saveRequestMsg:
		m.openSaveDialog(msg)
		return m, textinput.Blink
	case versionsMsg:
		v := host.Versions(msg)
		m.versions = &v
		return m, nil
	case audioMsg:
		if msg.err != nil {
			m.app.logger.Warn("audio input enumeration failed", "error", msg.err)
		}
		m.devices = msg.devices
		return m, nil
	case controlErrMsg:
		m.app.notes.Push(notify.LevelError, "Control server stopped", msg.err.Error())
		return m, nil
	case noticeTickMsg:
		m.app.notes.Active(time.Time(msg))
		return m, noticeTick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.save != nil {
			return m.updateSaveDialog(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *uiModel) handleOutcome(o recorder.Outcome) {
	notes := m.app.notes
	if o.Err != nil {
		if errors.Is(o.Err, recorder.ErrInvalidTransition) {
			return
		}
		switch o.Trigger {
		case recorder.TriggerNew:
			notes.Push(notify.LevelError, "Could not list sources", o.Err.Error())
		case recorder.TriggerStart:
			notes.Push(notify.LevelError, "Recording failed to start", o.Err.Error())
		case recorder.TriggerStop:
			notes.Push(notify.LevelError, "Recording not saved", o.Err.Error())
		default:
			notes.Push(notify.LevelError, "Command failed", o.Err.Error())
		}
		return
	}
	switch o.Trigger {
	case recorder.TriggerNew:
		n := len(m.app.catalog.Sources())
		notes.Push(notify.LevelInfo, "Sources refreshed", fmt.Sprintf("%d sources available", n))
	case recorder.TriggerStart:
		notes.Push(notify.LevelInfo, "Recording started", "")
	case recorder.TriggerStop:
		if o.Result == nil {
			return
		}
		if o.Result.Path == "" {
			notes.Push(notify.LevelWarning, "Recording discarded", "Save was cancelled")
			return
		}
		notes.Push(notify.LevelSuccess, "Recording saved", o.Result.Path)
	}
}

func (m *uiModel) openSaveDialog(req saveRequestMsg) {
	in := textinput.New()
	in.Prompt = "save as> "
	in.SetValue(filepath.Join(m.app.cfg.SaveDir, req.defaultName))
	in.CursorEnd()
	in.Focus()
	if m.width > 20 {
		in.Width = m.width - 20
	}
	m.save = &saveDialog{input: in, exts: req.exts, reply: req.reply}
}

func (m uiModel) updateSaveDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.closeSaveDialog(strings.TrimSpace(m.save.input.Value()))
		return m, nil
	case "esc", "ctrl+c":
		m.closeSaveDialog("")
		return m, nil
	}
	var cmd tea.Cmd
	m.save.input, cmd = m.save.input.Update(msg)
	return m, cmd
}

func (m *uiModel) closeSaveDialog(path string) {
	if m.save == nil {
		return
	}
	m.save.reply <- path
	m.save = nil
}

func (m uiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != "q" && key != "ctrl+c" {
		m.quitArmed = false
	}

	switch key {
	case "ctrl+c", "q":
		if m.status.State.Busy() && !m.quitArmed {
			m.quitArmed = true
			m.app.notes.Push(notify.LevelWarning, "Recording in progress", "Press q again to stop, save to the default folder and quit")
			return m, nil
		}
		return m, tea.Quit
	case "tab":
		m.panel = (m.panel + 1) % panelCount
		m.confirmDelete = ""
		return m, nil
	case "shift+tab":
		m.panel = (m.panel + panelCount - 1) % panelCount
		m.confirmDelete = ""
		return m, nil
	case "1", "2", "3", "4":
		m.panel = panel(key[0] - '1')
		m.confirmDelete = ""
		return m, nil
	case "s":
		return m, m.enqueue(recorder.TriggerStart)
	case "x":
		return m, m.enqueue(recorder.TriggerStop)
	case " ", "p":
		return m, m.enqueue(recorder.TriggerTogglePause)
	}

	switch m.panel {
	case panelRecorder:
		return m.recorderKey(msg)
	case panelSettings:
		return m.settingsKey(msg)
	case panelHistory:
		return m.historyKey(msg)
	}
	return m, nil
}

func (m uiModel) recorderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r", "n":
		return m, m.enqueue(recorder.TriggerNew)
	case "enter":
		sources := m.app.catalog.Sources()
		idx := m.sources.Cursor()
		if idx < 0 || idx >= len(sources) {
			return m, nil
		}
		if err := m.app.recorder.Select(sources[idx].ID); err != nil {
			m.app.notes.Push(notify.LevelError, "Select failed", err.Error())
			return m, nil
		}
		m.status = m.app.recorder.Status()
		return m, nil
	}
	var cmd tea.Cmd
	m.sources, cmd = m.sources.Update(msg)
	return m, cmd
}

func (m uiModel) settingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.field = (m.field + fieldCount - 1) % fieldCount
	case "down", "j":
		m.field = (m.field + 1) % fieldCount
	case "left", "h":
		m.cycleField(-1)
	case "right", "l":
		m.cycleField(1)
	case "enter", "a":
		m.applySettings()
	case "R":
		m.pending = m.app.settings.Reset()
		m.app.notes.Push(notify.LevelInfo, "Settings reset", "Defaults restored")
	case "esc":
		m.pending = m.app.settings.Current()
	}
	return m, nil
}

func (m *uiModel) cycleField(dir int) {
	switch m.field {
	case fieldQuality:
		i := indexOf(recording.Qualities, m.pending.Quality)
		m.pending.Quality = recording.Qualities[wrap(i+dir, len(recording.Qualities))]
	case fieldFPS:
		i := indexOf(recording.FrameRates, m.pending.FPS)
		m.pending.FPS = recording.FrameRates[wrap(i+dir, len(recording.FrameRates))]
	case fieldAudio:
		m.pending.IncludeAudio = !m.pending.IncludeAudio
	case fieldDevice:
		options := append([]string{""}, m.devices...)
		i := indexOf(options, m.pending.AudioDevice)
		m.pending.AudioDevice = options[wrap(i+dir, len(options))]
	}
}

func (m *uiModel) applySettings() {
	p := m.pending
	applied, err := m.app.settings.Apply(settings.Update{
		Quality:      &p.Quality,
		FPS:          &p.FPS,
		IncludeAudio: &p.IncludeAudio,
		AudioDevice:  &p.AudioDevice,
	})
	if err != nil {
		m.app.notes.Push(notify.LevelError, "Settings rejected", err.Error())
		return
	}
	m.pending = applied
	msg := "Used by the next recording"
	if m.status.State.Busy() {
		msg = "The current recording keeps its settings"
	}
	m.app.notes.Push(notify.LevelSuccess, "Settings applied", msg)
}

func (m uiModel) historyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.confirmDelete != "" {
		switch key {
		case "y", "enter":
			if m.app.recorder.DeleteSession(m.confirmDelete) {
				m.app.notes.Push(notify.LevelInfo, "Removed from history", "The saved file is left on disk")
			}
			m.confirmDelete = ""
			m.syncTables()
		case "n", "esc":
			m.confirmDelete = ""
		}
		return m, nil
	}
	switch key {
	case "d", "delete":
		idx := m.history.Cursor()
		if idx >= 0 && idx < len(m.sessions) {
			m.confirmDelete = m.sessions[idx].ID
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

func (m *uiModel) syncTables() {
	sources := m.app.catalog.Sources()
	rows := make([]table.Row, 0, len(sources))
	for _, s := range sources {
		rows = append(rows, table.Row{string(s.Category), trim(s.Name, 60), s.ID})
	}
	m.sources.SetRows(rows)
	clampCursor(&m.sources, len(rows))

	m.sessions = m.app.recorder.Sessions()
	hist := make([]table.Row, 0, len(m.sessions))
	for _, s := range m.sessions {
		hist = append(hist, table.Row{
			trim(s.Name, 60),
			s.StartTime.Local().Format("2006-01-02 15:04:05"),
			recording.FormatDuration(s.Duration),
			s.SavedPath,
		})
	}
	m.history.SetRows(hist)
	clampCursor(&m.history, len(hist))
}

func (m *uiModel) resize() {
	if m.width <= 0 {
		return
	}
	height := m.height - 14
	if height < 5 {
		height = 5
	}
	m.sources.SetHeight(height)
	m.history.SetHeight(height)

	nameW := m.width - 48
	if nameW < 16 {
		nameW = 16
	}
	cols := m.sources.Columns()
	cols[1].Width = nameW
	m.sources.SetColumns(cols)

	pathW := m.width - 70
	if pathW < 16 {
		pathW = 16
	}
	hcols := m.history.Columns()
	hcols[3].Width = pathW
	m.history.SetColumns(hcols)
}

func clampCursor(t *table.Model, n int) {
	if n == 0 {
		t.SetCursor(0)
		return
	}
	if t.Cursor() >= n {
		t.SetCursor(n - 1)
	}
}

func indexOf[T comparable](items []T, v T) int {
	for i, it := range items {
		if it == v {
			return i
		}
	}
	return 0
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

func trim(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// RunUI runs the interactive recorder until the user quits. A recording
// still active on exit is stopped and saved into the configured save dir.
func (a *App) RunUI(ctx context.Context) error {
	unlock, err := acquireLock(a.cfg.Display)
	if err != nil {
		return err
	}
	defer unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newUIModel(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx))
	if a.cfg.Dialog == config.DialogTUI {
		a.SetPrompter(uiPrompter{send: p.Send, done: ctx.Done(), fallback: host.DirPrompter{Dir: a.cfg.SaveDir}})
	}

	// Subscribers run on controller goroutines and on the UI loop itself, so
	// they must not block on p.Send. Keep only the newest status.
	updates := make(chan recorder.Status, 1)
	unsubscribe := a.recorder.Subscribe(func(st recorder.Status) {
		for {
			select {
			case updates <- st:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case st := <-updates:
				p.Send(statusMsg(st))
			}
		}
	}()

	triggersDone := make(chan struct{})
	go func() {
		defer close(triggersDone)
		a.RunTriggers(ctx, func(o recorder.Outcome) { p.Send(outcomeMsg(o)) })
	}()
	go func() {
		if err := a.ServeControl(ctx); err != nil {
			a.logger.Error("control server stopped", "error", err)
			p.Send(controlErrMsg{err: err})
		}
	}()

	_, runErr := p.Run()
	a.shutdown(cancel, triggersDone)
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return runErr
}

// shutdown stops the trigger loop, lets a stop already in flight finish and
// then saves whatever is still recording into the save dir.
func (a *App) shutdown(cancel context.CancelFunc, triggersDone <-chan struct{}) {
	a.SetPrompter(host.DirPrompter{Dir: a.cfg.SaveDir})
	cancel()
	<-triggersDone
	a.salvage()
}

// salvage saves a recording left running when the UI exits.
func (a *App) salvage() {
	switch a.recorder.Status().State {
	case recorder.Recording, recorder.Paused:
	default:
		return
	}
	res, err := a.recorder.Stop(context.Background())
	if err != nil {
		a.logger.Error("saving recording on exit failed", "error", err)
		return
	}
	if res != nil && res.Path != "" {
		a.logger.Info("recording saved on exit", "path", res.Path)
	}
}
