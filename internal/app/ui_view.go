package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alchemmist/lazy-rec/internal/notify"
	"github.com/alchemmist/lazy-rec/internal/recorder"
	"github.com/alchemmist/lazy-rec/internal/recording"
	"github.com/alchemmist/lazy-rec/internal/version"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("8"))

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("12"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	recordingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(1, 2)

	noticeStyles = map[notify.Level]lipgloss.Style{
		notify.LevelInfo:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(0, 1),
		notify.LevelSuccess: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("10")).Padding(0, 1),
		notify.LevelWarning: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("11")).Padding(0, 1),
		notify.LevelError:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("9")).Padding(0, 1),
	}
)

func (m uiModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("lazy-rec"))
	b.WriteString(dimStyle.Render("  screen recorder"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if m.save != nil {
		b.WriteString(m.renderSaveDialog())
		b.WriteString("\n")
		return b.String()
	}

	switch m.panel {
	case panelRecorder:
		b.WriteString(m.renderRecorder())
	case panelSettings:
		b.WriteString(m.renderSettings())
	case panelHistory:
		b.WriteString(m.renderHistory())
	case panelAbout:
		b.WriteString(m.renderAbout())
	}
	b.WriteString("\n")

	if notes := m.renderNotifications(); notes != "" {
		b.WriteString(notes)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m uiModel) renderTabs() string {
	tabs := make([]string, 0, panelCount)
	for i, title := range panelTitles {
		label := fmt.Sprintf("%d %s", i+1, title)
		if panel(i) == m.panel {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m uiModel) renderStatus() string {
	st := m.status
	var b strings.Builder

	b.WriteString(labelStyle.Render("State: "))
	switch st.State {
	case recorder.Recording:
		b.WriteString(m.spinner.View())
		b.WriteString(recordingStyle.Render("REC " + recording.FormatDuration(st.Duration)))
	case recorder.Paused:
		b.WriteString(pausedStyle.Render("PAUSED " + recording.FormatDuration(st.Duration)))
	case recorder.Starting, recorder.Stopping:
		b.WriteString(pausedStyle.Render(st.State.String() + "..."))
	default:
		b.WriteString(normalStyle.Render("idle"))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Source: "))
	if st.Selected != nil {
		b.WriteString(selectedStyle.Render(trim(st.Selected.Name, 50)))
		b.WriteString(dimStyle.Render(" (" + string(st.Selected.Category) + ")"))
	} else {
		b.WriteString(dimStyle.Render("none, pick one below"))
	}
	b.WriteString("\n")

	if st.Active != nil {
		s := st.Active.Settings
		b.WriteString(labelStyle.Render("Capture: "))
		b.WriteString(normalStyle.Render(fmt.Sprintf("%s, %d fps", s.Quality.Label(), s.FPS)))
		if s.IncludeAudio {
			b.WriteString(dimStyle.Render(" + audio"))
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d chunks, %s buffered", st.Chunks, humanBytes(st.BufferedBytes))))
	} else if st.Armed {
		b.WriteString(selectedStyle.Render("Ready: press s to record"))
	}
	return boxStyle.Render(b.String())
}

func (m uiModel) renderRecorder() string {
	var b strings.Builder
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	if len(m.app.catalog.Sources()) == 0 {
		b.WriteString(dimStyle.Render("No sources yet, press r to refresh"))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(m.sources.View())
	b.WriteString("\n")
	return b.String()
}

func (m uiModel) renderSettings() string {
	p := m.pending
	device := p.AudioDevice
	if device == "" {
		device = "default"
	}
	audio := "off"
	if p.IncludeAudio {
		audio = "on"
	}
	rows := [fieldCount][2]string{
		{"Quality", p.Quality.Label()},
		{"Frame rate", fmt.Sprintf("%d fps", p.FPS)},
		{"Audio", audio},
		{"Audio device", device},
	}

	var b strings.Builder
	for i, row := range rows {
		cursor := "  "
		style := normalStyle
		if i == m.field {
			cursor = "> "
			style = selectedStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("%s%-14s < %s >", cursor, row[0], row[1])))
		b.WriteString("\n")
	}
	if p != m.app.settings.Current() {
		b.WriteString("\n")
		b.WriteString(pausedStyle.Render("unsaved changes"))
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (m uiModel) renderHistory() string {
	var b strings.Builder
	if len(m.sessions) == 0 {
		b.WriteString(dimStyle.Render("No recordings yet"))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(m.history.View())
	b.WriteString("\n")
	if m.confirmDelete != "" {
		b.WriteString(pausedStyle.Render("Remove this recording from history? y/n"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m uiModel) renderAbout() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("lazy-rec "))
	b.WriteString(normalStyle.Render(version.String()))
	b.WriteString("\n\n")
	if m.versions == nil {
		b.WriteString(dimStyle.Render("collecting runtime versions..."))
	} else {
		b.WriteString(labelStyle.Render("Host:     "))
		b.WriteString(normalStyle.Render(m.versions.Host))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Engine:   "))
		b.WriteString(normalStyle.Render(m.versions.Engine))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Renderer: "))
		b.WriteString(normalStyle.Render(m.versions.Renderer))
	}
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Save dir: "))
	b.WriteString(normalStyle.Render(m.app.cfg.SaveDir))
	if addr := m.app.cfg.ControlAddr; addr != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Control:  "))
		b.WriteString(normalStyle.Render("http://" + addr))
	}
	return boxStyle.Render(b.String()) + "\n"
}

func (m uiModel) renderSaveDialog() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Save recording"))
	b.WriteString("\n\n")
	b.WriteString(m.save.input.View())
	b.WriteString("\n\n")
	if len(m.save.exts) > 0 {
		b.WriteString(dimStyle.Render("formats: ." + strings.Join(m.save.exts, ", .")))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter: save  esc: discard recording"))
	return dialogStyle.Render(b.String())
}

func (m uiModel) renderNotifications() string {
	active := m.app.notes.Active(time.Now())
	if len(active) == 0 {
		return ""
	}
	boxes := make([]string, 0, len(active))
	for _, n := range active {
		style, ok := noticeStyles[n.Level]
		if !ok {
			style = noticeStyles[notify.LevelInfo]
		}
		body := lipgloss.NewStyle().Bold(true).Render(n.Title)
		if n.Message != "" {
			body += "\n" + n.Message
		}
		boxes = append(boxes, style.Render(body))
	}
	return lipgloss.JoinVertical(lipgloss.Left, boxes...)
}

func (m uiModel) help() string {
	common := "tab: panel  s: start  space: pause  x: stop  q: quit"
	switch m.panel {
	case panelRecorder:
		return "enter: select  r: refresh  " + common
	case panelSettings:
		return "up/down: field  left/right: change  enter: apply  R: reset  " + common
	case panelHistory:
		return "d: remove  " + common
	}
	return common
}

func humanBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := int64(n) / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
