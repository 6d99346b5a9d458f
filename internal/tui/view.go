package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/strrl/castor/internal/session"
	"github.com/strrl/castor/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	modelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

func (m *model) updateViewport() {
	if !m.ready {
		return
	}
	switch m.currentMode {
	case projectView:
		m.viewport.SetContent(m.renderProjects())
	case phaseView:
		m.viewport.SetContent(m.renderPhases())
	case historyView:
		m.leftViewport.SetContent(m.renderHistoriesList())
		m.rightViewport.SetContent(m.renderPreview())
	case chatView:
		m.transcript.SetContent(m.renderChat())
		m.transcript.GotoBottom()
	}
}

func (m model) renderProjects() string {
	if len(m.projects) == 0 {
		return dimStyle.Render("No projects yet. Create one with `castor project create NAME`.")
	}

	var s strings.Builder
	for i, project := range m.projects {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == m.projectCursor {
			cursor = "> "
			style = selectedStyle
		}

		line := fmt.Sprintf("%s%s (%d histories)", cursor, project.Name, len(project.Histories))
		if !project.LastActivity.IsZero() {
			line += " - " + project.LastActivity.Format("2006-01-02 15:04")
		}
		s.WriteString(style.Render(line) + "\n")
	}
	return s.String()
}

func (m model) renderPhases() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Choose a phase") + "\n\n")

	for i, phase := range models.Phases {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == m.phaseCursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(style.Render(fmt.Sprintf("%s%-32s", cursor, phase)))
		s.WriteString(dimStyle.Render(models.PhaseDescription(phase)) + "\n")
	}
	return s.String()
}

func (m model) renderHistoriesList() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Histories") + "\n")
	s.WriteString(strings.Repeat("─", max(m.leftViewport.Width-2, 10)) + "\n\n")

	if len(m.histories) == 0 {
		if m.busy() {
			s.WriteString(dimStyle.Render("Loading..."))
		} else {
			s.WriteString(dimStyle.Render("No histories. Press n to start a chat."))
		}
		return s.String()
	}

	for i, ref := range m.histories {
		cursor := "  "
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		idStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
		if i == m.historyCursor {
			cursor = "> "
			style = selectedStyle
			idStyle = idStyle.Foreground(lipgloss.Color("245"))
		}

		s.WriteString(style.Render(cursor+ref.Phase) + "\n")
		s.WriteString(idStyle.Render("  "+truncate(ref.SessionID, 12)) + "\n")
		if i < len(m.histories)-1 {
			s.WriteString("\n")
		}
	}
	return s.String()
}

func (m model) renderPreview() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Preview") + "\n")
	s.WriteString(strings.Repeat("─", max(m.rightViewport.Width-2, 10)) + "\n\n")

	state := m.ctrl.Snapshot()
	ref, ok := m.currentHistory()
	switch {
	case !ok:
		s.WriteString(dimStyle.Render("Nothing selected"))
	case previewMatches(state.Preview, ref):
		if len(state.Preview.Messages) == 0 {
			s.WriteString(dimStyle.Render("This history is empty"))
			break
		}
		s.WriteString(renderMessages(state.Preview.Messages, m.rightViewport.Width))
	case state.PreviewLoading:
		s.WriteString(dimStyle.Render("Loading preview..."))
	default:
		s.WriteString(dimStyle.Render("No preview loaded"))
	}
	return s.String()
}

func (m model) renderChat() string {
	state := m.ctrl.Snapshot()
	if len(state.Messages) == 0 {
		return dimStyle.Render("Session started. Describe the target or paste tool output.")
	}
	return renderMessages(state.Messages, m.transcript.Width)
}

// renderMessages lays out a transcript, one labelled block per message
func renderMessages(messages []models.Message, width int) string {
	var s strings.Builder

	wrapWidth := max(width-4, 20)
	for i, msg := range messages {
		label := modelStyle.Render("Castor")
		if msg.Role == models.RoleUser {
			label = userStyle.Render("You")
		}
		if msg.Pending {
			label += dimStyle.Render(" (sending)")
		}
		s.WriteString(label + "\n")

		for _, line := range strings.Split(msg.Text, "\n") {
			for _, wrapped := range wrapText(line, wrapWidth) {
				s.WriteString("  " + messageStyle.Render(wrapped) + "\n")
			}
		}
		if i < len(messages)-1 {
			s.WriteString("\n")
		}
	}
	return s.String()
}

// wrapText wraps text to fit within the specified width
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	currentLine := words[0]
	for _, word := range words[1:] {
		if len(currentLine)+1+len(word) > width {
			lines = append(lines, currentLine)
			currentLine = word
		} else {
			currentLine += " " + word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	switch m.currentMode {
	case historyView:
		return fmt.Sprintf("%s\n%s\n%s", header, m.renderSplitView(), footer)
	case chatView:
		return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.transcript.View(), m.input.View(), footer)
	default:
		return fmt.Sprintf("%s\n%s\n%s", header, m.viewport.View(), footer)
	}
}

func (m model) renderSplitView() string {
	leftStyle := lipgloss.NewStyle().
		Width(m.leftViewport.Width).
		Height(m.leftViewport.Height)

	rightStyle := lipgloss.NewStyle().
		Width(m.rightViewport.Width).
		Height(m.rightViewport.Height)

	dividerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("238")).
		Height(m.leftViewport.Height)

	divider := strings.TrimSuffix(strings.Repeat("│\n", m.leftViewport.Height), "\n")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftStyle.Render(m.leftViewport.View()),
		dividerStyle.Render(divider),
		rightStyle.Render(m.rightViewport.View()),
	)
}

func (m model) renderHeader() string {
	title := "Castor - Projects"
	switch m.currentMode {
	case phaseView:
		title = fmt.Sprintf("Castor - New chat in %s", m.selectedProject)
	case historyView:
		title = fmt.Sprintf("Castor - %s", m.selectedProject)
	case chatView:
		state := m.ctrl.Snapshot()
		title = fmt.Sprintf("Castor - %s [%s]", state.Project, state.Phase)
	}

	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63"))

	return style.Render(title)
}

func (m model) renderFooter() string {
	if m.busy() {
		return m.loading.View()
	}
	if m.status != "" {
		return statusStyle.Render(m.status)
	}

	var info string
	switch m.currentMode {
	case projectView:
		info = "↑/↓: navigate • enter: histories • n: new chat • r: refresh • q: quit"
		if m.ctrl.Snapshot().Active() {
			info = "↑/↓: navigate • enter: histories • n: new chat • r: refresh • x: close session • q: quit"
		}
	case phaseView:
		info = "↑/↓: navigate • enter: start • esc: back • q: quit"
	case historyView:
		info = "↑/↓: preview • enter: resume • n: new chat • esc: back • q: quit"
		if m.ctrl.Snapshot().Active() {
			info = "↑/↓: preview • enter: resume • n: new chat • c: current chat • esc: back • q: quit"
		}
	case chatView:
		info = "enter: send • pgup/pgdn: scroll • esc: histories • ctrl+c: quit"
	}

	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(info)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// sessionLabel names a live or previewed session for log lines
func sessionLabel(state session.State) string {
	if state.Preview != nil {
		return fmt.Sprintf("%s/%s_%s (preview)", state.Preview.Project, state.Preview.Phase, state.Preview.SessionID)
	}
	if !state.Active() {
		return "idle"
	}
	return fmt.Sprintf("%s/%s_%s", state.Project, state.Phase, state.SessionID)
}
