// Package tui is the interactive terminal front-end: project list,
// phase picker, history browser with preview, and the chat view.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strrl/castor/internal/projects"
	"github.com/strrl/castor/internal/session"
	"github.com/strrl/castor/pkg/models"
)

type viewMode int

const (
	projectView viewMode = iota
	phaseView
	historyView
	chatView
)

type model struct {
	ctx     context.Context
	ctrl    *session.Controller
	catalog *projects.Catalog
	logger  *zap.Logger

	currentMode     viewMode
	projects        []models.Project
	histories       []models.HistoryRef
	projectCursor   int
	phaseCursor     int
	historyCursor   int
	selectedProject string

	viewport      viewport.Model // project and phase lists
	transcript    viewport.Model // chat messages
	leftViewport  viewport.Model // histories list in split view
	rightViewport viewport.Model // preview in split view
	input         textinput.Model

	activeRequests map[string]context.CancelFunc
	previewRequest string
	loading        *LoadingIndicator

	status string
	ready  bool
	width  int
	height int
}

func initialModel(ctx context.Context, ctrl *session.Controller, catalog *projects.Catalog, logger *zap.Logger) model {
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textinput.New()
	input.Placeholder = "Describe what you found..."
	input.Prompt = "> "
	input.CharLimit = 4000

	return model{
		ctx:            ctx,
		ctrl:           ctrl,
		catalog:        catalog,
		logger:         logger,
		currentMode:    projectView,
		input:          input,
		activeRequests: make(map[string]context.CancelFunc),
		loading:        NewLoadingIndicator(""),
	}
}

func (m model) Init() tea.Cmd {
	ctx, id := m.track("Loading projects")
	return tea.Batch(loadProjectsCmd(ctx, m.catalog, id), tickCmd())
}

// track registers a cancellable request and returns its context and ID
func (m *model) track(op string) (context.Context, string) {
	ctx, cancel := context.WithCancel(m.ctx)
	id := uuid.NewString()
	m.activeRequests[id] = cancel
	m.loading.SetMessage(op)
	return ctx, id
}

// finish releases a request. It reports false when the request was
// already cancelled, in which case its result should be ignored.
func (m *model) finish(id string) bool {
	cancel, ok := m.activeRequests[id]
	if !ok {
		return false
	}
	cancel()
	delete(m.activeRequests, id)
	return true
}

func (m *model) cancelRequests() {
	for id, cancel := range m.activeRequests {
		cancel()
		delete(m.activeRequests, id)
	}
	m.previewRequest = ""
	m.logger.Debug("cancelled in-flight requests")
}

func (m model) busy() bool {
	return len(m.activeRequests) > 0
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case TickMsg:
		m.loading.Tick()
		return m, tickCmd()

	case ProjectsLoadedMsg:
		if !m.finish(msg.RequestID) {
			return m, nil
		}
		if msg.Error != nil {
			m.status = fmt.Sprintf("Failed to load projects: %v", msg.Error)
			return m, nil
		}
		m.projects = msg.Projects
		m.status = ""
		if m.projectCursor >= len(m.projects) {
			m.projectCursor = max(len(m.projects)-1, 0)
		}
		m.updateViewport()

	case HistoriesLoadedMsg:
		if !m.finish(msg.RequestID) || msg.Project != m.selectedProject {
			return m, nil
		}
		if msg.Error != nil {
			m.status = fmt.Sprintf("Failed to load histories: %v", msg.Error)
			return m, nil
		}
		m.histories = msg.Histories
		m.historyCursor = 0
		m.updateViewport()
		return m, m.requestPreview()

	case SessionStartedMsg:
		if !m.finish(msg.RequestID) {
			return m, nil
		}
		if msg.Error != nil {
			m.status = fmt.Sprintf("Failed to start chat: %v", msg.Error)
			return m, nil
		}
		m.status = ""
		return m, m.enterChat()

	case ReplyMsg:
		m.finish(msg.RequestID)
		m.updateViewport()
		if m.currentMode == chatView {
			return m, m.input.Focus()
		}

	case PreviewLoadedMsg:
		if !m.finish(msg.RequestID) {
			return m, nil
		}
		if msg.RequestID == m.previewRequest {
			m.previewRequest = ""
		}
		if msg.Error != nil && !errors.Is(msg.Error, session.ErrPreviewSuperseded) {
			m.status = fmt.Sprintf("Failed to load %s: %v", msg.Ref.Filename, msg.Error)
		}
		m.updateViewport()

	case ResumedMsg:
		if !m.finish(msg.RequestID) {
			return m, nil
		}
		if msg.Error != nil {
			m.status = fmt.Sprintf("Failed to resume: %v", msg.Error)
			return m, nil
		}
		m.status = ""
		return m, m.enterChat()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancelRequests()
			return m, tea.Quit
		}
		switch m.currentMode {
		case projectView:
			return m.updateProjects(msg)
		case phaseView:
			return m.updatePhases(msg)
		case historyView:
			return m.updateHistories(msg)
		case chatView:
			return m.updateChat(msg)
		}
	}

	if m.currentMode == chatView {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height

	// Split screen for the history view
	leftWidth := width/3 - 1
	rightWidth := width - leftWidth - 1
	viewHeight := height - 3

	if !m.ready {
		m.viewport = viewport.New(width, viewHeight)
		m.transcript = viewport.New(width, viewHeight-1) // one line for the input
		m.transcript.KeyMap = chatKeyMap()
		m.leftViewport = viewport.New(leftWidth, viewHeight)
		m.rightViewport = viewport.New(rightWidth, viewHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = viewHeight
		m.transcript.Width = width
		m.transcript.Height = viewHeight - 1
		m.leftViewport.Width = leftWidth
		m.leftViewport.Height = viewHeight
		m.rightViewport.Width = rightWidth
		m.rightViewport.Height = viewHeight
	}
	m.input.Width = width - 4
	m.updateViewport()
}

func (m model) updateProjects(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.cancelRequests()
		return m, tea.Quit

	case "up", "k":
		if m.projectCursor > 0 {
			m.projectCursor--
			m.updateViewport()
		}

	case "down", "j":
		if m.projectCursor < len(m.projects)-1 {
			m.projectCursor++
			m.updateViewport()
		}

	case "enter":
		if m.projectCursor < len(m.projects) {
			return m, m.openProject(m.projects[m.projectCursor].Name)
		}

	case "n":
		if m.projectCursor < len(m.projects) {
			m.selectedProject = m.projects[m.projectCursor].Name
			m.openPhases()
		}

	case "r":
		ctx, id := m.track("Loading projects")
		return m, loadProjectsCmd(ctx, m.catalog, id)

	case "x":
		state := m.ctrl.Snapshot()
		if state.Active() && !state.Loading {
			m.logger.Info("closing session", zap.String("session", sessionLabel(state)))
			m.ctrl.Reset()
			m.status = "Session closed"
			m.updateViewport()
		}

	case "esc":
		m.cancelRequests()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updatePhases(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.cancelRequests()
		return m, tea.Quit

	case "up", "k":
		if m.phaseCursor > 0 {
			m.phaseCursor--
			m.updateViewport()
		}

	case "down", "j":
		if m.phaseCursor < len(models.Phases)-1 {
			m.phaseCursor++
			m.updateViewport()
		}

	case "enter":
		phase := models.Phases[m.phaseCursor]
		ctx, id := m.track("Starting chat")
		return m, startChatCmd(ctx, m.ctrl, id, m.selectedProject, phase)

	case "esc", "backspace":
		if m.busy() {
			m.cancelRequests()
			return m, nil
		}
		m.currentMode = projectView
		m.updateViewport()
	}
	return m, nil
}

func (m model) updateHistories(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.cancelRequests()
		return m, tea.Quit

	case "up", "k":
		if m.historyCursor > 0 {
			m.historyCursor--
			m.updateViewport()
			return m, m.requestPreview()
		}

	case "down", "j":
		if m.historyCursor < len(m.histories)-1 {
			m.historyCursor++
			m.updateViewport()
			return m, m.requestPreview()
		}

	case "enter", "r":
		state := m.ctrl.Snapshot()
		ref, ok := m.currentHistory()
		if m.busy() || !ok || !previewMatches(state.Preview, ref) {
			return m, nil
		}
		ctx, id := m.track("Resuming " + ref.Filename)
		return m, resumeCmd(ctx, m.ctrl, id)

	case "n":
		m.dropPreview()
		m.openPhases()

	case "c":
		if m.ctrl.Snapshot().Active() {
			m.dropPreview()
			return m, m.enterChat()
		}

	case "esc", "backspace":
		if m.busy() {
			m.cancelRequests()
			return m, nil
		}
		m.ctrl.CancelHistoryDisplay()
		m.currentMode = projectView
		m.selectedProject = ""
		m.histories = nil
		m.updateViewport()
	}

	var leftCmd, rightCmd tea.Cmd
	m.leftViewport, leftCmd = m.leftViewport.Update(msg)
	m.rightViewport, rightCmd = m.rightViewport.Update(msg)
	return m, tea.Batch(leftCmd, rightCmd)
}

func (m model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if !m.ctrl.Snapshot().InputEnabled() {
			return m, nil
		}
		pending, ok := m.ctrl.Begin(m.input.Value())
		if !ok {
			return m, nil
		}
		m.input.Reset()
		m.input.Blur()
		ctx, id := m.track("Waiting for reply")
		m.updateViewport()
		return m, completeCmd(ctx, m.ctrl, id, pending)

	case "esc":
		if m.busy() {
			m.cancelRequests()
			return m, nil
		}
		m.input.Blur()
		return m, m.openProject(m.ctrl.Snapshot().Project)

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}

	if m.ctrl.Snapshot().Loading {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// openProject switches to the history browser of project
func (m *model) openProject(project string) tea.Cmd {
	m.selectedProject = project
	m.histories = nil
	m.historyCursor = 0
	m.currentMode = historyView
	m.status = ""
	m.updateViewport()

	ctx, id := m.track("Loading histories")
	return loadHistoriesCmd(ctx, m.catalog, id, project)
}

func (m *model) openPhases() {
	m.phaseCursor = 0
	m.currentMode = phaseView
	m.status = ""
	m.updateViewport()
}

// enterChat shows the live session and focuses the input
func (m *model) enterChat() tea.Cmd {
	m.currentMode = chatView
	m.updateViewport()
	m.logger.Debug("entering chat", zap.String("session", sessionLabel(m.ctrl.Snapshot())))
	return m.input.Focus()
}

// dropPreview abandons the preview request in flight and clears any
// preview already shown
func (m *model) dropPreview() {
	if m.previewRequest != "" {
		m.finish(m.previewRequest)
		m.previewRequest = ""
	}
	m.ctrl.CancelHistoryDisplay()
}

// requestPreview loads the history under the cursor, replacing any
// preview still in flight
func (m *model) requestPreview() tea.Cmd {
	ref, ok := m.currentHistory()
	if !ok {
		return nil
	}
	if m.previewRequest != "" {
		m.finish(m.previewRequest)
	}
	ctx, id := m.track("Loading " + ref.Filename)
	m.previewRequest = id
	return previewCmd(ctx, m.ctrl, id, ref)
}

func (m model) currentHistory() (models.HistoryRef, bool) {
	if m.historyCursor < 0 || m.historyCursor >= len(m.histories) {
		return models.HistoryRef{}, false
	}
	return m.histories[m.historyCursor], true
}

func previewMatches(p *session.Preview, ref models.HistoryRef) bool {
	return p != nil &&
		p.Project == ref.Project &&
		p.Phase == ref.Phase &&
		p.SessionID == ref.SessionID
}

// chatKeyMap limits transcript scrolling to the paging keys so that
// typing is never captured by the viewport
func chatKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}
}

// ShowTUI runs the interactive front-end until the user quits
func ShowTUI(ctx context.Context, ctrl *session.Controller, catalog *projects.Catalog, logger *zap.Logger) error {
	p := tea.NewProgram(
		initialModel(ctx, ctrl, catalog, logger),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	m := finalModel.(model)
	m.cancelRequests()
	return nil
}
