// Package session holds the chat session lifecycle: starting a session,
// exchanging messages, previewing a stored history and resuming it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strrl/castor/internal/api"
	"github.com/strrl/castor/pkg/models"
)

var (
	// ErrNoProject is returned when a session is started without a project
	ErrNoProject = errors.New("no project selected")
	// ErrClosed is returned when the controller was closed while a call was in flight
	ErrClosed = errors.New("session controller closed")
	// ErrPreviewSuperseded is returned when a preview was cancelled or
	// replaced before its history arrived
	ErrPreviewSuperseded = errors.New("history preview superseded")
)

// Backend is the part of the REST backend the controller needs
type Backend interface {
	NewSession(ctx context.Context, project, phase string) error
	Chat(ctx context.Context, req api.ChatRequest) (string, error)
	LoadHistory(ctx context.Context, project, phase, sessionID string) (*models.History, error)
	ResumeSession(ctx context.Context, project, phase, sessionID string) error
}

// Preview is a read-only stored session shown in place of the live one
type Preview struct {
	Project   string
	Phase     string
	SessionID string
	Messages  []models.Message
}

// State is a point-in-time copy of the controller state
type State struct {
	Project        string
	Phase          string
	SessionID      string
	Messages       []models.Message
	Loading        bool
	PreviewLoading bool
	Preview        *Preview
}

// Active reports whether a live session exists
func (s State) Active() bool {
	return s.Project != ""
}

// InputEnabled reports whether a new message may be submitted
func (s State) InputEnabled() bool {
	return s.Active() && s.Preview == nil && !s.Loading
}

// Pending is an in-flight submission created by Begin
type Pending struct {
	Message   models.Message
	Project   string
	Phase     string
	SessionID string
}

// Controller owns the live chat session. All methods are safe for
// concurrent use; Loading is advisory and callers should not Submit
// while it is set.
type Controller struct {
	backend Backend
	logger  *zap.Logger
	newID   func() string

	lifetime context.Context
	stop     context.CancelFunc

	mu             sync.Mutex
	project        string
	phase          string
	sessionID      string
	messages       []models.Message
	loading        bool
	previewLoads   int
	previewGen     uint64
	preview        *Preview
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithIDGenerator replaces the UUID generator used for session and message IDs
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

// New creates an idle controller
func New(backend Backend, opts ...Option) *Controller {
	lifetime, stop := context.WithCancel(context.Background())
	c := &Controller{
		backend:  backend,
		logger:   zap.NewNop(),
		newID:    uuid.NewString,
		lifetime: lifetime,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels in-flight backend calls. Results arriving afterwards are dropped.
func (c *Controller) Close() {
	c.stop()
}

func (c *Controller) closed() bool {
	return c.lifetime.Err() != nil
}

// bind derives a context that is cancelled when either ctx or the
// controller lifetime ends.
func (c *Controller) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(c.lifetime, cancel)
	return ctx, func() {
		stopAfter()
		cancel()
	}
}

// Snapshot returns a deep copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Project:        c.project,
		Phase:          c.phase,
		SessionID:      c.sessionID,
		Messages:       cloneMessages(c.messages),
		Loading:        c.loading,
		PreviewLoading: c.previewLoads > 0,
	}
	if c.preview != nil {
		p := *c.preview
		p.Messages = cloneMessages(c.preview.Messages)
		s.Preview = &p
	}
	return s
}

// StartNewChat initializes a backend session for project and phase and
// makes it the live session. On failure the state is left unchanged.
func (c *Controller) StartNewChat(ctx context.Context, project, phase string) error {
	if strings.TrimSpace(project) == "" {
		return ErrNoProject
	}
	if phase == "" {
		phase = models.DefaultPhase
	}

	ctx, cancel := c.bind(ctx)
	defer cancel()

	if err := c.backend.NewSession(ctx, project, phase); err != nil {
		c.logger.Error("failed to start new chat",
			zap.String("project", project),
			zap.String("phase", phase),
			zap.Error(err))
		return fmt.Errorf("start new chat: %w", err)
	}
	if c.closed() {
		return ErrClosed
	}

	c.mu.Lock()
	c.project = project
	c.phase = phase
	c.messages = []models.Message{}
	c.sessionID = c.newID()
	c.preview = nil
	c.previewGen++
	sessionID := c.sessionID
	c.mu.Unlock()

	c.logger.Info("new chat started",
		zap.String("project", project),
		zap.String("phase", phase),
		zap.String("session_id", sessionID))
	return nil
}

// Submit sends text as a user message and waits for the terminal reply.
// It returns false without side effects when the text is blank, no
// session is active, or a preview is shown.
func (c *Controller) Submit(ctx context.Context, text string) (models.Message, bool) {
	pending, ok := c.Begin(text)
	if !ok {
		return models.Message{}, false
	}
	return c.Complete(ctx, pending), true
}

// Begin appends the provisional user message and marks the controller
// as loading. The returned Pending must be passed to Complete.
func (c *Controller) Begin(text string) (*Pending, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.project == "" || c.preview != nil {
		return nil, false
	}
	if c.sessionID == "" {
		c.sessionID = c.newID()
	}

	msg := models.Message{
		ID:      c.newID(),
		Role:    models.RoleUser,
		Text:    text,
		Pending: true,
	}
	c.messages = append(c.messages, msg)
	c.loading = true

	return &Pending{
		Message:   msg,
		Project:   c.project,
		Phase:     c.phase,
		SessionID: c.sessionID,
	}, true
}

// Complete sends a pending message to the backend, confirms the
// provisional entry and appends the assistant reply. Failures become an
// assistant-role error message. Loading is cleared on every path.
func (c *Controller) Complete(ctx context.Context, p *Pending) models.Message {
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	bound, cancel := c.bind(ctx)
	defer cancel()

	reply, err := c.backend.Chat(bound, api.ChatRequest{
		Message:   p.Message.Text,
		Phase:     p.Phase,
		Project:   p.Project,
		SessionID: p.SessionID,
	})

	var terminal models.Message
	if err != nil {
		c.logger.Warn("chat request failed",
			zap.String("session_id", p.SessionID),
			zap.Error(err))
		terminal = models.Message{ID: c.newID(), Role: models.RoleModel, Text: ErrorText(err)}
	} else {
		terminal = models.Message{ID: c.newID(), Role: models.RoleModel, Text: reply}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed() {
		c.logger.Debug("dropping reply after close", zap.String("session_id", p.SessionID))
		return terminal
	}
	if c.sessionID != p.SessionID {
		c.logger.Debug("dropping reply for replaced session", zap.String("session_id", p.SessionID))
		return terminal
	}

	for i := range c.messages {
		if c.messages[i].ID == p.Message.ID {
			confirmed := c.messages[i]
			confirmed.Pending = false
			c.messages[i] = confirmed
			break
		}
	}
	c.messages = append(c.messages, terminal)
	return terminal
}

// DisplayHistoryPreview loads a stored session as a read-only preview.
// The live session is not touched.
func (c *Controller) DisplayHistoryPreview(ctx context.Context, project, phase, sessionID string) error {
	c.mu.Lock()
	c.previewLoads++
	c.previewGen++
	gen := c.previewGen
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.previewLoads--
		c.mu.Unlock()
	}()

	ctx, cancel := c.bind(ctx)
	defer cancel()

	history, err := c.backend.LoadHistory(ctx, project, phase, sessionID)
	if err != nil {
		c.logger.Error("failed to load history",
			zap.String("project", project),
			zap.String("phase", phase),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return fmt.Errorf("load history: %w", err)
	}
	if c.closed() {
		return ErrClosed
	}
	if ctx.Err() != nil {
		return ErrPreviewSuperseded
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previewGen != gen {
		c.logger.Debug("dropping superseded preview",
			zap.String("project", project),
			zap.String("session_id", sessionID))
		return ErrPreviewSuperseded
	}
	c.preview = &Preview{
		Project:   project,
		Phase:     phase,
		SessionID: sessionID,
		Messages:  cloneMessages(history.Messages),
	}
	return nil
}

// ResumeDisplayedHistory re-activates the previewed session on the
// backend and, only on success, makes it the live session.
func (c *Controller) ResumeDisplayedHistory(ctx context.Context) error {
	c.mu.Lock()
	preview := c.preview
	c.mu.Unlock()
	if preview == nil {
		return nil
	}

	ctx, cancel := c.bind(ctx)
	defer cancel()

	if err := c.backend.ResumeSession(ctx, preview.Project, preview.Phase, preview.SessionID); err != nil {
		c.logger.Error("failed to resume session",
			zap.String("project", preview.Project),
			zap.String("session_id", preview.SessionID),
			zap.Error(err))
		return fmt.Errorf("resume session: %w", err)
	}
	if c.closed() {
		return ErrClosed
	}

	c.mu.Lock()
	c.project = preview.Project
	c.phase = preview.Phase
	c.sessionID = preview.SessionID
	c.messages = cloneMessages(preview.Messages)
	c.preview = nil
	c.previewGen++
	c.mu.Unlock()

	c.logger.Info("session resumed",
		zap.String("project", preview.Project),
		zap.String("session_id", preview.SessionID),
		zap.Int("messages", len(preview.Messages)))
	return nil
}

// CancelHistoryDisplay drops the preview. A preview load still in flight
// is discarded when it completes.
func (c *Controller) CancelHistoryDisplay() {
	c.mu.Lock()
	c.preview = nil
	c.previewGen++
	c.mu.Unlock()
}

// Reset returns to the idle home state with no session
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.project = ""
	c.phase = ""
	c.sessionID = ""
	c.messages = nil
	c.preview = nil
	c.previewGen++
}

// ErrorText renders a failed chat call as the text of an assistant message
func ErrorText(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case api.KindBackend:
			if apiErr.Detail != "" {
				return "Error: " + apiErr.Detail
			}
			return "Error: failed to reach the backend"
		case api.KindNetwork:
			if apiErr.Err != nil {
				return "Communication error: " + apiErr.Err.Error()
			}
		}
	}
	return "Communication error: " + err.Error()
}

func cloneMessages(msgs []models.Message) []models.Message {
	if msgs == nil {
		return nil
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}
