package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strrl/castor/internal/projects"
	"github.com/strrl/castor/internal/session"
	"github.com/strrl/castor/pkg/models"
)

// Message types for async operations
type (
	// ProjectsLoadedMsg contains the refreshed project list
	ProjectsLoadedMsg struct {
		RequestID string
		Projects  []models.Project
		Error     error
	}

	// HistoriesLoadedMsg contains the histories of one project
	HistoriesLoadedMsg struct {
		RequestID string
		Project   string
		Histories []models.HistoryRef
		Error     error
	}

	// SessionStartedMsg reports the outcome of StartNewChat
	SessionStartedMsg struct {
		RequestID string
		Error     error
	}

	// ReplyMsg carries the terminal message of a submission
	ReplyMsg struct {
		RequestID string
		Reply     models.Message
	}

	// PreviewLoadedMsg reports the outcome of a history preview
	PreviewLoadedMsg struct {
		RequestID string
		Ref       models.HistoryRef
		Error     error
	}

	// ResumedMsg reports the outcome of resuming the previewed history
	ResumedMsg struct {
		RequestID string
		Error     error
	}

	// TickMsg is sent periodically for spinner animation
	TickMsg time.Time
)

// Commands for async operations

// loadProjectsCmd refreshes the catalog
func loadProjectsCmd(ctx context.Context, catalog *projects.Catalog, requestID string) tea.Cmd {
	return func() tea.Msg {
		list, err := catalog.Refresh(ctx)
		return ProjectsLoadedMsg{RequestID: requestID, Projects: list, Error: err}
	}
}

// loadHistoriesCmd lists the histories of a project
func loadHistoriesCmd(ctx context.Context, catalog *projects.Catalog, requestID, project string) tea.Cmd {
	return func() tea.Msg {
		histories, err := catalog.Histories(ctx, project)
		return HistoriesLoadedMsg{
			RequestID: requestID,
			Project:   project,
			Histories: histories,
			Error:     err,
		}
	}
}

// startChatCmd starts a fresh session
func startChatCmd(ctx context.Context, ctrl *session.Controller, requestID, project, phase string) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.StartNewChat(ctx, project, phase)
		return SessionStartedMsg{RequestID: requestID, Error: err}
	}
}

// completeCmd sends a message started with Controller.Begin
func completeCmd(ctx context.Context, ctrl *session.Controller, requestID string, pending *session.Pending) tea.Cmd {
	return func() tea.Msg {
		reply := ctrl.Complete(ctx, pending)
		return ReplyMsg{RequestID: requestID, Reply: reply}
	}
}

// previewCmd loads a stored history into the preview pane
func previewCmd(ctx context.Context, ctrl *session.Controller, requestID string, ref models.HistoryRef) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.DisplayHistoryPreview(ctx, ref.Project, ref.Phase, ref.SessionID)
		return PreviewLoadedMsg{RequestID: requestID, Ref: ref, Error: err}
	}
}

// resumeCmd makes the previewed history the live session
func resumeCmd(ctx context.Context, ctrl *session.Controller, requestID string) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.ResumeDisplayedHistory(ctx)
		return ResumedMsg{RequestID: requestID, Error: err}
	}
}

// tickCmd creates a ticker for spinner animation
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
