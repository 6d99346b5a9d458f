package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strrl/castor/internal/projects"
	"github.com/strrl/castor/internal/session"
)

var (
	chatProject string
	chatPhase   string
	chatResume  string
)

// NewChatCommand creates the chat command
func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Send messages to the assistant without TUI",
		Long: `Start a chat session (or resume one with --resume) and send each
message in turn, printing the assistant's reply. Without message arguments
every non-empty line of stdin is sent.`,
		RunE: runChat,
	}

	cmd.Flags().StringVarP(&chatProject, "project", "p", "", "Project to chat in (required)")
	cmd.Flags().StringVar(&chatPhase, "phase", "", "Phase of a new session (defaults to the configured phase)")
	cmd.Flags().StringVar(&chatResume, "resume", "", "Resume the history <phase>_<session> instead of starting a new session")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	ctrl := newController(client)
	defer ctrl.Close()

	ctx := cmd.Context()
	if chatResume != "" {
		phase, sessionID, ok := projects.ResolveHistory(chatResume)
		if !ok {
			return fmt.Errorf("'%s' is not a <phase>_<session> history name", chatResume)
		}
		if err := ctrl.DisplayHistoryPreview(ctx, chatProject, phase, sessionID); err != nil {
			return err
		}
		if err := ctrl.ResumeDisplayedHistory(ctx); err != nil {
			return err
		}
		state := ctrl.Snapshot()
		fmt.Printf("Resumed %s in %s (%d messages)\n", chatResume, state.Project, len(state.Messages))
	} else {
		if err := ctrl.StartNewChat(ctx, chatProject, phaseOrDefault(chatPhase)); err != nil {
			return err
		}
		state := ctrl.Snapshot()
		fmt.Printf("Started %s session %s in %s\n", state.Phase, state.SessionID, state.Project)
	}

	send := func(text string) {
		reply, ok := ctrl.Submit(ctx, text)
		if !ok {
			return
		}
		fmt.Printf("\nYou: %s\nCastor: %s\n", text, reply.Text)
	}

	if len(args) > 0 {
		for _, text := range args {
			send(text)
		}
		return nil
	}
	return sendLines(os.Stdin, send, ctrl)
}

// sendLines submits every non-empty line of r until EOF
func sendLines(r io.Reader, send func(string), ctrl *session.Controller) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		send(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	state := ctrl.Snapshot()
	logger.Debug("chat finished",
		zap.String("session_id", state.SessionID),
		zap.Int("messages", len(state.Messages)))
	return nil
}
