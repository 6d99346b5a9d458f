package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/castor/internal/archive"
	"github.com/strrl/castor/internal/projects"
	"github.com/strrl/castor/pkg/models"
)

// historySource is what show needs from either the backend or the archive
type historySource interface {
	projects.Source
	LoadHistory(ctx context.Context, project, phase, sessionID string) (*models.History, error)
}

var (
	showArchive string
	showLimit   int
)

// NewShowCommand creates the show command
func NewShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [project] [history]",
		Short: "Show projects, histories, or messages without TUI",
		Long: `Show projects, histories, or messages in a non-interactive format.
Without arguments: lists all projects
With project name: lists all histories in that project
With project name and history: shows the messages of that history

A history is named <phase>_<session>, with or without the .json extension.
With --archive the backend's chat_sessions directory is read directly.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runShow,
	}

	cmd.Flags().StringVar(&showArchive, "archive", "", "Read the chat_sessions directory at this path instead of the backend")
	cmd.Flags().IntVar(&showLimit, "limit", 0, "Show at most this many messages (0 shows all)")
	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	src, cleanup, err := openHistorySource(showArchive)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	switch len(args) {
	case 0:
		return showProjects(ctx, src)
	case 1:
		return showHistories(ctx, src, args[0])
	default:
		return showMessages(ctx, src, args[0], args[1])
	}
}

func openHistorySource(dir string) (historySource, func(), error) {
	if dir != "" {
		store, err := archive.Open(dir, logger.Named("archive"))
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("Reading archive %s\n\n", store.Dir())
		return store, func() {}, nil
	}

	client, err := newClient()
	if err != nil {
		return nil, nil, err
	}
	return client, client.CloseIdleConnections, nil
}

func showProjects(ctx context.Context, src historySource) error {
	var list []models.Project
	var err error
	if store, ok := src.(*archive.Store); ok {
		list, err = store.Projects(ctx)
	} else {
		list, err = newCatalog(src).Refresh(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch projects: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No projects found")
		return nil
	}

	fmt.Println("Projects:")
	fmt.Println("=========")
	for i, project := range list {
		fmt.Printf("%d. %s\n", i+1, project.Name)
		fmt.Printf("   Histories: %d\n", len(project.Histories))
		if !project.LastActivity.IsZero() {
			fmt.Printf("   Last Activity: %s\n", project.LastActivity.Format("2006-01-02 15:04"))
		}
		fmt.Println()
	}
	return nil
}

func showHistories(ctx context.Context, src historySource, project string) error {
	var refs []models.HistoryRef
	var err error
	if store, ok := src.(*archive.Store); ok {
		refs, err = store.Histories(ctx, project)
	} else {
		refs, err = newCatalog(src).Histories(ctx, project)
	}
	if err != nil {
		return err
	}

	if len(refs) == 0 {
		fmt.Printf("No histories found for project '%s'\n", project)
		return nil
	}

	fmt.Printf("Histories for project '%s':\n", project)
	fmt.Println("===================================")
	for i, ref := range refs {
		fmt.Printf("%d. %s\n", i+1, ref.Filename)
		fmt.Printf("   Phase: %s\n", ref.Phase)
		fmt.Printf("   Session: %s\n", ref.SessionID)
		if ref.MessageCount > 0 {
			fmt.Printf("   Messages: %d\n", ref.MessageCount)
		}
		fmt.Println()
	}
	return nil
}

func showMessages(ctx context.Context, src historySource, project, name string) error {
	phase, sessionID, ok := projects.ResolveHistory(name)
	if !ok {
		return fmt.Errorf("'%s' is not a <phase>_<session> history name", name)
	}

	history, err := src.LoadHistory(ctx, project, phase, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if len(history.Messages) == 0 {
		fmt.Printf("History '%s' in project '%s' is empty\n", name, project)
		return nil
	}

	fmt.Printf("Messages of '%s' in project '%s' (phase %s):\n", sessionID, project, phase)
	fmt.Println("================================================")
	for i, msg := range history.Messages {
		if showLimit > 0 && i >= showLimit {
			fmt.Printf("\n(showing first %d of %d messages)\n", showLimit, len(history.Messages))
			break
		}
		fmt.Printf("\n%d. [%s] %s\n", i+1, msg.Role, msg.Text)
	}
	return nil
}
