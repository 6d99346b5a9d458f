package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/castor/internal/projects"
)

// NewProjectCommand creates the project command group
func NewProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create or delete projects on the backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.CloseIdleConnections()

			if err := newCatalog(client).Create(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Created project '%s'\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a project and all of its histories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.CloseIdleConnections()

			if err := newCatalog(client).DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted project '%s'\n", args[0])
			return nil
		},
	})

	return cmd
}

// NewHistoryCommand creates the history command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage stored chat histories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <project> <history>",
		Short: "Delete one stored history",
		Long:  `Delete a stored history. The history is named <phase>_<session>, with or without .json.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, ok := projects.ParseHistoryRef(args[0], ensureJSON(args[1]))
			if !ok {
				return fmt.Errorf("'%s' is not a <phase>_<session> history name", args[1])
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.CloseIdleConnections()

			if err := newCatalog(client).DeleteHistory(cmd.Context(), ref); err != nil {
				return err
			}
			fmt.Printf("Deleted %s from '%s'\n", ref.Filename, ref.Project)
			return nil
		},
	})

	return cmd
}

func ensureJSON(name string) string {
	phase, sessionID, ok := projects.ResolveHistory(name)
	if !ok {
		return name
	}
	return projects.HistoryFilename(phase, sessionID)
}
