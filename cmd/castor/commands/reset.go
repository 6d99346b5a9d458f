package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command
func NewResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the backend's active chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.CloseIdleConnections()

			if err := client.ResetSession(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Session reset")
			return nil
		},
	}
}
