package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strrl/castor/internal/api"
)

// NewPingCommand creates the ping command
func NewPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.CloseIdleConnections()

			banner, err := ping(cmd.Context(), client)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", client.BaseURL(), banner)
			return nil
		},
	}
}

func ping(ctx context.Context, client *api.Client) (string, error) {
	banner, err := client.Ping(ctx)
	if err != nil {
		return "", fmt.Errorf("backend %s is not reachable: %w", client.BaseURL(), err)
	}
	logger.Debug("backend reachable",
		zap.String("backend", client.BaseURL()),
		zap.String("banner", banner))
	return banner, nil
}
