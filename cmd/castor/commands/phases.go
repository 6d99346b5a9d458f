package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/strrl/castor/pkg/models"
)

// NewPhasesCommand creates the phases command
func NewPhasesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "phases",
		Short: "List the penetration-testing phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printPhases(cmd.OutOrStdout())
			return nil
		},
	}
}

func printPhases(w io.Writer) {
	for _, phase := range models.Phases {
		fmt.Fprintf(w, "%-32s %s\n", phase, models.PhaseDescription(phase))
	}
}
