package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/strrl/castor/internal/archive"
)

var debugArchive string

// NewDebugCommand creates the debug-history command
func NewDebugCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug-history <project> <history>",
		Short: "Debug a stored history to see raw data",
		Long: `Dump every stored row of a history file from the chat_sessions archive,
with per-role counts. The archive path comes from --archive or the config.`,
		Args: cobra.ExactArgs(2),
		RunE: runDebugHistory,
	}

	cmd.Flags().StringVar(&debugArchive, "archive", "", "Path to the chat_sessions directory")
	return cmd
}

func runDebugHistory(cmd *cobra.Command, args []string) error {
	dir := debugArchive
	if dir == "" {
		dir = cfg.Archive.Dir
	}
	if dir == "" {
		return fmt.Errorf("no archive directory: pass --archive or set archive.dir in %s", configPath)
	}

	store, err := archive.Open(dir, logger.Named("archive"))
	if err != nil {
		return err
	}

	info, err := store.DebugHistory(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to debug history: %w", err)
	}

	fmt.Printf("Archive: %s\n", store.Dir())
	fmt.Printf("Debugging history: %s\n", info.Path)
	fmt.Printf("Phase: %s  Session: %s\n", info.Phase, info.SessionID)
	fmt.Println("==========================================")

	if len(info.Rows) == 0 {
		fmt.Println("No messages found for this history")
		return nil
	}

	roles := make([]string, 0, len(info.RoleCounts))
	for role := range info.RoleCounts {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	fmt.Printf("Found %d messages:", len(info.Rows))
	for _, role := range roles {
		fmt.Printf(" %s=%d", role, info.RoleCounts[role])
	}
	fmt.Println()

	for i, row := range info.Rows {
		fmt.Printf("\n--- Message %d (%s) ---\n%s\n", i+1, row.Role, row.Text)
	}
	return nil
}
