package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strrl/castor/internal/api"
	"github.com/strrl/castor/internal/config"
	"github.com/strrl/castor/internal/logging"
	"github.com/strrl/castor/internal/projects"
	"github.com/strrl/castor/internal/session"
	"github.com/strrl/castor/internal/tui"
	"github.com/strrl/castor/pkg/models"
)

var (
	configPath string
	backendURL string
	debugMode  bool
	verbose    bool

	cfg    *config.Config
	logger = zap.NewNop()
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "castor",
		Short: "Chat with the Castor penetration-testing assistant",
		Long: `castor is a terminal client for the Castor backend. It keeps per-project
chat histories organised by penetration-testing phase, lets you preview a
stored history and resume it, or start a new chat in any phase.

Run without arguments to start the interactive interface.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: runTUI,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend base URL (overrides the config file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Run in debug mode (list projects and histories without TUI)")

	rootCmd.AddCommand(NewShowCommand())
	rootCmd.AddCommand(NewChatCommand())
	rootCmd.AddCommand(NewProjectCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewResetCommand())
	rootCmd.AddCommand(NewPhasesCommand())
	rootCmd.AddCommand(NewDebugCommand())
	rootCmd.AddCommand(NewPingCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// setup loads the config and builds the logger before any command runs
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backendURL != "" {
		loaded.Backend.URL = backendURL
		if err := loaded.Validate(); err != nil {
			return err
		}
	}
	cfg = loaded

	l, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	logger.Debug("config loaded",
		zap.String("path", configPath),
		zap.String("backend", cfg.Backend.URL))
	return nil
}

func newClient() (*api.Client, error) {
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.Backend.URL,
		api.WithTimeout(timeout),
		api.WithLogger(logger.Named("api")),
	), nil
}

func newController(client *api.Client) *session.Controller {
	return session.New(client, session.WithLogger(logger.Named("session")))
}

func newCatalog(source projects.Source) *projects.Catalog {
	return projects.NewCatalog(source, logger.Named("projects"))
}

func runTUI(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	catalog := newCatalog(client)

	// Debug mode: just list projects and histories without TUI
	if debugMode {
		return runDebugMode(cmd.Context(), client, catalog)
	}

	ctrl := newController(client)
	defer ctrl.Close()

	if err := tui.ShowTUI(cmd.Context(), ctrl, catalog, logger.Named("tui")); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runDebugMode(ctx context.Context, client *api.Client, catalog *projects.Catalog) error {
	banner, err := ping(ctx, client)
	if err != nil {
		return err
	}
	list, err := catalog.Refresh(ctx)
	if err != nil {
		return err
	}

	fmt.Println("=== Debug Mode: Projects and Histories ===")
	fmt.Printf("Backend: %s (%s)\n", client.BaseURL(), banner)
	if len(list) == 0 {
		fmt.Println("No projects found")
		return nil
	}
	for i, project := range list {
		fmt.Printf("\n%d. Project: %s\n", i+1, project.Name)
		fmt.Printf("   Histories: %d\n", len(project.Histories))

		for j, ref := range project.Histories {
			if j >= 3 { // Only show first 3 histories
				fmt.Printf("   ... and %d more\n", len(project.Histories)-3)
				break
			}
			fmt.Printf("   - %s (phase: %s, session: %s)\n", ref.Filename, ref.Phase, ref.SessionID)
		}
	}
	return nil
}

func phaseOrDefault(phase string) string {
	if phase != "" {
		return phase
	}
	if cfg != nil && cfg.Chat.DefaultPhase != "" {
		return cfg.Chat.DefaultPhase
	}
	return models.DefaultPhase
}
