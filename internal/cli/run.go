package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatch/internal/alert"
	"github.com/procwatch/procwatch/internal/approval"
	"github.com/procwatch/procwatch/internal/audit"
	"github.com/procwatch/procwatch/internal/config"
	"github.com/procwatch/procwatch/internal/policy"
	"github.com/procwatch/procwatch/internal/proctree"
	"github.com/procwatch/procwatch/internal/sentinel"
	"github.com/procwatch/procwatch/internal/server"
)

var (
	runConfig string
	runPolicy string
	runPID    int
	runListen string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runConfig, "config", "", "Path to runtime config YAML (default: ~/.procwatch/config.yaml)")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "Path to policy JSON (overrides config)")
	runCmd.Flags().IntVar(&runPID, "pid", 0, "Root PID of the monitored process tree (required)")
	runCmd.Flags().StringVar(&runListen, "listen", "", "Event intake address (overrides config)")
	runCmd.MarkFlagRequired("pid")
}

var runCmd = &cobra.Command{
	Use:   "run --pid <root-pid>",
	Short: "Monitor a process tree and serve the event intake",
	Long:  "Tracks the given root PID and its descendants, adjudicates the events streamed to the intake endpoint, and audits every decision. Prompts are resolved through the pending-approval directory; see 'procwatch pending'.",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(runConfig)
	if err != nil {
		return err
	}
	if runPolicy != "" {
		cfg.PolicyPath = runPolicy
	}
	if runListen != "" {
		cfg.Listen = runListen
	}

	pol, hash, err := policy.LoadWithHash(cfg.PolicyPath)
	if err != nil {
		return err
	}
	logger.Info("policy loaded", "version", pol.Version, "hash", hash)

	store, err := audit.Open(cfg.AuditDB, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	tracker := proctree.NewTracker(runPID, proctree.ProcfsSource{})
	logger.Info("tracking process tree", "root_pid", runPID, "members", len(tracker.Snapshot()))

	prompter, err := approval.NewFilePrompter(cfg.ApprovalDir, logger)
	if err != nil {
		return err
	}
	gate := approval.NewGate(prompter, time.Duration(cfg.ApprovalTimeout), logger)

	s := sentinel.New(pol, tracker, gate, store, alert.NewDispatcher(cfg.Alerts), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{Listen: cfg.Listen}, s, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("intake server: %w", err)
	}
	logger.Info("shut down")
	return nil
}
