package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatch/internal/approval"
	"github.com/procwatch/procwatch/internal/audit"
	"github.com/procwatch/procwatch/internal/config"
	"github.com/procwatch/procwatch/internal/guard"
	"github.com/procwatch/procwatch/internal/policy"
	"github.com/procwatch/procwatch/internal/proctree"
	"github.com/procwatch/procwatch/internal/sentinel"
)

var (
	execConfig string
	execPolicy string
	execDryRun bool
)

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVar(&execConfig, "config", "", "Path to runtime config YAML (default: ~/.procwatch/config.yaml)")
	execCmd.Flags().StringVar(&execPolicy, "policy", "", "Path to policy JSON (overrides config)")
	execCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "Adjudicate without executing")
}

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command> [args...]",
	Short: "Run a command through policy adjudication",
	Long:  "Adjudicates the command against the policy, prompting on the terminal when needed, then executes it if allowed. Every decision is written to the audit trail. Exit code 77 means the command was blocked.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(execConfig)
	if err != nil {
		return err
	}
	if execPolicy != "" {
		cfg.PolicyPath = execPolicy
	}

	pol, err := policy.LoadOrDefault(cfg.PolicyPath)
	if err != nil {
		return err
	}

	store, err := audit.Open(cfg.AuditDB, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	tracker := proctree.NewTracker(os.Getpid(), proctree.ProcfsSource{})
	prompter := &approval.TerminalPrompter{In: os.Stdin, Out: os.Stderr}
	gate := approval.NewGate(prompter, time.Duration(cfg.ApprovalTimeout), logger)
	s := sentinel.New(pol, tracker, gate, store, nil, logger)
	g := guard.New(s)

	ctx := cmd.Context()
	name, rest := args[0], args[1:]

	if execDryRun {
		allowed, reason := g.Check(ctx, name, rest)
		fmt.Printf("allowed=%t reason=%q\n", allowed, reason)
		if !allowed {
			os.Exit(77)
		}
		return nil
	}

	result, err := g.Run(ctx, name, rest, os.Stdin)
	if err != nil {
		var blocked *guard.BlockedError
		if errors.As(err, &blocked) {
			fmt.Fprintf(os.Stderr, "blocked: %s\n", blocked.Reason)
			os.Exit(77)
		}
		return err
	}

	fmt.Print(result.Stdout)
	fmt.Fprint(os.Stderr, result.Stderr)
	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}
	return nil
}
