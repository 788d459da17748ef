package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatch/internal/audit"
	"github.com/procwatch/procwatch/internal/config"
	"github.com/procwatch/procwatch/internal/policy"
	"github.com/procwatch/procwatch/internal/sim"
)

var (
	simulateConfig string
	simulateLimit  int
	simulateJSON   bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simulateConfig, "config", "", "Path to runtime config YAML (default: ~/.procwatch/config.yaml)")
	simulateCmd.Flags().IntVar(&simulateLimit, "limit", 1000, "Number of recent audit records to replay")
	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "Emit JSON instead of text")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <candidate-policy.json>",
	Short: "Replay the audit trail against a candidate policy",
	Long:  "Re-evaluates recent audit records under the candidate policy and reports which outcomes would change, without touching the live policy or the trail.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(simulateConfig)
	if err != nil {
		return err
	}

	candidate, err := policy.Load(args[0])
	if err != nil {
		return err
	}

	store, err := audit.Open(cfg.AuditDB, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(cmd.Context(), simulateLimit)
	if err != nil {
		return err
	}

	result := sim.Replay(records, candidate)
	result.PolicyPath = args[0]

	if simulateJSON {
		out, err := sim.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(sim.FormatText(result))
	return nil
}
