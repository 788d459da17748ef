package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatch/internal/audit"
	"github.com/procwatch/procwatch/internal/config"
)

var (
	auditConfig string
	auditLimit  int
	auditStats  bool
	auditClear  bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().StringVar(&auditConfig, "config", "", "Path to runtime config YAML (default: ~/.procwatch/config.yaml)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Number of recent records to print")
	auditCmd.Flags().BoolVar(&auditStats, "stats", false, "Print aggregate counts instead of records")
	auditCmd.Flags().BoolVar(&auditClear, "clear", false, "Delete all audit records")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the decision audit trail",
	RunE:  runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(auditConfig)
	if err != nil {
		return err
	}

	store, err := audit.Open(cfg.AuditDB, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	if auditClear {
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("audit trail cleared")
		return nil
	}

	if auditStats {
		counts, err := store.AggregateCounts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("total=%d allowed=%d denied=%d\n", counts.Total, counts.Allowed, counts.Denied)
		return nil
	}

	records, err := store.Recent(ctx, auditLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no audit records")
		return nil
	}

	for _, rec := range records {
		verdict := "DENY "
		if rec.Allowed {
			verdict = "ALLOW"
		}
		fmt.Printf("%6d  %s  %s  %-15s  pid=%-7d %s\n",
			rec.ID, rec.Timestamp.Format(time.RFC3339), verdict, rec.EventType, rec.PID, rec.Reason)
	}
	return nil
}
