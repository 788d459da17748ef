package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatch/internal/approval"
	"github.com/procwatch/procwatch/internal/config"
)

var (
	pendingConfig string
	approveAlways bool
)

func init() {
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(denyCmd)
	pendingCmd.Flags().StringVar(&pendingConfig, "config", "", "Path to runtime config YAML (default: ~/.procwatch/config.yaml)")
	approveCmd.Flags().StringVar(&pendingConfig, "config", "", "Path to runtime config YAML (default: ~/.procwatch/config.yaml)")
	approveCmd.Flags().BoolVar(&approveAlways, "always", false, "Approve as allow-always instead of allow-once")
	denyCmd.Flags().StringVar(&pendingConfig, "config", "", "Path to runtime config YAML (default: ~/.procwatch/config.yaml)")
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List prompts waiting for a decision",
	RunE:  runPending,
}

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a pending prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var denyCmd = &cobra.Command{
	Use:   "deny <request-id>",
	Short: "Deny a pending prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeny,
}

func pendingPrompter() (*approval.FilePrompter, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := config.Load(pendingConfig)
	if err != nil {
		return nil, err
	}
	return approval.NewFilePrompter(cfg.ApprovalDir, logger)
}

func runPending(cmd *cobra.Command, args []string) error {
	prompter, err := pendingPrompter()
	if err != nil {
		return err
	}

	reqs, err := prompter.List()
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Println("no pending approvals")
		return nil
	}

	for _, req := range reqs {
		fmt.Printf("%s  %s\n    %s\n    %s\n    waiting since %s\n",
			req.ID, req.Title, req.Message, req.Details,
			req.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	prompter, err := pendingPrompter()
	if err != nil {
		return err
	}

	status := approval.StatusAllowOnce
	if approveAlways {
		status = approval.StatusAllowAlways
	}
	if err := prompter.Resolve(args[0], status); err != nil {
		return err
	}
	fmt.Printf("approved %s (%s)\n", args[0], status)
	return nil
}

func runDeny(cmd *cobra.Command, args []string) error {
	prompter, err := pendingPrompter()
	if err != nil {
		return err
	}

	if err := prompter.Resolve(args[0], approval.StatusDeny); err != nil {
		return err
	}
	fmt.Printf("denied %s\n", args[0])
	return nil
}
