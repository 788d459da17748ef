package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatch/internal/policy"
)

var (
	initPolicyPath  string
	initPolicyForce bool
)

func init() {
	rootCmd.AddCommand(initPolicyCmd)
	initPolicyCmd.Flags().StringVar(&initPolicyPath, "policy", "", "Write location (default: ~/.procwatch/policy.json)")
	initPolicyCmd.Flags().BoolVar(&initPolicyForce, "force", false, "Overwrite an existing document")
}

var initPolicyCmd = &cobra.Command{
	Use:   "init-policy",
	Short: "Write the built-in default policy to disk for editing",
	RunE:  runInitPolicy,
}

func runInitPolicy(cmd *cobra.Command, args []string) error {
	path := initPolicyPath
	if path == "" {
		path = policy.DefaultPath()
	}

	if !initPolicyForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := policy.Default().Write(path); err != nil {
		return err
	}
	fmt.Printf("wrote default policy to %s\n", path)
	return nil
}
