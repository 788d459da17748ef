package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatch/internal/policy"
	"github.com/procwatch/procwatch/internal/policydiff"
)

var policyDiffJSON bool

func init() {
	rootCmd.AddCommand(policyDiffCmd)
	policyDiffCmd.Flags().BoolVar(&policyDiffJSON, "json", false, "Emit JSON instead of text")
}

var policyDiffCmd = &cobra.Command{
	Use:   "policy-diff <old.json> <new.json>",
	Short: "Compare two policy documents",
	Long:  "Reports every rule and flag that differs between two policy documents. Pass 'builtin' for either side to compare against the built-in default.",
	Args:  cobra.ExactArgs(2),
	RunE:  runPolicyDiff,
}

func runPolicyDiff(cmd *cobra.Command, args []string) error {
	oldPol, err := loadDiffSide(args[0])
	if err != nil {
		return err
	}
	newPol, err := loadDiffSide(args[1])
	if err != nil {
		return err
	}

	r := policydiff.Diff(oldPol, newPol)
	r.OldPath = args[0]
	r.NewPath = args[1]

	if policyDiffJSON {
		out, err := policydiff.FormatJSON(r)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(policydiff.FormatText(r))
	return nil
}

func loadDiffSide(path string) (*policy.Policy, error) {
	if path == "builtin" {
		return policy.Default(), nil
	}
	return policy.Load(path)
}
