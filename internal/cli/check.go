package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatch/internal/model"
	"github.com/procwatch/procwatch/internal/policy"
)

var (
	checkPolicy  string
	checkWrite   string
	checkDelete  string
	checkRead    string
	checkConnect string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkPolicy, "policy", "", "Path to policy JSON (default: ~/.procwatch/policy.json)")
	checkCmd.Flags().StringVar(&checkWrite, "write", "", "Evaluate a file write to this path")
	checkCmd.Flags().StringVar(&checkDelete, "delete", "", "Evaluate a file delete of this path")
	checkCmd.Flags().StringVar(&checkRead, "read", "", "Evaluate a file read of this path")
	checkCmd.Flags().StringVar(&checkConnect, "connect", "", "Evaluate a network connect to host:port")
}

var checkCmd = &cobra.Command{
	Use:   "check [flags] [-- <command> [args...]]",
	Short: "Evaluate one operation against the policy without executing it",
	Long:  "Prints the three-way decision (allow/deny/prompt) with its reason.\nExit code 77 indicates the operation would not be allowed outright.",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	pol, err := policy.LoadOrDefault(checkPolicy)
	if err != nil {
		return err
	}

	var decision model.Decision
	switch {
	case checkWrite != "":
		decision = policy.CheckFileWrite(pol, checkWrite)
	case checkDelete != "":
		decision = policy.CheckFileDelete(pol, checkDelete)
	case checkRead != "":
		decision = policy.CheckFileRead(pol, checkRead)
	case checkConnect != "":
		host, port, err := splitHostPort(checkConnect)
		if err != nil {
			return err
		}
		decision = policy.CheckNetworkConnection(pol, host, port)
	case len(args) > 0:
		decision = policy.CheckCommand(pol, strings.Join(args, " "))
	default:
		return fmt.Errorf("nothing to check: pass a command or one of --write/--delete/--read/--connect")
	}

	out, _ := json.MarshalIndent(decision, "", "  ")
	fmt.Println(string(out))

	if decision.Verdict != model.VerdictAllow {
		os.Exit(77)
	}
	return nil
}

func splitHostPort(s string) (string, int, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return s, 0, nil
	}
	port, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q", s)
	}
	return s[:idx], port, nil
}
