package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/procwatch/procwatch/internal/client"
	"github.com/procwatch/procwatch/internal/config"
	"github.com/procwatch/procwatch/internal/model"
)

var (
	sendConfig  string
	sendAddr    string
	sendType    string
	sendPID     int
	sendPath    string
	sendConnect string
)

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendConfig, "config", "", "Path to runtime config YAML (default: ~/.procwatch/config.yaml)")
	sendCmd.Flags().StringVar(&sendAddr, "addr", "", "Intake address (overrides config)")
	sendCmd.Flags().StringVar(&sendType, "type", "process_exec", "Event type: file_read, file_write, file_delete, process_exec, network_connect")
	sendCmd.Flags().IntVar(&sendPID, "pid", 0, "PID to attribute the event to (required)")
	sendCmd.Flags().StringVar(&sendPath, "path", "", "File path for file events")
	sendCmd.Flags().StringVar(&sendConnect, "connect", "", "host:port for network_connect events")
	sendCmd.MarkFlagRequired("pid")
}

var sendCmd = &cobra.Command{
	Use:   "send --pid <pid> [flags] [-- <command> [args...]]",
	Short: "Submit a synthetic event to a running intake server",
	Long:  "Connects to the intake endpoint and submits one event as if the kernel event source had reported it, then prints the verdict. Intended for poking a live policy from the shell.",
	RunE:  runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(sendConfig)
	if err != nil {
		return err
	}
	addr := cfg.Listen
	if sendAddr != "" {
		addr = sendAddr
	}

	ev := model.Event{
		Type: model.EventType(sendType),
		PID:  sendPID,
		Path: sendPath,
	}
	switch ev.Type {
	case model.ProcessExec:
		ev.Command = strings.Join(args, " ")
	case model.NetworkConnect:
		host, port, err := splitHostPort(sendConnect)
		if err != nil {
			return err
		}
		ev.Destination = host
		ev.Port = port
	}

	ctx := cmd.Context()
	c, err := client.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer c.Close()

	allowed, reason, err := c.Send(ctx, ev)
	if err != nil {
		return err
	}
	fmt.Printf("allowed=%t reason=%q\n", allowed, reason)
	if !allowed {
		os.Exit(77)
	}
	return nil
}
