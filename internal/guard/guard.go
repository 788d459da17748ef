// Package guard runs commands through policy adjudication before
// executing them. It backs the `procwatch exec` CLI.
package guard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/procwatch/procwatch/internal/model"
)

// Adjudicator decides whether an event may proceed.
type Adjudicator interface {
	Adjudicate(ctx context.Context, ev model.Event) (bool, string)
}

// Result captures subprocess execution outcome.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Reason   string `json:"reason"`
}

// BlockedError is returned when policy denies command execution.
type BlockedError struct {
	Command string
	Reason  string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("command blocked: %s", e.Reason)
}

// Guard evaluates and optionally executes subprocess commands.
type Guard struct {
	adjudicator Adjudicator
}

// New creates a Guard on top of an adjudicator.
func New(a Adjudicator) *Guard {
	return &Guard{adjudicator: a}
}

// Check adjudicates the command without executing it.
func (g *Guard) Check(ctx context.Context, name string, args []string) (bool, string) {
	return g.adjudicator.Adjudicate(ctx, execEvent(name, args))
}

// Run adjudicates the command, executes it if allowed, and returns the
// captured output. Denied commands are never spawned.
func (g *Guard) Run(ctx context.Context, name string, args []string, stdin io.Reader) (*Result, error) {
	commandLine := commandString(name, args)

	allowed, reason := g.adjudicator.Adjudicate(ctx, execEvent(name, args))
	if !allowed {
		return nil, &BlockedError{Command: commandLine, Reason: reason}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("execute %s: %w", name, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Reason:   reason,
	}, nil
}

func execEvent(name string, args []string) model.Event {
	return model.Event{
		Type:    model.ProcessExec,
		PID:     os.Getpid(),
		PPID:    os.Getppid(),
		Command: commandString(name, args),
	}
}

func commandString(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
