package guard

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/procwatch/procwatch/internal/model"
	"github.com/procwatch/procwatch/internal/policy"
)

// policyAdjudicator adjudicates with the bare evaluator: everything is
// treated as tracked and prompts are denied, which is what an
// unattended guard should do.
type policyAdjudicator struct {
	policy *policy.Policy
}

func (a policyAdjudicator) Adjudicate(_ context.Context, ev model.Event) (bool, string) {
	d := policy.CheckCommand(a.policy, ev.Command)
	if d.Verdict == model.VerdictPrompt {
		return false, "no approval surface: " + d.Reason
	}
	return d.Allowed(), d.Reason
}

func newTestGuard() *Guard {
	return New(policyAdjudicator{policy: policy.Default()})
}

func requireBlocked(t *testing.T, err error) *BlockedError {
	t.Helper()
	if err == nil {
		t.Fatal("expected command to be blocked, got nil error")
	}
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %T: %v", err, err)
	}
	return blocked
}

func TestDestructiveCommandBlocked(t *testing.T) {
	g := newTestGuard()
	_, err := g.Run(context.Background(), "rm", []string{"-rf", "/"}, nil)
	blocked := requireBlocked(t, err)
	if !strings.Contains(blocked.Reason, "blocked command pattern") {
		t.Errorf("unexpected reason %q", blocked.Reason)
	}
}

func TestDangerousCommandBlockedWithoutApprovalSurface(t *testing.T) {
	g := newTestGuard()
	_, err := g.Run(context.Background(), "sudo", []string{"rm", "/var/log/syslog"}, nil)
	requireBlocked(t, err)
}

func TestAllowedCommandRuns(t *testing.T) {
	g := newTestGuard()
	result, err := g.Run(context.Background(), "echo", []string{"hello"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("expected stdout 'hello', got %q", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestNonZeroExitCaptured(t *testing.T) {
	g := newTestGuard()
	result, err := g.Run(context.Background(), "sh", []string{"-c", "exit 3"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
}

func TestCheckDoesNotExecute(t *testing.T) {
	g := newTestGuard()
	allowed, reason := g.Check(context.Background(), "rm", []string{"-rf", "/"})
	if allowed {
		t.Error("check must report the deny")
	}
	if reason == "" {
		t.Error("check must surface the reason")
	}
}

func TestStdinForwarded(t *testing.T) {
	g := newTestGuard()
	result, err := g.Run(context.Background(), "sh", []string{"-c", "read x; printf '%s' \"$x\""}, strings.NewReader("piped\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "piped" {
		t.Errorf("expected stdin to reach the child, got %q", result.Stdout)
	}
}
