package sim

import (
	"strings"
	"testing"
	"time"

	"github.com/procwatch/procwatch/internal/audit"
	"github.com/procwatch/procwatch/internal/model"
	"github.com/procwatch/procwatch/internal/policy"
)

func record(t model.EventType, allowed bool, reason string) audit.Record {
	return audit.Record{
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		EventType: t,
		PID:       4242,
		Allowed:   allowed,
		Reason:    reason,
	}
}

func TestReplayNoChangesUnderSamePolicy(t *testing.T) {
	recs := []audit.Record{}

	r1 := record(model.ProcessExec, true, "matches auto-allow pattern: ls")
	r1.Command = "ls -la"
	recs = append(recs, r1)

	r2 := record(model.ProcessExec, false, "blocked command pattern: rm -rf /")
	r2.Command = "rm -rf / --no-preserve-root"
	recs = append(recs, r2)

	result := Replay(recs, policy.Default())
	if result.TotalEvents != 2 {
		t.Fatalf("TotalEvents = %d, want 2", result.TotalEvents)
	}
	if result.ChangedEvents != 0 {
		t.Errorf("ChangedEvents = %d, want 0: %+v", result.ChangedEvents, result.Changes)
	}
}

func TestReplayNewBlockedEntryFlipsOutcome(t *testing.T) {
	rec := record(model.ProcessExec, true, "no matching command rules")
	rec.Command = "shred -u secrets.txt"

	candidate := policy.Default()
	candidate.BlockedCommandSubstrings = append(candidate.BlockedCommandSubstrings, "shred ")

	result := Replay([]audit.Record{rec}, candidate)
	if result.NewlyBlocked != 1 || result.NewlyAllowed != 0 {
		t.Fatalf("NewlyBlocked = %d, NewlyAllowed = %d, want 1/0", result.NewlyBlocked, result.NewlyAllowed)
	}
	d := result.Changes[0]
	if d.NewVerdict != "deny" {
		t.Errorf("NewVerdict = %q, want deny", d.NewVerdict)
	}
	if !strings.Contains(d.NewReason, "shred ") {
		t.Errorf("NewReason = %q, want blocked entry named", d.NewReason)
	}
}

func TestReplayAllowListAdditionUnblocksConnect(t *testing.T) {
	rec := record(model.NetworkConnect, false, "user denied: external network connection: api.example.com:443")
	rec.Destination = "api.example.com:443"

	candidate := policy.Default()
	candidate.NetworkAllowList = append(candidate.NetworkAllowList, "api.example.com:443")

	result := Replay([]audit.Record{rec}, candidate)
	if result.NewlyAllowed != 1 {
		t.Fatalf("NewlyAllowed = %d, want 1: %+v", result.NewlyAllowed, result)
	}
	if result.Changes[0].NewVerdict != "allow" {
		t.Errorf("NewVerdict = %q, want allow", result.Changes[0].NewVerdict)
	}
}

func TestReplayPromptCountsAsRestrictive(t *testing.T) {
	// Recorded under a policy with approval disabled; the candidate
	// enables prompting, so a previously auto-allowed delete flips.
	rec := record(model.FileDelete, true, "file delete permitted (approval disabled)")
	rec.Path = "/tmp/scratch"

	candidate := policy.Default()
	candidate.ApprovalFlags.FileDelete = true

	result := Replay([]audit.Record{rec}, candidate)
	if result.NewlyBlocked != 1 {
		t.Fatalf("NewlyBlocked = %d, want 1", result.NewlyBlocked)
	}
	if result.Changes[0].NewVerdict != "prompt" {
		t.Errorf("NewVerdict = %q, want prompt", result.Changes[0].NewVerdict)
	}
}

func TestReplayApprovedPromptReportsAsFlip(t *testing.T) {
	// The user approved this prompt when it was recorded. Replay has no
	// user, so prompt maps to restrictive and the event reports as a
	// flip. Pins the permissive-vs-restrictive mapping.
	rec := record(model.ProcessExec, true, "user approved (once): dangerous command pattern: sudo rm")
	rec.Command = "sudo rm /var/log/old.log"

	result := Replay([]audit.Record{rec}, policy.Default())
	if result.ChangedEvents != 1 {
		t.Fatalf("ChangedEvents = %d, want 1", result.ChangedEvents)
	}
	if result.Changes[0].NewVerdict != "prompt" {
		t.Errorf("NewVerdict = %q, want prompt", result.Changes[0].NewVerdict)
	}
}

func TestSplitDestination(t *testing.T) {
	tests := []struct {
		dest string
		host string
		port int
	}{
		{"api.example.com:443", "api.example.com", 443},
		{"bare-host", "bare-host", 0},
		{"localhost:11434", "localhost", 11434},
	}
	for _, tt := range tests {
		host, port := splitDestination(tt.dest)
		if host != tt.host || port != tt.port {
			t.Errorf("splitDestination(%q) = (%q, %d), want (%q, %d)", tt.dest, host, port, tt.host, tt.port)
		}
	}
}

func TestFormatTextSummaryLine(t *testing.T) {
	rec := record(model.ProcessExec, true, "no matching command rules")
	rec.Command = "shred -u secrets.txt"
	candidate := policy.Default()
	candidate.BlockedCommandSubstrings = append(candidate.BlockedCommandSubstrings, "shred ")

	result := Replay([]audit.Record{rec}, candidate)
	result.PolicyPath = "candidate.json"
	text := FormatText(result)
	if !strings.Contains(text, "1 of 1 events change outcome (1 newly blocked, 0 newly allowed)") {
		t.Errorf("FormatText summary missing:\n%s", text)
	}
	if !strings.Contains(text, "now blocked") {
		t.Errorf("FormatText direction missing:\n%s", text)
	}
}
