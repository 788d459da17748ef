// Package sentinel coordinates one adjudication per incoming event:
// membership check, policy evaluation, prompt resolution, audit write,
// final verdict. Each event is adjudicated exactly once; there is no
// retry or replay.
package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/procwatch/procwatch/internal/alert"
	"github.com/procwatch/procwatch/internal/approval"
	"github.com/procwatch/procwatch/internal/audit"
	"github.com/procwatch/procwatch/internal/model"
	"github.com/procwatch/procwatch/internal/policy"
)

// Tracker answers process-membership queries.
type Tracker interface {
	IsTracked(pid int) bool
	ProcessPath(pid int) (string, bool)
}

// Resolver turns a Prompt decision into a final boolean verdict.
type Resolver interface {
	Resolve(ctx context.Context, decision model.Decision, req approval.Request) (bool, string)
}

// Recorder appends adjudicated events to the audit trail.
type Recorder interface {
	Append(ctx context.Context, rec audit.Record)
}

// Sentinel is the per-event state machine. All fields are set at
// construction; concurrent HandleEvent calls are safe because the
// policy is immutable and the collaborators synchronize internally.
type Sentinel struct {
	policy   *policy.Policy
	tracker  Tracker
	gate     Resolver
	recorder Recorder
	alerts   *alert.Dispatcher
	logger   *slog.Logger
}

// New wires a sentinel. alerts may be nil.
func New(p *policy.Policy, tracker Tracker, gate Resolver, recorder Recorder, alerts *alert.Dispatcher, logger *slog.Logger) *Sentinel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sentinel{
		policy:   p,
		tracker:  tracker,
		gate:     gate,
		recorder: recorder,
		alerts:   alerts,
		logger:   logger,
	}
}

// HandleEvent returns the final binary verdict for ev. The event source
// must always get a reply; this method never fails.
func (s *Sentinel) HandleEvent(ctx context.Context, ev model.Event) bool {
	allowed, _ := s.Adjudicate(ctx, ev)
	return allowed
}

// Adjudicate runs the full state machine and returns the verdict with
// its reason. Events from untracked processes are allowed without
// evaluation and without an audit record; untracked traffic never
// appears in the trail.
func (s *Sentinel) Adjudicate(ctx context.Context, ev model.Event) (bool, string) {
	if !s.tracker.IsTracked(ev.PID) {
		return true, "process not tracked"
	}

	decision := s.evaluate(ev)

	allowed := decision.Verdict == model.VerdictAllow
	reason := decision.Reason
	if decision.Verdict == model.VerdictPrompt {
		// Prompt alerts fire before resolution: an operator watching a
		// webhook wants to know a human is being asked, not only how
		// it ended.
		s.dispatchAlert(ev, "prompt", decision.Reason)
		allowed, reason = s.gate.Resolve(ctx, decision, promptRequest(ev, decision))
	}

	s.record(ctx, ev, allowed, reason)

	if !allowed {
		s.dispatchAlert(ev, "deny", reason)
	}

	return allowed, reason
}

func (s *Sentinel) dispatchAlert(ev model.Event, decision, reason string) {
	if s.alerts == nil {
		return
	}
	s.alerts.Dispatch(alert.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		EventType: string(ev.Type),
		PID:       ev.PID,
		Subject:   ev.Subject(),
		Decision:  decision,
		Reason:    reason,
	})
}

// evaluate dispatches to the category evaluator. Unknown categories are
// denied: an event type this build does not understand cannot be safely
// allowed.
func (s *Sentinel) evaluate(ev model.Event) model.Decision {
	switch ev.Type {
	case model.FileRead:
		return policy.CheckFileRead(s.policy, ev.Path)
	case model.FileWrite:
		return policy.CheckFileWrite(s.policy, ev.Path)
	case model.FileDelete:
		return policy.CheckFileDelete(s.policy, ev.Path)
	case model.ProcessExec:
		return policy.CheckCommand(s.policy, ev.Command)
	case model.NetworkConnect:
		return policy.CheckNetworkConnection(s.policy, ev.Destination, ev.Port)
	default:
		return model.Deny(fmt.Sprintf("unknown event type: %s", ev.Type))
	}
}

// record writes exactly one audit record for the adjudicated event.
func (s *Sentinel) record(ctx context.Context, ev model.Event, allowed bool, reason string) {
	processName := ev.ProcessPath
	if processName == "" {
		if path, ok := s.tracker.ProcessPath(ev.PID); ok {
			processName = path
		}
	}

	destination := ""
	if ev.Type == model.NetworkConnect {
		destination = ev.Subject()
	}

	s.recorder.Append(ctx, audit.Record{
		EventType:   ev.Type,
		ProcessName: processName,
		PID:         ev.PID,
		PPID:        ev.PPID,
		Path:        ev.Path,
		Command:     ev.Command,
		Destination: destination,
		Allowed:     allowed,
		Reason:      reason,
	})
}

// promptRequest builds the strings shown on the approval surface.
func promptRequest(ev model.Event, decision model.Decision) approval.Request {
	var title string
	switch ev.Type {
	case model.FileWrite:
		title = "File write requires approval"
	case model.FileDelete:
		title = "File delete requires approval"
	case model.ProcessExec:
		title = "Command requires approval"
	case model.NetworkConnect:
		title = "Network connection requires approval"
	default:
		title = "Operation requires approval"
	}

	origin := fmt.Sprintf("pid %d", ev.PID)
	if ev.ProcessPath != "" {
		origin = fmt.Sprintf("%s, pid %d", ev.ProcessPath, ev.PID)
	}

	return approval.Request{
		Title:   title,
		Message: decision.Reason,
		Details: fmt.Sprintf("%s (%s)", ev.Subject(), origin),
	}
}
