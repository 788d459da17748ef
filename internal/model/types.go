package model

import "fmt"

// Verdict is the three-way outcome of policy evaluation.
type Verdict string

const (
	VerdictAllow  Verdict = "allow"
	VerdictDeny   Verdict = "deny"
	VerdictPrompt Verdict = "prompt"
)

// Decision pairs a verdict with the reason it was reached.
// Every decision must be explainable post hoc from the reason alone,
// so constructors require a non-empty reason.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

// Allow builds an allow decision.
func Allow(reason string) Decision {
	return Decision{Verdict: VerdictAllow, Reason: reason}
}

// Deny builds a deny decision.
func Deny(reason string) Decision {
	return Decision{Verdict: VerdictDeny, Reason: reason}
}

// Prompt builds a decision that requires human approval before a final
// verdict exists.
func Prompt(reason string) Decision {
	return Decision{Verdict: VerdictPrompt, Reason: reason}
}

// Allowed reports whether the decision is a final allow.
// Prompt decisions are not final and must be resolved first.
func (d Decision) Allowed() bool {
	return d.Verdict == VerdictAllow
}

func (d Decision) String() string {
	return fmt.Sprintf("%s: %s", d.Verdict, d.Reason)
}

// EventType classifies an intercepted operation.
type EventType string

const (
	FileRead       EventType = "file_read"
	FileWrite      EventType = "file_write"
	FileDelete     EventType = "file_delete"
	ProcessExec    EventType = "process_exec"
	NetworkConnect EventType = "network_connect"
)

// Event is one operation attempted by a process in the monitored tree,
// as delivered by the external event source.
type Event struct {
	Type        EventType `json:"type"`
	PID         int       `json:"pid"`
	PPID        int       `json:"ppid"`
	ProcessPath string    `json:"process_path,omitempty"`
	Path        string    `json:"path,omitempty"`
	Command     string    `json:"command,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Port        int       `json:"port,omitempty"`
}

// Subject returns the category-specific operand of the event, used for
// display and audit.
func (e Event) Subject() string {
	switch e.Type {
	case ProcessExec:
		return e.Command
	case NetworkConnect:
		if e.Port > 0 {
			return fmt.Sprintf("%s:%d", e.Destination, e.Port)
		}
		return e.Destination
	default:
		return e.Path
	}
}

// ApprovalResponse is the three-button answer from the interactive
// approval surface.
type ApprovalResponse string

const (
	ResponseDeny        ApprovalResponse = "deny"
	ResponseAllowOnce   ApprovalResponse = "allow_once"
	ResponseAllowAlways ApprovalResponse = "allow_always"
)
