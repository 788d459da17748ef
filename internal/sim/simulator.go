// Package sim replays recorded adjudications against a candidate policy
// so an operator can see what an edit would have changed before
// deploying it.
package sim

import (
	"strconv"
	"strings"
	"time"

	"github.com/procwatch/procwatch/internal/audit"
	"github.com/procwatch/procwatch/internal/model"
	"github.com/procwatch/procwatch/internal/policy"
)

// DiffEntry represents one recorded event whose outcome changed.
type DiffEntry struct {
	Timestamp  string `json:"ts"`
	EventType  string `json:"event_type"`
	PID        int    `json:"pid"`
	Subject    string `json:"subject"`
	OldAllowed bool   `json:"old_allowed"`
	NewVerdict string `json:"new_verdict"`
	OldReason  string `json:"old_reason"`
	NewReason  string `json:"new_reason"`
}

// Result holds the complete replay output.
type Result struct {
	PolicyPath    string      `json:"policy_path"`
	TotalEvents   int         `json:"total_events"`
	ChangedEvents int         `json:"changed_events"`
	NewlyBlocked  int         `json:"newly_blocked"`
	NewlyAllowed  int         `json:"newly_allowed"`
	Changes       []DiffEntry `json:"changes"`
}

// Replay evaluates each recorded event under the candidate policy and
// reports the ones whose outcome flips. A prompt verdict counts as
// restrictive: the recorded trail holds only final booleans, so the
// comparison is permissive-vs-restrictive, not verdict-vs-verdict.
// Prompt resolutions baked into the old outcome (a user who approved a
// dangerous command) therefore surface as changes only when the
// candidate policy stops asking.
func Replay(records []audit.Record, candidate *policy.Policy) *Result {
	r := &Result{}

	for _, rec := range records {
		r.TotalEvents++

		decision := reevaluate(rec, candidate)
		newAllowed := decision.Verdict == model.VerdictAllow

		if newAllowed == rec.Allowed {
			continue
		}

		r.Changes = append(r.Changes, DiffEntry{
			Timestamp:  rec.Timestamp.UTC().Format(time.RFC3339),
			EventType:  string(rec.EventType),
			PID:        rec.PID,
			Subject:    subject(rec),
			OldAllowed: rec.Allowed,
			NewVerdict: string(decision.Verdict),
			OldReason:  rec.Reason,
			NewReason:  decision.Reason,
		})
		r.ChangedEvents++

		if rec.Allowed {
			r.NewlyBlocked++
		} else {
			r.NewlyAllowed++
		}
	}

	return r
}

// reevaluate reconstructs the event from its audit record and runs the
// candidate evaluators.
func reevaluate(rec audit.Record, p *policy.Policy) model.Decision {
	switch rec.EventType {
	case model.FileRead:
		return policy.CheckFileRead(p, rec.Path)
	case model.FileWrite:
		return policy.CheckFileWrite(p, rec.Path)
	case model.FileDelete:
		return policy.CheckFileDelete(p, rec.Path)
	case model.ProcessExec:
		return policy.CheckCommand(p, rec.Command)
	case model.NetworkConnect:
		host, port := splitDestination(rec.Destination)
		return policy.CheckNetworkConnection(p, host, port)
	default:
		return model.Deny("unknown event type: " + string(rec.EventType))
	}
}

func subject(rec audit.Record) string {
	switch rec.EventType {
	case model.ProcessExec:
		return rec.Command
	case model.NetworkConnect:
		return rec.Destination
	default:
		return rec.Path
	}
}

// splitDestination parses the audited "host:port" form. A bare host
// (no recorded port) replays with port 0.
func splitDestination(dest string) (string, int) {
	idx := strings.LastIndex(dest, ":")
	if idx < 0 {
		return dest, 0
	}
	port, err := strconv.Atoi(dest[idx+1:])
	if err != nil {
		return dest, 0
	}
	return dest[:idx], port
}
