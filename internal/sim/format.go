package sim

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the replay result as human-readable text.
func FormatText(r *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Replaying %d recorded events against %s\n", r.TotalEvents, r.PolicyPath)

	if len(r.Changes) == 0 {
		b.WriteString("\nNo outcome changes.\n")
		return b.String()
	}

	b.WriteString("\n")
	for _, d := range r.Changes {
		direction := "now blocked"
		if !d.OldAllowed {
			direction = "now allowed"
		}
		if d.NewVerdict == "prompt" {
			direction = "now prompts"
		}
		fmt.Fprintf(&b, "  %s  %-15s  %-40s  %s\n", d.Timestamp, d.EventType, truncate(d.Subject, 40), direction)
		fmt.Fprintf(&b, "      was: %s\n      new: %s\n", d.OldReason, d.NewReason)
	}

	fmt.Fprintf(&b, "\n%d of %d events change outcome (%d newly blocked, %d newly allowed)\n",
		r.ChangedEvents, r.TotalEvents, r.NewlyBlocked, r.NewlyAllowed)
	return b.String()
}

// FormatJSON renders the replay result as JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
