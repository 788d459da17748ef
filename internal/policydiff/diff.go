// Package policydiff compares two policy documents and reports what an
// edit changes before it goes live.
package policydiff

import (
	"fmt"

	"github.com/procwatch/procwatch/internal/policy"
)

// Change represents a scalar field change.
type Change struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// RuleChange represents a list entry addition or removal.
type RuleChange struct {
	Type    string `json:"type"` // "added" or "removed"
	List    string `json:"list"`
	Rule    string `json:"rule"`
	Comment string `json:"comment,omitempty"`
}

// DiffResult holds the comparison of two policies.
type DiffResult struct {
	OldPath     string       `json:"old_path"`
	NewPath     string       `json:"new_path"`
	Changes     []Change     `json:"changes"`
	RuleChanges []RuleChange `json:"rule_changes"`
	HasChanges  bool         `json:"has_changes"`
}

// Diff compares two policies field by field. List entries are compared
// as sets: reordering within a list changes only which entry names a
// decision reason, so it is not reported.
func Diff(old, new *policy.Policy) *DiffResult {
	r := &DiffResult{}

	if old.Version != new.Version {
		r.Changes = append(r.Changes, Change{
			Field: "version",
			Old:   old.Version,
			New:   new.Version,
		})
	}

	diffList(r, "sensitive_path_prefixes", old.SensitivePathPrefixes, new.SensitivePathPrefixes, true)
	diffList(r, "blocked_command_substrings", old.BlockedCommandSubstrings, new.BlockedCommandSubstrings, true)
	diffList(r, "dangerous_command_substrings", old.DangerousCommandSubstrings, new.DangerousCommandSubstrings, true)
	diffList(r, "auto_allow_command_prefixes", old.AutoAllowCommandPrefixes, new.AutoAllowCommandPrefixes, false)
	diffList(r, "network_allow_list", old.NetworkAllowList, new.NetworkAllowList, false)

	diffFlag(r, "approval_flags.file_delete", old.ApprovalFlags.FileDelete, new.ApprovalFlags.FileDelete)
	diffFlag(r, "approval_flags.file_write_sensitive", old.ApprovalFlags.FileWriteSensitive, new.ApprovalFlags.FileWriteSensitive)
	diffFlag(r, "approval_flags.command_dangerous", old.ApprovalFlags.CommandDangerous, new.ApprovalFlags.CommandDangerous)
	diffFlag(r, "approval_flags.network_external", old.ApprovalFlags.NetworkExternal, new.ApprovalFlags.NetworkExternal)

	r.HasChanges = len(r.Changes) > 0 || len(r.RuleChanges) > 0
	return r
}

// diffList reports set-wise additions and removals. addIsStricter marks
// lists where a new entry tightens the policy (restrictive lists), as
// opposed to allow lists where a new entry loosens it.
func diffList(r *DiffResult, list string, old, new []string, addIsStricter bool) {
	oldSet := make(map[string]bool, len(old))
	for _, e := range old {
		oldSet[e] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, e := range new {
		newSet[e] = true
	}

	for _, e := range new {
		if !oldSet[e] {
			r.RuleChanges = append(r.RuleChanges, RuleChange{
				Type:    "added",
				List:    list,
				Rule:    e,
				Comment: strictness(addIsStricter),
			})
		}
	}
	for _, e := range old {
		if !newSet[e] {
			r.RuleChanges = append(r.RuleChanges, RuleChange{
				Type:    "removed",
				List:    list,
				Rule:    e,
				Comment: strictness(!addIsStricter),
			})
		}
	}
}

// diffFlag reports an approval flag change. Disabling a flag removes the
// human from the loop for that category; whether that tightens or
// loosens depends on the category's fallback, so no strictness comment
// is attached.
func diffFlag(r *DiffResult, field string, old, new bool) {
	if old != new {
		r.Changes = append(r.Changes, Change{
			Field: field,
			Old:   fmt.Sprintf("%t", old),
			New:   fmt.Sprintf("%t", new),
		})
	}
}

func strictness(stricter bool) string {
	if stricter {
		return "stricter"
	}
	return "looser"
}
