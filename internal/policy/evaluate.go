package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/procwatch/procwatch/internal/model"
)

// The evaluators below are pure: the same (policy, input) pair always
// yields the same decision, including the reason string. The policy is
// immutable after load, so no synchronization is needed.
//
// Command evaluation order (must not be changed):
//  1. Auto-allow prefixes: short-circuit allow, beats everything below
//  2. Blocked substrings: hard deny, never promptable
//  3. Dangerous substrings: prompt (or deny when approval disabled)
//  4. Default allow

// loopbackHosts are always allowed regardless of port or policy.
var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// CheckFileRead evaluates a file read. Reads carry no negative rules.
func CheckFileRead(p *Policy, path string) model.Decision {
	return model.Allow("file read permitted")
}

// CheckFileWrite evaluates a file write against the sensitive path
// prefixes. Home-directory shorthand is expanded on both sides before
// prefix matching; the first matching prefix names the reason.
func CheckFileWrite(p *Policy, path string) model.Decision {
	expanded := ExpandHome(path)
	for _, prefix := range p.SensitivePathPrefixes {
		if strings.HasPrefix(expanded, ExpandHome(prefix)) {
			reason := "write to sensitive directory: " + prefix
			if p.ApprovalFlags.FileWriteSensitive {
				return model.Prompt(reason)
			}
			return model.Deny(reason)
		}
	}
	return model.Allow("path is not sensitive")
}

// CheckFileDelete evaluates a file delete. Deletes ignore the path
// entirely: every delete prompts when approval is enabled and is allowed
// outright when it is not.
func CheckFileDelete(p *Policy, path string) model.Decision {
	if p.ApprovalFlags.FileDelete {
		return model.Prompt("file delete requires approval")
	}
	return model.Allow("file delete permitted (approval disabled)")
}

// CheckCommand evaluates a command line in strict precedence order.
// A command matching both an auto-allow prefix and a blocked substring
// is allowed: the auto-allow list short-circuits all later checks.
func CheckCommand(p *Policy, command string) model.Decision {
	for _, prefix := range p.AutoAllowCommandPrefixes {
		if strings.HasPrefix(command, prefix) {
			return model.Allow("matches auto-allow pattern: " + prefix)
		}
	}

	for _, sub := range p.BlockedCommandSubstrings {
		if strings.Contains(command, sub) {
			return model.Deny("blocked command pattern: " + sub)
		}
	}

	for _, sub := range p.DangerousCommandSubstrings {
		if strings.Contains(command, sub) {
			reason := "dangerous command pattern: " + sub
			if p.ApprovalFlags.CommandDangerous {
				return model.Prompt(reason)
			}
			return model.Deny(reason)
		}
	}

	return model.Allow("no matching command rules")
}

// CheckNetworkConnection evaluates an outbound connection. Loopback is
// always allowed. Allow-list entries match as "host:port" or bare host.
// Unlisted destinations prompt when approval is enabled and are allowed
// when it is not.
func CheckNetworkConnection(p *Policy, host string, port int) model.Decision {
	if loopbackHosts[host] {
		return model.Allow("loopback connection")
	}

	hostPort := fmt.Sprintf("%s:%d", host, port)
	for _, entry := range p.NetworkAllowList {
		if entry == hostPort || entry == host {
			return model.Allow("destination on allow-list: " + entry)
		}
	}

	if p.ApprovalFlags.NetworkExternal {
		return model.Prompt("external network connection: " + hostPort)
	}
	return model.Allow("external connection permitted (approval disabled)")
}

// ExpandHome replaces a leading "~" or "~/" with the current user's home
// directory. Paths without the shorthand are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
