package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ApprovalFlags control whether a flagged category escalates to a user
// prompt (true) or is decided automatically (false).
type ApprovalFlags struct {
	FileDelete         bool `json:"file_delete"`
	FileWriteSensitive bool `json:"file_write_sensitive"`
	CommandDangerous   bool `json:"command_dangerous"`
	NetworkExternal    bool `json:"network_external"`
}

// Policy is the immutable rule set loaded once at startup.
// Lists are evaluated in the fixed precedence order documented in
// evaluate.go; order within a list decides only which entry's name
// appears in the decision reason (first match wins).
type Policy struct {
	Version                    string        `json:"version"`
	SensitivePathPrefixes      []string      `json:"sensitive_path_prefixes"`
	BlockedCommandSubstrings   []string      `json:"blocked_command_substrings"`
	DangerousCommandSubstrings []string      `json:"dangerous_command_substrings"`
	AutoAllowCommandPrefixes   []string      `json:"auto_allow_command_prefixes"`
	NetworkAllowList           []string      `json:"network_allow_list"`
	ApprovalFlags              ApprovalFlags `json:"approval_flags"`
}

// LoadError describes why a policy document could not be loaded.
// Callers are expected to fall back to Default() rather than run
// unprotected.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("policy: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Default returns the built-in policy used when no document exists.
func Default() *Policy {
	return &Policy{
		Version: "builtin-1",
		SensitivePathPrefixes: []string{
			"~/.ssh",
			"~/.aws",
			"~/.config",
			"~/.gnupg",
			"/etc",
			"/usr",
			"/bin",
			"/sbin",
		},
		BlockedCommandSubstrings: []string{
			"rm -rf /",
			"rm -rf ~",
			":(){ :|:& };:",
			"dd if=/dev/zero",
			"mkfs.",
			"> /dev/sda",
		},
		DangerousCommandSubstrings: []string{
			"sudo rm",
			"chmod 777",
			"chmod -R 777",
			"curl | sh",
			"curl|sh",
			"wget | sh",
			"wget|sh",
			"| bash",
			"|bash",
		},
		AutoAllowCommandPrefixes: []string{
			"git status",
			"git diff",
			"git log",
			"ls",
			"cat",
			"pwd",
			"echo",
			"which",
			"head",
			"tail",
			"grep",
		},
		NetworkAllowList: []string{
			"localhost:11434",
		},
		ApprovalFlags: ApprovalFlags{
			FileDelete:         true,
			FileWriteSensitive: true,
			CommandDangerous:   true,
			NetworkExternal:    true,
		},
	}
}

// DefaultPath returns the default policy document location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "procwatch-policy.json")
	}
	return filepath.Join(home, ".procwatch", "policy.json")
}

// Load reads a policy document from a JSON file.
// A missing file or malformed JSON is reported as a *LoadError;
// LoadOrDefault is the forgiving variant most callers want.
func Load(path string) (*Policy, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	p := Default()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	return p, nil
}

// LoadOrDefault loads the policy document, falling back to the built-in
// default when the file does not exist. Malformed documents still fail:
// silently ignoring a broken policy would weaken every rule in it.
func LoadOrDefault(path string) (*Policy, error) {
	p, err := Load(path)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && os.IsNotExist(le.Err) {
			return Default(), nil
		}
		return nil, err
	}
	return p, nil
}

// LoadWithHash loads a policy and returns the SHA-256 of the raw document
// bytes, for audit correlation. When the built-in default is used the hash
// is the SHA-256 of empty input.
func LoadWithHash(path string) (*Policy, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return Default(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", &LoadError{Path: path, Err: err}
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	p := Default()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, "", &LoadError{Path: path, Err: err}
	}

	return p, hash, nil
}

// Write marshals the policy as an indented JSON document, creating the
// parent directory if needed. Used by init-policy.
func (p *Policy) Write(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("policy: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("policy: create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("policy: write: %w", err)
	}
	return os.Rename(tmp, path)
}
