package approval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/procwatch/procwatch/internal/model"
)

func TestResolveMapsResponses(t *testing.T) {
	decision := model.Prompt("write to sensitive directory: ~/.ssh")

	tests := []struct {
		resp        model.ApprovalResponse
		wantAllowed bool
		wantPrefix  string
	}{
		{model.ResponseDeny, false, "user denied: "},
		{model.ResponseAllowOnce, true, "user approved (once): "},
		{model.ResponseAllowAlways, true, "user approved (always): "},
	}

	for _, tt := range tests {
		prompter := NewScriptedPrompter(tt.resp)
		gate := NewGate(prompter, time.Second, nil)

		allowed, reason := gate.Resolve(context.Background(), decision, Request{Title: "t"})
		if allowed != tt.wantAllowed {
			t.Errorf("%s: expected allowed=%v, got %v", tt.resp, tt.wantAllowed, allowed)
		}
		if !strings.HasPrefix(reason, tt.wantPrefix) {
			t.Errorf("%s: expected reason prefix %q, got %q", tt.resp, tt.wantPrefix, reason)
		}
		if !strings.Contains(reason, decision.Reason) {
			t.Errorf("%s: annotated reason must carry the original reason, got %q", tt.resp, reason)
		}
	}
}

func TestResolveFailsClosed(t *testing.T) {
	prompter := NewScriptedPrompter(model.ResponseAllowOnce)
	prompter.Fail(errors.New("no display"))
	gate := NewGate(prompter, time.Second, nil)

	allowed, reason := gate.Resolve(context.Background(), model.Prompt("x"), Request{})
	if allowed {
		t.Error("prompter failure must deny, never allow")
	}
	if !strings.HasPrefix(reason, "approval unavailable: ") {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestResolveDeniesOnTimeout(t *testing.T) {
	gate := NewGate(stuckPrompter{}, 50*time.Millisecond, nil)

	start := time.Now()
	allowed, reason := gate.Resolve(context.Background(), model.Prompt("x"), Request{})
	if allowed {
		t.Error("timeout must deny")
	}
	if !strings.HasPrefix(reason, "approval timed out: ") {
		t.Errorf("unexpected reason %q", reason)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("the gate must not block past its deadline")
	}
}

// stuckPrompter ignores ctx and never answers, like a hung UI.
type stuckPrompter struct{}

func (stuckPrompter) Ask(ctx context.Context, _ Request) (model.ApprovalResponse, error) {
	<-make(chan struct{})
	return model.ResponseDeny, nil
}

func TestScriptedHistory(t *testing.T) {
	prompter := NewScriptedPrompter(model.ResponseDeny, model.ResponseAllowOnce)
	gate := NewGate(prompter, time.Second, nil)

	gate.Resolve(context.Background(), model.Prompt("first"), Request{Title: "one"})
	gate.Resolve(context.Background(), model.Prompt("second"), Request{Title: "two"})

	history := prompter.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 recorded requests, got %d", len(history))
	}
	if history[0].Title != "one" || history[1].Title != "two" {
		t.Errorf("history out of order: %+v", history)
	}
}

func TestScriptedQueueThenFallback(t *testing.T) {
	prompter := NewScriptedPrompter(model.ResponseDeny, model.ResponseAllowOnce)

	resp, _ := prompter.Ask(context.Background(), Request{})
	if resp != model.ResponseAllowOnce {
		t.Errorf("expected queued response first, got %s", resp)
	}
	resp, _ = prompter.Ask(context.Background(), Request{})
	if resp != model.ResponseDeny {
		t.Errorf("expected fallback after queue drained, got %s", resp)
	}
}

func TestTerminalPrompter(t *testing.T) {
	tests := []struct {
		input string
		want  model.ApprovalResponse
	}{
		{"o\n", model.ResponseAllowOnce},
		{"a\n", model.ResponseAllowAlways},
		{"d\n", model.ResponseDeny},
		{"whatever\n", model.ResponseDeny},
	}

	for _, tt := range tests {
		p := &TerminalPrompter{In: strings.NewReader(tt.input), Out: &strings.Builder{}}
		resp, err := p.Ask(context.Background(), Request{Title: "t", Message: "m"})
		if err != nil {
			t.Fatalf("input %q: %v", tt.input, err)
		}
		if resp != tt.want {
			t.Errorf("input %q: expected %s, got %s", tt.input, tt.want, resp)
		}
	}
}
