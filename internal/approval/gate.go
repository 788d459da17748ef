package approval

import (
	"context"
	"log/slog"
	"time"

	"github.com/procwatch/procwatch/internal/model"
)

// DefaultTimeout bounds how long an unanswered prompt may stall an
// event's verdict. Timeout resolves to deny.
const DefaultTimeout = 2 * time.Minute

// Request carries the strings shown on the interactive approval surface.
type Request struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// Prompter is the injected interactive collaborator. Ask blocks until
// the human answers or ctx is done.
type Prompter interface {
	Ask(ctx context.Context, req Request) (model.ApprovalResponse, error)
}

// Gate resolves Prompt decisions into final boolean verdicts. It never
// mutates policy: AllowAlways is surfaced in the reason only.
type Gate struct {
	prompter Prompter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGate wraps a prompter. timeout <= 0 selects DefaultTimeout.
func NewGate(p Prompter, timeout time.Duration, logger *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{prompter: p, timeout: timeout, logger: logger}
}

// Resolve maps the three-button human response onto (allowed, reason).
// Fail closed: a prompter error or an expired deadline denies. The Ask
// runs in its own goroutine so a prompter that ignores ctx cannot stall
// the caller past the deadline.
func (g *Gate) Resolve(ctx context.Context, decision model.Decision, req Request) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type answer struct {
		resp model.ApprovalResponse
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		resp, err := g.prompter.Ask(ctx, req)
		ch <- answer{resp, err}
	}()

	select {
	case <-ctx.Done():
		g.logger.Warn("approval prompt timed out", "title", req.Title)
		return false, "approval timed out: " + decision.Reason
	case a := <-ch:
		if a.err != nil {
			g.logger.Warn("approval prompt failed", "title", req.Title, "error", a.err)
			return false, "approval unavailable: " + decision.Reason
		}
		switch a.resp {
		case model.ResponseAllowOnce:
			return true, "user approved (once): " + decision.Reason
		case model.ResponseAllowAlways:
			return true, "user approved (always): " + decision.Reason
		default:
			return false, "user denied: " + decision.Reason
		}
	}
}
