package approval

import (
	"context"
	"sync"

	"github.com/procwatch/procwatch/internal/model"
)

// ScriptedPrompter answers from a canned queue and records every request
// it sees. Intended for tests and unattended automation.
type ScriptedPrompter struct {
	mu       sync.Mutex
	queue    []model.ApprovalResponse
	fallback model.ApprovalResponse
	history  []Request
	err      error
}

// NewScriptedPrompter returns a prompter that replies with the queued
// responses in order, then with fallback once the queue is exhausted.
func NewScriptedPrompter(fallback model.ApprovalResponse, queue ...model.ApprovalResponse) *ScriptedPrompter {
	return &ScriptedPrompter{queue: queue, fallback: fallback}
}

// Fail makes every subsequent Ask return err, for exercising the gate's
// fail-closed path.
func (p *ScriptedPrompter) Fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Ask records the request and pops the next scripted response.
func (p *ScriptedPrompter) Ask(_ context.Context, req Request) (model.ApprovalResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = append(p.history, req)
	if p.err != nil {
		return model.ResponseDeny, p.err
	}
	if len(p.queue) > 0 {
		resp := p.queue[0]
		p.queue = p.queue[1:]
		return resp, nil
	}
	return p.fallback, nil
}

// History returns a copy of the requests seen so far.
func (p *ScriptedPrompter) History() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.history))
	copy(out, p.history)
	return out
}
