package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/procwatch/procwatch/internal/model"
)

// Pending-file statuses an operator may write back.
const (
	StatusPending     = "pending"
	StatusDeny        = "deny"
	StatusAllowOnce   = "allow_once"
	StatusAllowAlways = "allow_always"
)

// PendingRequest is the JSON document dropped into the approval
// directory. An operator (or the `procwatch approve` tooling) resolves
// it by rewriting the status field.
type PendingRequest struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Details   string    `json:"details"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// FilePrompter implements Prompter over a shared directory: one JSON
// file per outstanding prompt, resolution detected via fsnotify with a
// polling fallback. Useful when no interactive terminal is attached.
type FilePrompter struct {
	dir    string
	logger *slog.Logger
	seq    atomic.Int64
}

// NewFilePrompter creates the approval directory if needed.
func NewFilePrompter(dir string, logger *slog.Logger) (*FilePrompter, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("approval: create directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FilePrompter{dir: dir, logger: logger}, nil
}

// DefaultDir returns the default pending-approval directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "procwatch-pending")
	}
	return filepath.Join(home, ".procwatch", "pending")
}

// Ask writes a pending file and blocks until its status changes or ctx
// is done. The file is removed on return either way.
func (p *FilePrompter) Ask(ctx context.Context, req Request) (model.ApprovalResponse, error) {
	id := fmt.Sprintf("%d-%d", os.Getpid(), p.seq.Add(1))
	path := filepath.Join(p.dir, id+".json")

	pending := PendingRequest{
		ID:        id,
		Title:     req.Title,
		Message:   req.Message,
		Details:   req.Details,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := writeAtomic(path, pending); err != nil {
		return model.ResponseDeny, err
	}
	defer os.Remove(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return model.ResponseDeny, fmt.Errorf("approval: watch: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(p.dir); err != nil {
		return model.ResponseDeny, fmt.Errorf("approval: watch %s: %w", p.dir, err)
	}

	// Editors and CLIs resolve via rename, which can race the watch;
	// the ticker catches anything fsnotify misses.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if resp, resolved := p.readResolution(path); resolved {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return model.ResponseDeny, ctx.Err()
		case <-ticker.C:
		case event := <-watcher.Events:
			if event.Name != path {
				continue
			}
		case err := <-watcher.Errors:
			p.logger.Warn("approval watcher error", "error", err)
		}
	}
}

// readResolution reads the pending file and maps a non-pending status.
func (p *FilePrompter) readResolution(path string) (model.ApprovalResponse, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		// File removed out from under us: treat as denied.
		if os.IsNotExist(err) {
			return model.ResponseDeny, true
		}
		return model.ResponseDeny, false
	}

	var pending PendingRequest
	if err := json.Unmarshal(data, &pending); err != nil {
		// Mid-write or operator typo; wait for a consistent read.
		return model.ResponseDeny, false
	}

	switch pending.Status {
	case StatusAllowOnce:
		return model.ResponseAllowOnce, true
	case StatusAllowAlways:
		return model.ResponseAllowAlways, true
	case StatusDeny:
		return model.ResponseDeny, true
	default:
		return model.ResponseDeny, false
	}
}

// List returns the currently pending requests, oldest first.
func (p *FilePrompter) List() ([]PendingRequest, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var pending []PendingRequest
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.dir, e.Name()))
		if err != nil {
			continue
		}
		var req PendingRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		if req.Status == StatusPending {
			pending = append(pending, req)
		}
	}
	return pending, nil
}

// Resolve rewrites the status of a pending request, unblocking its Ask.
func (p *FilePrompter) Resolve(id, status string) error {
	switch status {
	case StatusDeny, StatusAllowOnce, StatusAllowAlways:
	default:
		return fmt.Errorf("approval: invalid status %q", status)
	}

	path := filepath.Join(p.dir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("approval: request %q not found: %w", id, err)
	}
	var req PendingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("approval: parse request %q: %w", id, err)
	}
	req.Status = status
	return writeAtomic(path, req)
}

func writeAtomic(path string, req PendingRequest) error {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
