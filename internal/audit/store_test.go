package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/procwatch/procwatch/internal/model"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestRecentReverseInsertionOrder(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	// Identical timestamps on purpose: insertion order, not wall clock,
	// is the ordering key.
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	const n = 10
	for i := 0; i < n; i++ {
		s.Append(ctx, Record{
			Timestamp: ts,
			EventType: model.FileWrite,
			PID:       100,
			PPID:      1,
			Path:      fmt.Sprintf("/tmp/file-%d", i),
			Allowed:   true,
			Reason:    "path is not sensitive",
		})
	}

	records, err := s.Recent(ctx, n)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}
	for i, rec := range records {
		want := fmt.Sprintf("/tmp/file-%d", n-1-i)
		if rec.Path != want {
			t.Errorf("position %d: expected %s, got %s", i, want, rec.Path)
		}
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Append(ctx, Record{EventType: model.ProcessExec, PID: i, PPID: 1, Command: "ls", Allowed: true, Reason: "r"})
	}

	records, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}
}

func TestAggregateCounts(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		s.Append(ctx, Record{
			EventType: model.ProcessExec,
			PID:       200,
			PPID:      100,
			Command:   "cmd",
			Allowed:   i%2 == 0,
			Reason:    "r",
		})
	}

	c, err := s.AggregateCounts(ctx)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if c.Total != 7 {
		t.Errorf("expected total 7, got %d", c.Total)
	}
	if c.Allowed != 4 || c.Denied != 3 {
		t.Errorf("expected 4 allowed / 3 denied, got %d / %d", c.Allowed, c.Denied)
	}
	if c.Total != c.Allowed+c.Denied {
		t.Errorf("total must equal allowed+denied")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Append(ctx, Record{
		EventType:   model.NetworkConnect,
		PID:         300,
		PPID:        100,
		Destination: "api.example.com:443",
		Allowed:     false,
		Reason:      "user denied: external network connection: api.example.com:443",
	})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(records))
	}
	rec := records[0]
	if rec.EventType != model.NetworkConnect || rec.Destination != "api.example.com:443" || rec.Allowed {
		t.Errorf("record did not survive reopen intact: %+v", rec)
	}
	if rec.ID == 0 {
		t.Error("store should have assigned an id")
	}
}

func TestNullableFields(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	s.Append(ctx, Record{EventType: model.FileDelete, PID: 1, PPID: 0, Allowed: true, Reason: ""})

	records, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatal("expected one record")
	}
	rec := records[0]
	if rec.Path != "" || rec.Command != "" || rec.Destination != "" || rec.ProcessName != "" || rec.Reason != "" {
		t.Errorf("empty optional fields must round-trip as empty: %+v", rec)
	}
}

func TestClear(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	s.Append(ctx, Record{EventType: model.FileRead, PID: 1, PPID: 0, Path: "/x", Allowed: true, Reason: "r"})
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	c, err := s.AggregateCounts(ctx)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if c.Total != 0 {
		t.Errorf("expected empty store after clear, got %d", c.Total)
	}
}

func TestTimestampStoredAsISO8601(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 600_000_000, time.UTC)
	s.Append(ctx, Record{Timestamp: ts, EventType: model.FileWrite, PID: 1, PPID: 0, Path: "/x", Allowed: true, Reason: "r"})

	records, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if !records[0].Timestamp.Equal(ts) {
		t.Errorf("expected %v, got %v", ts, records[0].Timestamp)
	}
}
