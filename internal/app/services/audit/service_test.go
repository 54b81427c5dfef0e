package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/brickvault/platform/internal/app/domain/audit"
	"github.com/brickvault/platform/internal/app/storage/memory"
	"github.com/brickvault/platform/pkg/logger"
)

func TestRecordAndRecent(t *testing.T) {
	svc := New(memory.New(), nil, 3, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := svc.Record(ctx, audit.Event{
			ActorID: "admin-1", ActorRole: "admin",
			Action: fmt.Sprintf("action-%d", i), Entity: "property", EntityID: "p-1",
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recent := svc.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(recent))
	}
	if recent[0].Action != "action-4" {
		t.Fatalf("expected newest first, got %q", recent[0].Action)
	}

	stored, err := svc.List(ctx, "property", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 5 {
		t.Fatalf("expected 5 stored events, got %d", len(stored))
	}
}

func TestRecordSkipsEmptyAction(t *testing.T) {
	svc := New(memory.New(), nil, 0, logger.Nop())

	if err := svc.Record(context.Background(), audit.Event{ActorID: "x"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := svc.Recent(10); len(got) != 0 {
		t.Fatalf("expected empty-action event dropped, got %d", len(got))
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer sink.Close()

	svc := New(memory.New(), sink, 0, logger.Nop())
	ctx := context.Background()

	if err := svc.Record(ctx, audit.Event{ActorID: "a", Action: "login", Entity: "user", EntityID: "u-1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, audit.Event{ActorID: "a", Action: "logout", Entity: "user", EntityID: "u-1"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open sink file: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev audit.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines+1, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", lines)
	}
}

func TestNilPathSink(t *testing.T) {
	sink, err := NewFileSink("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if sink != nil {
		t.Fatal("expected nil sink for empty path")
	}
	if err := sink.Write(audit.Event{}); err != nil {
		t.Fatalf("nil sink write: %v", err)
	}
}
