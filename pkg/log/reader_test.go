package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

// writeTestLog writes the given events to a log file and returns its path.
func writeTestLog(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.clog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func TestReaderReadsAllEvents(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: "conn-1", Category: CategoryCommand},
		{Timestamp: time.Now(), ConnectionID: "conn-1", Category: CategoryPush},
		{Timestamp: time.Now(), ConnectionID: "conn-2", Category: CategoryState},
	}
	path := writeTestLog(t, events)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[2].ConnectionID != "conn-2" {
		t.Errorf("third event ConnectionID: got %q, want %q", got[2].ConnectionID, "conn-2")
	}
}

func TestReaderNextReturnsEOF(t *testing.T) {
	path := writeTestLog(t, []Event{
		{Timestamp: time.Now(), ConnectionID: "conn-1", Category: CategoryCommand},
	})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("second Next: got %v, want io.EOF", err)
	}
}

func TestReaderFiltersByConnectionID(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: "conn-1", Category: CategoryCommand},
		{Timestamp: time.Now(), ConnectionID: "conn-2", Category: CategoryCommand},
		{Timestamp: time.Now(), ConnectionID: "conn-1", Category: CategoryPush},
	}
	path := writeTestLog(t, events)

	reader, err := NewFilteredReader(path, Filter{ConnectionID: "conn-1"})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if e.ConnectionID != "conn-1" {
			t.Errorf("filtered event has ConnectionID %q", e.ConnectionID)
		}
	}
}

func TestReaderFiltersByCategory(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: "conn-1", Category: CategoryCommand},
		{Timestamp: time.Now(), ConnectionID: "conn-1", Category: CategoryPush},
		{Timestamp: time.Now(), ConnectionID: "conn-1", Category: CategoryError},
	}
	path := writeTestLog(t, events)

	cat := CategoryPush
	reader, err := NewFilteredReader(path, Filter{Category: &cat})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Category != CategoryPush {
		t.Errorf("Category: got %v, want %v", got[0].Category, CategoryPush)
	}
}

func TestReaderFiltersByTimeWindow(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, ConnectionID: "conn-1", Category: CategoryCommand},
		{Timestamp: base.Add(10 * time.Second), ConnectionID: "conn-1", Category: CategoryCommand},
		{Timestamp: base.Add(20 * time.Second), ConnectionID: "conn-1", Category: CategoryCommand},
	}
	path := writeTestLog(t, events)

	start := base.Add(5 * time.Second)
	end := base.Add(15 * time.Second)
	reader, err := NewFilteredReader(path, Filter{TimeStart: &start, TimeEnd: &end})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(10 * time.Second)) {
		t.Errorf("Timestamp: got %v", got[0].Timestamp)
	}
}

func TestReaderFilterDirection(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: "conn-1", Direction: DirectionOut, Category: CategoryCommand},
		{Timestamp: time.Now(), ConnectionID: "conn-1", Direction: DirectionIn, Category: CategoryPush},
	}
	path := writeTestLog(t, events)

	dir := DirectionIn
	reader, err := NewFilteredReader(path, Filter{Direction: &dir})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Direction != DirectionIn {
		t.Errorf("Direction: got %v, want %v", got[0].Direction, DirectionIn)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.clog")); err == nil {
		t.Error("expected error for missing file")
	}
}
