// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
)

func TestFallbackWriterAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "fallback.log")
	w := NewFallbackWriter(path)
	defer w.Close()

	cause := errors.New("store unreachable")
	events := []*Event{
		{ID: "a-1", EventID: "evt_1", Type: EventTypeSystem},
		{ID: "a-2", EventID: "evt_2", Type: EventTypeSystem},
	}

	written, err := w.WriteBatch(events, cause)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if written != 2 {
		t.Fatalf("written = %d, want 2", written)
	}

	// A second batch appends to the same file.
	if _, err := w.WriteBatch(events[:1], cause); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open fallback file: %v", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line struct {
			Event *Event `json:"event"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		if line.Error != "store unreachable" {
			t.Errorf("Error = %q", line.Error)
		}
		ids = append(ids, line.Event.ID)
	}

	want := []string{"a-1", "a-2", "a-1"}
	if len(ids) != len(want) {
		t.Fatalf("lines = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("line %d id = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestFallbackWriterLazyOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.log")
	w := NewFallbackWriter(path)

	// No write, no file.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file exists before first write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close without open: %v", err)
	}
}

func TestFallbackWriterFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.log")
	w := NewFallbackWriter(path)
	defer w.Close()

	if _, err := w.WriteBatch([]*Event{{ID: "a-1"}}, errors.New("x")); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Errorf("mode = %o, want 600", got)
	}
}
