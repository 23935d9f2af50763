// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/czhaoca/pathfinder-sub009/internal/metrics"
)

// FallbackWriter appends events to a local JSON-lines file when the durable
// store is unreachable, giving operators an out-of-band copy even if
// retries never succeed. The file is opened lazily on first failure.
type FallbackWriter struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// fallbackLine is one line of the fallback log: the event plus the error
// that triggered the fallback write.
type fallbackLine struct {
	Event     *Event    `json:"event"`
	Error     string    `json:"error"`
	WrittenAt time.Time `json:"written_at"`
}

// NewFallbackWriter creates a writer targeting the given path. The file is
// not created until the first write.
func NewFallbackWriter(path string) *FallbackWriter {
	return &FallbackWriter{path: path}
}

// WriteBatch appends one line per event, tagged with the triggering error.
// Returns the number of lines written; a partial write returns the count
// written before the failure.
func (w *FallbackWriter) WriteBatch(events []*Event, cause error) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.open(); err != nil {
		return 0, err
	}

	written := 0
	for _, event := range events {
		line, err := json.Marshal(fallbackLine{
			Event:     event,
			Error:     cause.Error(),
			WrittenAt: time.Now().UTC(),
		})
		if err != nil {
			return written, fmt.Errorf("marshal fallback line: %w", err)
		}
		if _, err := w.file.Write(append(line, '\n')); err != nil {
			return written, fmt.Errorf("write fallback line: %w", err)
		}
		written++
		metrics.AuditFallbackWrites.Inc()
	}

	if err := w.file.Sync(); err != nil {
		return written, fmt.Errorf("sync fallback log: %w", err)
	}
	return written, nil
}

// open lazily opens the append-only fallback file, creating parent
// directories as needed. Caller holds w.mu.
func (w *FallbackWriter) open() error {
	if w.file != nil {
		return nil
	}
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create fallback directory: %w", err)
		}
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open fallback log: %w", err)
	}
	w.file = f
	return nil
}

// Close releases the underlying file if it was opened.
func (w *FallbackWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
