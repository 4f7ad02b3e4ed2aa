// Package checkpoint persists the set of record identifiers a batch run has
// already processed, so an interrupted run can resume near where it stopped.
//
// Flushes go through a temp file and an atomic rename. A kill between
// "processed record" and "checkpoint flushed" therefore loses at most the
// records since the previous flush; reprocessing them is safe because every
// repair in the verification state machine is idempotent.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"seiso/internal/logging"
)

type payload struct {
	RunID     string    `json:"run_id"`
	UpdatedAt time.Time `json:"updated_at"`
	IDs       []string  `json:"ids"`
}

// File is a durable set of processed record identifiers.
type File struct {
	path       string
	runID      string
	interval   int
	logger     *slog.Logger
	seen       map[string]struct{}
	sinceFlush int
}

// Open loads the checkpoint at path, creating an empty one when the file does
// not exist. interval controls how many Add calls pass between automatic
// flushes.
func Open(path, runID string, interval int, logger *slog.Logger) (*File, error) {
	if interval <= 0 {
		interval = 1
	}
	f := &File{
		path:     path,
		runID:    runID,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "checkpoint"),
		seen:     make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}

	var stored payload
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	for _, id := range stored.IDs {
		f.seen[id] = struct{}{}
	}
	f.logger.Info("resuming from checkpoint", slog.Int("processed", len(f.seen)), slog.String("previous_run", stored.RunID))
	return f, nil
}

// Contains reports whether the identifier was processed by this or an
// earlier run.
func (f *File) Contains(id string) bool {
	_, ok := f.seen[id]
	return ok
}

// Len returns the number of recorded identifiers.
func (f *File) Len() int {
	return len(f.seen)
}

// Add records an identifier as processed and flushes when the configured
// interval has passed since the last flush.
func (f *File) Add(id string) error {
	if _, ok := f.seen[id]; ok {
		return nil
	}
	f.seen[id] = struct{}{}
	f.sinceFlush++
	if f.sinceFlush >= f.interval {
		return f.Flush()
	}
	return nil
}

// Flush writes the checkpoint atomically.
func (f *File) Flush() error {
	ids := make([]string, 0, len(f.seen))
	for id := range f.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.MarshalIndent(payload{
		RunID:     f.runID,
		UpdatedAt: time.Now().UTC(),
		IDs:       ids,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("ensure checkpoint directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace checkpoint %s: %w", f.path, err)
	}
	f.sinceFlush = 0
	f.logger.Debug("checkpoint flushed", slog.Int("processed", len(ids)))
	return nil
}
