// Package ledger persists the project name to last-screenshot timestamp map.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Ledger maps a project name to the ISO-8601 commit timestamp of the most
// recent screenshot decision. A missing key means never screenshotted.
type Ledger map[string]string

// Clone returns an independent copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Equal reports whether both ledgers hold the same entries.
func (l Ledger) Equal(other Ledger) bool {
	if len(l) != len(other) {
		return false
	}
	for k, v := range l {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Store reads and writes a Ledger as a single JSON document.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the ledger. It never fails: a missing file yields an empty
// ledger, an unreadable or corrupt one is logged and also yields empty.
func (s *Store) Load() Ledger {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Could not read timestamp ledger; starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return Ledger{}
	}

	var out Ledger
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("Could not parse timestamp ledger; starting empty",
			zap.String("path", s.path), zap.Error(err))
		return Ledger{}
	}
	if out == nil {
		return Ledger{}
	}
	return out
}

// Save overwrites the file with pretty-printed JSON and a trailing newline,
// creating the parent directory when needed. The write is not atomic.
func (s *Store) Save(l Ledger) error {
	if l == nil {
		l = Ledger{}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create ledger dir for %s: %w", s.path, err)
	}
	payload, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	payload = append(payload, '\n')
	if err := os.WriteFile(s.path, payload, 0o644); err != nil { //nolint:gosec // ledger is committed alongside the repo
		return fmt.Errorf("write ledger %s: %w", s.path, err)
	}
	return nil
}
