package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ineyio/speechgate"
)

// FileStore keeps the ledger as a JSON document on local disk:
//
//	{"processed_seconds": 1234.5, "period_anchor": "17/10/2026"}
//
// Saves write a sibling temp file and rename it over the target, so a crash
// mid-write leaves the previous record intact.
type FileStore struct {
	mu              sync.Mutex
	path            string
	createIfMissing bool
}

var _ speechgate.LedgerStore = (*FileStore)(nil)

// FileOption configures FileStore.
type FileOption func(*FileStore)

// WithCreateIfMissing makes Load return the zero state when the file does not
// exist. Without it a missing file is an error.
func WithCreateIfMissing(create bool) FileOption {
	return func(s *FileStore) { s.createIfMissing = create }
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads and decodes the ledger file.
func (s *FileStore) Load(_ context.Context) (speechgate.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) && s.createIfMissing {
		return speechgate.LedgerState{}, nil
	}
	if err != nil {
		return speechgate.LedgerState{}, fmt.Errorf("speechgate/ledger: read %s: %w", s.path, err)
	}

	var state speechgate.LedgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return speechgate.LedgerState{}, fmt.Errorf("%w: decode %s: %v", speechgate.ErrLedgerCorrupt, s.path, err)
	}
	return state, nil
}

// Save atomically replaces the ledger file.
func (s *FileStore) Save(ctx context.Context, state speechgate.LedgerState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("speechgate/ledger: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("speechgate/ledger: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("speechgate/ledger: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("speechgate/ledger: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("speechgate/ledger: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("speechgate/ledger: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("speechgate/ledger: rename: %w", err)
	}
	return nil
}
