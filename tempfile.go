package speechgate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// TempFile is a request-scoped audio file that is deleted exactly once.
type TempFile struct {
	path   string
	once   sync.Once
	remove func(string) error
	logger *slog.Logger
}

// TempOption configures a TempFile.
type TempOption func(*TempFile)

// WithRemoveFunc replaces os.Remove.
func WithRemoveFunc(fn func(string) error) TempOption {
	return func(t *TempFile) { t.remove = fn }
}

// WithTempLogger sets the logger used for cleanup failures.
func WithTempLogger(l *slog.Logger) TempOption {
	return func(t *TempFile) { t.logger = l }
}

// AdoptTemp takes ownership of an existing file.
func AdoptTemp(path string, opts ...TempOption) *TempFile {
	t := &TempFile{path: path, remove: os.Remove, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SaveTemp copies r into a new uniquely named .wav file under dir.
// On a write failure the partial file is removed.
func SaveTemp(dir string, r io.Reader, opts ...TempOption) (*TempFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("speechgate: create dump dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+".wav")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("speechgate: create temp file: %w", err)
	}

	t := AdoptTemp(path, opts...)
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		t.Release()
		return nil, fmt.Errorf("speechgate: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		t.Release()
		return nil, fmt.Errorf("speechgate: close temp file: %w", err)
	}
	return t, nil
}

// Path returns the file path.
func (t *TempFile) Path() string { return t.path }

// Release deletes the file. Only the first call has any effect. A failed delete
// is logged and otherwise ignored.
func (t *TempFile) Release() {
	t.once.Do(func() {
		if err := t.remove(t.path); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("temp file cleanup failed", "path", t.path, "error", err)
		}
	})
}
