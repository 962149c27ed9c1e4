// Package storage persists documents as JSON files.
//
// Writes rotate up to N previous versions (<path>.bak0 is the newest) and
// replace the target atomically through a temporary file, so a crash never
// leaves a truncated store behind.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// DefaultBackups is the number of previous versions kept on save.
const DefaultBackups = 5

const (
	backupSuffixFmt = "%s.bak%d"
	tmpSuffix       = ".tmp"
	dirPerm         = 0o755
	filePerm        = 0o644
)

// JSONStore loads and saves JSON documents with backup rotation.
type JSONStore struct {
	backups int
	logger  *zerolog.Logger
}

// NewJSONStore creates a store keeping the given number of backups. Zero or
// negative values disable rotation.
func NewJSONStore(backups int, logger *zerolog.Logger) *JSONStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &JSONStore{backups: backups, logger: logger}
}

// Load decodes the document at path into v. It reports false without error
// when the file does not exist, leaving v untouched.
func (s *JSONStore) Load(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("read %s: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}

	return true, nil
}

// Save encodes v with two-space indentation and replaces path atomically
// after rotating the previous versions.
func (s *JSONStore) Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, buf.Bytes(), filePerm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := s.rotate(path); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best effort cleanup

		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	s.logger.Debug().Str("path", path).Int("bytes", buf.Len()).Msg("saved json document")

	return nil
}

// rotate shifts .bak(i-1) to .bak(i), dropping the oldest, then moves the
// current file to .bak0.
func (s *JSONStore) rotate(path string) error {
	if s.backups <= 0 {
		return nil
	}

	for i := s.backups - 1; i > 0; i-- {
		src := fmt.Sprintf(backupSuffixFmt, path, i-1)
		dst := fmt.Sprintf(backupSuffixFmt, path, i)

		if err := renameIfExists(src, dst); err != nil {
			return err
		}
	}

	return renameIfExists(path, fmt.Sprintf(backupSuffixFmt, path, 0))
}

func renameIfExists(src, dst string) error {
	if err := os.Rename(src, dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("rotate backup %s: %w", src, err)
	}

	return nil
}
