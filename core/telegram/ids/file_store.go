package ids

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileStore keeps the table in a flat file. Paths ending in .yaml or .yml are
// written as YAML, anything else as a JSON object.
type FileStore struct {
	Path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the table. A missing or empty file is an empty table.
// A corrupt file yields an empty table together with the parse error.
func (s *FileStore) Load(_ context.Context) (map[string]int, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]int{}, nil
	}
	if err != nil {
		return map[string]int{}, fmt.Errorf("ids: read %s: %w", s.Path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]int{}, nil
	}

	table := make(map[string]int)
	if s.isYAML() {
		err = yaml.Unmarshal(data, &table)
	} else {
		err = json.Unmarshal(data, &table)
	}
	if err != nil {
		return map[string]int{}, fmt.Errorf("ids: parse %s: %w", s.Path, err)
	}
	return table, nil
}

// Save rewrites the whole table through a temp file and rename.
func (s *FileStore) Save(_ context.Context, table map[string]int) error {
	var (
		data []byte
		err  error
	)
	if s.isYAML() {
		data, err = yaml.Marshal(table)
	} else {
		data, err = json.MarshalIndent(table, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("ids: encode table: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ids: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("ids: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("ids: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("ids: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("ids: replace %s: %w", s.Path, err)
	}
	return nil
}

func (s *FileStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.Path))
	return ext == ".yaml" || ext == ".yml"
}
