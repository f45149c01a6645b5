package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// Config locates the externally editable catalog documents.
type Config struct {
	SelectionPath string `yaml:"selection_path"`
	LoopsPath     string `yaml:"loops_path"`
}

func (c *Config) ApplyDefaults() {
	if c.SelectionPath == "" {
		c.SelectionPath = "state/tag_selection.json"
	}
	if c.LoopsPath == "" {
		c.LoopsPath = "state/loop_assignments.json"
	}
}

type selectionDoc struct {
	Tags []domain.Tag `json:"tags"`
}

type loopsDoc struct {
	Loops []domain.LoopAssignment `json:"loops"`
}

// FileStore reads the tag selection and loop assignments from JSON documents
// on every call, so external edits take effect on the next sampling cycle.
// A missing document is an empty catalog, not an error.
type FileStore struct {
	cfg Config
}

func NewFileStore(cfg Config) *FileStore {
	cfg.ApplyDefaults()
	return &FileStore{cfg: cfg}
}

func (f *FileStore) Selection(_ context.Context) ([]domain.Tag, error) {
	var doc selectionDoc
	if err := readDoc(f.cfg.SelectionPath, &doc); err != nil {
		return nil, err
	}
	return doc.Tags, nil
}

func (f *FileStore) LoopAssignments(_ context.Context) ([]domain.LoopAssignment, error) {
	var doc loopsDoc
	if err := readDoc(f.cfg.LoopsPath, &doc); err != nil {
		return nil, err
	}
	return doc.Loops, nil
}

func (f *FileStore) SaveSelection(_ context.Context, tags []domain.Tag) error {
	return writeDoc(f.cfg.SelectionPath, selectionDoc{Tags: tags})
}

func (f *FileStore) SaveLoopAssignments(_ context.Context, loops []domain.LoopAssignment) error {
	return writeDoc(f.cfg.LoopsPath, loopsDoc{Loops: loops})
}

func readDoc(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return nil
}

func writeDoc(path string, doc any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("catalog dir %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog %s: %w", path, err)
	}
	return nil
}

var _ ports.CatalogStore = (*FileStore)(nil)
