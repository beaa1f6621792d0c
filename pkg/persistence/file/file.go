// Package file provides a file-system persistence implementation, used for
// development and tests. One JSON document per entity, guarded by a single
// store lock so lifecycle transitions stay serialized.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a root directory.
type Persistence struct {
	store *store

	parameterRepo *ParameterRepository
	familyRepo    *FamilyRepository
	versionRepo   *VersionRepository
	subnodeRepo   *SubNodeRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	st := &store{root: cleanRoot}

	fp := &Persistence{store: st}
	fp.parameterRepo = &ParameterRepository{store: st}
	fp.familyRepo = &FamilyRepository{store: st}
	fp.versionRepo = &VersionRepository{store: st}
	fp.subnodeRepo = &SubNodeRepository{store: st}
	fp.executionRepo = &ExecutionRepository{store: st}

	return fp
}

func (fp *Persistence) Parameters() persistence.ParameterRepository { return fp.parameterRepo }
func (fp *Persistence) Families() persistence.FamilyRepository      { return fp.familyRepo }
func (fp *Persistence) Versions() persistence.VersionRepository     { return fp.versionRepo }
func (fp *Persistence) SubNodes() persistence.SubNodeRepository     { return fp.subnodeRepo }
func (fp *Persistence) Executions() persistence.ExecutionRepository { return fp.executionRepo }

// Close performs any necessary cleanup. Nothing to release for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.store.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// store serializes all reads and writes. Coarse locking keeps the
// archive-then-publish and deploy transitions atomic without transactions.
type store struct {
	mu   sync.RWMutex
	root string
}

func (s *store) path(kind, id string) string {
	return filepath.Join(s.root, kind, id+".json")
}

func (s *store) write(kind, id string, doc any) error {
	dir := filepath.Join(s.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	if err := os.WriteFile(s.path(kind, id), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

// read loads one document; returns notFound when the file does not exist.
func (s *store) read(kind, id string, doc any, notFound error) error {
	data, err := os.ReadFile(s.path(kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

func (s *store) remove(kind, id string, notFound error) error {
	err := os.Remove(s.path(kind, id))
	if os.IsNotExist(err) {
		return notFound
	}

	return err
}

// ids lists the document identifiers stored under kind.
func (s *store) ids(kind string) ([]string, error) {
	dir := filepath.Join(s.root, kind)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	root := os.DirFS(dir)

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", kind, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, f := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(f, ".json"))
	}

	return ids, nil
}
