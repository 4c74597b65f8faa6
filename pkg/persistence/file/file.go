// Package file provides file-based persistence for automations,
// activations, schedules and idempotency records. Each entity is one
// JSON document under the root directory; a single lock serializes
// mutations so compare-and-set operations stay atomic in-process.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/trigonhq/trigon/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local filesystem.
type Persistence struct {
	root string
	mu   sync.RWMutex

	automationRepo  *AutomationRepository
	activationRepo  *ActivationRepository
	scheduleRepo    *ScheduleRepository
	idempotencyRepo *IdempotencyRepository
}

// NewPersistence creates a file persistence rooted at the given path.
// A "file://" prefix is accepted for URL-configured deployments.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.TrimPrefix(root, "file://")

	p := &Persistence{root: cleanRoot}
	p.automationRepo = &AutomationRepository{persistence: p}
	p.activationRepo = &ActivationRepository{persistence: p}
	p.scheduleRepo = &ScheduleRepository{persistence: p}
	p.idempotencyRepo = &IdempotencyRepository{persistence: p}

	return p
}

func (p *Persistence) AutomationRepository() persistence.AutomationRepository {
	return p.automationRepo
}

func (p *Persistence) ActivationRepository() persistence.ActivationRepository {
	return p.activationRepo
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.scheduleRepo
}

func (p *Persistence) IdempotencyRepository() persistence.IdempotencyRepository {
	return p.idempotencyRepo
}

// HealthCheck verifies the root directory is usable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("persistence root not writable: %w", err)
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// write stores a JSON document at dir/name.json, creating dirs as needed.
// Callers hold p.mu.
func (p *Persistence) write(dir, name string, value any) error {
	fullDir := filepath.Join(p.root, dir)
	if err := os.MkdirAll(fullDir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(fullDir, name+".json"), data, 0o644)
}

// read loads a JSON document into out. Missing files surface as the
// sentinel notFound error. Callers hold p.mu (read side).
func (p *Persistence) read(dir, name string, out any, notFound error) error {
	data, err := os.ReadFile(filepath.Join(p.root, dir, name+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound
		}

		return err
	}

	return json.Unmarshal(data, out)
}

// list iterates every JSON document in dir, invoking fn with the raw
// bytes. A missing directory means an empty collection.
func (p *Persistence) list(dir string, fn func(data []byte) error) error {
	entries, err := os.ReadDir(filepath.Join(p.root, dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(p.root, dir, entry.Name()))
		if err != nil {
			return err
		}

		if err := fn(data); err != nil {
			return err
		}
	}

	return nil
}

// readDirNames returns subdirectory names, treating a missing directory
// as empty.
func readDirNames(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

// remove deletes a document; missing files are not an error.
func (p *Persistence) remove(dir, name string) error {
	err := os.Remove(filepath.Join(p.root, dir, name+".json"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}
