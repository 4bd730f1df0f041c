package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
)

// MemoryRepository in-memory хранилище наборов разметки
type MemoryRepository struct {
	mu          sync.RWMutex
	collections map[string]*entity.Collection
	maps        map[string]*entity.RecoveryMap
}

// NewMemoryRepository создаёт новое in-memory хранилище
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		collections: make(map[string]*entity.Collection),
		maps:        make(map[string]*entity.RecoveryMap),
	}
}

// Put кладёт набор по пути
func (r *MemoryRepository) Put(path string, c *entity.Collection) {
	r.mu.Lock()
	r.collections[path] = c
	r.mu.Unlock()
}

// Collection возвращает сохранённый набор
func (r *MemoryRepository) Collection(path string) (*entity.Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[path]
	return c, ok
}

// LoadCollection возвращает копию набора, проверив его целостность
func (r *MemoryRepository) LoadCollection(ctx context.Context, path string, ns entity.Namespace) (*entity.Collection, error) {
	r.mu.RLock()
	c, ok := r.collections[path]
	r.mu.RUnlock()

	if !ok {
		return nil, &entity.MalformedInputError{Collection: ns, Path: path, Reason: "collection not found"}
	}

	cp := clone(c)
	if err := cp.Validate(ns); err != nil {
		return nil, err
	}
	return cp, nil
}

// SaveMerged сохраняет набор и карту
func (r *MemoryRepository) SaveMerged(ctx context.Context, datasetPath, mapPath string, merged *entity.Collection, recovery *entity.RecoveryMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.collections[datasetPath] = merged
	r.maps[mapPath] = recovery
	return nil
}

// LoadRecoveryMap возвращает сохранённую карту
func (r *MemoryRepository) LoadRecoveryMap(ctx context.Context, path string) (*entity.RecoveryMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.maps[path]
	if !ok {
		return nil, fmt.Errorf("recovery map %s not found", path)
	}
	return m, nil
}

func clone(c *entity.Collection) *entity.Collection {
	return &entity.Collection{
		Info:        maps.Clone(c.Info),
		Licenses:    slices.Clone(c.Licenses),
		Images:      slices.Clone(c.Images),
		Categories:  slices.Clone(c.Categories),
		Annotations: slices.Clone(c.Annotations),
	}
}

// Проверка реализации интерфейса
var _ port.DatasetRepository = (*MemoryRepository)(nil)
