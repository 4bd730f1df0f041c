package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

const versionPrefix = "sha256:"

// CategoryKey идентичность категории до слияния: пространство имён + исходный id.
// Имя в ключ не входит, одинаковые имена в разных пространствах не склеиваются.
type CategoryKey struct {
	Namespace  Namespace
	OriginalID int64
}

// RecoveryEntry запись карты восстановления для одной объединённой категории
type RecoveryEntry struct {
	MergedID      int64     `json:"id"`
	Namespace     Namespace `json:"namespace"`
	OriginalID    int64     `json:"original_id"`
	Name          string    `json:"name"`
	Supercategory string    `json:"supercategory,omitempty"`
}

// Key возвращает исходную идентичность категории
func (e RecoveryEntry) Key() CategoryKey {
	return CategoryKey{Namespace: e.Namespace, OriginalID: e.OriginalID}
}

// RecoveryMap биекция между объединённым id категории и (namespace, original id, name).
// После создания не изменяется и безопасна для одновременного чтения.
type RecoveryMap struct {
	version  string
	entries  []RecoveryEntry
	byMerged map[int64]RecoveryEntry
	byKey    map[CategoryKey]int64
}

// NewRecoveryMap строит карту и вычисляет её версию по содержимому.
func NewRecoveryMap(entries []RecoveryEntry) (*RecoveryMap, error) {
	sorted := append([]RecoveryEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MergedID < sorted[j].MergedID })

	m := &RecoveryMap{
		entries:  sorted,
		byMerged: make(map[int64]RecoveryEntry, len(sorted)),
		byKey:    make(map[CategoryKey]int64, len(sorted)),
	}
	for _, e := range sorted {
		if !e.Namespace.Valid() {
			return nil, fmt.Errorf("recovery map: category %d has unknown namespace %q", e.MergedID, e.Namespace)
		}
		if _, dup := m.byMerged[e.MergedID]; dup {
			return nil, fmt.Errorf("recovery map: duplicate merged category id %d", e.MergedID)
		}
		if other, dup := m.byKey[e.Key()]; dup {
			return nil, fmt.Errorf("recovery map: %s category %d mapped twice (ids %d and %d)",
				e.Namespace, e.OriginalID, other, e.MergedID)
		}
		m.byMerged[e.MergedID] = e
		m.byKey[e.Key()] = e.MergedID
	}

	version, err := checksum(sorted)
	if err != nil {
		return nil, err
	}
	m.version = version
	return m, nil
}

// Version контрольная сумма содержимого карты
func (m *RecoveryMap) Version() string { return m.version }

// Len число категорий в карте
func (m *RecoveryMap) Len() int { return len(m.entries) }

// Entries возвращает копию записей, упорядоченных по объединённому id
func (m *RecoveryMap) Entries() []RecoveryEntry {
	return append([]RecoveryEntry(nil), m.entries...)
}

// Resolve находит запись по объединённому id категории
func (m *RecoveryMap) Resolve(mergedID int64) (RecoveryEntry, bool) {
	e, ok := m.byMerged[mergedID]
	return e, ok
}

// Lookup обратное отображение: исходная категория -> объединённый id
func (m *RecoveryMap) Lookup(key CategoryKey) (int64, bool) {
	id, ok := m.byKey[key]
	return id, ok
}

// Verify сверяет версию карты с версией, с которой была обучена модель
func (m *RecoveryMap) Verify(version string) error {
	if version != m.version {
		return &RecoveryMapMismatchError{Expected: m.version, Actual: version}
	}
	return nil
}

type recoveryFile struct {
	Version    string          `json:"version"`
	Categories []RecoveryEntry `json:"categories"`
}

func (m *RecoveryMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(recoveryFile{Version: m.version, Categories: m.entries})
}

// UnmarshalJSON восстанавливает карту и проверяет, что записанная версия
// совпадает с пересчитанной по содержимому.
func (m *RecoveryMap) UnmarshalJSON(data []byte) error {
	var f recoveryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	loaded, err := NewRecoveryMap(f.Categories)
	if err != nil {
		return err
	}
	if f.Version != loaded.version {
		return &RecoveryMapMismatchError{Expected: f.Version, Actual: loaded.version}
	}
	*m = *loaded
	return nil
}

func checksum(entries []RecoveryEntry) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("recovery map checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return versionPrefix + hex.EncodeToString(sum[:]), nil
}
