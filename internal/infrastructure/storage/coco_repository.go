package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
)

// CocoRepository хранит наборы разметки в JSON-файлах формата COCO
type CocoRepository struct{}

// NewCocoRepository создаёт файловое хранилище
func NewCocoRepository() *CocoRepository {
	return &CocoRepository{}
}

// LoadCollection читает и проверяет исходный набор разметки
func (r *CocoRepository) LoadCollection(ctx context.Context, path string, ns entity.Namespace) (*entity.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	malformed := func(reason string, err error) error {
		return &entity.MalformedInputError{Collection: ns, Path: path, Reason: reason, Err: err}
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" {
		return nil, malformed(fmt.Sprintf("unsupported format %q, expected .json", ext), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, malformed("read file", err)
	}

	var c entity.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, malformed("decode json", err)
	}

	if err := c.Validate(ns); err != nil {
		var m *entity.MalformedInputError
		if errors.As(err, &m) {
			m.Path = path
		}
		return nil, err
	}

	return &c, nil
}

// SaveMerged записывает набор и карту восстановления через временные файлы.
// На время записи берётся файловая блокировка <datasetPath>.lock.
func (r *CocoRepository) SaveMerged(ctx context.Context, datasetPath, mapPath string, merged *entity.Collection, recovery *entity.RecoveryMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	datasetData, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode merged dataset: %w", err)
	}
	mapData, err := json.MarshalIndent(recovery, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recovery map: %w", err)
	}

	lock := flock.New(datasetPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("output %s is locked by another merge", datasetPath)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	datasetTmp, err := writeTemp(datasetPath, datasetData)
	if err != nil {
		return err
	}
	defer os.Remove(datasetTmp)

	mapTmp, err := writeTemp(mapPath, mapData)
	if err != nil {
		return err
	}
	defer os.Remove(mapTmp)

	// Прежняя карта откладывается, чтобы вернуть её, если набор не удастся заменить.
	backup, err := backupFile(mapPath)
	if err != nil {
		return err
	}
	restore := func() {
		if backup == "" {
			_ = os.Remove(mapPath)
			return
		}
		_ = os.Rename(backup, mapPath)
	}

	if err := os.Rename(mapTmp, mapPath); err != nil {
		restore()
		return fmt.Errorf("commit recovery map: %w", err)
	}
	if err := os.Rename(datasetTmp, datasetPath); err != nil {
		restore()
		return fmt.Errorf("commit merged dataset: %w", err)
	}

	if backup != "" {
		_ = os.Remove(backup)
	}
	return nil
}

// backupFile переносит существующий файл во временный рядом с ним.
// Пустая строка означает, что файла не было.
func backupFile(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.bak")
	if err != nil {
		return "", fmt.Errorf("create backup for %s: %w", path, err)
	}
	name := f.Name()
	_ = f.Close()

	if err := os.Rename(path, name); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("back up %s: %w", path, err)
	}
	return name, nil
}

// LoadRecoveryMap читает карту восстановления и сверяет контрольную сумму
func (r *CocoRepository) LoadRecoveryMap(ctx context.Context, path string) (*entity.RecoveryMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recovery map: %w", err)
	}

	var m entity.RecoveryMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("load recovery map %s: %w", path, err)
	}
	return &m, nil
}

// DefaultMapPath путь карты восстановления рядом с объединённым набором
func DefaultMapPath(datasetPath string) string {
	return strings.TrimSuffix(datasetPath, filepath.Ext(datasetPath)) + ".labels.json"
}

func writeTemp(target string, data []byte) (string, error) {
	dir := filepath.Dir(target)
	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", target, err)
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close %s: %w", target, err)
	}
	return name, nil
}

// Проверка реализации интерфейса
var _ port.DatasetRepository = (*CocoRepository)(nil)
