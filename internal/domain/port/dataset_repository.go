package port

import (
	"context"

	"carvision/internal/domain/entity"
)

// DatasetRepository хранилище наборов разметки и карты восстановления
type DatasetRepository interface {
	// LoadCollection читает исходный набор разметки
	LoadCollection(ctx context.Context, path string, ns entity.Namespace) (*entity.Collection, error)

	// SaveMerged атомарно записывает объединённый набор и карту восстановления
	SaveMerged(ctx context.Context, datasetPath, mapPath string, merged *entity.Collection, recovery *entity.RecoveryMap) error

	// LoadRecoveryMap читает карту восстановления и проверяет её контрольную сумму
	LoadRecoveryMap(ctx context.Context, path string) (*entity.RecoveryMap, error)
}
