package port

import (
	"context"

	"carvision/internal/domain/entity"
)

// InstanceDetector внешняя обученная модель сегментации экземпляров
type InstanceDetector interface {
	// LabelMapVersion возвращает версию карты категорий, с которой обучена модель
	LabelMapVersion(ctx context.Context) (string, error)

	// Detect возвращает сырые детекции для изображения
	Detect(ctx context.Context, name string, imageData []byte) ([]entity.Detection, error)
}
