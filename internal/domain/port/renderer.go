package port

import (
	"image"

	"carvision/internal/domain/entity"
)

// Renderer рисует результаты сортировки детекций поверх изображения
type Renderer interface {
	// Render возвращает новое изображение, исходное не изменяется
	Render(img image.Image, result entity.TriageResult) (image.Image, error)
}
