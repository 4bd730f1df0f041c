package port

import (
	"context"

	"carvision/internal/domain/entity"
)

// ReportPublisher отправляет результат обработки изображения получателю
type ReportPublisher interface {
	Publish(ctx context.Context, report entity.ImageReport, rendered []byte) error
}
