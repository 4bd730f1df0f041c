package entity

import (
	"fmt"
	"strings"
)

// Detection сырой результат модели для одного экземпляра.
// CategoryID задан в объединённом пространстве категорий.
type Detection struct {
	CategoryID int64        `json:"category_id"`
	Score      float64      `json:"score"`
	BBox       BBox         `json:"bbox"`
	Mask       Segmentation `json:"segmentation,omitempty"`
}

// TriagedDetection детекция с восстановленной категорией
type TriagedDetection struct {
	CategoryID int64        `json:"category_id"`
	OriginalID int64        `json:"original_id"`
	Name       string       `json:"name"`
	Namespace  Namespace    `json:"namespace"`
	Score      float64      `json:"score"`
	BBox       BBox         `json:"bbox"`
	Mask       Segmentation `json:"segmentation,omitempty"`
}

// Label подпись для отрисовки: имя категории и уверенность
func (d TriagedDetection) Label() string {
	return fmt.Sprintf("%s %.2f", d.Name, d.Score)
}

// TriageResult детекции одного изображения, разделённые по пространствам имён.
// Excluded содержит детекции не выше порога; вместе списки покрывают весь вход.
type TriageResult struct {
	Damage   []TriagedDetection `json:"damage"`
	Part     []TriagedDetection `json:"part"`
	Excluded []TriagedDetection `json:"excluded,omitempty"`
}

// Empty сообщает, что ни одна детекция не прошла порог
func (r TriageResult) Empty() bool {
	return len(r.Damage) == 0 && len(r.Part) == 0
}

// PartOverlap деталь, пересекающаяся с повреждением
type PartOverlap struct {
	Part         TriagedDetection `json:"part"`
	Intersection float64          `json:"intersection"`
	IoU          float64          `json:"iou"`
}

// DamageLocation повреждение и детали, на которых оно находится
type DamageLocation struct {
	Damage TriagedDetection `json:"damage"`
	Parts  []PartOverlap    `json:"parts"`
}

// Describe текстовое описание для отчёта
func (l DamageLocation) Describe() string {
	if len(l.Parts) == 0 {
		return fmt.Sprintf("%s (conf %.2f) without part overlap", l.Damage.Name, l.Damage.Score)
	}
	names := make([]string, 0, len(l.Parts))
	for _, p := range l.Parts {
		names = append(names, p.Part.Name)
	}
	return fmt.Sprintf("%s (conf %.2f) on %s", l.Damage.Name, l.Damage.Score, strings.Join(names, ", "))
}
