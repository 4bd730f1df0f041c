package entity

import (
	"encoding/json"
	"fmt"
)

// Namespace смысловая группа категорий: повреждения или детали кузова
type Namespace string

const (
	NamespaceDamage Namespace = "damage" // категории из разметки повреждений
	NamespacePart   Namespace = "part"   // категории из разметки деталей
)

// Valid сообщает, что пространство имён известно
func (n Namespace) Valid() bool {
	return n == NamespaceDamage || n == NamespacePart
}

// Image описание изображения в наборе разметки
type Image struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	// Прочие поля COCO (license, coco_url, date_captured, ...) переносятся как есть
	Extra map[string]json.RawMessage `json:"-"`
}

// Category класс объекта
type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory,omitempty"`
}

// Annotation размеченный экземпляр объекта на изображении
type Annotation struct {
	ID           int64        `json:"id"`
	ImageID      int64        `json:"image_id"`
	CategoryID   int64        `json:"category_id"`
	BBox         BBox         `json:"bbox"`
	Area         float64      `json:"area"`
	IsCrowd      int          `json:"iscrowd"`
	Segmentation Segmentation `json:"segmentation,omitempty"`
	Namespace    Namespace    `json:"namespace,omitempty"` // источник аннотации после слияния

	// Прочие поля COCO (attributes, ...) переносятся как есть
	Extra map[string]json.RawMessage `json:"-"`
}

// Degenerate сообщает, что геометрия аннотации вырождена:
// нулевая площадь рамки или присутствующая, но пустая маска.
func (a Annotation) Degenerate() bool {
	if a.BBox.Degenerate() {
		return true
	}
	return a.Segmentation != nil && a.Segmentation.Empty()
}

// Collection набор разметки в формате COCO
type Collection struct {
	Info        map[string]any    `json:"info,omitempty"`
	Licenses    []json.RawMessage `json:"licenses,omitempty"`
	Images      []Image           `json:"images"`
	Categories  []Category        `json:"categories"`
	Annotations []Annotation      `json:"annotations"`
}

// Validate проверяет ссылочную целостность набора.
// Ошибка всегда *MalformedInputError с указанием набора.
func (c *Collection) Validate(ns Namespace) error {
	fail := func(format string, args ...any) error {
		return &MalformedInputError{Collection: ns, Reason: fmt.Sprintf(format, args...)}
	}

	images := make(map[int64]struct{}, len(c.Images))
	files := make(map[string]int64, len(c.Images))
	for _, img := range c.Images {
		if _, dup := images[img.ID]; dup {
			return fail("duplicate image id %d", img.ID)
		}
		images[img.ID] = struct{}{}

		if img.FileName == "" {
			return fail("image %d has empty file_name", img.ID)
		}
		if other, dup := files[img.FileName]; dup {
			return fail("file %q is listed twice (image ids %d and %d)", img.FileName, other, img.ID)
		}
		files[img.FileName] = img.ID

		if img.Width <= 0 || img.Height <= 0 {
			return fail("image %d (%s) has invalid size %dx%d", img.ID, img.FileName, img.Width, img.Height)
		}
	}

	categories := make(map[int64]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if _, dup := categories[cat.ID]; dup {
			return fail("duplicate category id %d", cat.ID)
		}
		if cat.Name == "" {
			return fail("category %d has empty name", cat.ID)
		}
		categories[cat.ID] = struct{}{}
	}

	annotations := make(map[int64]struct{}, len(c.Annotations))
	for _, ann := range c.Annotations {
		if _, dup := annotations[ann.ID]; dup {
			return fail("duplicate annotation id %d", ann.ID)
		}
		annotations[ann.ID] = struct{}{}

		if _, ok := images[ann.ImageID]; !ok {
			return fail("annotation %d references missing image id %d", ann.ID, ann.ImageID)
		}
		if _, ok := categories[ann.CategoryID]; !ok {
			return fail("annotation %d references missing category id %d", ann.ID, ann.CategoryID)
		}
	}

	return nil
}
