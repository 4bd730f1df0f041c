package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
)

// BBox прямоугольная область в формате COCO: [x, y, width, height]
type BBox struct {
	X float64 // координата X левого верхнего угла
	Y float64 // координата Y левого верхнего угла
	W float64 // ширина области в пикселях
	H float64 // высота области в пикселях
}

// Area возвращает площадь области
func (b BBox) Area() float64 {
	if b.Degenerate() {
		return 0
	}
	return b.W * b.H
}

// Degenerate сообщает, что у области нулевая (или отрицательная) площадь
func (b BBox) Degenerate() bool {
	return !(b.W > 0) || !(b.H > 0)
}

// Center возвращает координаты центра области
func (b BBox) Center() (x, y float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Rect переводит область в целочисленный image.Rectangle
func (b BBox) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.X)),
		int(math.Floor(b.Y)),
		int(math.Ceil(b.X+b.W)),
		int(math.Ceil(b.Y+b.H)),
	)
}

// Intersection возвращает площадь пересечения двух областей
func (b BBox) Intersection(o BBox) float64 {
	w := math.Min(b.X+b.W, o.X+o.W) - math.Max(b.X, o.X)
	h := math.Min(b.Y+b.H, o.Y+o.H) - math.Max(b.Y, o.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU возвращает отношение пересечения к объединению
func (b BBox) IoU(o BBox) float64 {
	inter := b.Intersection(o)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X, b.Y, b.W, b.H})
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(raw) != 4 {
		return fmt.Errorf("bbox: expected 4 values, got %d", len(raw))
	}
	*b = BBox{X: raw[0], Y: raw[1], W: raw[2], H: raw[3]}
	return nil
}

// ErrUnsupportedSegmentation возвращается для масок в формате RLE.
var ErrUnsupportedSegmentation = errors.New("unsupported segmentation format: only polygons are supported")

// Segmentation маска объекта в виде набора полигонов [x1, y1, x2, y2, ...].
// nil означает, что маски нет; пустой срез означает пустую маску.
type Segmentation [][]float64

// Empty сообщает, что в маске нет ни одного полигона из трёх и более точек
func (s Segmentation) Empty() bool {
	for _, poly := range s {
		if validPolygon(poly) {
			return false
		}
	}
	return true
}

// Polygons возвращает корректные полигоны маски в целочисленных координатах
func (s Segmentation) Polygons() [][]image.Point {
	out := make([][]image.Point, 0, len(s))
	for _, poly := range s {
		if !validPolygon(poly) {
			continue
		}
		pts := make([]image.Point, 0, len(poly)/2)
		for i := 0; i+1 < len(poly); i += 2 {
			pts = append(pts, image.Pt(int(math.Round(poly[i])), int(math.Round(poly[i+1]))))
		}
		out = append(out, pts)
	}
	return out
}

func (s *Segmentation) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var polys [][]float64
	if err := json.Unmarshal(data, &polys); err != nil {
		var obj map[string]json.RawMessage
		if json.Unmarshal(data, &obj) == nil {
			return ErrUnsupportedSegmentation
		}
		return fmt.Errorf("segmentation: %w", err)
	}
	if polys == nil {
		polys = [][]float64{}
	}
	*s = polys
	return nil
}

func validPolygon(poly []float64) bool {
	return len(poly) >= 6 && len(poly)%2 == 0
}
