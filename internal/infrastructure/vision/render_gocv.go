//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
)

// Renderer рисует детекции средствами OpenCV.
type Renderer struct {
	style Style
}

// NewRenderer создаёт рендерер с заданным стилем.
func NewRenderer(style Style) (*Renderer, error) {
	if err := style.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{style: style}, nil
}

// Render рисует рамки, маски и подписи и возвращает новую картинку.
func (r *Renderer) Render(img image.Image, result entity.TriageResult) (image.Image, error) {
	if img == nil {
		return nil, errors.New("empty image")
	}
	if result.Empty() {
		return img, nil
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.New("empty image")
	}

	for _, det := range drawOrder(result) {
		col := r.style.colorFor(det.Namespace)
		if r.style.DrawMasks && len(det.Mask) > 0 {
			r.fillMask(&mat, det.Mask.Polygons(), col)
		}

		rect := det.BBox.Rect()
		gocv.Rectangle(&mat, rect, col, r.style.LineWidth)

		// Подпись над рамкой; если места нет, то внутри неё.
		org := image.Pt(rect.Min.X, rect.Min.Y-5)
		if org.Y < 12 {
			org.Y = rect.Min.Y + 15
		}
		gocv.PutText(&mat, det.Label(), org, gocv.FontHersheySimplex, 0.5, col, 1)
	}

	return mat.ToImage()
}

// fillMask смешивает залитые полигоны с изображением.
func (r *Renderer) fillMask(mat *gocv.Mat, polygons [][]image.Point, col color.RGBA) {
	if len(polygons) == 0 || r.style.MaskAlpha == 0 {
		return
	}

	pv := gocv.NewPointsVectorFromPoints(polygons)
	defer pv.Close()

	overlay := mat.Clone()
	defer overlay.Close()
	gocv.FillPoly(&overlay, pv, col)

	alpha := float64(r.style.MaskAlpha) / 255
	gocv.AddWeighted(overlay, alpha, *mat, 1-alpha, 0, mat)
}

// Проверка реализации интерфейса
var _ port.Renderer = (*Renderer)(nil)
