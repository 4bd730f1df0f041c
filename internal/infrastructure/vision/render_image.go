//go:build !gocv
// +build !gocv

package vision

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
)

// Renderer рисует детекции средствами image/draw (сборка без OpenCV).
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

// Render рисует рамки, маски и подписи на копии изображения.
func (r *Renderer) Render(img image.Image, result entity.TriageResult) (image.Image, error) {
	if img == nil {
		return nil, errors.New("empty image")
	}
	if result.Empty() {
		return img, nil
	}

	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	for _, det := range drawOrder(result) {
		col := r.style.colorFor(det.Namespace)
		if r.style.DrawMasks && len(det.Mask) > 0 {
			fillMask(dst, det.Mask.Polygons(), col, r.style.MaskAlpha)
		}
		rect := det.BBox.Rect()
		strokeRect(dst, rect, col, r.style.LineWidth)
		drawLabel(dst, rect, det.Label(), col)
	}

	return dst, nil
}

func strokeRect(dst draw.Image, rect image.Rectangle, col color.RGBA, width int) {
	src := image.NewUniform(col)
	w := min(width, rect.Dx(), rect.Dy())
	if w <= 0 {
		w = 1
	}
	draw.Draw(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+w), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(rect.Min.X, rect.Max.Y-w, rect.Max.X, rect.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+w, rect.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(rect.Max.X-w, rect.Min.Y, rect.Max.X, rect.Max.Y), src, image.Point{}, draw.Src)
}

// drawLabel рисует подпись над рамкой, а если места нет, то внутри неё.
func drawLabel(dst *image.RGBA, rect image.Rectangle, text string, col color.RGBA) {
	face := basicfont.Face7x13
	height := face.Height
	width := font.MeasureString(face, text).Ceil() + 4

	top := rect.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = rect.Min.Y
	}
	bg := image.Rect(rect.Min.X, top, rect.Min.X+width, top+height)
	draw.Draw(dst, bg, image.NewUniform(col), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(rect.Min.X+2, top+face.Ascent),
	}
	d.DrawString(text)
}

// fillMask заливает полигоны полупрозрачным цветом (правило чёт-нечет).
func fillMask(dst *image.RGBA, polygons [][]image.Point, col color.RGBA, alpha uint8) {
	if len(polygons) == 0 || alpha == 0 {
		return
	}
	b := dst.Bounds()
	mask := image.NewAlpha(b)
	for _, poly := range polygons {
		scanFill(mask, poly, alpha)
	}
	draw.DrawMask(dst, b, image.NewUniform(col), image.Point{}, mask, b.Min, draw.Over)
}

func scanFill(mask *image.Alpha, pts []image.Point, alpha uint8) {
	b := mask.Bounds()
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	minY = max(minY, b.Min.Y)
	maxY = min(maxY, b.Max.Y)

	xs := make([]float64, 0, len(pts))
	for y := minY; y < maxY; y++ {
		fy := float64(y) + 0.5
		xs = xs[:0]
		for i, p := range pts {
			q := pts[(i+1)%len(pts)]
			if (float64(p.Y) <= fy) == (float64(q.Y) <= fy) {
				continue
			}
			x := float64(p.X) + (fy-float64(p.Y))*float64(q.X-p.X)/float64(q.Y-p.Y)
			xs = append(xs, x)
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := max(int(math.Ceil(xs[i]-0.5)), b.Min.X)
			x1 := min(int(math.Ceil(xs[i+1]-0.5)), b.Max.X)
			for x := x0; x < x1; x++ {
				mask.SetAlpha(x, y, color.Alpha{A: alpha})
			}
		}
	}
}

// Проверка реализации интерфейса
var _ port.Renderer = (*Renderer)(nil)
