//go:build !gocv
// +build !gocv

package vision

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/require"

	"carvision/internal/domain/entity"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func testStyle() Style {
	s := DefaultStyle()
	s.LineWidth = 1
	return s
}

func TestRenderer_EmptyResultReturnsInput(t *testing.T) {
	r, err := NewRenderer(testStyle())
	require.NoError(t, err)

	img := whiteImage(10, 10)
	out, err := r.Render(img, entity.TriageResult{})
	require.NoError(t, err)
	require.Same(t, img, out)
}

func TestRenderer_DistinctStylesAndNoMutation(t *testing.T) {
	r, err := NewRenderer(testStyle())
	require.NoError(t, err)

	img := whiteImage(100, 100)
	result := entity.TriageResult{
		Damage: []entity.TriagedDetection{{
			Name: "dent", Namespace: entity.NamespaceDamage, Score: 0.9,
			BBox: entity.BBox{X: 10, Y: 40, W: 20, H: 20},
		}},
		Part: []entity.TriagedDetection{{
			Name: "door", Namespace: entity.NamespacePart, Score: 0.8,
			BBox: entity.BBox{X: 60, Y: 40, W: 30, H: 30},
		}},
	}

	out, err := r.Render(img, result)
	require.NoError(t, err)

	rgba, ok := out.(*image.RGBA)
	require.True(t, ok)

	// Левая граница рамки повреждения и детали
	require.Equal(t, color.RGBA{R: 255, A: 255}, rgba.RGBAAt(10, 50))
	require.Equal(t, color.RGBA{B: 255, A: 255}, rgba.RGBAAt(60, 55))
	// Центр рамки не закрашен
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, rgba.RGBAAt(20, 50))

	// Исходное изображение не изменилось
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(10, 50))
}

func TestRenderer_MaskFill(t *testing.T) {
	r, err := NewRenderer(testStyle())
	require.NoError(t, err)

	img := whiteImage(50, 50)
	result := entity.TriageResult{
		Damage: []entity.TriagedDetection{{
			Name: "dent", Namespace: entity.NamespaceDamage, Score: 0.9,
			BBox: entity.BBox{X: 10, Y: 20, W: 20, H: 20},
			Mask: entity.Segmentation{{10, 20, 30, 20, 30, 40, 10, 40}},
		}},
	}

	out, err := r.Render(img, result)
	require.NoError(t, err)

	c := out.(*image.RGBA).RGBAAt(20, 30)
	require.Equal(t, uint8(255), c.R)
	require.Less(t, c.G, uint8(255))
	require.Less(t, c.B, uint8(255))

	// Вне маски фон остаётся белым
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.(*image.RGBA).RGBAAt(45, 45))
}

func TestNewRenderer_RejectsSameColors(t *testing.T) {
	s := DefaultStyle()
	s.PartColor = s.DamageColor
	_, err := NewRenderer(s)
	require.Error(t, err)

	s = DefaultStyle()
	s.LineWidth = 0
	_, err = NewRenderer(s)
	require.Error(t, err)
}
