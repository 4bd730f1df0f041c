package vision

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"carvision/internal/domain/entity"
)

// Style визуальный стиль отрисовки двух групп детекций
type Style struct {
	DamageColor color.RGBA
	PartColor   color.RGBA
	LineWidth   int
	DrawMasks   bool
	MaskAlpha   uint8 // непрозрачность заливки маски
}

// DefaultStyle повреждения красным, детали синим
func DefaultStyle() Style {
	return Style{
		DamageColor: color.RGBA{R: 255, A: 255},
		PartColor:   color.RGBA{B: 255, A: 255},
		LineWidth:   3,
		DrawMasks:   true,
		MaskAlpha:   96,
	}
}

// Validate проверяет, что стили групп различимы
func (s Style) Validate() error {
	if s.DamageColor == s.PartColor {
		return errors.New("damage and part colors must differ")
	}
	if s.LineWidth <= 0 {
		return fmt.Errorf("line width must be positive, got %d", s.LineWidth)
	}
	return nil
}

func (s Style) colorFor(ns entity.Namespace) color.RGBA {
	if ns == entity.NamespaceDamage {
		return s.DamageColor
	}
	return s.PartColor
}

// ParseColor разбирает цвет в формате #rrggbb
func ParseColor(hex string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: expected #rrggbb", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// drawOrder части рисуются первыми, повреждения поверх
func drawOrder(result entity.TriageResult) []entity.TriagedDetection {
	out := make([]entity.TriagedDetection, 0, len(result.Part)+len(result.Damage))
	out = append(out, result.Part...)
	return append(out, result.Damage...)
}
