package entity

import "fmt"

// MalformedInputError исходный набор разметки не читается или нарушает целостность
type MalformedInputError struct {
	Collection Namespace
	Path       string
	Reason     string
	Err        error
}

func (e *MalformedInputError) Error() string {
	src := string(e.Collection)
	if e.Path != "" {
		src = fmt.Sprintf("%s (%s)", e.Collection, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed %s collection: %s: %v", src, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s collection: %s", src, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// DimensionMismatchError одно и то же изображение объявлено с разными размерами
type DimensionMismatchError struct {
	FileName     string
	DamageWidth  int
	DamageHeight int
	PartWidth    int
	PartHeight   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("image %q has conflicting dimensions: damage %dx%d, part %dx%d",
		e.FileName, e.DamageWidth, e.DamageHeight, e.PartWidth, e.PartHeight)
}

// UnknownCategoryError детекция ссылается на категорию, которой нет в карте восстановления
type UnknownCategoryError struct {
	CategoryID int64
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("detection references category id %d absent from recovery map", e.CategoryID)
}

// RecoveryMapMismatchError версия карты восстановления не совпадает с ожидаемой
type RecoveryMapMismatchError struct {
	Expected string
	Actual   string
}

func (e *RecoveryMapMismatchError) Error() string {
	return fmt.Sprintf("recovery map version mismatch: expected %q, got %q", e.Expected, e.Actual)
}

// ImageReadError изображение не удалось прочитать или декодировать
type ImageReadError struct {
	Image string
	Err   error
}

func (e *ImageReadError) Error() string {
	return fmt.Sprintf("read image %s: %v", e.Image, e.Err)
}

func (e *ImageReadError) Unwrap() error { return e.Err }
