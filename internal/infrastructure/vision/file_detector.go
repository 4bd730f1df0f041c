package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
)

// FileDetector отдаёт заранее посчитанный вывод модели из JSON-файла.
// Записи ищутся по пути изображения; одна запись не может достаться
// двум разным файлам.
type FileDetector struct {
	version string
	byName  map[string][]entity.Detection
	byBase  map[string][]string

	mu      sync.Mutex
	claimed map[string]string // запись -> путь изображения, которому она отдана
}

type detectionFile struct {
	LabelMapVersion string `json:"label_map_version"`
	Images          []struct {
		FileName   string             `json:"file_name"`
		Detections []entity.Detection `json:"detections"`
	} `json:"images"`
}

// LoadFileDetector читает файл с детекциями
func LoadFileDetector(p string) (*FileDetector, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}

	var f detectionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode detections %s: %w", p, err)
	}

	d := &FileDetector{
		version: f.LabelMapVersion,
		byName:  make(map[string][]entity.Detection, len(f.Images)),
		byBase:  make(map[string][]string, len(f.Images)),
		claimed: make(map[string]string),
	}
	for _, img := range f.Images {
		name := normalizePath(img.FileName)
		if _, dup := d.byName[name]; dup {
			return nil, fmt.Errorf("detections %s: image %q listed twice", p, name)
		}
		d.byName[name] = img.Detections
		base := path.Base(name)
		d.byBase[base] = append(d.byBase[base], name)
	}
	return d, nil
}

// LabelMapVersion версия карты категорий, записанная вместе с детекциями
func (d *FileDetector) LabelMapVersion(ctx context.Context) (string, error) {
	return d.version, nil
}

// Detect ищет детекции по пути изображения: сначала по совпадению хвоста пути,
// затем по имени файла, если оно в файле детекций единственное.
func (d *FileDetector) Detect(ctx context.Context, name string, imageData []byte) ([]entity.Detection, error) {
	key, err := d.resolve(normalizePath(name))
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if owner, ok := d.claimed[key]; ok && owner != name {
		return nil, fmt.Errorf("detections for %q are ambiguous: already used for image %q", key, owner)
	}
	d.claimed[key] = name
	return d.byName[key], nil
}

func (d *FileDetector) resolve(name string) (string, error) {
	best := ""
	for key := range d.byName {
		if (name == key || strings.HasSuffix(name, "/"+key)) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return best, nil
	}

	base := path.Base(name)
	switch candidates := d.byBase[base]; len(candidates) {
	case 0:
		return "", fmt.Errorf("no detections recorded for image %q", base)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("image %q matches several detection entries: %s", name, strings.Join(candidates, ", "))
	}
}

func normalizePath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}

// Проверка реализации интерфейса
var _ port.InstanceDetector = (*FileDetector)(nil)
