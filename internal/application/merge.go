package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
	"carvision/internal/logging"
)

// RecoveryVersionKey ключ в info объединённого набора с версией карты восстановления.
const RecoveryVersionKey = "recovery_map_version"

// MergeReport сводка по результатам слияния
type MergeReport struct {
	Images             int
	SharedImages       int // изображения, присутствующие в обоих наборах
	Categories         int
	Annotations        int
	Dropped            map[entity.Namespace]int // вырожденные аннотации
	RecoveryMapVersion string
}

// MergeOutput объединённый набор и карта восстановления категорий
type MergeOutput struct {
	Dataset  *entity.Collection
	Recovery *entity.RecoveryMap
	Report   MergeReport
}

type source struct {
	ns         entity.Namespace
	collection *entity.Collection
}

// Merge объединяет набор повреждений и набор деталей в один.
// Чистая функция: входы не изменяются, id назначаются детерминированно
// в порядке: сначала повреждения, затем детали, внутри набора по возрастанию исходного id.
func Merge(damage, parts *entity.Collection) (*MergeOutput, error) {
	if damage == nil || parts == nil {
		return nil, errors.New("both collections are required")
	}

	sources := []source{
		{ns: entity.NamespaceDamage, collection: damage},
		{ns: entity.NamespacePart, collection: parts},
	}

	var errs []error
	for _, src := range sources {
		if err := src.collection.Validate(src.ns); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	report := MergeReport{Dropped: map[entity.Namespace]int{}}

	// 1. Изображения: идентичность по имени файла
	var images []entity.Image
	byFile := make(map[string]int, len(damage.Images)+len(parts.Images))
	imageIDs := make(map[entity.Namespace]map[int64]int64, len(sources))
	for _, src := range sources {
		ids := make(map[int64]int64, len(src.collection.Images))
		for _, img := range sortedImages(src.collection.Images) {
			if idx, ok := byFile[img.FileName]; ok {
				existing := images[idx]
				if existing.Width != img.Width || existing.Height != img.Height {
					return nil, &entity.DimensionMismatchError{
						FileName:     img.FileName,
						DamageWidth:  existing.Width,
						DamageHeight: existing.Height,
						PartWidth:    img.Width,
						PartHeight:   img.Height,
					}
				}
				ids[img.ID] = existing.ID
				report.SharedImages++
				continue
			}
			merged := img
			merged.ID = int64(len(images) + 1)
			byFile[img.FileName] = len(images)
			images = append(images, merged)
			ids[img.ID] = merged.ID
		}
		imageIDs[src.ns] = ids
	}

	// 2. Категории: пространство имён входит в идентичность
	var categories []entity.Category
	var entries []entity.RecoveryEntry
	categoryIDs := make(map[entity.CategoryKey]int64)
	for _, src := range sources {
		for _, cat := range sortedCategories(src.collection.Categories) {
			mergedID := int64(len(categories) + 1)
			categories = append(categories, entity.Category{
				ID:            mergedID,
				Name:          cat.Name,
				Supercategory: cat.Supercategory,
			})
			entries = append(entries, entity.RecoveryEntry{
				MergedID:      mergedID,
				Namespace:     src.ns,
				OriginalID:    cat.ID,
				Name:          cat.Name,
				Supercategory: cat.Supercategory,
			})
			categoryIDs[entity.CategoryKey{Namespace: src.ns, OriginalID: cat.ID}] = mergedID
		}
	}

	recovery, err := entity.NewRecoveryMap(entries)
	if err != nil {
		return nil, err
	}

	// 3. Аннотации: перевод ссылок через таблицы своего набора
	var annotations []entity.Annotation
	for _, src := range sources {
		for _, ann := range sortedAnnotations(src.collection.Annotations) {
			if ann.Degenerate() {
				report.Dropped[src.ns]++
				continue
			}
			merged := ann
			merged.ID = int64(len(annotations) + 1)
			merged.ImageID = imageIDs[src.ns][ann.ImageID]
			merged.CategoryID = categoryIDs[entity.CategoryKey{Namespace: src.ns, OriginalID: ann.CategoryID}]
			merged.Namespace = src.ns
			if merged.Area <= 0 {
				merged.Area = ann.BBox.Area()
			}
			annotations = append(annotations, merged)
		}
	}

	dataset := &entity.Collection{
		Info:        mergedInfo(parts, damage, recovery.Version()),
		Licenses:    parts.Licenses,
		Images:      images,
		Categories:  categories,
		Annotations: annotations,
	}
	if len(dataset.Licenses) == 0 {
		dataset.Licenses = damage.Licenses
	}

	report.Images = len(images)
	report.Categories = len(categories)
	report.Annotations = len(annotations)
	report.RecoveryMapVersion = recovery.Version()

	return &MergeOutput{Dataset: dataset, Recovery: recovery, Report: report}, nil
}

// MergeService управляет слиянием наборов, хранящихся в репозитории.
type MergeService struct {
	repo   port.DatasetRepository
	logger *slog.Logger
}

// NewMergeService создаёт сервис слияния.
func NewMergeService(repo port.DatasetRepository, logger *slog.Logger) *MergeService {
	logger = logging.OrDiscard(logger)
	return &MergeService{repo: repo, logger: logger}
}

// MergeFiles читает оба набора, объединяет их и записывает результат.
// При любой ошибке ничего не записывается.
func (s *MergeService) MergeFiles(ctx context.Context, damagePath, partsPath, outPath, mapPath string) (*MergeReport, error) {
	if s.repo == nil {
		return nil, errors.New("dataset repository is not configured")
	}

	// Читаем оба набора до выхода, чтобы сообщить об ошибках в каждом из них.
	damage, damageErr := s.repo.LoadCollection(ctx, damagePath, entity.NamespaceDamage)
	parts, partsErr := s.repo.LoadCollection(ctx, partsPath, entity.NamespacePart)
	if err := errors.Join(damageErr, partsErr); err != nil {
		return nil, err
	}

	s.logger.Info("collections loaded",
		slog.Int("damage_images", len(damage.Images)),
		slog.Int("damage_annotations", len(damage.Annotations)),
		slog.Int("part_images", len(parts.Images)),
		slog.Int("part_annotations", len(parts.Annotations)),
	)

	out, err := Merge(damage, parts)
	if err != nil {
		return nil, err
	}

	for ns, n := range out.Report.Dropped {
		if n > 0 {
			s.logger.Warn("degenerate annotations dropped", slog.String("namespace", string(ns)), slog.Int("count", n))
		}
	}

	if err := s.repo.SaveMerged(ctx, outPath, mapPath, out.Dataset, out.Recovery); err != nil {
		return nil, fmt.Errorf("save merged dataset: %w", err)
	}

	s.logger.Info("merged dataset written",
		slog.String("dataset", outPath),
		slog.String("recovery_map", mapPath),
		slog.String("version", out.Report.RecoveryMapVersion),
		slog.Int("images", out.Report.Images),
		slog.Int("categories", out.Report.Categories),
		slog.Int("annotations", out.Report.Annotations),
	)

	return &out.Report, nil
}

func mergedInfo(primary, secondary *entity.Collection, version string) map[string]any {
	info := map[string]any{}
	switch {
	case len(primary.Info) > 0:
		maps.Copy(info, primary.Info)
	case len(secondary.Info) > 0:
		maps.Copy(info, secondary.Info)
	}
	info[RecoveryVersionKey] = version
	return info
}

func sortedImages(in []entity.Image) []entity.Image {
	out := append([]entity.Image(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedCategories(in []entity.Category) []entity.Category {
	out := append([]entity.Category(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedAnnotations(in []entity.Annotation) []entity.Annotation {
	out := append([]entity.Annotation(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
