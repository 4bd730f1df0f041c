package app

import (
	"fmt"
	"math"
	"sort"

	"carvision/internal/domain/entity"
)

// DefaultThreshold порог уверенности по умолчанию.
const DefaultThreshold = 0.5

// Triage раскладывает детекции по пространствам имён.
// В результат попадают только детекции со score строго больше порога,
// остальные возвращаются в Excluded. Списки отсортированы по убыванию score.
func Triage(detections []entity.Detection, recovery *entity.RecoveryMap, threshold float64) (entity.TriageResult, error) {
	if recovery == nil {
		return entity.TriageResult{}, fmt.Errorf("recovery map is required")
	}
	if err := ValidateThreshold(threshold); err != nil {
		return entity.TriageResult{}, err
	}

	result := entity.TriageResult{
		Damage: []entity.TriagedDetection{},
		Part:   []entity.TriagedDetection{},
	}
	for _, det := range detections {
		cat, ok := recovery.Resolve(det.CategoryID)
		if !ok {
			return entity.TriageResult{}, &entity.UnknownCategoryError{CategoryID: det.CategoryID}
		}

		triaged := entity.TriagedDetection{
			CategoryID: det.CategoryID,
			OriginalID: cat.OriginalID,
			Name:       cat.Name,
			Namespace:  cat.Namespace,
			Score:      det.Score,
			BBox:       det.BBox,
			Mask:       det.Mask,
		}

		if !(det.Score > threshold) {
			result.Excluded = append(result.Excluded, triaged)
			continue
		}

		switch cat.Namespace {
		case entity.NamespaceDamage:
			result.Damage = append(result.Damage, triaged)
		case entity.NamespacePart:
			result.Part = append(result.Part, triaged)
		}
	}

	byScore(result.Damage)
	byScore(result.Part)

	return result, nil
}

// ValidateThreshold проверяет, что порог лежит в [0, 1].
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold %v is outside [0, 1]", threshold)
	}
	return nil
}

// LocateDamage для каждого повреждения находит детали, с которыми оно пересекается.
// Детали упорядочены по убыванию площади пересечения.
func LocateDamage(result entity.TriageResult) []entity.DamageLocation {
	locations := make([]entity.DamageLocation, 0, len(result.Damage))
	for _, damage := range result.Damage {
		loc := entity.DamageLocation{Damage: damage}
		for _, part := range result.Part {
			inter := damage.BBox.Intersection(part.BBox)
			if inter <= 0 {
				continue
			}
			loc.Parts = append(loc.Parts, entity.PartOverlap{
				Part:         part,
				Intersection: inter,
				IoU:          damage.BBox.IoU(part.BBox),
			})
		}
		sort.SliceStable(loc.Parts, func(i, j int) bool {
			return loc.Parts[i].Intersection > loc.Parts[j].Intersection
		})
		locations = append(locations, loc)
	}
	return locations
}

func byScore(list []entity.TriagedDetection) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Score > list[j].Score })
}
