package entity

import "encoding/json"

var (
	imageKeys      = []string{"id", "file_name", "width", "height"}
	annotationKeys = []string{"id", "image_id", "category_id", "bbox", "area", "iscrowd", "segmentation", "namespace"}
)

// Типы без методов, чтобы разбирать известные поля стандартным способом.
type (
	imageFields      Image
	annotationFields Annotation
)

func (i *Image) UnmarshalJSON(data []byte) error {
	var f imageFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := unknownFields(data, imageKeys)
	if err != nil {
		return err
	}
	*i = Image(f)
	i.Extra = extra
	return nil
}

func (i Image) MarshalJSON() ([]byte, error) {
	return withExtra(imageFields(i), i.Extra)
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var f annotationFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := unknownFields(data, annotationKeys)
	if err != nil {
		return err
	}
	*a = Annotation(f)
	a.Extra = extra
	return nil
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	return withExtra(annotationFields(a), a.Extra)
}

// unknownFields возвращает поля объекта, не входящие в known; nil, если таких нет.
func unknownFields(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// withExtra кодирует известные поля и дописывает к ним extra.
// Известные поля имеют приоритет над одноимёнными из extra.
func withExtra(fields any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}
