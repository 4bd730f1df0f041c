package entity

import "time"

// ImageReport итог обработки одного изображения в пакете
type ImageReport struct {
	Image     string           `json:"image"`
	Result    *TriageResult    `json:"result,omitempty"`
	Locations []DamageLocation `json:"locations,omitempty"`
	Rendered  string           `json:"rendered,omitempty"` // путь к изображению с разметкой
	Error     string           `json:"error,omitempty"`
}

// Failed сообщает, что изображение не обработано
func (r ImageReport) Failed() bool {
	return r.Error != ""
}

// BatchReport итог обработки пакета изображений
type BatchReport struct {
	RunID              string        `json:"run_id"`
	RecoveryMapVersion string        `json:"recovery_map_version"`
	Threshold          float64       `json:"threshold"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at"`
	Images             []ImageReport `json:"images"`
	Succeeded          int           `json:"succeeded"`
	Failed             int           `json:"failed"`
	Interrupted        bool          `json:"interrupted"` // пакет прерван, часть изображений не запускалась
}
