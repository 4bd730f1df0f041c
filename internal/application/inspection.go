package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
	"carvision/internal/logging"
)

// InspectionOptions параметры сортировки и пакетной обработки
type InspectionOptions struct {
	Threshold float64
	Workers   int
	OutputDir string // пусто: изображения с разметкой не сохраняются
}

// InspectionService разбирает вывод модели по изображениям и рисует результат.
// Общая карта восстановления только читается, поэтому изображения
// обрабатываются независимо и параллельно.
type InspectionService struct {
	detector  port.InstanceDetector
	renderer  port.Renderer
	publisher port.ReportPublisher
	recovery  *entity.RecoveryMap
	opts      InspectionOptions
	logger    *slog.Logger
}

// InspectionOutput содержит результат сортировки и картинку с подсветкой.
type InspectionOutput struct {
	Result      entity.TriageResult
	Locations   []entity.DamageLocation
	Highlighted []byte
}

// NewInspectionService создаёт сервис; publisher может быть nil.
func NewInspectionService(
	detector port.InstanceDetector,
	renderer port.Renderer,
	publisher port.ReportPublisher,
	recovery *entity.RecoveryMap,
	opts InspectionOptions,
	logger *slog.Logger,
) (*InspectionService, error) {
	if detector == nil {
		return nil, errors.New("detector is not configured")
	}
	if renderer == nil {
		return nil, errors.New("renderer is not configured")
	}
	if recovery == nil {
		return nil, errors.New("recovery map is not loaded")
	}
	if err := ValidateThreshold(opts.Threshold); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	logger = logging.OrDiscard(logger)
	return &InspectionService{
		detector:  detector,
		renderer:  renderer,
		publisher: publisher,
		recovery:  recovery,
		opts:      opts,
		logger:    logger,
	}, nil
}

// CheckModel сверяет версию карты категорий модели с загруженной картой восстановления.
func (s *InspectionService) CheckModel(ctx context.Context) error {
	version, err := s.detector.LabelMapVersion(ctx)
	if err != nil {
		return fmt.Errorf("query model label map version: %w", err)
	}
	return s.recovery.Verify(version)
}

// ProcessPhoto запускает детектор, сортирует детекции и возвращает картинку с подсветкой.
func (s *InspectionService) ProcessPhoto(ctx context.Context, name string, photo []byte) (*InspectionOutput, error) {
	img, err := decodeImage(name, photo)
	if err != nil {
		return nil, err
	}

	detections, err := s.detector.Detect(ctx, name, photo)
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", name, err)
	}

	result, err := Triage(detections, s.recovery, s.opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("triage %s: %w", name, err)
	}

	rendered, err := s.renderer.Render(img, result)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rendered, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}

	return &InspectionOutput{
		Result:      result,
		Locations:   LocateDamage(result),
		Highlighted: buf.Bytes(),
	}, nil
}

// RunBatch обрабатывает набор файлов. Ошибка отдельного изображения попадает
// в отчёт и не останавливает пакет. Несовпадение карты и модели проверяется
// до запуска и прерывает всю обработку. При отмене ctx новые изображения
// не запускаются, отчёт содержит уже обработанные.
func (s *InspectionService) RunBatch(ctx context.Context, paths []string) (*entity.BatchReport, error) {
	if err := s.CheckModel(ctx); err != nil {
		return nil, err
	}

	report := &entity.BatchReport{
		RunID:              uuid.NewString(),
		RecoveryMapVersion: s.recovery.Version(),
		Threshold:          s.opts.Threshold,
		StartedAt:          time.Now().UTC(),
	}

	if s.opts.OutputDir != "" {
		if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	results := make([]*entity.ImageReport, len(paths))
	outputs := renderedPaths(s.opts.OutputDir, paths)

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, ran := s.processFile(ctx, path, outputs[i])
			if ran {
				results[i] = &r
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r == nil {
			report.Interrupted = true
			continue
		}
		if r.Failed() {
			report.Failed++
		} else {
			report.Succeeded++
		}
		report.Images = append(report.Images, *r)
	}
	report.FinishedAt = time.Now().UTC()

	s.logger.Info("batch finished",
		slog.String("run_id", report.RunID),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Bool("interrupted", report.Interrupted),
	)

	return report, nil
}

// processFile обрабатывает один файл. ran == false означает, что обработка
// прервана отменой ctx и изображение не должно попасть в отчёт.
func (s *InspectionService) processFile(ctx context.Context, path, rendered string) (r entity.ImageReport, ran bool) {
	r = entity.ImageReport{Image: path}

	data, err := os.ReadFile(path)
	if err != nil {
		err = &entity.ImageReadError{Image: path, Err: err}
	}
	var out *InspectionOutput
	if err == nil {
		out, err = s.ProcessPhoto(ctx, path, data)
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return r, false
		}
		s.logger.Warn("image failed", slog.String("image", path), slog.String("error", err.Error()))
		r.Error = err.Error()
		return r, true
	}

	r.Result = &out.Result
	r.Locations = out.Locations

	if rendered != "" {
		if err := os.WriteFile(rendered, out.Highlighted, 0o644); err != nil {
			r.Error = fmt.Sprintf("write rendered image: %v", err)
			return r, true
		}
		r.Rendered = rendered
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, r, out.Highlighted); err != nil {
			s.logger.Warn("publish report failed", slog.String("image", path), slog.String("error", err.Error()))
		}
	}

	return r, true
}

func decodeImage(name string, data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &entity.ImageReadError{Image: name, Err: errors.New("empty file")}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &entity.ImageReadError{Image: name, Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &entity.ImageReadError{Image: name, Err: errors.New("zero-sized image")}
	}
	return img, nil
}

// renderedPaths назначает каждому входу свой файл <имя>.triage.jpg в dir.
// При совпадении имён к имени добавляется номер: car1.triage.jpg, car1-2.triage.jpg.
func renderedPaths(dir string, paths []string) []string {
	out := make([]string, len(paths))
	if dir == "" {
		return out
	}

	taken := make(map[string]bool, len(paths))
	for i, src := range paths {
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		name := base + ".triage.jpg"
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s-%d.triage.jpg", base, n)
		}
		taken[name] = true
		out[i] = filepath.Join(dir, name)
	}
	return out
}
