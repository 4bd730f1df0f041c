package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carvision/config"
	telegram "carvision/internal/api"
	app "carvision/internal/application"
	"carvision/internal/domain/port"
	"carvision/internal/infrastructure/storage"
	"carvision/internal/infrastructure/vision"
	"carvision/internal/logging"
)

// Container собирает зависимости приложения
type Container struct {
	Config       *config.Config
	Logger       *slog.Logger
	Datasets     port.DatasetRepository
	MergeService *app.MergeService
}

// InspectionParams параметры запуска сортировки, переданные из командной строки
type InspectionParams struct {
	LabelsPath     string
	DetectionsPath string // файл с готовыми детекциями; иначе сервис инференса
	InferenceURL   string
	OutputDir      string
	Threshold      float64
	Workers        int
}

func New(cfg *config.Config, logger *slog.Logger) *Container {
	logger = logging.OrDiscard(logger)
	repo := storage.NewCocoRepository()

	return &Container{
		Config:       cfg,
		Logger:       logger,
		Datasets:     repo,
		MergeService: app.NewMergeService(repo, logger),
	}
}

// Style стиль отрисовки из конфигурации
func (c *Container) Style() (vision.Style, error) {
	style := vision.DefaultStyle()
	var err error
	if style.DamageColor, err = vision.ParseColor(c.Config.DamageColor); err != nil {
		return style, err
	}
	if style.PartColor, err = vision.ParseColor(c.Config.PartColor); err != nil {
		return style, err
	}
	style.LineWidth = c.Config.LineWidth
	style.DrawMasks = c.Config.DrawMasks
	return style, style.Validate()
}

// NewInspection загружает карту восстановления и собирает сервис сортировки
func (c *Container) NewInspection(ctx context.Context, p InspectionParams) (*app.InspectionService, error) {
	if p.LabelsPath == "" {
		return nil, errors.New("recovery map path is required")
	}
	recovery, err := c.Datasets.LoadRecoveryMap(ctx, p.LabelsPath)
	if err != nil {
		return nil, err
	}

	detector, err := c.detector(p)
	if err != nil {
		return nil, err
	}

	style, err := c.Style()
	if err != nil {
		return nil, fmt.Errorf("render style: %w", err)
	}
	renderer, err := vision.NewRenderer(style)
	if err != nil {
		return nil, err
	}

	var publisher port.ReportPublisher
	if c.Config.TelegramToken != "" {
		reporter, err := telegram.NewReporter(c.Config.TelegramToken, c.Config.TelegramChatID, c.Logger)
		if err != nil {
			return nil, err
		}
		publisher = reporter
	}

	return app.NewInspectionService(detector, renderer, publisher, recovery, app.InspectionOptions{
		Threshold: p.Threshold,
		Workers:   p.Workers,
		OutputDir: p.OutputDir,
	}, c.Logger)
}

func (c *Container) detector(p InspectionParams) (port.InstanceDetector, error) {
	if p.DetectionsPath != "" {
		return vision.LoadFileDetector(p.DetectionsPath)
	}
	url := p.InferenceURL
	if url == "" {
		url = c.Config.InferenceURL
	}
	if url == "" {
		return nil, errors.New("either detections file or inference url is required")
	}
	return vision.NewHTTPDetector(url, nil, c.Config.InferenceTimeout)
}
