package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
)

// HTTPDetector клиент внешнего сервиса инференса модели
type HTTPDetector struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDetector создаёт клиент; client == nil означает http.Client с заданным таймаутом
func NewHTTPDetector(baseURL string, client *http.Client, timeout time.Duration) (*HTTPDetector, error) {
	if baseURL == "" {
		return nil, errors.New("inference url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPDetector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}, nil
}

// LabelMapVersion запрашивает версию карты категорий, с которой обучена модель
func (d *HTTPDetector) LabelMapVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/version", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	var result struct {
		LabelMapVersion string `json:"label_map_version"`
	}
	if err := d.do(req, &result); err != nil {
		return "", err
	}
	if result.LabelMapVersion == "" {
		return "", errors.New("inference service did not report label_map_version")
	}
	return result.LabelMapVersion, nil
}

// Detect отправляет изображение в сервис и возвращает сырые детекции
func (d *HTTPDetector) Detect(ctx context.Context, name string, imageData []byte) ([]entity.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result struct {
		Detections []entity.Detection `json:"detections"`
	}
	if err := d.do(req, &result); err != nil {
		return nil, err
	}
	return result.Detections, nil
}

func (d *HTTPDetector) do(req *http.Request, out any) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("inference %s failed with status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Проверка реализации интерфейса
var _ port.InstanceDetector = (*HTTPDetector)(nil)
