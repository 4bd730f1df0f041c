package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
)

type fakeDetector struct {
	version    string
	detections map[string][]entity.Detection
	calls      atomic.Int32
}

func (d *fakeDetector) LabelMapVersion(ctx context.Context) (string, error) {
	return d.version, nil
}

func (d *fakeDetector) Detect(ctx context.Context, name string, imageData []byte) ([]entity.Detection, error) {
	d.calls.Add(1)
	return d.detections[filepath.Base(name)], nil
}

type passRenderer struct{}

func (passRenderer) Render(img image.Image, result entity.TriageResult) (image.Image, error) {
	return img, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	reports []entity.ImageReport
}

func (p *recordingPublisher) Publish(ctx context.Context, report entity.ImageReport, rendered []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, report)
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService(t *testing.T, detector *fakeDetector, outDir string, publisher *recordingPublisher) *InspectionService {
	t.Helper()
	var pub port.ReportPublisher
	if publisher != nil {
		pub = publisher
	}
	svc, err := NewInspectionService(detector, passRenderer{}, pub, triageMap(t),
		InspectionOptions{Threshold: DefaultThreshold, Workers: 2, OutputDir: outDir}, nil)
	require.NoError(t, err)
	return svc
}

func TestInspectionService_ProcessPhoto(t *testing.T) {
	detector := &fakeDetector{detections: map[string][]entity.Detection{
		"car.png": {
			{CategoryID: 5, Score: 0.9, BBox: entity.BBox{X: 1, Y: 1, W: 3, H: 3}},
			{CategoryID: 3, Score: 0.8, BBox: entity.BBox{X: 0, Y: 0, W: 8, H: 8}},
		},
	}}
	detector.version = triageMap(t).Version()
	svc := newTestService(t, detector, "", nil)

	out, err := svc.ProcessPhoto(context.Background(), "car.png", pngBytes(t))
	require.NoError(t, err)
	require.Len(t, out.Result.Damage, 1)
	require.Len(t, out.Result.Part, 1)
	require.Len(t, out.Locations, 1)
	require.Equal(t, "bumper", out.Locations[0].Parts[0].Part.Name)
	require.NotEmpty(t, out.Highlighted)
}

func TestInspectionService_ProcessPhoto_ImageReadError(t *testing.T) {
	detector := &fakeDetector{}
	svc := newTestService(t, detector, "", nil)

	for name, data := range map[string][]byte{"empty.png": nil, "garbage.jpg": []byte("not an image")} {
		_, err := svc.ProcessPhoto(context.Background(), name, data)
		var readErr *entity.ImageReadError
		require.True(t, errors.As(err, &readErr), "got %v", err)
		require.Equal(t, name, readErr.Image)
	}
	require.Zero(t, detector.calls.Load())
}

func TestInspectionService_RunBatch_IsolatesFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	good := filepath.Join(dir, "good.png")
	require.NoError(t, os.WriteFile(good, pngBytes(t), 0o644))
	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	corrupt := filepath.Join(dir, "corrupt.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0o644))
	stale := filepath.Join(dir, "stale.png")
	require.NoError(t, os.WriteFile(stale, pngBytes(t), 0o644))
	missing := filepath.Join(dir, "missing.png")

	detector := &fakeDetector{detections: map[string][]entity.Detection{
		"good.png":  {{CategoryID: 5, Score: 0.9}},
		"stale.png": {{CategoryID: 99, Score: 0.9}},
	}}
	detector.version = triageMap(t).Version()
	publisher := &recordingPublisher{}
	svc := newTestService(t, detector, outDir, publisher)

	report, err := svc.RunBatch(context.Background(), []string{good, empty, corrupt, stale, missing})
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	require.False(t, report.Interrupted)
	require.Equal(t, 1, report.Succeeded)
	require.Equal(t, 4, report.Failed)
	require.Len(t, report.Images, 5)

	// Порядок отчёта совпадает с порядком входа
	require.Equal(t, good, report.Images[0].Image)
	require.False(t, report.Images[0].Failed())
	require.Len(t, report.Images[0].Result.Damage, 1)
	require.FileExists(t, filepath.Join(outDir, "good.triage.jpg"))
	require.Equal(t, filepath.Join(outDir, "good.triage.jpg"), report.Images[0].Rendered)

	require.Contains(t, report.Images[1].Error, empty)
	require.Contains(t, report.Images[2].Error, corrupt)
	require.Contains(t, report.Images[3].Error, "category id 99")
	require.Contains(t, report.Images[4].Error, missing)

	require.Len(t, publisher.reports, 1)
}

func TestInspectionService_RunBatch_RecoveryMapMismatch(t *testing.T) {
	detector := &fakeDetector{version: "sha256:other"}
	svc := newTestService(t, detector, "", nil)

	_, err := svc.RunBatch(context.Background(), []string{"a.png"})
	var mismatch *entity.RecoveryMapMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, "sha256:other", mismatch.Actual)
	require.Zero(t, detector.calls.Load())
}

func TestInspectionService_RunBatch_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	detector := &fakeDetector{}
	detector.version = triageMap(t).Version()
	svc := newTestService(t, detector, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.RunBatch(ctx, []string{"a.png", "b.png"})
	require.NoError(t, err)
	require.True(t, report.Interrupted)
	require.Empty(t, report.Images)
	require.Zero(t, detector.calls.Load())
}

// cancellingDetector отменяет пакет при первом вызове и возвращает ошибку контекста
type cancellingDetector struct {
	version string
	cancel  context.CancelFunc
}

func (d *cancellingDetector) LabelMapVersion(ctx context.Context) (string, error) {
	return d.version, nil
}

func (d *cancellingDetector) Detect(ctx context.Context, name string, imageData []byte) ([]entity.Detection, error) {
	d.cancel()
	return nil, fmt.Errorf("send request: %w", ctx.Err())
}

type cancellingPublisher struct {
	cancel context.CancelFunc
}

func (p cancellingPublisher) Publish(ctx context.Context, report entity.ImageReport, rendered []byte) error {
	p.cancel()
	return nil
}

func TestInspectionService_RunBatch_SameNameInDifferentDirs(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	var inputs []string
	for _, rel := range []string{"a/car1.jpg", "b/car1.png", "c/car1.jpg"} {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, pngBytes(t), 0o644))
		inputs = append(inputs, p)
	}

	detector := &fakeDetector{detections: map[string][]entity.Detection{
		"car1.jpg": {{CategoryID: 5, Score: 0.9}},
		"car1.png": {{CategoryID: 3, Score: 0.9}},
	}}
	detector.version = triageMap(t).Version()
	svc := newTestService(t, detector, outDir, nil)

	report, err := svc.RunBatch(context.Background(), inputs)
	require.NoError(t, err)
	require.Equal(t, 3, report.Succeeded)

	require.Equal(t, filepath.Join(outDir, "car1.triage.jpg"), report.Images[0].Rendered)
	require.Equal(t, filepath.Join(outDir, "car1-2.triage.jpg"), report.Images[1].Rendered)
	require.Equal(t, filepath.Join(outDir, "car1-3.triage.jpg"), report.Images[2].Rendered)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestRenderedPaths(t *testing.T) {
	require.Equal(t, []string{"", ""}, renderedPaths("", []string{"a.jpg", "b.jpg"}))

	got := renderedPaths("out", []string{"x/car1-2.jpg", "a/car1.jpg", "b/car1.png"})
	require.Equal(t, []string{
		filepath.Join("out", "car1-2.triage.jpg"),
		filepath.Join("out", "car1.triage.jpg"),
		filepath.Join("out", "car1-3.triage.jpg"),
	}, got)
}

func TestInspectionService_RunBatch_CancelledInFlightNotFailed(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, pngBytes(t), 0o644))
		inputs = append(inputs, p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	detector := &cancellingDetector{version: triageMap(t).Version(), cancel: cancel}

	svc, err := NewInspectionService(detector, passRenderer{}, nil, triageMap(t),
		InspectionOptions{Threshold: DefaultThreshold, Workers: 2}, nil)
	require.NoError(t, err)

	report, err := svc.RunBatch(ctx, inputs)
	require.NoError(t, err)
	require.True(t, report.Interrupted)
	require.Zero(t, report.Failed)
	require.Zero(t, report.Succeeded)
	require.Empty(t, report.Images)
}

func TestInspectionService_RunBatch_CancelAfterLastImage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "car.png")
	require.NoError(t, os.WriteFile(p, pngBytes(t), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	detector := &fakeDetector{version: triageMap(t).Version()}
	svc, err := NewInspectionService(detector, passRenderer{}, cancellingPublisher{cancel: cancel}, triageMap(t),
		InspectionOptions{Threshold: DefaultThreshold, Workers: 1}, nil)
	require.NoError(t, err)

	report, err := svc.RunBatch(ctx, []string{p})
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	require.False(t, report.Interrupted)
	require.Equal(t, 1, report.Succeeded)
}

func TestNewInspectionService_Validation(t *testing.T) {
	m := triageMap(t)
	_, err := NewInspectionService(nil, passRenderer{}, nil, m, InspectionOptions{Threshold: 0.5}, nil)
	require.Error(t, err)
	_, err = NewInspectionService(&fakeDetector{}, nil, nil, m, InspectionOptions{Threshold: 0.5}, nil)
	require.Error(t, err)
	_, err = NewInspectionService(&fakeDetector{}, passRenderer{}, nil, nil, InspectionOptions{Threshold: 0.5}, nil)
	require.Error(t, err)
	_, err = NewInspectionService(&fakeDetector{}, passRenderer{}, nil, m, InspectionOptions{Threshold: 2}, nil)
	require.Error(t, err)
}
