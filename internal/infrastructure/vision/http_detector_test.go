package vision

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"carvision/internal/domain/entity"
)

const inferenceURL = "http://inference.local"

func newMockDetector(t *testing.T) (*HTTPDetector, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	d, err := NewHTTPDetector(inferenceURL+"/", &http.Client{Transport: transport}, time.Second)
	require.NoError(t, err)
	return d, transport
}

func TestHTTPDetector_LabelMapVersion(t *testing.T) {
	d, transport := newMockDetector(t)
	transport.RegisterResponder(http.MethodGet, inferenceURL+"/version",
		httpmock.NewStringResponder(http.StatusOK, `{"label_map_version": "sha256:abc"}`))

	version, err := d.LabelMapVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sha256:abc", version)
}

func TestHTTPDetector_LabelMapVersion_Missing(t *testing.T) {
	d, transport := newMockDetector(t)
	transport.RegisterResponder(http.MethodGet, inferenceURL+"/version",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	_, err := d.LabelMapVersion(context.Background())
	require.Error(t, err)
}

func TestHTTPDetector_Detect(t *testing.T) {
	d, transport := newMockDetector(t)
	transport.RegisterResponder(http.MethodPost, inferenceURL+"/predict",
		func(req *http.Request) (*http.Response, error) {
			file, header, err := req.FormFile("file")
			if err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			if header.Filename != "car1.jpg" || string(data) != "jpeg-bytes" {
				return httpmock.NewStringResponse(http.StatusBadRequest, "unexpected upload"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"detections": [
				{"category_id": 5, "score": 0.91, "bbox": [1, 2, 3, 4], "segmentation": [[1, 2, 4, 2, 4, 6]]},
				{"category_id": 3, "score": 0.42, "bbox": [0, 0, 10, 10]}
			]}`), nil
		})

	dets, err := d.Detect(context.Background(), "/data/car1.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	require.Len(t, dets, 2)
	require.Equal(t, int64(5), dets[0].CategoryID)
	require.Equal(t, 0.91, dets[0].Score)
	require.Equal(t, entity.BBox{X: 1, Y: 2, W: 3, H: 4}, dets[0].BBox)
	require.False(t, dets[0].Mask.Empty())
	require.Nil(t, dets[1].Mask)

	require.Equal(t, 1, transport.GetCallCountInfo()["POST "+inferenceURL+"/predict"])
}

func TestHTTPDetector_Detect_ServerError(t *testing.T) {
	d, transport := newMockDetector(t)
	transport.RegisterResponder(http.MethodPost, inferenceURL+"/predict",
		httpmock.NewStringResponder(http.StatusInternalServerError, "model not loaded"))

	_, err := d.Detect(context.Background(), "car1.jpg", []byte("x"))
	require.ErrorContains(t, err, "500")
	require.ErrorContains(t, err, "model not loaded")
}

func TestNewHTTPDetector_RequiresURL(t *testing.T) {
	_, err := NewHTTPDetector("", nil, time.Second)
	require.Error(t, err)
}
