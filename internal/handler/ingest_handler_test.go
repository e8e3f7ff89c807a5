package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/childlang-lab/cdi-api/internal/models"
	"github.com/childlang-lab/cdi-api/internal/service"
)

type csvIngestServiceMock struct {
	result *service.IngestResult
}

func (m *csvIngestServiceMock) Ingest(ctx context.Context, r io.Reader) (*service.IngestResult, error) {
	return m.result, nil
}

func (m *csvIngestServiceMock) ParseCSV(ctx context.Context, r io.Reader) (*service.IngestResult, error) {
	return m.result, nil
}

type ingestMetricsMock struct {
	ingested int
	rejected int
}

func (m *ingestMetricsMock) RecordIngest(records int) {
	m.ingested += records
}

func (m *ingestMetricsMock) RecordRejectedUpload() {
	m.rejected++
}

func uploadRequest(t *testing.T, path, content string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "snapshots.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	return w, c
}

func TestIngestHandlerUploadAccepted(t *testing.T) {
	metrics := &ingestMetricsMock{}
	h := NewIngestHandler(&csvIngestServiceMock{
		result: &service.IngestResult{Records: []models.SnapshotRecord{{}, {}}},
	}, metrics)

	w, c := uploadRequest(t, "/snapshots/upload", "child id,C1\n")
	h.Upload(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, metrics.ingested)
	assert.Zero(t, metrics.rejected)
}

func TestIngestHandlerUploadRejectedByAutomaton(t *testing.T) {
	metrics := &ingestMetricsMock{}
	h := NewIngestHandler(&csvIngestServiceMock{
		result: &service.IngestResult{
			HadError:     true,
			ErrorMessage: "Incorrect num words on column 1 (given 3 but found 2).",
		},
	}, metrics)

	w, c := uploadRequest(t, "/snapshots/upload", "child id,C1\n")
	h.Upload(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Incorrect num words")
	assert.Equal(t, 1, metrics.rejected)
	assert.Zero(t, metrics.ingested)
}

func TestIngestHandlerUploadRequiresFile(t *testing.T) {
	h := NewIngestHandler(&csvIngestServiceMock{}, &ingestMetricsMock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/snapshots/upload", nil)
	c.Request = req

	h.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestHandlerValidateNeverPersists(t *testing.T) {
	metrics := &ingestMetricsMock{}
	h := NewIngestHandler(&csvIngestServiceMock{
		result: &service.IngestResult{Records: []models.SnapshotRecord{{}}},
	}, metrics)

	w, c := uploadRequest(t, "/snapshots/upload/validate", "child id,C1\n")
	h.Validate(c)

	require.Equal(t, http.StatusOK, w.Code)
	// Dry runs leave counters untouched.
	assert.Zero(t, metrics.ingested)
}
