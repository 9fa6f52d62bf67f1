package handler

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/service"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
)

type bulkServiceMock struct {
	names    []string
	contents []string
	report   *models.BulkUploadReport
	err      error
}

func (m *bulkServiceMock) Submit(ctx context.Context, files []service.BulkFile, actor *models.JWTClaims) (*models.BulkUploadJob, error) {
	for _, f := range files {
		m.names = append(m.names, f.Filename)
		body, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, _ := io.ReadAll(body)
		body.Close()
		m.contents = append(m.contents, string(data))
	}
	if m.err != nil {
		return nil, m.err
	}
	return &models.BulkUploadJob{ID: "job-1", OwnerID: actor.UserID, Status: models.BulkUploadQueued, TotalItems: len(files)}, nil
}

func (m *bulkServiceMock) GetStatus(ctx context.Context, jobID string, actor *models.JWTClaims) (*models.BulkUploadReport, error) {
	if m.report == nil {
		return nil, appErrors.ErrNotFound
	}
	return m.report, nil
}

func bulkRoutes(svc *bulkServiceMock, userID string) *gin.Engine {
	h := NewBulkUploadHandler(svc, 0)
	r := newRouter(userID)
	r.POST("/files/bulk-upload", h.Submit)
	r.GET("/files/bulk-upload/:id", h.Status)
	return r
}

func TestBulkUploadHandlerSubmitAccepted(t *testing.T) {
	svc := &bulkServiceMock{}
	body, contentType := multipartBody(t, []formFile{
		{field: "files", filename: "a.txt", content: "alpha"},
		{field: "files", filename: "b.txt", content: "beta"},
	}, nil)

	w := serve(bulkRoutes(svc, "user-1"), http.MethodPost, "/files/bulk-upload", body, contentType)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var job models.BulkUploadJob
	decodeData(t, decode(t, w), &job)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, 2, job.TotalItems)
	assert.Equal(t, "/files/bulk-upload/job-1", w.Header().Get("Location"))
	assert.Equal(t, []string{"a.txt", "b.txt"}, svc.names)
	assert.Equal(t, []string{"alpha", "beta"}, svc.contents)
}

func TestBulkUploadHandlerSubmitRequiresFiles(t *testing.T) {
	body, contentType := multipartBody(t, []formFile{{field: "file", filename: "a.txt", content: "alpha"}}, nil)
	w := serve(bulkRoutes(&bulkServiceMock{}, "user-1"), http.MethodPost, "/files/bulk-upload", body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serveJSON(bulkRoutes(&bulkServiceMock{}, "user-1"), http.MethodPost, "/files/bulk-upload", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkUploadHandlerStatus(t *testing.T) {
	svc := &bulkServiceMock{report: &models.BulkUploadReport{
		Job:     models.BulkUploadJob{ID: "job-1", Status: models.BulkUploadCompleted},
		Summary: models.BulkUploadSummary{Total: 2, Created: 1, Duplicates: 1},
	}}
	w := serve(bulkRoutes(svc, "user-1"), http.MethodGet, "/files/bulk-upload/job-1", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	var report models.BulkUploadReport
	decodeData(t, decode(t, w), &report)
	assert.Equal(t, 1, report.Summary.Duplicates)

	w = serve(bulkRoutes(&bulkServiceMock{}, "user-1"), http.MethodGet, "/files/bulk-upload/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
