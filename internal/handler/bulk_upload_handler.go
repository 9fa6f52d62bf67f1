package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/service"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
	"github.com/noah-isme/file-manager-api/pkg/response"
)

type bulkUploadService interface {
	Submit(ctx context.Context, files []service.BulkFile, actor *models.JWTClaims) (*models.BulkUploadJob, error)
	GetStatus(ctx context.Context, jobID string, actor *models.JWTClaims) (*models.BulkUploadReport, error)
}

// BulkUploadHandler accepts multi-file submissions for background ingestion.
type BulkUploadHandler struct {
	service      bulkUploadService
	maxBodyBytes int64
}

// NewBulkUploadHandler constructs the handler. maxBodyBytes caps the whole multipart body.
func NewBulkUploadHandler(svc bulkUploadService, maxBodyBytes int64) *BulkUploadHandler {
	return &BulkUploadHandler{service: svc, maxBodyBytes: maxBodyBytes}
}

// Submit godoc
// @Summary Bulk upload files
// @Description Stages the files and processes them in the background. Poll the returned job for per-file outcomes.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files (repeat the field)"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /files/bulk-upload [post]
func (h *BulkUploadHandler) Submit(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, formError(err, "multipart form with files is required"))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one file is required"))
		return
	}

	files := make([]service.BulkFile, 0, len(headers))
	for _, header := range headers {
		files = append(files, bulkFile(header))
	}
	job, err := h.service.Submit(c.Request.Context(), files, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+job.ID)
	response.Accepted(c, job)
}

// Status godoc
// @Summary Bulk upload job status
// @Tags Files
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/bulk-upload/{id} [get]
func (h *BulkUploadHandler) Status(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	report, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

func bulkFile(header *multipart.FileHeader) service.BulkFile {
	return service.BulkFile{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}
