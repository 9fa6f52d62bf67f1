package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/file-manager-api/internal/dto"
	"github.com/noah-isme/file-manager-api/internal/middleware"
	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/service"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
	"github.com/noah-isme/file-manager-api/pkg/response"
)

// multipartOverhead leaves room for part headers and the description field.
const multipartOverhead = 1 << 20

type fileService interface {
	Upload(ctx context.Context, req service.UploadRequest, actor *models.JWTClaims) (*service.UploadOutcome, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims, meta service.AccessMeta) (*models.FileRecord, error)
	UpdateDescription(ctx context.Context, id, description string, actor *models.JWTClaims) (*models.FileRecord, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	BulkDelete(ctx context.Context, ids []string, actor *models.JWTClaims) ([]service.BulkDeleteResult, error)
	Download(ctx context.Context, id string, actor *models.JWTClaims, meta service.AccessMeta) (*service.FileContent, error)
	Preview(ctx context.Context, id string, actor *models.JWTClaims, meta service.AccessMeta) (*service.FileContent, error)
	Stats(ctx context.Context, actor *models.JWTClaims) (*models.FileStats, error)
	ExportStats(ctx context.Context, actor *models.JWTClaims, format string) (*service.ExportFile, error)
}

type fileSearcher interface {
	List(ctx context.Context, req service.ListRequest, actor *models.JWTClaims) (*models.FilePage, bool, error)
}

// FileHandler exposes file management endpoints.
type FileHandler struct {
	files         fileService
	search        fileSearcher
	validate      *validator.Validate
	maxUploadSize int64
}

// NewFileHandler constructs a file handler. maxUploadSize caps the request body of single uploads.
func NewFileHandler(files fileService, search fileSearcher, validate *validator.Validate, maxUploadSize int64) *FileHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &FileHandler{files: files, search: search, validate: validate, maxUploadSize: maxUploadSize}
}

// Upload godoc
// @Summary Upload a file
// @Description Stores a file once per content hash. Identical content is rejected with DUPLICATE_CONTENT.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param description formData string false "Description"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /files/upload [post]
func (h *FileHandler) Upload(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, formError(err, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
		return
	}
	defer file.Close()

	outcome, err := h.files.Upload(c.Request.Context(), service.UploadRequest{
		Filename:     header.Filename,
		Description:  c.PostForm("description"),
		DeclaredSize: header.Size,
		Content:      file,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome.Status == service.UploadDuplicate {
		response.Error(c, outcome.ConflictError())
		return
	}
	response.Created(c, outcome.File)
}

// List godoc
// @Summary List and search files
// @Description Cursor paginated, newest first. Filters combine with AND.
// @Tags Files
// @Produce json
// @Param search query string false "Case-insensitive filename substring"
// @Param file_type query []string false "File types, repeatable or comma separated"
// @Param uploaded_after query string false "RFC3339 or YYYY-MM-DD, inclusive"
// @Param uploaded_before query string false "RFC3339 or YYYY-MM-DD, inclusive"
// @Param min_size query int false "Minimum size in bytes"
// @Param max_size query int false "Maximum size in bytes"
// @Param recently_accessed query int false "Only files accessed in the last N days (1-365)"
// @Param cursor query string false "Opaque page token"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) List(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	var query dto.FileListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	filter, err := query.Filter()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	page, hit, err := h.search.List(c.Request.Context(), service.ListRequest{Filter: filter, Cursor: query.Cursor, PageSize: query.PageSize}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	pagination := page.Pagination
	response.JSON(c, http.StatusOK, page.Items, &pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary File detail
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	file, err := h.files.Get(c.Request.Context(), c.Param("id"), claims, accessMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Update godoc
// @Summary Update file description
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.UpdateDescriptionRequest true "Description payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [patch]
func (h *FileHandler) Update(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.UpdateDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}
	if req.Description == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "description is required"))
		return
	}
	file, err := h.files.UpdateDescription(c.Request.Context(), c.Param("id"), *req.Description, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Delete godoc
// @Summary Delete a file
// @Tags Files
// @Param id path string true "File ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.files.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkDelete godoc
// @Summary Delete several files
// @Tags Files
// @Accept json
// @Produce json
// @Param payload body dto.BulkDeleteRequest true "File ids"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /files/bulk-delete [post]
func (h *FileHandler) BulkDelete(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk delete payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "ids must contain between 1 and 100 entries"))
		return
	}

	results, err := h.files.BulkDelete(c.Request.Context(), req.IDs, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	res := dto.BulkDeleteResponse{Results: make([]dto.BulkDeleteItem, 0, len(results))}
	for _, r := range results {
		res.Results = append(res.Results, dto.BulkDeleteItem{ID: r.ID, Status: r.Status, Error: r.Error})
		if r.Status == service.BulkDeleteDeleted {
			res.Deleted++
		} else {
			res.Failed++
		}
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Download godoc
// @Summary Download a file
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	content, err := h.files.Download(c.Request.Context(), c.Param("id"), claims, accessMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamContent(c, content)
}

// Preview godoc
// @Summary Preview a file inline
// @Description Images, video, audio and PDF stream inline; text is truncated.
// @Tags Files
// @Param id path string true "File ID"
// @Success 200 {file} file
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /files/{id}/preview [get]
func (h *FileHandler) Preview(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	content, err := h.files.Preview(c.Request.Context(), c.Param("id"), claims, accessMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamContent(c, content)
}

// Stats godoc
// @Summary Storage statistics
// @Tags Files
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /files/stats [get]
func (h *FileHandler) Stats(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	stats, err := h.files.Stats(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ExportStats godoc
// @Summary Export storage statistics
// @Tags Files
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /files/stats/export [get]
func (h *FileHandler) ExportStats(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	file, err := h.files.ExportStats(c.Request.Context(), claims, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+file.Filename+"\"")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func streamContent(c *gin.Context, content *service.FileContent) {
	defer content.Body.Close()
	headers := map[string]string{
		"Content-Disposition":    content.Disposition(),
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, no-store",
	}
	if content.Truncated {
		headers["X-Preview-Truncated"] = strconv.FormatBool(true)
	}
	c.DataFromReader(http.StatusOK, content.Size, content.ContentType, content.Body, headers)
}

func accessMeta(c *gin.Context) service.AccessMeta {
	return service.AccessMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func formError(err error, message string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, "request body exceeds the upload limit")
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
