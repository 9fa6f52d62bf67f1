package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/file-manager-api/internal/dto"
	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/service"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
	"github.com/noah-isme/file-manager-api/pkg/response"
)

type shareService interface {
	Create(ctx context.Context, fileID string, ttl time.Duration, actor *models.JWTClaims) (*service.ShareGrant, error)
	List(ctx context.Context, fileID string, actor *models.JWTClaims) ([]models.ShareLink, error)
	Resolve(ctx context.Context, token string) (*service.SharedFile, error)
	Download(ctx context.Context, token string, meta service.AccessMeta) (*service.FileContent, error)
	Revoke(ctx context.Context, shareID string, actor *models.JWTClaims) error
}

// ShareHandler manages share links and serves them publicly.
type ShareHandler struct {
	service    shareService
	validate   *validator.Validate
	publicBase string
}

// NewShareHandler constructs the handler. publicBase is the path prefix of the public share routes.
func NewShareHandler(svc shareService, validate *validator.Validate, publicBase string) *ShareHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ShareHandler{service: svc, validate: validate, publicBase: strings.TrimRight(publicBase, "/")}
}

// Create godoc
// @Summary Create a share link
// @Tags Shares
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.CreateShareRequest false "Link lifetime"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{id}/shares [post]
func (h *ShareHandler) Create(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.CreateShareRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid share payload"))
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "ttl_seconds must be at least 60"))
		return
	}

	grant, err := h.service.Create(c.Request.Context(), c.Param("id"), req.TTL(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ShareResponse{Link: grant.Link, Token: grant.Token, URL: h.publicBase + "/" + grant.Token})
}

// List godoc
// @Summary List share links of a file
// @Tags Shares
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/shares [get]
func (h *ShareHandler) List(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	links, err := h.service.List(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if links == nil {
		links = []models.ShareLink{}
	}
	response.JSON(c, http.StatusOK, links, nil)
}

// Revoke godoc
// @Summary Revoke a share link
// @Tags Shares
// @Param id path string true "Share ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /shares/{id} [delete]
func (h *ShareHandler) Revoke(c *gin.Context) {
	claims, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.Revoke(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Resolve godoc
// @Summary Shared file metadata
// @Tags Shares
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /shared/{token} [get]
func (h *ShareHandler) Resolve(c *gin.Context) {
	shared, err := h.service.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	token := c.Param("token")
	response.JSON(c, http.StatusOK, dto.SharedFileResponse{
		File:        dto.NewSharedFileInfo(shared.File),
		ExpiresAt:   shared.Link.ExpiresAt,
		DownloadURL: h.publicBase + "/" + token + "/download",
	}, nil)
}

// Download godoc
// @Summary Download a shared file
// @Tags Shares
// @Param token path string true "Share token"
// @Success 200 {file} file
// @Failure 410 {object} response.Envelope
// @Router /shared/{token}/download [get]
func (h *ShareHandler) Download(c *gin.Context) {
	content, err := h.service.Download(c.Request.Context(), c.Param("token"), accessMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamContent(c, content)
}
