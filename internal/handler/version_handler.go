package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/response"
)

type versionService interface {
	Replace(ctx context.Context, actor *models.ActorClaims, documentID, filename string, content io.Reader, size int64, contentType string) (*models.Document, error)
	Restore(ctx context.Context, actor *models.ActorClaims, documentID, versionID string) (*models.Document, error)
	List(ctx context.Context, actor *models.ActorClaims, documentID string) ([]models.DocumentVersion, error)
}

// VersionHandler manages content replacement and version history endpoints.
type VersionHandler struct {
	service versionService
}

// NewVersionHandler constructs the handler.
func NewVersionHandler(service versionService) *VersionHandler {
	return &VersionHandler{service: service}
}

// Replace overwrites a file's content with a new multipart upload.
func (h *VersionHandler) Replace(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}

	doc, err := h.service.Replace(c.Request.Context(), claims, c.Param("id"),
		fileHeader.Filename, reader, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// List returns the version ledger of a document, newest first.
func (h *VersionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	versions, err := h.service.List(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Restore copies an archived revision back as the current content.
func (h *VersionHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.service.Restore(c.Request.Context(), claims, c.Param("id"), c.Param("versionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}
