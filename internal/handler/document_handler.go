package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/dto"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/service"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, actor *models.ActorClaims, req dto.UploadDocumentRequest, filename string, content io.Reader, size int64, contentType string) (*models.Document, error)
	CreateFolder(ctx context.Context, actor *models.ActorClaims, req dto.CreateFolderRequest) (*models.Document, error)
	Get(ctx context.Context, actor *models.ActorClaims, id string) (*models.Document, error)
	List(ctx context.Context, actor *models.ActorClaims, emplacement string, limit, offset int) (*service.DocumentListing, error)
	Search(ctx context.Context, actor *models.ActorClaims, query dto.SearchQuery) (*service.DocumentListing, error)
	Update(ctx context.Context, actor *models.ActorClaims, id string, req dto.UpdateDocumentRequest) (*models.Document, error)
	Move(ctx context.Context, actor *models.ActorClaims, req dto.MoveDocumentsRequest) (*models.BulkResult, error)
	Delete(ctx context.Context, actor *models.ActorClaims, id string) error
	BulkDelete(ctx context.Context, actor *models.ActorClaims, ids []string) (*models.BulkResult, error)
	Download(ctx context.Context, actor *models.ActorClaims, id string) (*models.Document, io.ReadCloser, error)
	BulkDownload(ctx context.Context, actor *models.ActorClaims, ids []string, w io.Writer) (*models.BulkResult, error)
	ReleaseQuarantine(ctx context.Context, actor *models.ActorClaims, id string) (*models.Document, error)
}

type auditTrailService interface {
	Trail(ctx context.Context, documentID string, limit int) ([]models.AuditLogEntry, error)
}

// DocumentHandler manages the document catalogue HTTP endpoints.
type DocumentHandler struct {
	service documentService
	audit   auditTrailService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService, audit auditTrailService) *DocumentHandler {
	return &DocumentHandler{service: service, audit: audit}
}

// Upload stores a new file submitted as multipart form data.
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upload payload"))
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

	doc, err := h.service.Upload(c.Request.Context(), claims, req,
		fileHeader.Filename, reader, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// CreateFolder adds a folder node to the hierarchy.
func (h *DocumentHandler) CreateFolder(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid folder payload"))
		return
	}
	folder, err := h.service.CreateFolder(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, folder)
}

// List returns the direct children of a folder path.
func (h *DocumentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	listing, err := h.service.List(c.Request.Context(), claims, c.Query("emplacement"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing.Documents, &listing.Pagination)
}

// Search runs a filtered catalogue query.
func (h *DocumentHandler) Search(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid search parameters"))
		return
	}
	listing, err := h.service.Search(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing.Documents, &listing.Pagination)
}

// Get returns one document's metadata.
func (h *DocumentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Update applies a partial metadata patch.
func (h *DocumentHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update payload"))
		return
	}
	doc, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete removes a document.
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Move relocates a set of documents under a target folder.
func (h *DocumentHandler) Move(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.MoveDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid move payload"))
		return
	}
	result, err := h.service.Move(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkDelete removes a set of documents, reporting per-id outcomes.
func (h *DocumentHandler) BulkDelete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one id is required"))
		return
	}
	result, err := h.service.BulkDelete(c.Request.Context(), claims, req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download streams the current file content.
func (h *DocumentHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, content, err := h.service.Download(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer content.Close() //nolint:errcheck

	filename := doc.Title
	if doc.Extension != "" && !strings.HasSuffix(strings.ToLower(filename), doc.Extension) {
		filename += doc.Extension
	}
	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, doc.SizeBytes, mimeType, content, nil)
}

// BulkDownload streams a zip archive of the requested files. Ids that could
// not be included are reported in the X-Failed-Ids header since the body is
// the archive itself.
func (h *DocumentHandler) BulkDownload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one id is required"))
		return
	}

	var archive bytes.Buffer
	result, err := h.service.BulkDownload(c.Request.Context(), claims, req.IDs, &archive)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(result.FailedIDs) > 0 {
		c.Header("X-Failed-Ids", strings.Join(result.FailedIDs, ","))
	}
	c.Header("Content-Disposition", `attachment; filename="documents.zip"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/zip", archive.Bytes())
}

// ReleaseQuarantine is the administrator override that admits held content.
func (h *DocumentHandler) ReleaseQuarantine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.service.ReleaseQuarantine(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// AuditTrail returns the audit entries of a document.
func (h *DocumentHandler) AuditTrail(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.audit.Trail(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []models.AuditLogEntry{}
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
