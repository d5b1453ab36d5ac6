package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/dto"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/middleware"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/service"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
)

type documentServiceMock struct {
	doc       *models.Document
	listing   *service.DocumentListing
	bulk      *models.BulkResult
	content   string
	err       error
	uploaded  dto.UploadDocumentRequest
	deletedID string
}

func (m *documentServiceMock) Upload(ctx context.Context, actor *models.ActorClaims, req dto.UploadDocumentRequest, filename string, content io.Reader, size int64, contentType string) (*models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.uploaded = req
	return m.doc, nil
}

func (m *documentServiceMock) CreateFolder(ctx context.Context, actor *models.ActorClaims, req dto.CreateFolderRequest) (*models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

func (m *documentServiceMock) Get(ctx context.Context, actor *models.ActorClaims, id string) (*models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

func (m *documentServiceMock) List(ctx context.Context, actor *models.ActorClaims, emplacement string, limit, offset int) (*service.DocumentListing, error) {
	return m.listing, m.err
}

func (m *documentServiceMock) Search(ctx context.Context, actor *models.ActorClaims, query dto.SearchQuery) (*service.DocumentListing, error) {
	return m.listing, m.err
}

func (m *documentServiceMock) Update(ctx context.Context, actor *models.ActorClaims, id string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

func (m *documentServiceMock) Move(ctx context.Context, actor *models.ActorClaims, req dto.MoveDocumentsRequest) (*models.BulkResult, error) {
	return m.bulk, m.err
}

func (m *documentServiceMock) Delete(ctx context.Context, actor *models.ActorClaims, id string) error {
	m.deletedID = id
	return m.err
}

func (m *documentServiceMock) BulkDelete(ctx context.Context, actor *models.ActorClaims, ids []string) (*models.BulkResult, error) {
	return m.bulk, m.err
}

func (m *documentServiceMock) Download(ctx context.Context, actor *models.ActorClaims, id string) (*models.Document, io.ReadCloser, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.doc, io.NopCloser(strings.NewReader(m.content)), nil
}

func (m *documentServiceMock) BulkDownload(ctx context.Context, actor *models.ActorClaims, ids []string, w io.Writer) (*models.BulkResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	_, _ = w.Write([]byte(m.content))
	return m.bulk, nil
}

func (m *documentServiceMock) ReleaseQuarantine(ctx context.Context, actor *models.ActorClaims, id string) (*models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

type auditTrailMock struct {
	entries []models.AuditLogEntry
}

func (m *auditTrailMock) Trail(ctx context.Context, documentID string, limit int) ([]models.AuditLogEntry, error) {
	return m.entries, nil
}

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func authenticate(c *gin.Context, role models.ActorType) {
	c.Set(middleware.ContextUserKey, &models.ActorClaims{UserID: "user-1", Role: role})
}

func TestDocumentHandlerGetUnauthenticated(t *testing.T) {
	handler := NewDocumentHandler(&documentServiceMock{}, &auditTrailMock{})
	c, w := testContext(t, http.MethodGet, "/documents/doc-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}

	handler.Get(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentHandlerGetReturnsEnvelope(t *testing.T) {
	mock := &documentServiceMock{doc: &models.Document{ID: "doc-1", Title: "cv.pdf"}}
	handler := NewDocumentHandler(mock, &auditTrailMock{})
	c, w := testContext(t, http.MethodGet, "/documents/doc-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	authenticate(c, models.ActorStudent)

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Document `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "doc-1", envelope.Data.ID)
}

func TestDocumentHandlerGetMapsDomainErrors(t *testing.T) {
	mock := &documentServiceMock{err: appErrors.ErrQuarantined}
	handler := NewDocumentHandler(mock, &auditTrailMock{})
	c, w := testContext(t, http.MethodGet, "/documents/doc-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	authenticate(c, models.ActorStudent)

	handler.Get(c)
	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestDocumentHandlerUploadRequiresFile(t *testing.T) {
	handler := NewDocumentHandler(&documentServiceMock{}, &auditTrailMock{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "cv.pdf"))
	require.NoError(t, mw.Close())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.Request = req
	authenticate(c, models.ActorStudent)

	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerUploadMultipart(t *testing.T) {
	mock := &documentServiceMock{doc: &models.Document{ID: "doc-1", Title: "cv.pdf"}}
	handler := NewDocumentHandler(mock, &auditTrailMock{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "cv.pdf"))
	require.NoError(t, mw.WriteField("emplacement", "root"))
	part, err := mw.CreateFormFile("file", "cv.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("pdf bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.Request = req
	authenticate(c, models.ActorStudent)

	handler.Upload(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "cv.pdf", mock.uploaded.Title)
}

func TestDocumentHandlerBulkDeleteRequiresIDs(t *testing.T) {
	handler := NewDocumentHandler(&documentServiceMock{}, &auditTrailMock{})
	c, w := testContext(t, http.MethodPost, "/documents/bulk-delete", []byte(`{"ids":[]}`))
	authenticate(c, models.ActorStudent)

	handler.BulkDelete(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerBulkDeleteReportsPartialSuccess(t *testing.T) {
	mock := &documentServiceMock{bulk: &models.BulkResult{
		SuccessIDs: []string{"a"}, FailedIDs: []string{"b"},
	}}
	handler := NewDocumentHandler(mock, &auditTrailMock{})
	c, w := testContext(t, http.MethodPost, "/documents/bulk-delete", []byte(`{"ids":["a","b"]}`))
	authenticate(c, models.ActorStudent)

	handler.BulkDelete(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.BulkResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, []string{"a"}, envelope.Data.SuccessIDs)
	assert.Equal(t, []string{"b"}, envelope.Data.FailedIDs)
}

func TestDocumentHandlerBulkDownloadSetsFailedHeader(t *testing.T) {
	mock := &documentServiceMock{
		bulk:    &models.BulkResult{SuccessIDs: []string{"a"}, FailedIDs: []string{"b", "c"}},
		content: "zip bytes",
	}
	handler := NewDocumentHandler(mock, &auditTrailMock{})
	c, w := testContext(t, http.MethodPost, "/documents/bulk-download", []byte(`{"ids":["a","b","c"]}`))
	authenticate(c, models.ActorStudent)

	handler.BulkDownload(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, "b,c", w.Header().Get("X-Failed-Ids"))
	assert.Equal(t, "zip bytes", w.Body.String())
}

func TestDocumentHandlerDownloadSetsDisposition(t *testing.T) {
	mock := &documentServiceMock{
		doc: &models.Document{
			ID: "doc-1", Title: "cv", Extension: ".pdf",
			MimeType: "application/pdf", SizeBytes: 9,
		},
		content: "pdf bytes",
	}
	handler := NewDocumentHandler(mock, &auditTrailMock{})
	c, w := testContext(t, http.MethodGet, "/documents/doc-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	authenticate(c, models.ActorStudent)

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cv.pdf")
	assert.Equal(t, "pdf bytes", w.Body.String())
}

func TestDocumentHandlerUpdateInvalidBody(t *testing.T) {
	handler := NewDocumentHandler(&documentServiceMock{}, &auditTrailMock{})
	c, w := testContext(t, http.MethodPatch, "/documents/doc-1", []byte(`not json`))
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	authenticate(c, models.ActorStudent)

	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
