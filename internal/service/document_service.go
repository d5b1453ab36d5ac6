package service

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/dto"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/repository"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/config"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/storage"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	Count(ctx context.Context, filter models.DocumentFilter) (int, error)
	UpdateMeta(ctx context.Context, id string, patch models.DocumentPatch, expectedUpdatedAt *time.Time) error
	SetEmplacement(ctx context.Context, id, emplacement string) error
	RelocateFolder(ctx context.Context, folderID, newTitle, newEmplacement, oldPath, newPath string) error
	CountDirectChildren(ctx context.Context, path string) (int, error)
	ExistsSibling(ctx context.Context, emplacement, title, excludeID string) (bool, error)
	FolderExistsByPath(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, id string) error
	UpdateScanStatus(ctx context.Context, id string, version int, status models.ScanStatus, quarantined bool) error
	TouchOpened(ctx context.Context, id string) error
}

type versionLedger interface {
	ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

type shareStore interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

type grantStore interface {
	Has(ctx context.Context, documentID, userID string) (bool, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry *models.AuditLogEntry)
}

type scanPipeline interface {
	InitialState() (models.ScanStatus, bool)
	Dispatch(doc *models.Document)
}

// DocumentListing is the paginated payload for listing and search calls.
type DocumentListing struct {
	Documents  []models.Document `json:"documents"`
	Pagination models.Pagination `json:"pagination"`
}

// DocumentService implements catalogue operations on files and folders.
type DocumentService struct {
	docs     documentStore
	versions versionLedger
	shares   shareStore
	grants   grantStore
	blobs    storage.BlobStore
	scans    scanPipeline
	audit    auditRecorder
	cache    *CacheService
	events   eventPublisher
	uploads  config.UploadsConfig
	logger   *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(
	docs documentStore,
	versions versionLedger,
	shares shareStore,
	grants grantStore,
	blobs storage.BlobStore,
	scans scanPipeline,
	audit auditRecorder,
	cache *CacheService,
	events eventPublisher,
	uploads config.UploadsConfig,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		docs:     docs,
		versions: versions,
		shares:   shares,
		grants:   grants,
		blobs:    blobs,
		scans:    scans,
		audit:    audit,
		cache:    cache,
		events:   events,
		uploads:  uploads,
		logger:   logger,
	}
}

// Upload stores new file content and its catalogue entry. The blob is written
// before the row so a failed insert never leaves a row pointing at nothing.
func (s *DocumentService) Upload(ctx context.Context, actor *models.ActorClaims, req dto.UploadDocumentRequest, filename string, content io.Reader, size int64, contentType string) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = filepath.Base(filename)
	}
	if title == "" || title == "." {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a document title is required")
	}
	if strings.Contains(title, "/") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must not contain '/'")
	}

	extension := strings.ToLower(filepath.Ext(filename))
	if err := s.validateUpload(extension, size); err != nil {
		return nil, err
	}

	emplacement := normalizeEmplacement(req.Emplacement)
	if err := s.ensureFolderPath(ctx, emplacement); err != nil {
		return nil, err
	}
	if err := s.ensureNoSibling(ctx, emplacement, title, ""); err != nil {
		return nil, err
	}

	accessLevel := models.AccessPrivate
	if req.AccessLevel != "" {
		accessLevel = models.AccessLevel(strings.ToUpper(req.AccessLevel))
		if !accessLevel.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown access level")
		}
	}

	id := uuid.NewString()
	link := contentHandle(id)
	if err := s.blobs.Put(ctx, link, content, size, contentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store file content")
	}

	scanStatus, quarantined := s.scans.InitialState()
	doc := &models.Document{
		ID:          id,
		Type:        models.DocumentFile,
		CreatorID:   actor.UserID,
		CreatorType: actor.Role,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Tags:        pq.StringArray(models.NormalizeTags(dto.ParseTagList(req.Tags))),
		Emplacement: emplacement,
		AccessLevel: accessLevel,
		Link:        link,
		Extension:   extension,
		MimeType:    contentType,
		SizeBytes:   size,
		Version:     1,
		ScanStatus:  scanStatus,
		Quarantined: quarantined,
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, link); delErr != nil {
			s.logger.Warn("failed to clean up blob after insert failure",
				zap.String("handle", link), zap.Error(delErr))
		}
		return nil, appErrors.FromError(err)
	}

	s.scans.Dispatch(doc)
	s.invalidateListings(ctx)
	s.emitAudit(ctx, actor, doc.ID, models.AuditActionUpload, map[string]interface{}{
		"title":       doc.Title,
		"emplacement": doc.Emplacement,
		"sizeBytes":   doc.SizeBytes,
	})
	s.publish("documents.uploaded", doc)
	return doc, nil
}

// CreateFolder adds a folder node to the hierarchy.
func (s *DocumentService) CreateFolder(ctx context.Context, actor *models.ActorClaims, req dto.CreateFolderRequest) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a folder title is required")
	}
	if strings.Contains(title, "/") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must not contain '/'")
	}

	emplacement := normalizeEmplacement(req.Emplacement)
	if err := s.ensureFolderPath(ctx, emplacement); err != nil {
		return nil, err
	}
	if err := s.ensureNoSibling(ctx, emplacement, title, ""); err != nil {
		return nil, err
	}

	accessLevel := models.AccessPrivate
	if req.AccessLevel != "" {
		accessLevel = models.AccessLevel(strings.ToUpper(req.AccessLevel))
		if !accessLevel.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown access level")
		}
	}

	folder := &models.Document{
		Type:        models.DocumentFolder,
		CreatorID:   actor.UserID,
		CreatorType: actor.Role,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Emplacement: emplacement,
		AccessLevel: accessLevel,
		ScanStatus:  models.ScanSkipped,
	}
	if err := s.docs.Create(ctx, folder); err != nil {
		return nil, appErrors.FromError(err)
	}

	s.invalidateListings(ctx)
	return folder, nil
}

// Get returns one document after an access check.
func (s *DocumentService) Get(ctx context.Context, actor *models.ActorClaims, id string) (*models.Document, error) {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns the direct children of a folder path, folders first.
func (s *DocumentService) List(ctx context.Context, actor *models.ActorClaims, emplacement string, limit, offset int) (*DocumentListing, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	emplacement = normalizeEmplacement(emplacement)

	filter := models.DocumentFilter{
		Emplacement: emplacement,
		SortBy:      "title",
		SortOrder:   "asc",
		Limit:       limit,
		Offset:      offset,
	}
	if !actor.IsAdmin() {
		filter.CreatorID = actor.UserID
	}

	cacheKey := listingCacheKey(filter)
	var cached DocumentListing
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	listing, err := s.queryListing(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cacheKey, listing)
	return listing, nil
}

// Search runs a filtered catalogue query. Non-admin callers only ever search
// their own documents.
func (s *DocumentService) Search(ctx context.Context, actor *models.ActorClaims, query dto.SearchQuery) (*DocumentListing, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	filter := models.DocumentFilter{
		Query:     strings.TrimSpace(query.Query),
		Tags:      models.NormalizeTags(dto.ParseTagList(query.Tags)),
		MinSize:   query.MinSize,
		MaxSize:   query.MaxSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	if query.Emplacement != "" {
		filter.Emplacement = normalizeEmplacement(query.Emplacement)
	}
	if query.Type != "" {
		docType := models.DocumentType(strings.ToUpper(query.Type))
		if docType != models.DocumentFile && docType != models.DocumentFolder {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document type")
		}
		filter.Type = docType
	}
	if query.From != "" {
		from, err := time.Parse(time.RFC3339, query.From)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid 'from' timestamp")
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := time.Parse(time.RFC3339, query.To)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid 'to' timestamp")
		}
		filter.To = &to
	}
	if !actor.IsAdmin() {
		filter.CreatorID = actor.UserID
	}

	cacheKey := listingCacheKey(filter)
	var cached DocumentListing
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	listing, err := s.queryListing(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cacheKey, listing)
	return listing, nil
}

// Update applies a partial metadata patch. A rename of a folder cascades the
// path rewrite to every descendant atomically.
func (s *DocumentService) Update(ctx context.Context, actor *models.ActorClaims, id string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(actor, doc); err != nil {
		return nil, err
	}

	patch := models.DocumentPatch{
		Description: req.Description,
		Pinned:      req.Pinned,
	}
	if req.Tags != nil {
		patch.Tags = models.NormalizeTags(*req.Tags)
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	if req.AccessLevel != nil {
		level := models.AccessLevel(strings.ToUpper(*req.AccessLevel))
		if !level.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown access level")
		}
		patch.AccessLevel = &level
	}

	var rename *string
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title must not be empty")
		}
		if strings.Contains(title, "/") {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title must not contain '/'")
		}
		if title != doc.Title {
			if err := s.ensureNoSibling(ctx, doc.Emplacement, title, doc.ID); err != nil {
				return nil, err
			}
			rename = &title
		}
	}

	if rename != nil && doc.IsFolder() {
		// Folder renames rewrite descendant paths, so they bypass the
		// plain metadata patch and cannot be combined with the
		// optimistic guard on a single row.
		oldPath := doc.FullPath()
		newPath := doc.Emplacement + "/" + *rename
		if err := s.docs.RelocateFolder(ctx, doc.ID, *rename, doc.Emplacement, oldPath, newPath); err != nil {
			return nil, appErrors.FromError(err)
		}
	} else if rename != nil {
		patch.Title = rename
	}

	if !patch.Empty() {
		if err := s.docs.UpdateMeta(ctx, doc.ID, patch, req.ExpectedUpdatedAt); err != nil {
			if errors.Is(err, repository.ErrConcurrentUpdate) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "document was modified by someone else")
			}
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrNotFound
			}
			return nil, appErrors.FromError(err)
		}
	}

	s.invalidateListings(ctx)
	return s.fetch(ctx, doc.ID)
}

// Move relocates a set of documents under a target folder path, reporting
// per-id success and failure.
func (s *DocumentService) Move(ctx context.Context, actor *models.ActorClaims, req dto.MoveDocumentsRequest) (*models.BulkResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	target := normalizeEmplacement(req.Target)
	if err := s.ensureFolderPath(ctx, target); err != nil {
		return nil, err
	}

	result := &models.BulkResult{SuccessIDs: []string{}, FailedIDs: []string{}}
	for _, id := range req.IDs {
		if err := s.moveOne(ctx, actor, id, target); err != nil {
			s.logger.Debug("move failed for document",
				zap.String("document_id", id), zap.Error(err))
			result.FailedIDs = append(result.FailedIDs, id)
			continue
		}
		result.SuccessIDs = append(result.SuccessIDs, id)
	}

	s.invalidateListings(ctx)
	s.emitAudit(ctx, actor, "", models.AuditActionMove, map[string]interface{}{
		"target":     target,
		"successIds": result.SuccessIDs,
		"failedIds":  result.FailedIDs,
	})
	return result, nil
}

func (s *DocumentService) moveOne(ctx context.Context, actor *models.ActorClaims, id, target string) error {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(actor, doc); err != nil {
		return err
	}
	if doc.Emplacement == target {
		return nil
	}
	if doc.IsFolder() {
		oldPath := doc.FullPath()
		if target == oldPath || strings.HasPrefix(target, oldPath+"/") {
			return appErrors.Clone(appErrors.ErrValidation, "cannot move a folder into itself")
		}
	}
	if err := s.ensureNoSibling(ctx, target, doc.Title, doc.ID); err != nil {
		return err
	}
	if doc.IsFolder() {
		newPath := target + "/" + doc.Title
		return s.docs.RelocateFolder(ctx, doc.ID, doc.Title, target, doc.FullPath(), newPath)
	}
	return s.docs.SetEmplacement(ctx, doc.ID, target)
}

// Delete destroys a document. Files lose their blob, version ledger, shares
// and grants; the audit trail is retained. Folders must be empty.
func (s *DocumentService) Delete(ctx context.Context, actor *models.ActorClaims, id string) error {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(actor, doc); err != nil {
		return err
	}

	if doc.IsFolder() {
		children, err := s.docs.CountDirectChildren(ctx, doc.FullPath())
		if err != nil {
			return appErrors.FromError(err)
		}
		if children > 0 {
			return appErrors.Clone(appErrors.ErrConflict, "folder is not empty")
		}
	} else {
		if err := s.destroyFileArtifacts(ctx, doc); err != nil {
			return err
		}
	}

	if err := s.docs.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.FromError(err)
	}

	s.invalidateListings(ctx)
	s.emitAudit(ctx, actor, doc.ID, models.AuditActionDelete, map[string]interface{}{
		"title": doc.Title,
		"type":  doc.Type,
	})
	s.publish("documents.deleted", map[string]interface{}{
		"documentId": doc.ID,
		"title":      doc.Title,
	})
	return nil
}

func (s *DocumentService) destroyFileArtifacts(ctx context.Context, doc *models.Document) error {
	if err := s.shares.DeleteByDocument(ctx, doc.ID); err != nil {
		return appErrors.FromError(err)
	}
	if err := s.grants.DeleteByDocument(ctx, doc.ID); err != nil {
		return appErrors.FromError(err)
	}

	versions, err := s.versions.ListByDocument(ctx, doc.ID)
	if err != nil {
		return appErrors.FromError(err)
	}
	for _, v := range versions {
		if err := s.blobs.Delete(ctx, v.Link); err != nil {
			s.logger.Warn("failed to delete archived blob",
				zap.String("handle", v.Link), zap.Error(err))
		}
	}
	if err := s.versions.DeleteByDocument(ctx, doc.ID); err != nil {
		return appErrors.FromError(err)
	}

	if doc.Link != "" {
		if err := s.blobs.Delete(ctx, doc.Link); err != nil {
			s.logger.Warn("failed to delete blob",
				zap.String("handle", doc.Link), zap.Error(err))
		}
	}
	return nil
}

// BulkDelete removes a set of documents, reporting per-id outcomes.
func (s *DocumentService) BulkDelete(ctx context.Context, actor *models.ActorClaims, ids []string) (*models.BulkResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	result := &models.BulkResult{SuccessIDs: []string{}, FailedIDs: []string{}}
	for _, id := range ids {
		if err := s.Delete(ctx, actor, id); err != nil {
			result.FailedIDs = append(result.FailedIDs, id)
			continue
		}
		result.SuccessIDs = append(result.SuccessIDs, id)
	}
	return result, nil
}

// Download opens the current file content for streaming. Quarantined content
// never leaves the system; the hold applies to everyone including the owner.
func (s *DocumentService) Download(ctx context.Context, actor *models.ActorClaims, id string) (*models.Document, io.ReadCloser, error) {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorizeRead(ctx, actor, doc); err != nil {
		return nil, nil, err
	}
	if doc.IsFolder() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "folders have no content to download")
	}
	if doc.Quarantined {
		return nil, nil, appErrors.ErrQuarantined
	}

	content, err := s.blobs.Get(ctx, doc.Link)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to open file content")
	}

	if err := s.docs.TouchOpened(ctx, doc.ID); err != nil {
		s.logger.Warn("failed to stamp opened_at", zap.String("document_id", doc.ID), zap.Error(err))
	}
	s.emitAudit(ctx, actor, doc.ID, models.AuditActionDownload, map[string]interface{}{
		"title":   doc.Title,
		"version": doc.Version,
	})
	return doc, content, nil
}

// BulkDownload streams a zip archive of the requested files into w. Folders,
// quarantined files and inaccessible documents land in failedIds while the
// rest of the archive still builds.
func (s *DocumentService) BulkDownload(ctx context.Context, actor *models.ActorClaims, ids []string, w io.Writer) (*models.BulkResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	archive := zip.NewWriter(w)
	result := &models.BulkResult{SuccessIDs: []string{}, FailedIDs: []string{}}
	used := make(map[string]int)

	for _, id := range ids {
		if err := s.addToArchive(ctx, actor, archive, id, used); err != nil {
			s.logger.Debug("bulk download skipped document",
				zap.String("document_id", id), zap.Error(err))
			result.FailedIDs = append(result.FailedIDs, id)
			continue
		}
		result.SuccessIDs = append(result.SuccessIDs, id)
	}

	if err := archive.Close(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize archive")
	}

	s.emitAudit(ctx, actor, "", models.AuditActionBulkDownload, map[string]interface{}{
		"successIds": result.SuccessIDs,
		"failedIds":  result.FailedIDs,
	})
	return result, nil
}

func (s *DocumentService) addToArchive(ctx context.Context, actor *models.ActorClaims, archive *zip.Writer, id string, used map[string]int) error {
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeRead(ctx, actor, doc); err != nil {
		return err
	}
	if doc.IsFolder() {
		return appErrors.Clone(appErrors.ErrValidation, "folders cannot be archived")
	}
	if doc.Quarantined {
		return appErrors.ErrQuarantined
	}

	content, err := s.blobs.Get(ctx, doc.Link)
	if err != nil {
		return appErrors.FromError(err)
	}
	defer content.Close()

	name := archiveEntryName(doc, used)
	entry, err := archive.Create(name)
	if err != nil {
		return appErrors.FromError(err)
	}
	if _, err := io.Copy(entry, content); err != nil {
		return appErrors.FromError(err)
	}
	return nil
}

// ReleaseQuarantine is the administrator override that admits held content.
func (s *DocumentService) ReleaseQuarantine(ctx context.Context, actor *models.ActorClaims, id string) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.IsFolder() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "folders are never quarantined")
	}
	if !doc.Quarantined {
		return doc, nil
	}

	if err := s.docs.UpdateScanStatus(ctx, doc.ID, doc.Version, models.ScanClean, false); err != nil {
		return nil, appErrors.FromError(err)
	}

	s.emitAudit(ctx, actor, doc.ID, models.AuditActionQuarantineOverride, map[string]interface{}{
		"title":      doc.Title,
		"version":    doc.Version,
		"scanStatus": doc.ScanStatus,
	})
	return s.fetch(ctx, doc.ID)
}

func (s *DocumentService) fetch(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.FromError(err)
	}
	return doc, nil
}

func (s *DocumentService) queryListing(ctx context.Context, filter models.DocumentFilter) (*DocumentListing, error) {
	docs, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	total, err := s.docs.Count(ctx, filter)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if docs == nil {
		docs = []models.Document{}
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return &DocumentListing{
		Documents:  docs,
		Pagination: models.Pagination{Total: total, Limit: limit, Offset: offset},
	}, nil
}

// authorizeRead enforces the read rules: admins and creators always pass,
// otherwise the access level must admit the caller's role or a direct grant
// must exist.
func (s *DocumentService) authorizeRead(ctx context.Context, actor *models.ActorClaims, doc *models.Document) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.IsAdmin() || actor.UserID == doc.CreatorID {
		return nil
	}
	switch doc.AccessLevel {
	case models.AccessPublic:
		return nil
	case models.AccessStudents:
		if actor.Role == models.ActorStudent {
			return nil
		}
	case models.AccessCompanies:
		if actor.Role == models.ActorCompany {
			return nil
		}
	}
	granted, err := s.grants.Has(ctx, doc.ID, actor.UserID)
	if err != nil {
		return appErrors.FromError(err)
	}
	if granted {
		return nil
	}
	return appErrors.ErrForbidden
}

// authorizeOwner gates mutations. A foreign document is reported as not-found
// rather than forbidden so a caller cannot confirm that an id it does not own
// exists.
func (s *DocumentService) authorizeOwner(actor *models.ActorClaims, doc *models.Document) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.IsAdmin() || actor.UserID == doc.CreatorID {
		return nil
	}
	return appErrors.ErrNotFound
}

func (s *DocumentService) validateUpload(extension string, size int64) error {
	if size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file content is empty")
	}
	if s.uploads.MaxFileSizeBytes > 0 && size > s.uploads.MaxFileSizeBytes {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.uploads.MaxFileSizeBytes))
	}
	if len(s.uploads.AllowedExtensions) == 0 {
		return nil
	}
	for _, allowed := range s.uploads.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), strings.TrimPrefix(extension, ".")) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("extension %q is not allowed", extension))
}

func (s *DocumentService) ensureFolderPath(ctx context.Context, path string) error {
	exists, err := s.docs.FolderExistsByPath(ctx, path)
	if err != nil {
		return appErrors.FromError(err)
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("folder %q does not exist", path))
	}
	return nil
}

func (s *DocumentService) ensureNoSibling(ctx context.Context, emplacement, title, excludeID string) error {
	exists, err := s.docs.ExistsSibling(ctx, emplacement, title, excludeID)
	if err != nil {
		return appErrors.FromError(err)
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%q already exists in this folder", title))
	}
	return nil
}

func (s *DocumentService) invalidateListings(ctx context.Context) {
	s.cache.Invalidate(ctx, "documents:listing:*")
}

func (s *DocumentService) emitAudit(ctx context.Context, actor *models.ActorClaims, documentID, action string, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLogEntry{
		ActorID:   actor.UserID,
		ActorType: actor.Role,
		Action:    action,
	}
	if documentID != "" {
		entry.DocumentID = &documentID
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = raw
		}
	}
	s.audit.Record(ctx, entry)
}

func (s *DocumentService) publish(subject string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func listingCacheKey(filter models.DocumentFilter) string {
	var minSize, maxSize int64
	if filter.MinSize != nil {
		minSize = *filter.MinSize
	}
	if filter.MaxSize != nil {
		maxSize = *filter.MaxSize
	}
	var from, to string
	if filter.From != nil {
		from = filter.From.UTC().Format(time.RFC3339)
	}
	if filter.To != nil {
		to = filter.To.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("documents:listing:%s:%s:%s:%s:%s:%d:%d:%s:%s:%s:%s:%d:%d",
		filter.CreatorID, filter.Type, filter.Emplacement, filter.Query,
		strings.Join(filter.Tags, ","), minSize, maxSize, from, to,
		filter.SortBy, filter.SortOrder, filter.Limit, filter.Offset)
}

func normalizeEmplacement(raw string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return models.EmplacementRoot
	}
	if trimmed != models.EmplacementRoot && !strings.HasPrefix(trimmed, models.EmplacementRoot+"/") {
		return models.EmplacementRoot + "/" + trimmed
	}
	return trimmed
}

// contentHandle is the stable blob handle of a document's live content. It is
// extension-independent so the link survives replaces that change the file type.
func contentHandle(documentID string) string {
	return "documents/" + documentID
}

func archiveHandle(documentID string, version int, extension string) string {
	return fmt.Sprintf("versions/%s/v%d%s", documentID, version, extension)
}

func archiveEntryName(doc *models.Document, used map[string]int) string {
	name := doc.Title
	if doc.Extension != "" && !strings.HasSuffix(strings.ToLower(name), doc.Extension) {
		name += doc.Extension
	}
	count := used[name]
	used[name] = count + 1
	if count == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, count, ext)
}
