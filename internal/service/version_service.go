package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/config"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/storage"
)

type versionTxStore interface {
	InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	LockDocument(ctx context.Context, tx *sqlx.Tx, documentID string) (*models.Document, error)
	CreateInTx(ctx context.Context, tx *sqlx.Tx, v *models.DocumentVersion) error
	UpdateContentInTx(ctx context.Context, tx *sqlx.Tx, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.DocumentVersion, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
}

// VersionService implements content replacement and restoration. Both run
// under a row lock on the document, so concurrent content mutations serialize
// and each bumps the version counter by exactly one.
type VersionService struct {
	versions versionTxStore
	blobs    storage.BlobStore
	scans    scanPipeline
	audit    auditRecorder
	cache    *CacheService
	events   eventPublisher
	uploads  config.UploadsConfig
	logger   *zap.Logger
}

// NewVersionService constructs the service.
func NewVersionService(
	versions versionTxStore,
	blobs storage.BlobStore,
	scans scanPipeline,
	audit auditRecorder,
	cache *CacheService,
	events eventPublisher,
	uploads config.UploadsConfig,
	logger *zap.Logger,
) *VersionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersionService{
		versions: versions,
		blobs:    blobs,
		scans:    scans,
		audit:    audit,
		cache:    cache,
		events:   events,
		uploads:  uploads,
		logger:   logger,
	}
}

// Replace overwrites a file's content with a new upload. The outgoing content
// is archived to the version ledger before the new bytes take over, so no
// content revision is ever lost.
func (s *VersionService) Replace(ctx context.Context, actor *models.ActorClaims, documentID, filename string, content io.Reader, size int64, contentType string) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	extension := strings.ToLower(filepath.Ext(filename))
	if size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file content is empty")
	}
	if s.uploads.MaxFileSizeBytes > 0 && size > s.uploads.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the size limit")
	}

	var updated *models.Document

	err := s.versions.InTx(ctx, func(tx *sqlx.Tx) error {
		doc, err := s.lockFile(ctx, tx, documentID, actor)
		if err != nil {
			return err
		}

		if err := s.archiveCurrent(ctx, tx, doc); err != nil {
			return err
		}

		// The stable handle never changes; only the bytes behind it do.
		if err := s.blobs.Put(ctx, doc.Link, content, size, contentType); err != nil {
			return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store file content")
		}

		scanStatus, quarantined := s.scans.InitialState()
		doc.Extension = extension
		doc.MimeType = contentType
		doc.SizeBytes = size
		doc.Version++
		doc.ScanStatus = scanStatus
		doc.Quarantined = quarantined

		if err := s.versions.UpdateContentInTx(ctx, tx, doc); err != nil {
			return appErrors.FromError(err)
		}
		updated = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scans.Dispatch(updated)
	s.cache.Invalidate(ctx, "documents:listing:*")
	s.emitAudit(ctx, actor, updated.ID, models.AuditActionReplace, updated.Version)
	s.publish("documents.replaced", updated)
	return updated, nil
}

// Restore copies an archived revision back as the current content. The
// archived blob is verified before anything mutates, and the outgoing content
// is itself archived first, so restore never destroys a revision either.
func (s *VersionService) Restore(ctx context.Context, actor *models.ActorClaims, documentID, versionID string) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	archived, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.FromError(err)
	}
	if archived.DocumentID != documentID {
		return nil, appErrors.ErrNotFound
	}
	if _, err := s.blobs.Stat(ctx, archived.Link); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "archived content is no longer available")
	}

	var updated *models.Document

	err = s.versions.InTx(ctx, func(tx *sqlx.Tx) error {
		doc, err := s.lockFile(ctx, tx, documentID, actor)
		if err != nil {
			return err
		}

		if err := s.archiveCurrent(ctx, tx, doc); err != nil {
			return err
		}

		if err := s.blobs.Copy(ctx, archived.Link, doc.Link); err != nil {
			return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to restore file content")
		}

		scanStatus, quarantined := s.scans.InitialState()
		doc.Extension = archived.Extension
		doc.MimeType = archived.MimeType
		doc.SizeBytes = archived.SizeBytes
		doc.Version++
		doc.ScanStatus = scanStatus
		doc.Quarantined = quarantined

		if err := s.versions.UpdateContentInTx(ctx, tx, doc); err != nil {
			return appErrors.FromError(err)
		}
		updated = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scans.Dispatch(updated)
	s.cache.Invalidate(ctx, "documents:listing:*")
	s.emitAudit(ctx, actor, updated.ID, models.AuditActionRestore, updated.Version)
	s.publish("documents.restored", updated)
	return updated, nil
}

// List returns the version ledger of a document, newest first. The history of
// a file is visible only to its owner and administrators.
func (s *VersionService) List(ctx context.Context, actor *models.ActorClaims, documentID string) ([]models.DocumentVersion, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var versions []models.DocumentVersion
	err := s.versions.InTx(ctx, func(tx *sqlx.Tx) error {
		doc, err := s.versions.LockDocument(ctx, tx, documentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return appErrors.FromError(err)
		}
		if !actor.IsAdmin() && actor.UserID != doc.CreatorID {
			return appErrors.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	versions, err = s.versions.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if versions == nil {
		versions = []models.DocumentVersion{}
	}
	return versions, nil
}

// lockFile loads the document under FOR UPDATE and checks that the actor may
// mutate its content.
func (s *VersionService) lockFile(ctx context.Context, tx *sqlx.Tx, documentID string, actor *models.ActorClaims) (*models.Document, error) {
	doc, err := s.versions.LockDocument(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.FromError(err)
	}
	if doc.IsFolder() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "folders have no content")
	}
	// Foreign documents read as not-found so their existence stays hidden.
	if !actor.IsAdmin() && actor.UserID != doc.CreatorID {
		return nil, appErrors.ErrNotFound
	}
	return doc, nil
}

// archiveCurrent snapshots the document's live content into the ledger.
func (s *VersionService) archiveCurrent(ctx context.Context, tx *sqlx.Tx, doc *models.Document) error {
	archiveLink := archiveHandle(doc.ID, doc.Version, doc.Extension)
	if err := s.blobs.Copy(ctx, doc.Link, archiveLink); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to archive current content")
	}
	entry := &models.DocumentVersion{
		DocumentID: doc.ID,
		Version:    doc.Version,
		Link:       archiveLink,
		Extension:  doc.Extension,
		MimeType:   doc.MimeType,
		SizeBytes:  doc.SizeBytes,
	}
	if err := s.versions.CreateInTx(ctx, tx, entry); err != nil {
		return appErrors.FromError(err)
	}
	return nil
}

func (s *VersionService) emitAudit(ctx context.Context, actor *models.ActorClaims, documentID, action string, version int) {
	if s.audit == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]interface{}{"version": version})
	entry := &models.AuditLogEntry{
		DocumentID: &documentID,
		ActorID:    actor.UserID,
		ActorType:  actor.Role,
		Action:     action,
		Metadata:   metadata,
	}
	s.audit.Record(ctx, entry)
}

func (s *VersionService) publish(subject string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
