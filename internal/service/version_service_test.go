package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/config"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
)

type versionTxStub struct {
	docs   *docStoreStub
	ledger []models.DocumentVersion
	seq    int
}

func newVersionTxStub(docs *docStoreStub) *versionTxStub {
	return &versionTxStub{docs: docs}
}

func (s *versionTxStub) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

func (s *versionTxStub) LockDocument(ctx context.Context, tx *sqlx.Tx, documentID string) (*models.Document, error) {
	return s.docs.GetByID(ctx, documentID)
}

func (s *versionTxStub) CreateInTx(ctx context.Context, tx *sqlx.Tx, v *models.DocumentVersion) error {
	if v.ID == "" {
		s.seq++
		v.ID = fmt.Sprintf("ver-%d", s.seq)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.ledger = append(s.ledger, *v)
	return nil
}

func (s *versionTxStub) UpdateContentInTx(ctx context.Context, tx *sqlx.Tx, doc *models.Document) error {
	stored, ok := s.docs.docs[doc.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Link = doc.Link
	stored.Extension = doc.Extension
	stored.MimeType = doc.MimeType
	stored.SizeBytes = doc.SizeBytes
	stored.Version = doc.Version
	stored.ScanStatus = doc.ScanStatus
	stored.Quarantined = doc.Quarantined
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *versionTxStub) GetByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	for _, v := range s.ledger {
		if v.ID == id {
			copied := v
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *versionTxStub) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	var result []models.DocumentVersion
	for _, v := range s.ledger {
		if v.DocumentID == documentID {
			result = append(result, v)
		}
	}
	return result, nil
}

type versionServiceFixture struct {
	svc    *VersionService
	docs   *docStoreStub
	store  *versionTxStub
	blobs  *blobStoreStub
	scans  *scanPipelineStub
	audit  *auditStub
	events *eventsStub
}

func newVersionServiceFixture(scanEnabled bool) *versionServiceFixture {
	f := &versionServiceFixture{
		docs:   newDocStoreStub(),
		blobs:  newBlobStoreStub(),
		scans:  &scanPipelineStub{enabled: scanEnabled},
		audit:  &auditStub{},
		events: &eventsStub{},
	}
	f.store = newVersionTxStub(f.docs)
	f.svc = NewVersionService(f.store, f.blobs, f.scans, f.audit,
		NewCacheService(nil, nil, 0, nil, false), f.events,
		config.UploadsConfig{MaxFileSizeBytes: 1024 * 1024}, nil)
	return f
}

func (f *versionServiceFixture) seedFile(t *testing.T, content string) *models.Document {
	t.Helper()
	doc := f.docs.add(&models.Document{
		Type: models.DocumentFile, Title: "cv.pdf", Emplacement: "root",
		CreatorID: "student-1", Extension: ".pdf", MimeType: "application/pdf",
		SizeBytes: int64(len(content)), Version: 1, ScanStatus: models.ScanSkipped,
	})
	doc.Link = "documents/" + doc.ID
	require.NoError(t, f.blobs.Put(context.Background(), doc.Link,
		strings.NewReader(content), int64(len(content)), "application/pdf"))
	return doc
}

func TestVersionServiceReplaceArchivesOutgoingContent(t *testing.T) {
	f := newVersionServiceFixture(true)
	doc := f.seedFile(t, "version one")

	updated, err := f.svc.Replace(context.Background(), studentClaims("student-1"), doc.ID,
		"cv.pdf", strings.NewReader("version two"), 11, "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, models.ScanPending, updated.ScanStatus)
	assert.True(t, updated.Quarantined)
	assert.Contains(t, f.scans.dispatched, doc.ID)

	// Exactly one ledger entry holding the replaced revision.
	require.Len(t, f.store.ledger, 1)
	entry := f.store.ledger[0]
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, doc.ID, entry.DocumentID)

	archived, err := f.blobs.Get(context.Background(), entry.Link)
	require.NoError(t, err)
	data, _ := io.ReadAll(archived)
	assert.Equal(t, "version one", string(data))

	current, err := f.blobs.Get(context.Background(), updated.Link)
	require.NoError(t, err)
	data, _ = io.ReadAll(current)
	assert.Equal(t, "version two", string(data))

	assert.Contains(t, f.audit.actions(), models.AuditActionReplace)
	assert.Contains(t, f.events.subjects, "documents.replaced")
}

func TestVersionServiceReplaceKeepsStableLinkOnExtensionChange(t *testing.T) {
	f := newVersionServiceFixture(false)
	doc := f.seedFile(t, "pdf bytes")
	oldLink := doc.Link

	updated, err := f.svc.Replace(context.Background(), studentClaims("student-1"), doc.ID,
		"cv.docx", strings.NewReader("docx bytes"), 10, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.NoError(t, err)

	// The public link never changes; only the bytes and metadata behind it do.
	assert.Equal(t, ".docx", updated.Extension)
	assert.Equal(t, oldLink, updated.Link)

	current, err := f.blobs.Get(context.Background(), updated.Link)
	require.NoError(t, err)
	data, _ := io.ReadAll(current)
	assert.Equal(t, "docx bytes", string(data))
}

func TestVersionServiceReplaceForeignDocumentReadsAsNotFound(t *testing.T) {
	f := newVersionServiceFixture(false)
	doc := f.seedFile(t, "data")

	_, err := f.svc.Replace(context.Background(), studentClaims("student-2"), doc.ID,
		"cv.pdf", strings.NewReader("x"), 1, "application/pdf")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.store.ledger)
}

func TestVersionServiceRestoreBringsBackArchivedRevision(t *testing.T) {
	f := newVersionServiceFixture(false)
	doc := f.seedFile(t, "version one")

	_, err := f.svc.Replace(context.Background(), studentClaims("student-1"), doc.ID,
		"cv.pdf", strings.NewReader("version two"), 11, "application/pdf")
	require.NoError(t, err)
	require.Len(t, f.store.ledger, 1)
	archivedID := f.store.ledger[0].ID

	restored, err := f.svc.Restore(context.Background(), studentClaims("student-1"), doc.ID, archivedID)
	require.NoError(t, err)

	assert.Equal(t, 3, restored.Version)
	current, err := f.blobs.Get(context.Background(), restored.Link)
	require.NoError(t, err)
	data, _ := io.ReadAll(current)
	assert.Equal(t, "version one", string(data))

	// The replaced "version two" content was itself archived before restore.
	require.Len(t, f.store.ledger, 2)
	assert.Equal(t, 2, f.store.ledger[1].Version)
	assert.Contains(t, f.audit.actions(), models.AuditActionRestore)
}

func TestVersionServiceRestoreMissingArchiveDoesNotMutate(t *testing.T) {
	f := newVersionServiceFixture(false)
	doc := f.seedFile(t, "version one")

	require.NoError(t, f.store.CreateInTx(context.Background(), nil, &models.DocumentVersion{
		DocumentID: doc.ID, Version: 1, Link: "versions/gone.pdf", Extension: ".pdf",
	}))
	entryID := f.store.ledger[0].ID

	_, err := f.svc.Restore(context.Background(), studentClaims("student-1"), doc.ID, entryID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// Nothing changed: same version, same content, no extra ledger rows.
	assert.Equal(t, 1, f.docs.docs[doc.ID].Version)
	assert.Len(t, f.store.ledger, 1)
}

func TestVersionServiceRestoreRejectsForeignVersion(t *testing.T) {
	f := newVersionServiceFixture(false)
	doc := f.seedFile(t, "one")
	other := f.seedFile(t, "two")

	require.NoError(t, f.blobs.Put(context.Background(), "versions/other/v1.pdf",
		strings.NewReader("old"), 3, "application/pdf"))
	require.NoError(t, f.store.CreateInTx(context.Background(), nil, &models.DocumentVersion{
		DocumentID: other.ID, Version: 1, Link: "versions/other/v1.pdf", Extension: ".pdf",
	}))
	entryID := f.store.ledger[0].ID

	_, err := f.svc.Restore(context.Background(), studentClaims("student-1"), doc.ID, entryID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestVersionServiceListOwnerOnly(t *testing.T) {
	f := newVersionServiceFixture(false)
	doc := f.seedFile(t, "data")

	_, err := f.svc.List(context.Background(), studentClaims("student-2"), doc.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	versions, err := f.svc.List(context.Background(), studentClaims("student-1"), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	versions, err = f.svc.List(context.Background(), adminClaims(), doc.ID)
	require.NoError(t, err)
	assert.NotNil(t, versions)
}
