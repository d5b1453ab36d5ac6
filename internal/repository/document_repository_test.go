package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
)

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func documentRows(doc models.Document) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "doc_type", "creator_id", "creator_type", "title", "description", "tags",
		"emplacement", "access_level", "link", "extension", "mime_type", "size_bytes",
		"thumbnail_link", "version", "scan_status", "quarantined", "pinned", "opened_at",
		"created_at", "updated_at",
	}).AddRow(
		doc.ID, doc.Type, doc.CreatorID, doc.CreatorType, doc.Title, doc.Description, "{}",
		doc.Emplacement, doc.AccessLevel, doc.Link, doc.Extension, doc.MimeType, doc.SizeBytes,
		nil, doc.Version, doc.ScanStatus, doc.Quarantined, doc.Pinned, nil,
		doc.CreatedAt, doc.UpdatedAt,
	)
}

func TestDocumentRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{
		Type:        models.DocumentFile,
		CreatorID:   "student-1",
		CreatorType: models.ActorStudent,
		Title:       "cv.pdf",
		Emplacement: "root",
		AccessLevel: models.AccessPrivate,
		Link:        "documents/abc.pdf",
		Extension:   ".pdf",
		MimeType:    "application/pdf",
		SizeBytes:   2048,
		Version:     1,
		ScanStatus:  models.ScanPending,
		Quarantined: true,
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	require.False(t, doc.UpdatedAt.IsZero())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doc_type, creator_id")).
		WithArgs(doc.ID).
		WillReturnRows(documentRows(*doc))

	found, err := repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, found.ID)
	require.Equal(t, models.ScanPending, found.ScanStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListAppliesFilter(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doc_type, creator_id")).
		WithArgs("student-1", "%report%").
		WillReturnRows(documentRows(models.Document{ID: "doc-1", Title: "report.pdf"}))

	docs, err := repo.List(context.Background(), models.DocumentFilter{
		CreatorID: "student-1",
		Query:     "report",
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "doc-1", docs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryUpdateMetaNotFound(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	title := "renamed.pdf"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateMeta(context.Background(), "missing", models.DocumentPatch{Title: &title}, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDocumentRepositoryUpdateMetaConcurrentConflict(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	title := "renamed.pdf"
	expected := time.Now().Add(-time.Minute)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// The row still exists, so the zero-row update means a stale expectation.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doc_type, creator_id")).
		WithArgs("doc-1").
		WillReturnRows(documentRows(models.Document{ID: "doc-1"}))

	err := repo.UpdateMeta(context.Background(), "doc-1", models.DocumentPatch{Title: &title}, &expected)
	require.ErrorIs(t, err, ErrConcurrentUpdate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryUpdateMetaEmptyPatch(t *testing.T) {
	db, _, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	require.NoError(t, repo.UpdateMeta(context.Background(), "doc-1", models.DocumentPatch{}, nil))
}

func TestDocumentRepositoryRelocateFolderRewritesDescendants(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET title = $2, emplacement = $3")).
		WithArgs("folder-1", "archive", "root", sqlmock.AnyArg(), string(models.DocumentFolder)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("substring(emplacement FROM char_length($2) + 1)")).
		WithArgs("root/archive", "root/old", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := repo.RelocateFolder(context.Background(), "folder-1", "archive", "root", "root/old", "root/archive")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryRelocateFolderPrefixMatchIsLiteral(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	// The underscore in "a_b" must match literally; a LIKE pattern would also
	// capture descendants of sibling folders such as "root/axb".
	repo := NewDocumentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET title = $2, emplacement = $3")).
		WithArgs("folder-1", "a_b", "root/moved", sqlmock.AnyArg(), string(models.DocumentFolder)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("left(emplacement, char_length($2) + 1) = $2 || '/'")).
		WithArgs("root/moved/a_b", "root/a_b", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.RelocateFolder(context.Background(), "folder-1", "a_b", "root/moved", "root/a_b", "root/moved/a_b")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryRelocateFolderSkipsRewriteWhenPathUnchanged(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET title = $2, emplacement = $3")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RelocateFolder(context.Background(), "folder-1", "docs", "root", "root/docs", "root/docs")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryUpdateScanStatusStaleVersionIsNoop(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET scan_status = $3")).
		WithArgs("doc-1", 1, string(models.ScanClean), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// A verdict for superseded content touches zero rows and is not an error.
	err := repo.UpdateScanStatus(context.Background(), "doc-1", 1, models.ScanClean, false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryExistsSibling(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE emplacement = $1 AND title = $2")).
		WithArgs("root", "cv.pdf", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsSibling(context.Background(), "root", "cv.pdf", "")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestDocumentRepositoryFolderExistsByPath(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)

	exists, err := repo.FolderExistsByPath(context.Background(), models.EmplacementRoot)
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE doc_type = $1")).
		WithArgs(string(models.DocumentFolder), "root", "reports").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	exists, err = repo.FolderExistsByPath(context.Background(), "root/reports")
	require.NoError(t, err)
	require.False(t, exists)
}
