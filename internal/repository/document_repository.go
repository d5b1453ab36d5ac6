package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
)

// ErrConcurrentUpdate signals an optimistic concurrency conflict: the row
// exists but its updated_at no longer matches the caller's expectation.
var ErrConcurrentUpdate = errors.New("document modified concurrently")

const documentColumns = `id, doc_type, creator_id, creator_type, title, description, tags, emplacement,
       access_level, link, extension, mime_type, size_bytes, thumbnail_link, version,
       scan_status, quarantined, pinned, opened_at, created_at, updated_at`

// DocumentRepository handles catalogue persistence for files and folders.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores a new document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Tags == nil {
		doc.Tags = pq.StringArray{}
	}
	const query = `INSERT INTO documents
	(id, doc_type, creator_id, creator_type, title, description, tags, emplacement, access_level,
	 link, extension, mime_type, size_bytes, thumbnail_link, version, scan_status, quarantined,
	 pinned, opened_at, created_at, updated_at)
	VALUES (:id, :doc_type, :creator_id, :creator_type, :title, :description, :tags, :emplacement, :access_level,
	 :link, :extension, :mime_type, :size_bytes, :thumbnail_link, :version, :scan_status, :quarantined,
	 :pinned, :opened_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document row.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByIDs returns the documents matching the given ids, in no guaranteed order.
func (r *DocumentRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ANY($1)`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list documents by ids: %w", err)
	}
	return docs, nil
}

// ListByEmplacement returns the direct children of a folder path.
func (r *DocumentRepository) ListByEmplacement(ctx context.Context, emplacement string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE emplacement = $1 ORDER BY doc_type DESC, title ASC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, emplacement); err != nil {
		return nil, fmt.Errorf("list documents by emplacement: %w", err)
	}
	return docs, nil
}

var documentSortColumns = map[string]string{
	"title":     "title",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"sizeBytes": "size_bytes",
	"openedAt":  "opened_at",
}

func buildDocumentConditions(filter models.DocumentFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.CreatorID != "" {
		add("creator_id = $%d", filter.CreatorID)
	}
	if filter.Type != "" {
		add("doc_type = $%d", filter.Type)
	}
	if filter.Emplacement != "" {
		add("emplacement = $%d", filter.Emplacement)
	}
	if filter.Query != "" {
		add("title ILIKE $%d", "%"+filter.Query+"%")
	}
	if len(filter.Tags) > 0 {
		add("tags && $%d", pq.Array(filter.Tags))
	}
	if filter.MinSize != nil {
		add("size_bytes >= $%d", *filter.MinSize)
	}
	if filter.MaxSize != nil {
		add("size_bytes <= $%d", *filter.MaxSize)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	return conditions, args
}

// List returns documents applying the filter; all criteria compose with AND.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + documentColumns + ` FROM documents`)

	conditions, args := buildDocumentConditions(filter)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	sortCol, ok := documentSortColumns[filter.SortBy]
	if !ok {
		sortCol = "updated_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	builder.WriteString(fmt.Sprintf(" ORDER BY pinned DESC, %s %s", sortCol, order))

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Count returns the number of documents matching the filter.
func (r *DocumentRepository) Count(ctx context.Context, filter models.DocumentFilter) (int, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT COUNT(*) FROM documents`)

	conditions, args := buildDocumentConditions(filter)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, builder.String(), args...); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return total, nil
}

// UpdateMeta applies a partial metadata patch. When expectedUpdatedAt is set
// and the stored updated_at differs, nothing is written and
// ErrConcurrentUpdate is returned.
func (r *DocumentRepository) UpdateMeta(ctx context.Context, id string, patch models.DocumentPatch, expectedUpdatedAt *time.Time) error {
	sets := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)

	set := func(clause string, arg interface{}) {
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf(clause, len(args)))
	}

	if patch.Title != nil {
		set("title = $%d", *patch.Title)
	}
	if patch.Description != nil {
		set("description = $%d", *patch.Description)
	}
	if patch.Tags != nil {
		set("tags = $%d", pq.Array(patch.Tags))
	}
	if patch.AccessLevel != nil {
		set("access_level = $%d", *patch.AccessLevel)
	}
	if patch.Pinned != nil {
		set("pinned = $%d", *patch.Pinned)
	}
	if len(sets) == 0 {
		return nil
	}
	set("updated_at = $%d", time.Now().UTC())

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if expectedUpdatedAt != nil {
		args = append(args, *expectedUpdatedAt)
		where += fmt.Sprintf(" AND updated_at = $%d", len(args))
	}

	query := fmt.Sprintf("UPDATE documents SET %s WHERE %s", strings.Join(sets, ", "), where)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document update rows: %w", err)
	}
	if affected == 0 {
		if expectedUpdatedAt == nil {
			return sql.ErrNoRows
		}
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConcurrentUpdate
	}
	return nil
}

// SetEmplacement relocates a single document under a new parent path.
func (r *DocumentRepository) SetEmplacement(ctx context.Context, id, emplacement string) error {
	const query = `UPDATE documents SET emplacement = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, emplacement, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("move document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document move rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RelocateFolder renames and/or moves a folder and rewrites the emplacement
// prefix of every descendant in the same transaction. A partial rewrite would
// orphan paths, so the two updates always commit or roll back together.
func (r *DocumentRepository) RelocateFolder(ctx context.Context, folderID, newTitle, newEmplacement, oldPath, newPath string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin folder relocate: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET title = $2, emplacement = $3, updated_at = $4 WHERE id = $1 AND doc_type = $5`,
		folderID, newTitle, newEmplacement, now, models.DocumentFolder)
	if err != nil {
		return fmt.Errorf("relocate folder row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check folder relocate rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if oldPath != newPath {
		// Prefix comparison via left() rather than LIKE: folder titles may
		// contain _ or %, which LIKE would treat as wildcards and rewrite
		// unrelated subtrees.
		_, err = tx.ExecContext(ctx,
			`UPDATE documents
			 SET emplacement = $1 || substring(emplacement FROM char_length($2) + 1), updated_at = $3
			 WHERE emplacement = $2 OR left(emplacement, char_length($2) + 1) = $2 || '/'`,
			newPath, oldPath, now)
		if err != nil {
			return fmt.Errorf("rewrite descendant emplacements: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit folder relocate: %w", err)
	}
	return nil
}

// CountDirectChildren counts rows whose emplacement equals the folder path.
func (r *DocumentRepository) CountDirectChildren(ctx context.Context, path string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents WHERE emplacement = $1`, path); err != nil {
		return 0, fmt.Errorf("count folder children: %w", err)
	}
	return count, nil
}

// ExistsSibling reports whether another document with the same title already
// lives under the given parent path.
func (r *DocumentRepository) ExistsSibling(ctx context.Context, emplacement, title, excludeID string) (bool, error) {
	var count int
	const query = `SELECT COUNT(*) FROM documents WHERE emplacement = $1 AND title = $2 AND id <> $3`
	if err := r.db.GetContext(ctx, &count, query, emplacement, title, excludeID); err != nil {
		return false, fmt.Errorf("check sibling title: %w", err)
	}
	return count > 0, nil
}

// FolderExistsByPath reports whether a folder is addressed by the given full path.
func (r *DocumentRepository) FolderExistsByPath(ctx context.Context, path string) (bool, error) {
	if path == models.EmplacementRoot {
		return true, nil
	}
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return false, nil
	}
	emplacement, title := path[:idx], path[idx+1:]
	var count int
	const query = `SELECT COUNT(*) FROM documents WHERE doc_type = $1 AND emplacement = $2 AND title = $3`
	if err := r.db.GetContext(ctx, &count, query, models.DocumentFolder, emplacement, title); err != nil {
		return false, fmt.Errorf("check folder path: %w", err)
	}
	return count > 0, nil
}

// Delete removes a document row permanently.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateScanStatus applies an asynchronous scan verdict. The update is keyed
// by document id and version so a verdict for superseded content is a no-op,
// which makes retries and late deliveries idempotent.
func (r *DocumentRepository) UpdateScanStatus(ctx context.Context, id string, version int, status models.ScanStatus, quarantined bool) error {
	const query = `UPDATE documents SET scan_status = $3, quarantined = $4, updated_at = $5
	WHERE id = $1 AND version = $2`
	if _, err := r.db.ExecContext(ctx, query, id, version, status, quarantined, time.Now().UTC()); err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	return nil
}

// TouchOpened stamps the last-opened time.
func (r *DocumentRepository) TouchOpened(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE documents SET opened_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch document: %w", err)
	}
	return nil
}
