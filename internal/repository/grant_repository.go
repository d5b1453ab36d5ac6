package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
)

// GrantRepository persists direct per-user access entries.
type GrantRepository struct {
	db *sqlx.DB
}

// NewGrantRepository constructs the repository.
func NewGrantRepository(db *sqlx.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Upsert creates or refreshes a grant for (document, user).
func (r *GrantRepository) Upsert(ctx context.Context, grant *models.AccessGrant) error {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_access
	(id, document_id, user_id, user_type, access, created_at)
	VALUES (:id, :document_id, :user_id, :user_type, :access, :created_at)
	ON CONFLICT (document_id, user_id) DO UPDATE SET access = EXCLUDED.access, user_type = EXCLUDED.user_type`
	if _, err := r.db.NamedExecContext(ctx, query, grant); err != nil {
		return fmt.Errorf("upsert access grant: %w", err)
	}
	return nil
}

// Has reports whether a grant exists for the (document, user) pair.
func (r *GrantRepository) Has(ctx context.Context, documentID, userID string) (bool, error) {
	var count int
	const query = `SELECT COUNT(*) FROM document_access WHERE document_id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &count, query, documentID, userID); err != nil {
		return false, fmt.Errorf("check access grant: %w", err)
	}
	return count > 0, nil
}

// ListByDocument returns all grants for a document.
func (r *GrantRepository) ListByDocument(ctx context.Context, documentID string) ([]models.AccessGrant, error) {
	const query = `SELECT id, document_id, user_id, user_type, access, created_at
	FROM document_access WHERE document_id = $1 ORDER BY created_at DESC`
	var grants []models.AccessGrant
	if err := r.db.SelectContext(ctx, &grants, query, documentID); err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	return grants, nil
}

// Delete removes one grant.
func (r *GrantRepository) Delete(ctx context.Context, documentID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM document_access WHERE document_id = $1 AND user_id = $2`, documentID, userID)
	if err != nil {
		return fmt.Errorf("delete access grant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check grant delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByDocument removes all grants for a document being destroyed.
func (r *GrantRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_access WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document grants: %w", err)
	}
	return nil
}
