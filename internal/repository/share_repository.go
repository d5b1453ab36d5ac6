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

const shareColumns = `id, document_id, token_hash, expires_at, password_hash, audience,
       created_by, created_by_type, revoked_at, created_at`

// ShareRepository persists share links. Only the token digest is ever stored.
type ShareRepository struct {
	db *sqlx.DB
}

// NewShareRepository constructs the repository.
func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Create stores a new share link.
func (r *ShareRepository) Create(ctx context.Context, share *models.ShareLink) error {
	if share.ID == "" {
		share.ID = uuid.NewString()
	}
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_shares
	(id, document_id, token_hash, expires_at, password_hash, audience, created_by, created_by_type, revoked_at, created_at)
	VALUES (:id, :document_id, :token_hash, :expires_at, :password_hash, :audience, :created_by, :created_by_type, :revoked_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, share); err != nil {
		return fmt.Errorf("create share link: %w", err)
	}
	return nil
}

// GetByID retrieves one share link.
func (r *ShareRepository) GetByID(ctx context.Context, id string) (*models.ShareLink, error) {
	query := `SELECT ` + shareColumns + ` FROM document_shares WHERE id = $1`
	var share models.ShareLink
	if err := r.db.GetContext(ctx, &share, query, id); err != nil {
		return nil, err
	}
	return &share, nil
}

// GetByTokenHash looks a share up by the digest of its bearer token.
func (r *ShareRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.ShareLink, error) {
	query := `SELECT ` + shareColumns + ` FROM document_shares WHERE token_hash = $1`
	var share models.ShareLink
	if err := r.db.GetContext(ctx, &share, query, tokenHash); err != nil {
		return nil, err
	}
	return &share, nil
}

// ListByDocument returns all shares for a document, newest first.
func (r *ShareRepository) ListByDocument(ctx context.Context, documentID string) ([]models.ShareLink, error) {
	query := `SELECT ` + shareColumns + ` FROM document_shares WHERE document_id = $1 ORDER BY created_at DESC`
	var shares []models.ShareLink
	if err := r.db.SelectContext(ctx, &shares, query, documentID); err != nil {
		return nil, fmt.Errorf("list document shares: %w", err)
	}
	return shares, nil
}

// Revoke stamps revoked_at once; a revoked share can never be un-revoked.
func (r *ShareRepository) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE document_shares SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, revokedAt)
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check share revoke rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByDocument removes all shares for a document being destroyed.
func (r *ShareRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_shares WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document shares: %w", err)
	}
	return nil
}
