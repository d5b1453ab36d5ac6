package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
)

type auditStore interface {
	Create(ctx context.Context, entry *models.AuditLogEntry) error
	ListByDocument(ctx context.Context, documentID string, limit int) ([]models.AuditLogEntry, error)
}

// AuditService appends to the audit trail. Recording never blocks or fails
// the calling operation; write failures are logged and swallowed, surfacing
// only through out-of-band monitoring.
type AuditService struct {
	repo   auditStore
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditStore, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record appends one entry, swallowing errors.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLogEntry) {
	if s == nil || s.repo == nil || entry == nil {
		return
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

// Trail returns the audit entries for a document.
func (s *AuditService) Trail(ctx context.Context, documentID string, limit int) ([]models.AuditLogEntry, error) {
	return s.repo.ListByDocument(ctx, documentID, limit)
}
