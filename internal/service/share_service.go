package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/dto"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/config"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
)

type shareLinkStore interface {
	Create(ctx context.Context, share *models.ShareLink) error
	GetByID(ctx context.Context, id string) (*models.ShareLink, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.ShareLink, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.ShareLink, error)
	Revoke(ctx context.Context, id string, revokedAt time.Time) error
}

type grantManager interface {
	Upsert(ctx context.Context, grant *models.AccessGrant) error
	ListByDocument(ctx context.Context, documentID string) ([]models.AccessGrant, error)
	Delete(ctx context.Context, documentID, userID string) error
}

type documentReader interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	UpdateMeta(ctx context.Context, id string, patch models.DocumentPatch, expectedUpdatedAt *time.Time) error
}

// ShareService mints, resolves and revokes share links and manages direct
// access grants. Tokens are stored only as one-way digests.
type ShareService struct {
	shares   shareLinkStore
	grants   grantManager
	docs     documentReader
	audit    auditRecorder
	events   eventPublisher
	cfg      config.SharesConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewShareService constructs the service.
func NewShareService(
	shares shareLinkStore,
	grants grantManager,
	docs documentReader,
	audit auditRecorder,
	events eventPublisher,
	cfg config.SharesConfig,
	logger *zap.Logger,
) *ShareService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareService{
		shares:   shares,
		grants:   grants,
		docs:     docs,
		audit:    audit,
		events:   events,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create mints a share link for a document. The raw token is returned exactly
// once; only its digest is persisted. The document's access level is widened
// to match the audience so listings stay consistent with the share.
func (s *ShareService) Create(ctx context.Context, actor *models.ActorClaims, documentID string, req dto.CreateShareRequest) (*dto.ShareCreatedResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid share request")
	}

	audience := models.ShareAudience(strings.ToUpper(req.Audience))
	if !audience.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown share audience")
	}

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.FromError(err)
	}
	if !actor.IsAdmin() && actor.UserID != doc.CreatorID {
		return nil, appErrors.ErrNotFound
	}
	if doc.Quarantined {
		return nil, appErrors.ErrQuarantined
	}

	expiresAt, err := s.resolveExpiry(req.ExpiresAt)
	if err != nil {
		return nil, err
	}

	token, tokenHash, err := mintToken()
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	share := &models.ShareLink{
		DocumentID:    doc.ID,
		TokenHash:     tokenHash,
		ExpiresAt:     expiresAt,
		Audience:      audience,
		CreatedBy:     actor.UserID,
		CreatedByType: actor.Role,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.FromError(err)
		}
		hashed := string(hash)
		share.PasswordHash = &hashed
	}

	if err := s.shares.Create(ctx, share); err != nil {
		return nil, appErrors.FromError(err)
	}

	if level := audience.AccessLevel(); level != models.AccessPrivate && level != doc.AccessLevel {
		patch := models.DocumentPatch{AccessLevel: &level}
		if err := s.docs.UpdateMeta(ctx, doc.ID, patch, nil); err != nil {
			s.logger.Warn("failed to widen access level for share",
				zap.String("document_id", doc.ID), zap.Error(err))
		}
	}

	s.emitAudit(ctx, actor, doc.ID, models.AuditActionShareCreate, map[string]interface{}{
		"shareId":  share.ID,
		"audience": share.Audience,
	})
	s.publish("documents.shared", map[string]interface{}{
		"documentId": doc.ID,
		"shareId":    share.ID,
		"audience":   share.Audience,
	})
	return &dto.ShareCreatedResponse{ShareLink: *share, Token: token}, nil
}

// Resolve exchanges a raw token for the shared document. Unknown and revoked
// tokens are indistinguishable from missing ones.
func (s *ShareService) Resolve(ctx context.Context, actor *models.ActorClaims, req dto.ResolveShareRequest) (*dto.ResolvedShareResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolve request")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	share, err := s.shares.GetByTokenHash(ctx, hashToken(req.Token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.FromError(err)
	}
	if share.RevokedAt != nil {
		return nil, appErrors.ErrNotFound
	}
	if !time.Now().UTC().Before(share.ExpiresAt) {
		return nil, appErrors.ErrShareExpired
	}
	if share.PasswordProtected() {
		if err := bcrypt.CompareHashAndPassword([]byte(*share.PasswordHash), []byte(req.Password)); err != nil {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "wrong share password")
		}
	}
	if !share.Audience.Allows(actor.Role) {
		return nil, appErrors.ErrForbidden
	}

	doc, err := s.docs.GetByID(ctx, share.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.FromError(err)
	}
	if doc.Quarantined {
		return nil, appErrors.ErrQuarantined
	}

	s.emitAudit(ctx, actor, doc.ID, models.AuditActionShareResolve, map[string]interface{}{
		"shareId": share.ID,
	})
	return &dto.ResolvedShareResponse{
		Document: *doc,
		Audience: share.Audience,
		ShareID:  share.ID,
	}, nil
}

// Revoke invalidates a share link immediately.
func (s *ShareService) Revoke(ctx context.Context, actor *models.ActorClaims, shareID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}

	share, err := s.shares.GetByID(ctx, shareID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.FromError(err)
	}
	if !actor.IsAdmin() && actor.UserID != share.CreatedBy {
		return appErrors.ErrNotFound
	}

	if err := s.shares.Revoke(ctx, shareID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.FromError(err)
	}

	s.emitAudit(ctx, actor, share.DocumentID, models.AuditActionShareRevoke, map[string]interface{}{
		"shareId": shareID,
	})
	return nil
}

// List returns the share links minted for a document.
func (s *ShareService) List(ctx context.Context, actor *models.ActorClaims, documentID string) ([]models.ShareLink, error) {
	if err := s.requireOwner(ctx, actor, documentID); err != nil {
		return nil, err
	}
	shares, err := s.shares.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if shares == nil {
		shares = []models.ShareLink{}
	}
	return shares, nil
}

// Grant adds or refreshes a direct per-user access entry.
func (s *ShareService) Grant(ctx context.Context, actor *models.ActorClaims, documentID string, req dto.CreateGrantRequest) (*models.AccessGrant, error) {
	if err := s.requireOwner(ctx, actor, documentID); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grant request")
	}
	userType := models.ActorType(strings.ToUpper(req.UserType))
	if !userType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown user type")
	}
	access := strings.ToUpper(req.Access)
	if access == "" {
		access = "READ"
	}

	grant := &models.AccessGrant{
		DocumentID: documentID,
		UserID:     req.UserID,
		UserType:   userType,
		Access:     access,
	}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		return nil, appErrors.FromError(err)
	}
	return grant, nil
}

// ListGrants returns the direct access entries of a document.
func (s *ShareService) ListGrants(ctx context.Context, actor *models.ActorClaims, documentID string) ([]models.AccessGrant, error) {
	if err := s.requireOwner(ctx, actor, documentID); err != nil {
		return nil, err
	}
	grants, err := s.grants.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if grants == nil {
		grants = []models.AccessGrant{}
	}
	return grants, nil
}

// RevokeGrant removes one direct access entry.
func (s *ShareService) RevokeGrant(ctx context.Context, actor *models.ActorClaims, documentID, userID string) error {
	if err := s.requireOwner(ctx, actor, documentID); err != nil {
		return err
	}
	if err := s.grants.Delete(ctx, documentID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.FromError(err)
	}
	return nil
}

// requireOwner reports a foreign document as not-found, never forbidden, so
// share ids cannot be used to confirm a document exists.
func (s *ShareService) requireOwner(ctx context.Context, actor *models.ActorClaims, documentID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	doc, err := s.docs.GetByID(ctx, documentID)
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
}

func (s *ShareService) resolveExpiry(requested *time.Time) (time.Time, error) {
	now := time.Now().UTC()
	if requested == nil {
		return now.Add(s.cfg.DefaultTTL), nil
	}
	if !requested.After(now) {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "expiry must be in the future")
	}
	if s.cfg.MaxTTL > 0 && requested.After(now.Add(s.cfg.MaxTTL)) {
		return now.Add(s.cfg.MaxTTL), nil
	}
	return requested.UTC(), nil
}

func (s *ShareService) emitAudit(ctx context.Context, actor *models.ActorClaims, documentID, action string, metadata map[string]interface{}) {
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

func (s *ShareService) publish(subject string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func mintToken() (token, digest string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
