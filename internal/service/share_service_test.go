package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/dto"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/config"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
)

type shareLinkStoreStub struct {
	shares map[string]*models.ShareLink
	seq    int
}

func newShareLinkStoreStub() *shareLinkStoreStub {
	return &shareLinkStoreStub{shares: make(map[string]*models.ShareLink)}
}

func (s *shareLinkStoreStub) Create(ctx context.Context, share *models.ShareLink) error {
	if share.ID == "" {
		s.seq++
		share.ID = fmt.Sprintf("share-%d", s.seq)
	}
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}
	s.shares[share.ID] = share
	return nil
}

func (s *shareLinkStoreStub) GetByID(ctx context.Context, id string) (*models.ShareLink, error) {
	if share, ok := s.shares[id]; ok {
		copied := *share
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *shareLinkStoreStub) GetByTokenHash(ctx context.Context, tokenHash string) (*models.ShareLink, error) {
	for _, share := range s.shares {
		if share.TokenHash == tokenHash {
			copied := *share
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *shareLinkStoreStub) ListByDocument(ctx context.Context, documentID string) ([]models.ShareLink, error) {
	var result []models.ShareLink
	for _, share := range s.shares {
		if share.DocumentID == documentID {
			result = append(result, *share)
		}
	}
	return result, nil
}

func (s *shareLinkStoreStub) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	share, ok := s.shares[id]
	if !ok || share.RevokedAt != nil {
		return sql.ErrNoRows
	}
	share.RevokedAt = &revokedAt
	return nil
}

type grantManagerStub struct {
	grants map[string]*models.AccessGrant
}

func newGrantManagerStub() *grantManagerStub {
	return &grantManagerStub{grants: make(map[string]*models.AccessGrant)}
}

func (s *grantManagerStub) key(documentID, userID string) string {
	return documentID + "|" + userID
}

func (s *grantManagerStub) Upsert(ctx context.Context, grant *models.AccessGrant) error {
	if grant.ID == "" {
		grant.ID = fmt.Sprintf("grant-%d", len(s.grants)+1)
	}
	s.grants[s.key(grant.DocumentID, grant.UserID)] = grant
	return nil
}

func (s *grantManagerStub) ListByDocument(ctx context.Context, documentID string) ([]models.AccessGrant, error) {
	var result []models.AccessGrant
	for _, grant := range s.grants {
		if grant.DocumentID == documentID {
			result = append(result, *grant)
		}
	}
	return result, nil
}

func (s *grantManagerStub) Delete(ctx context.Context, documentID, userID string) error {
	key := s.key(documentID, userID)
	if _, ok := s.grants[key]; !ok {
		return sql.ErrNoRows
	}
	delete(s.grants, key)
	return nil
}

type shareServiceFixture struct {
	svc    *ShareService
	shares *shareLinkStoreStub
	grants *grantManagerStub
	docs   *docStoreStub
	audit  *auditStub
	events *eventsStub
}

func newShareServiceFixture() *shareServiceFixture {
	f := &shareServiceFixture{
		shares: newShareLinkStoreStub(),
		grants: newGrantManagerStub(),
		docs:   newDocStoreStub(),
		audit:  &auditStub{},
		events: &eventsStub{},
	}
	f.svc = NewShareService(f.shares, f.grants, f.docs, f.audit, f.events,
		config.SharesConfig{DefaultTTL: 7 * 24 * time.Hour, MaxTTL: 90 * 24 * time.Hour}, nil)
	return f
}

func (f *shareServiceFixture) seedDoc() *models.Document {
	return f.docs.add(&models.Document{
		Type: models.DocumentFile, Title: "guide.pdf", Emplacement: "root",
		CreatorID: "student-1", CreatorType: models.ActorStudent,
		AccessLevel: models.AccessPrivate, ScanStatus: models.ScanClean,
	})
}

func TestShareServiceCreateStoresOnlyTokenDigest(t *testing.T) {
	f := newShareServiceFixture()
	doc := f.seedDoc()

	created, err := f.svc.Create(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateShareRequest{Audience: "students"})
	require.NoError(t, err)
	require.NotEmpty(t, created.Token)

	stored := f.shares.shares[created.ID]
	require.NotNil(t, stored)
	assert.NotEqual(t, created.Token, stored.TokenHash)
	sum := sha256.Sum256([]byte(created.Token))
	assert.Equal(t, hex.EncodeToString(sum[:]), stored.TokenHash)
	assert.Nil(t, stored.PasswordHash)

	// Minting a STUDENTS share widens the document's access level to match.
	assert.Equal(t, models.AccessStudents, f.docs.docs[doc.ID].AccessLevel)
	assert.Contains(t, f.audit.actions(), models.AuditActionShareCreate)
}

func TestShareServiceCreateDefaultAndClampedExpiry(t *testing.T) {
	f := newShareServiceFixture()
	doc := f.seedDoc()
	now := time.Now().UTC()

	created, err := f.svc.Create(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateShareRequest{Audience: "PUBLIC"})
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(7*24*time.Hour), created.ExpiresAt, time.Minute)

	farFuture := now.Add(365 * 24 * time.Hour)
	created, err = f.svc.Create(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateShareRequest{Audience: "PUBLIC", ExpiresAt: &farFuture})
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(90*24*time.Hour), created.ExpiresAt, time.Minute)

	past := now.Add(-time.Hour)
	_, err = f.svc.Create(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateShareRequest{Audience: "PUBLIC", ExpiresAt: &past})
	require.Error(t, err)
}

func TestShareServiceCreateBlockedForQuarantinedDocument(t *testing.T) {
	f := newShareServiceFixture()
	doc := f.docs.add(&models.Document{
		Type: models.DocumentFile, Title: "held.pdf", Emplacement: "root",
		CreatorID: "student-1", Quarantined: true,
	})

	_, err := f.svc.Create(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateShareRequest{Audience: "PUBLIC"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrQuarantined.Code, appErrors.FromError(err).Code)
}

func TestShareServiceCreateForeignDocumentReadsAsNotFound(t *testing.T) {
	f := newShareServiceFixture()
	doc := f.seedDoc()

	// A foreign document is indistinguishable from a missing one.
	_, err := f.svc.Create(context.Background(), studentClaims("student-2"), doc.ID,
		dto.CreateShareRequest{Audience: "PUBLIC"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestShareServiceResolveHappyPath(t *testing.T) {
	f := newShareServiceFixture()
	doc := f.seedDoc()
	created, err := f.svc.Create(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateShareRequest{Audience: "STUDENTS"})
	require.NoError(t, err)

	resolved, err := f.svc.Resolve(context.Background(), studentClaims("student-9"),
		dto.ResolveShareRequest{Token: created.Token})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, resolved.Document.ID)
	assert.Equal(t, models.AudienceStudents, resolved.Audience)
	assert.Contains(t, f.audit.actions(), models.AuditActionShareResolve)
}

func TestShareServiceResolveFailureModes(t *testing.T) {
	f := newShareServiceFixture()
	doc := f.seedDoc()
	created, err := f.svc.Create(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateShareRequest{Audience: "STUDENTS", Password: "s3cret"})
	require.NoError(t, err)

	// Unknown token reads as not found, revealing nothing.
	_, err = f.svc.Resolve(context.Background(), studentClaims("student-9"),
		dto.ResolveShareRequest{Token: "deadbeef"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// Wrong password.
	_, err = f.svc.Resolve(context.Background(), studentClaims("student-9"),
		dto.ResolveShareRequest{Token: created.Token, Password: "wrong"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	// Audience mismatch: a company cannot consume a STUDENTS share.
	_, err = f.svc.Resolve(context.Background(),
		&models.ActorClaims{UserID: "company-1", Role: models.ActorCompany},
		dto.ResolveShareRequest{Token: created.Token, Password: "s3cret"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Expired share.
	expired := f.shares.shares[created.ID]
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	_, err = f.svc.Resolve(context.Background(), studentClaims("student-9"),
		dto.ResolveShareRequest{Token: created.Token, Password: "s3cret"})
	assert.Equal(t, appErrors.ErrShareExpired.Code, appErrors.FromError(err).Code)

	// Revoked share is indistinguishable from a missing one.
	expired.ExpiresAt = time.Now().Add(time.Hour)
	now := time.Now()
	expired.RevokedAt = &now
	_, err = f.svc.Resolve(context.Background(), studentClaims("student-9"),
		dto.ResolveShareRequest{Token: created.Token, Password: "s3cret"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestShareServiceResolveRequiresAuthenticatedCaller(t *testing.T) {
	f := newShareServiceFixture()
	doc := f.seedDoc()
	created, err := f.svc.Create(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateShareRequest{Audience: "PUBLIC"})
	require.NoError(t, err)

	_, err = f.svc.Resolve(context.Background(), nil, dto.ResolveShareRequest{Token: created.Token})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestShareServiceRevokeOwnerOrAdmin(t *testing.T) {
	f := newShareServiceFixture()
	doc := f.seedDoc()
	created, err := f.svc.Create(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateShareRequest{Audience: "PUBLIC"})
	require.NoError(t, err)

	// Someone else's share reads as not found.
	err = f.svc.Revoke(context.Background(), studentClaims("student-2"), created.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.Revoke(context.Background(), studentClaims("student-1"), created.ID))
	assert.NotNil(t, f.shares.shares[created.ID].RevokedAt)

	// Resolving after revocation fails closed.
	_, err = f.svc.Resolve(context.Background(), studentClaims("student-9"),
		dto.ResolveShareRequest{Token: created.Token})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestShareServiceGrantLifecycle(t *testing.T) {
	f := newShareServiceFixture()
	doc := f.seedDoc()

	grant, err := f.svc.Grant(context.Background(), studentClaims("student-1"), doc.ID,
		dto.CreateGrantRequest{UserID: "company-7", UserType: "company"})
	require.NoError(t, err)
	assert.Equal(t, models.ActorCompany, grant.UserType)
	assert.Equal(t, "READ", grant.Access)

	grants, err := f.svc.ListGrants(context.Background(), studentClaims("student-1"), doc.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	require.NoError(t, f.svc.RevokeGrant(context.Background(), studentClaims("student-1"), doc.ID, "company-7"))
	grants, err = f.svc.ListGrants(context.Background(), studentClaims("student-1"), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)

	// Non-owners cannot manage grants; the document reads as not found.
	_, err = f.svc.Grant(context.Background(), studentClaims("student-2"), doc.ID,
		dto.CreateGrantRequest{UserID: "x", UserType: "STUDENT"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
