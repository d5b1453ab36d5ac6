package models

import "time"

// ShareAudience restricts which caller class may consume a share link.
type ShareAudience string

const (
	AudienceStudents  ShareAudience = "STUDENTS"
	AudienceCompanies ShareAudience = "COMPANIES"
	AudienceInternal  ShareAudience = "INTERNAL"
	AudiencePublic    ShareAudience = "PUBLIC"
)

// Valid reports whether the audience is a known value.
func (a ShareAudience) Valid() bool {
	switch a {
	case AudienceStudents, AudienceCompanies, AudienceInternal, AudiencePublic:
		return true
	}
	return false
}

// Allows reports whether an actor of the given type may consume the share.
// Every audience, including PUBLIC, still requires an authenticated caller.
func (a ShareAudience) Allows(role ActorType) bool {
	switch a {
	case AudienceStudents:
		return role == ActorStudent || role == ActorAdmin
	case AudienceCompanies:
		return role == ActorCompany || role == ActorAdmin
	case AudiencePublic:
		return role.Valid()
	default:
		return role == ActorAdmin
	}
}

// AccessLevel maps the share audience onto the document access level used by
// listing and search, keeping the two consistent after minting a link.
func (a ShareAudience) AccessLevel() AccessLevel {
	switch a {
	case AudienceStudents:
		return AccessStudents
	case AudienceCompanies:
		return AccessCompanies
	case AudiencePublic:
		return AccessPublic
	default:
		return AccessPrivate
	}
}

// ShareLink is a revocable bearer-token grant for one document. Only a one-way
// digest of the token is persisted; the raw token leaves the system exactly
// once, at creation time.
type ShareLink struct {
	ID            string        `db:"id" json:"id"`
	DocumentID    string        `db:"document_id" json:"documentId"`
	TokenHash     string        `db:"token_hash" json:"-"`
	ExpiresAt     time.Time     `db:"expires_at" json:"expiresAt"`
	PasswordHash  *string       `db:"password_hash" json:"-"`
	Audience      ShareAudience `db:"audience" json:"audience"`
	CreatedBy     string        `db:"created_by" json:"createdBy"`
	CreatedByType ActorType     `db:"created_by_type" json:"createdByType"`
	RevokedAt     *time.Time    `db:"revoked_at" json:"revokedAt,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
}

// Active reports whether the share can still be consumed at the given instant.
func (s *ShareLink) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// PasswordProtected reports whether resolving requires a password.
func (s *ShareLink) PasswordProtected() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

// AccessGrant is a direct per-user access entry, additive to access levels and
// share links.
type AccessGrant struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"documentId"`
	UserID     string    `db:"user_id" json:"userId"`
	UserType   ActorType `db:"user_type" json:"userType"`
	Access     string    `db:"access" json:"access"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
