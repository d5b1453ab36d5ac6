package dto

import (
	"time"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
)

// CreateShareRequest mints a share link for one document.
type CreateShareRequest struct {
	Audience  string     `json:"audience" validate:"required"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Password  string     `json:"password"`
}

// ShareCreatedResponse returns the minted share together with the raw bearer
// token. This is the only time the token ever leaves the system.
type ShareCreatedResponse struct {
	models.ShareLink
	Token string `json:"token"`
}

// ResolveShareRequest consumes a share token.
type ResolveShareRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password"`
}

// ResolvedShareResponse is returned for a valid token.
type ResolvedShareResponse struct {
	Document models.Document      `json:"document"`
	Audience models.ShareAudience `json:"audience"`
	ShareID  string               `json:"shareId"`
}

// CreateGrantRequest adds a direct per-user access entry.
type CreateGrantRequest struct {
	UserID   string `json:"userId" validate:"required"`
	UserType string `json:"userType" validate:"required"`
	Access   string `json:"access"`
}
