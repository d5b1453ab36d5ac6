package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/dto"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/response"
)

type shareService interface {
	Create(ctx context.Context, actor *models.ActorClaims, documentID string, req dto.CreateShareRequest) (*dto.ShareCreatedResponse, error)
	Resolve(ctx context.Context, actor *models.ActorClaims, req dto.ResolveShareRequest) (*dto.ResolvedShareResponse, error)
	Revoke(ctx context.Context, actor *models.ActorClaims, shareID string) error
	List(ctx context.Context, actor *models.ActorClaims, documentID string) ([]models.ShareLink, error)
	Grant(ctx context.Context, actor *models.ActorClaims, documentID string, req dto.CreateGrantRequest) (*models.AccessGrant, error)
	ListGrants(ctx context.Context, actor *models.ActorClaims, documentID string) ([]models.AccessGrant, error)
	RevokeGrant(ctx context.Context, actor *models.ActorClaims, documentID, userID string) error
}

// ShareHandler manages share link and access grant endpoints.
type ShareHandler struct {
	service shareService
}

// NewShareHandler constructs the handler.
func NewShareHandler(service shareService) *ShareHandler {
	return &ShareHandler{service: service}
}

// Create mints a share link for a document.
func (h *ShareHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid share payload"))
		return
	}
	share, err := h.service.Create(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, share)
}

// List returns the share links minted for a document.
func (h *ShareHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	shares, err := h.service.List(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shares, nil)
}

// Resolve exchanges a raw share token for the shared document.
func (h *ShareHandler) Resolve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ResolveShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolve payload"))
		return
	}
	resolved, err := h.service.Resolve(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resolved, nil)
}

// Revoke invalidates a share link.
func (h *ShareHandler) Revoke(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Revoke(c.Request.Context(), claims, c.Param("shareId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Grant adds a direct per-user access entry.
func (h *ShareHandler) Grant(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grant payload"))
		return
	}
	grant, err := h.service.Grant(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grant)
}

// ListGrants returns the direct access entries of a document.
func (h *ShareHandler) ListGrants(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	grants, err := h.service.ListGrants(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grants, nil)
}

// RevokeGrant removes one direct access entry.
func (h *ShareHandler) RevokeGrant(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RevokeGrant(c.Request.Context(), claims, c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
