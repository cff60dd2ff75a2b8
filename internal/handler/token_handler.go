package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dotask-io/dotask-api/internal/models"
	"github.com/dotask-io/dotask-api/internal/service"
	appErrors "github.com/dotask-io/dotask-api/pkg/errors"
	"github.com/dotask-io/dotask-api/pkg/response"
)

// TokenHandler wires HTTP endpoints to the token lifecycle service.
type TokenHandler struct {
	service *service.TokenService
}

// NewTokenHandler creates a new handler.
func NewTokenHandler(svc *service.TokenService) *TokenHandler {
	return &TokenHandler{service: svc}
}

// Request godoc
// @Summary Request token pair
// @Description Exchange email and password for an access and refresh token pair
// @Tags Tokens
// @Accept json
// @Produce json
// @Param payload body models.CredentialsRequest true "Credentials payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /token [post]
func (h *TokenHandler) Request(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid credentials payload"))
		return
	}

	res, err := h.service.Request(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Refresh godoc
// @Summary Rotate refresh token
// @Description Exchange a refresh token for a new token pair; the presented token is revoked
// @Tags Tokens
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /token/refresh [post]
func (h *TokenHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
		return
	}

	res, err := h.service.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Revoke godoc
// @Summary Revoke token
// @Description Invalidate a token ahead of its expiry; revoking twice succeeds
// @Tags Tokens
// @Accept json
// @Produce json
// @Param payload body models.RevokeTokenRequest true "Revoke payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /token/revoke [post]
func (h *TokenHandler) Revoke(c *gin.Context) {
	var req models.RevokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid revoke payload"))
		return
	}

	if err := h.service.Revoke(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
