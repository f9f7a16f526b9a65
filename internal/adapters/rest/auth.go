package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

type authStatusResponse struct {
	State     domain.AuthState `json:"state"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	Refresh   bool             `json:"has_refresh_token"`
}

// Login handles GET /auth/login by redirecting to the provider consent page.
func (h *Handler) Login(c *gin.Context) {
	req, err := h.auth.BeginAuthorization(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, req.URL)
}

// Callback handles GET /auth/callback?code=...&state=...
func (h *Handler) Callback(c *gin.Context) {
	if denied := c.Query("error"); denied != "" {
		h.logger.Warn("authorization denied", zap.String("error", denied))
		writeErrorWithCode(c, http.StatusBadRequest, "authorization denied: "+denied, errCodeAuthDenied)
		return
	}

	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		writeErrorWithCode(c, http.StatusBadRequest, "state and code are required", errCodeInvalidArgument)
		return
	}

	cred, err := h.auth.CompleteAuthorization(c.Request.Context(), state, code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authStatusResponse{
		State:     domain.AuthStateAuthenticated,
		ExpiresAt: &cred.ExpiresAt,
		Refresh:   cred.HasRefreshToken(),
	})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.session.Clear(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authStatusResponse{State: domain.AuthStateUnauthenticated})
}

// Status handles GET /auth/status
func (h *Handler) Status(c *gin.Context) {
	state, cred, err := h.session.State(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := authStatusResponse{State: state, Refresh: cred.HasRefreshToken()}
	if !cred.ExpiresAt.IsZero() {
		resp.ExpiresAt = &cred.ExpiresAt
	}
	c.JSON(http.StatusOK, resp)
}
