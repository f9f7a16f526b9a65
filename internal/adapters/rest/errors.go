package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const (
	errCodeNotAuthenticated  = "NOT_AUTHENTICATED"
	errCodeAuthExchange      = "AUTH_EXCHANGE_FAILED"
	errCodeAuthDenied        = "AUTH_DENIED"
	errCodeRateLimited       = "RATE_LIMITED"
	errCodeUpstream          = "UPSTREAM_ERROR"
	errCodeNotFound          = "NOT_FOUND"
	errCodeInvalidArgument   = "INVALID_ARGUMENT"
	errCodeInsufficientSeeds = "INSUFFICIENT_SEED_DATA"
	errCodeInternal          = "INTERNAL"
)

// respondError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeErrorWithCode(c, status, err.Error(), code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrAuthentication),
		errors.Is(err, domain.ErrNoRefreshToken):
		return http.StatusUnauthorized, errCodeNotAuthenticated
	case errors.Is(err, domain.ErrAuthExchange):
		return http.StatusBadRequest, errCodeAuthExchange
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, errCodeRateLimited
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errCodeNotFound
	case errors.Is(err, domain.ErrInvalidWeights):
		return http.StatusBadRequest, errCodeInvalidArgument
	case errors.Is(err, domain.ErrInsufficientSeedData),
		errors.Is(err, domain.ErrEmptyProfile):
		return http.StatusUnprocessableEntity, errCodeInsufficientSeeds
	case errors.Is(err, domain.ErrAPIRequest):
		return http.StatusBadGateway, errCodeUpstream
	default:
		return http.StatusInternalServerError, errCodeInternal
	}
}
