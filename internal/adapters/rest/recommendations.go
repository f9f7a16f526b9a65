package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ewilliams-labs/cadence/internal/adapters/spotify"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/core/similarity"
)

const maxTopN = 100

type exportPlaylistRequest struct {
	Name string `json:"name"`
}

// GetMe handles GET /me
func (h *Handler) GetMe(c *gin.Context) {
	profile, err := h.svc.Profile(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetListeningProfile handles GET /me/profile?time_range=&limit=
func (h *Handler) GetListeningProfile(c *gin.Context) {
	opts, err := h.parseOptions(c)
	if err != nil {
		writeErrorWithCode(c, http.StatusBadRequest, err.Error(), errCodeInvalidArgument)
		return
	}

	lp, err := h.svc.ListeningProfile(c.Request.Context(), opts.TimeRange, opts.SeedLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lp)
}

// GetRecommendations handles GET /recommendations
func (h *Handler) GetRecommendations(c *gin.Context) {
	opts, err := h.parseOptions(c)
	if err != nil {
		writeErrorWithCode(c, http.StatusBadRequest, err.Error(), errCodeInvalidArgument)
		return
	}

	catalog, err := h.catalog.Entries(c.Request.Context())
	if err != nil {
		h.respondError(c, fmt.Errorf("load catalog: %w", err))
		return
	}

	set, err := h.svc.RecommendOrSample(c.Request.Context(), catalog, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Location", "/recommendations/"+set.ID)
	c.JSON(http.StatusOK, set)
}

// GetRun handles GET /recommendations/:id
func (h *Handler) GetRun(c *gin.Context) {
	set, err := h.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

// ExportPlaylist handles POST /recommendations/:id/playlist
func (h *Handler) ExportPlaylist(c *gin.Context) {
	var req exportPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorWithCode(c, http.StatusBadRequest, "Invalid request body", errCodeInvalidArgument)
		return
	}

	set, err := h.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	pl, err := h.svc.ExportPlaylist(c.Request.Context(), set, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pl)
}

// GetPlaylist handles GET /playlists/:id
func (h *Handler) GetPlaylist(c *gin.Context) {
	pl, err := h.svc.Playlist(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pl)
}

// parseOptions overlays query parameters on the configured defaults.
func (h *Handler) parseOptions(c *gin.Context) (services.Options, error) {
	opts := h.defaults

	if v := c.Query("time_range"); v != "" {
		if !spotify.ValidTimeRange(v) {
			return opts, fmt.Errorf("time_range must be one of short_term, medium_term, long_term")
		}
		opts.TimeRange = v
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("limit must be a positive integer")
		}
		opts.SeedLimit = n
	}
	if v := c.Query("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTopN {
			return opts, fmt.Errorf("top_n must be between 1 and %d", maxTopN)
		}
		opts.TopN = n
	}
	if v := c.Query("popularity_weight"); v != "" {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil || w < 0 || w > 1 {
			return opts, fmt.Errorf("popularity_weight must be between 0 and 1")
		}
		opts.Weights = similarity.PopularityWeighted(w)
	}
	if v := c.Query("strategy"); v != "" {
		s, err := similarity.ParseStrategy(v)
		if err != nil {
			return opts, err
		}
		opts.Strategy = s
	}
	return opts, nil
}
