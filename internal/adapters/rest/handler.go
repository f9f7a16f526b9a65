package rest

import (
	"context"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/adapters/auth"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/core/services"
)

// Authenticator runs the authorization code exchange.
type Authenticator interface {
	BeginAuthorization(ctx context.Context) (auth.AuthorizationRequest, error)
	CompleteAuthorization(ctx context.Context, state, code string) (domain.Credential, error)
}

// SessionState reports and clears the stored credential.
type SessionState interface {
	State(ctx context.Context) (domain.AuthState, domain.Credential, error)
	Clear(ctx context.Context) error
}

// Deps are the collaborators the HTTP interface needs.
type Deps struct {
	Recommender *services.Recommender
	Auth        Authenticator
	Session     SessionState
	Catalog     ports.CatalogSource
	// Defaults apply to query parameters the caller leaves out.
	Defaults services.Options
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc      *services.Recommender
	auth     Authenticator
	session  SessionState
	catalog  ports.CatalogSource
	defaults services.Options
	logger   *zap.Logger
	router   *gin.Engine
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		svc:      d.Recommender,
		auth:     d.Auth,
		session:  d.Session,
		catalog:  d.Catalog,
		defaults: d.Defaults,
		logger:   logger,
		router:   gin.New(),
	}
	h.router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	h.router.Use(ginzap.RecoveryWithZap(logger, true))

	h.routes(d.Metrics)
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes(metrics http.Handler) {
	h.router.GET("/health", h.HealthCheck)
	if metrics != nil {
		h.router.GET("/metrics", gin.WrapH(metrics))
	}

	authGroup := h.router.Group("/auth")
	authGroup.GET("/login", h.Login)
	authGroup.GET("/callback", h.Callback)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/status", h.Status)

	h.router.GET("/me", h.GetMe)
	h.router.GET("/me/profile", h.GetListeningProfile)

	h.router.GET("/recommendations", h.GetRecommendations)
	h.router.GET("/recommendations/:id", h.GetRun)
	h.router.POST("/recommendations/:id/playlist", h.ExportPlaylist)

	h.router.GET("/playlists/:id", h.GetPlaylist)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeErrorWithCode(c *gin.Context, status int, msg, code string) {
	c.JSON(status, errorResponse{Error: msg, Code: code})
}
