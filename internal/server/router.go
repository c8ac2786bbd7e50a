package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/auth"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/settings"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionContextKey      = "linkinbio_session"
	defaultLoginRateLimit  = 10
	defaultHeartbeatPeriod = 25 * time.Second
	maxRequestBodyBytes    = 1 << 20
)

var (
	errMissingOptionsService = errors.New("options service dependency required")
	errMissingCredentials    = errors.New("credentials dependency required")
	errMissingTokenIssuer    = errors.New("token issuer dependency required")
	errMissingSessions       = errors.New("session validator dependency required")
)

// OptionsService is the settings surface the HTTP layer drives.
type OptionsService interface {
	Load(ctx context.Context) (profile.Settings, error)
	Save(ctx context.Context, raw map[string]any) (settings.SaveResult, error)
	Preview(raw map[string]any) (string, error)
	PublicPage(ctx context.Context) ([]byte, error)
}

type CredentialVerifier interface {
	Verify(username, password string) error
}

type SessionIssuer interface {
	IssueSession(subject string) (string, time.Time, error)
	IssueNonce(session auth.SessionClaims, action string) (string, error)
}

type SessionValidator interface {
	CookieName() string
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	ValidateNonce(nonce string, session auth.SessionClaims, action string) error
}

type Dependencies struct {
	Options         OptionsService
	Credentials     CredentialVerifier
	Tokens          SessionIssuer
	Sessions        SessionValidator
	Realtime        *RealtimeDispatcher
	Metrics         http.Handler
	PageSlug        string
	AllowedOrigins  []string
	LoginRateLimit  int
	SecureCookies   bool
	HeartbeatPeriod time.Duration
	Logger          *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Options == nil {
		return nil, errMissingOptionsService
	}
	if deps.Credentials == nil {
		return nil, errMissingCredentials
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	loginLimit := deps.LoginRateLimit
	if loginLimit <= 0 {
		loginLimit = defaultLoginRateLimit
	}
	heartbeat := deps.HeartbeatPeriod
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatPeriod
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if len(deps.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(deps.AllowedOrigins))
	}

	handler := &httpHandler{
		options:       deps.Options,
		credentials:   deps.Credentials,
		tokens:        deps.Tokens,
		sessions:      deps.Sessions,
		realtime:      realtime,
		pageSlug:      strings.Trim(strings.TrimSpace(deps.PageSlug), "/"),
		secureCookies: deps.SecureCookies,
		heartbeat:     heartbeat,
		logger:        logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	router.GET("/", handler.handlePublicPage)
	router.NoRoute(handler.handleNoRoute)

	router.StaticFS("/admin/assets", adminAssets())
	router.GET("/admin/login", handler.handleLoginPage)
	router.POST("/admin/login", rateLimitMiddleware(loginLimit, time.Minute), handler.handleLogin)
	router.POST("/admin/logout", handler.handleLogout)
	router.GET("/admin", handler.handleAdminPage)

	api := router.Group("/admin/api")
	api.Use(handler.authorizeRequest)
	api.GET("/options", handler.handleGetOptions)
	api.POST("/options", handler.handleSaveOptions)
	api.POST("/preview", handler.handlePreview)
	api.GET("/schema", handler.handleSchema)
	api.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	options       OptionsService
	credentials   CredentialVerifier
	tokens        SessionIssuer
	sessions      SessionValidator
	realtime      *RealtimeDispatcher
	pageSlug      string
	secureCookies bool
	heartbeat     time.Duration
	logger        *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handlePublicPage(c *gin.Context) {
	page, err := h.options.PublicPage(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to render public page", zap.Error(err))
		c.String(http.StatusInternalServerError, "page unavailable")
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (h *httpHandler) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodGet && h.pageSlug != "" && strings.Trim(c.Request.URL.Path, "/") == h.pageSlug {
		h.handlePublicPage(c)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if err := h.credentials.Verify(username, password); err != nil {
		h.logger.Warn("admin login rejected", zap.String("client_ip", c.ClientIP()), zap.Error(err))
		h.renderLogin(c, http.StatusUnauthorized, "Invalid username or password.")
		return
	}

	token, expiresAt, err := h.tokens.IssueSession(strings.TrimSpace(username))
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		h.renderLogin(c, http.StatusInternalServerError, "Login is temporarily unavailable.")
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    token,
		Path:     "/admin",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	c.Redirect(http.StatusSeeOther, "/admin")
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	c.Redirect(http.StatusSeeOther, "/admin/login")
}

// validateSession checks the session cookie and logs rejected tokens.
// Expired sessions are routine and logged at info level.
func (h *httpHandler) validateSession(c *gin.Context) (auth.SessionClaims, bool) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err == nil {
		return claims, true
	}
	switch {
	case errors.Is(err, auth.ErrMissingSessionToken):
	case errors.Is(err, auth.ErrExpiredSessionToken):
		h.logger.Info("session validation failed", zap.Error(err))
	default:
		h.logger.Warn("session validation failed", zap.Error(err))
	}
	return auth.SessionClaims{}, false
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, ok := h.validateSession(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(sessionContextKey, claims)
	c.Next()
}

func sessionFromContext(c *gin.Context) auth.SessionClaims {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return auth.SessionClaims{}
	}
	claims, _ := value.(auth.SessionClaims)
	return claims
}
