// Package api assembles the gateway's gin.Engine: the middleware chain
// (correlation/tracing, CORS, metrics, request logging, rate limiting,
// authentication, tenant isolation, RBAC enforcement, error handling) plus
// the HTTP handlers for session, RBAC administration, access-request, query
// dispatch and schema/tenant-health endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platformbuilds/tenant-gateway-core/internal/api/middleware"
	internalcache "github.com/platformbuilds/tenant-gateway-core/internal/cache"
	"github.com/platformbuilds/tenant-gateway-core/internal/apperr"
	"github.com/platformbuilds/tenant-gateway-core/internal/breaker"
	"github.com/platformbuilds/tenant-gateway-core/internal/config"
	"github.com/platformbuilds/tenant-gateway-core/internal/directory"
	"github.com/platformbuilds/tenant-gateway-core/internal/dispatch"
	"github.com/platformbuilds/tenant-gateway-core/internal/models"
	"github.com/platformbuilds/tenant-gateway-core/internal/pool"
	gwrbac "github.com/platformbuilds/tenant-gateway-core/internal/rbac"
	"github.com/platformbuilds/tenant-gateway-core/internal/registry"
	"github.com/platformbuilds/tenant-gateway-core/internal/repo/rbac"
	"github.com/platformbuilds/tenant-gateway-core/internal/auth"
	"github.com/platformbuilds/tenant-gateway-core/internal/session"
	"github.com/platformbuilds/tenant-gateway-core/internal/tracing"
	"github.com/platformbuilds/tenant-gateway-core/pkg/cache"
	"github.com/platformbuilds/tenant-gateway-core/pkg/logger"
	"github.com/google/uuid"
)

// Server wires every gateway component into a gin.Engine.
type Server struct {
	cfg         *config.Config
	log         logger.Logger
	valkeyCache cache.ValkeyCluster
	rbacRepo    rbac.RBACRepository
	rbacService *rbac.RBACService
	sessions    *session.Manager
	hasher      *auth.PasswordHasher
	registry    *registry.Registry
	pool        *pool.Manager
	breaker     *breaker.Manager
	resultCache *internalcache.Cache
	dispatcher  *dispatch.Dispatcher
	directory   *directory.Directory

	engine *gin.Engine
}

// NewServer builds a Server and its gin.Engine from the gateway's fully
// wired component graph. Every argument is a dependency constructed in
// cmd/server/main.go; NewServer itself performs no I/O.
func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkeyCache cache.ValkeyCluster,
	rbacRepo rbac.RBACRepository,
	rbacService *rbac.RBACService,
	sessions *session.Manager,
	hasher *auth.PasswordHasher,
	reg *registry.Registry,
	pm *pool.Manager,
	bm *breaker.Manager,
	resultCache *internalcache.Cache,
	dispatcher *dispatch.Dispatcher,
	dir *directory.Directory,
) *Server {
	s := &Server{
		cfg:         cfg,
		log:         log,
		valkeyCache: valkeyCache,
		rbacRepo:    rbacRepo,
		rbacService: rbacService,
		sessions:    sessions,
		hasher:      hasher,
		registry:    reg,
		pool:        pm,
		breaker:     bm,
		resultCache: resultCache,
		dispatcher:  dispatcher,
		directory:   dir,
	}
	s.engine = s.buildEngine()
	return s
}

// Engine returns the assembled gin.Engine, ready to be handed to http.Server.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) buildEngine() *gin.Engine {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	correlation := middleware.NewCorrelationService(s.cfg, s.valkeyCache, s.log)
	rbacEnforcer := middleware.NewRBACEnforcer(s.rbacService, s.valkeyCache, s.log)
	tenantIsolation := middleware.NewTenantIsolationMiddleware(middleware.DefaultTenantIsolationConfig(), s.rbacService, s.log)

	r.Use(
		correlation.CorrelationMiddleware(),
		correlation.DistributedTracingMiddleware(),
		middleware.CORSMiddleware(s.cfg.CORS),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(s.log),
		middleware.RateLimiter(s.valkeyCache),
	)

	if s.cfg.Auth.Enabled {
		r.Use(middleware.AuthMiddleware(s.cfg.Auth, s.sessions, s.valkeyCache, s.rbacRepo))
	} else {
		r.Use(middleware.NoAuthMiddleware())
	}
	r.Use(tenantIsolation.TenantIsolation())
	r.Use(middleware.ErrorHandler(s.log))

	r.GET("/health", s.handleHealthSystem)
	r.GET("/ready", s.handleHealthSystem)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/api/docs", serveSwaggerUI)

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", s.handleLogin)
			authGroup.POST("/logout", s.handleLogout)
			authGroup.POST("/switch-tenant", s.handleSwitchTenant)
		}

		users := v1.Group("/users")
		users.Use(rbacEnforcer.RBACMiddleware([]string{"users.read"}))
		{
			users.GET("", s.handleListUsers)
		}
		usersWrite := v1.Group("/users")
		usersWrite.Use(rbacEnforcer.RBACMiddleware([]string{"users.write"}))
		{
			usersWrite.POST("", s.handleCreateUser)
		}

		access := v1.Group("/access")
		{
			access.POST("/grant", rbacEnforcer.RBACMiddleware([]string{"access.grant"}), s.handleAccessGrant)
			access.POST("/revoke", rbacEnforcer.RBACMiddleware([]string{"access.grant"}), s.handleAccessRevoke)
			access.POST("/request", s.handleAccessRequest)
			access.POST("/requests/:id/approve", rbacEnforcer.RBACMiddleware([]string{"access.decide"}), s.handleAccessDecision(true))
			access.POST("/requests/:id/reject", rbacEnforcer.RBACMiddleware([]string{"access.decide"}), s.handleAccessDecision(false))
		}

		query := v1.Group("/query")
		query.Use(rbacEnforcer.RBACMiddleware([]string{"query.execute"}))
		{
			query.POST("", s.handleQuery)
			query.POST("/export", s.handleQueryExport)
		}

		schema := v1.Group("/schema")
		schema.Use(rbacEnforcer.RBACMiddleware([]string{"schema.read"}))
		{
			schema.GET("", s.handleSchemaGet)
			schema.POST("/refresh", s.handleSchemaRefresh)
		}

		health := v1.Group("/health")
		{
			health.GET("/tenant", s.handleHealthTenant)
			health.GET("/system", rbacEnforcer.AdminOnlyMiddleware(), s.handleHealthSystem)
			health.GET("/stream", rbacEnforcer.AdminOnlyMiddleware(), s.handleHealthStream)
		}
	}

	return r
}

// serveSwaggerUI serves a minimal Swagger UI pulled from a CDN, pointed at
// /api/openapi.yaml. This server registers no route for that document; the
// only swag annotations are the general API comments on cmd/server/main.go.
func serveSwaggerUI(c *gin.Context) {
	const html = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Tenant Gateway Core API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  <style>html, body, #swagger-ui { height: 100%; margin: 0; }</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.addEventListener('load', () => {
      window.ui = SwaggerUIBundle({
        url: '/api/openapi.yaml',
        dom_id: '#swagger-ui',
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis],
        layout: "BaseLayout"
      });
    });
  </script>
</body>
</html>`
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func writeErr(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}

// --- health ---

func (s *Server) handleHealthSystem(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"environment": s.cfg.Environment,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleHealthTenant(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	if tenantID == "" {
		writeErr(c, apperr.New(apperr.TenantNotFound, "api.handleHealthTenant", nil))
		return
	}
	state := s.breaker.State(tenantID)
	c.JSON(http.StatusOK, gin.H{
		"tenant_id":      tenantID,
		"breaker_state":  breakerStateName(state),
		"cache_attached": s.resultCache != nil,
	})
}

func breakerStateName(s breaker.State) string {
	switch s {
	case breaker.Open:
		return "open"
	case breaker.HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var healthStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleHealthStream pushes the requesting tenant's breaker state and pool
// occupancy to the caller every second over a WebSocket connection, until
// either side closes it.
func (s *Server) handleHealthStream(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	if tenantID == "" {
		writeErr(c, apperr.New(apperr.TenantNotFound, "api.handleHealthStream", nil))
		return
	}

	conn, err := healthStreamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("health stream upgrade failed", "tenant_id", tenantID, "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle, inUse := s.pool.Stats(tenantID)
			payload := gin.H{
				"tenant_id":     tenantID,
				"breaker_state": breakerStateName(s.breaker.State(tenantID)),
				"pool_idle":     idle,
				"pool_in_use":   inUse,
				"timestamp":     time.Now().Format(time.RFC3339),
			}
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		}
	}
}

// --- auth ---

type loginRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totpCode"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Unauthenticated, "api.handleLogin", err))
		return
	}

	ctx := c.Request.Context()
	users, err := s.rbacService.ListUsers(ctx, rbac.UserFilters{Username: &req.Username, Limit: 1})
	if err != nil || len(users) == 0 {
		writeErr(c, apperr.New(apperr.InvalidCredential, "api.handleLogin", err))
		return
	}
	user := users[0]

	localAuth, err := s.rbacRepo.GetLocalAuth(ctx, user.ID)
	if err != nil {
		writeErr(c, apperr.New(apperr.InvalidCredential, "api.handleLogin", err))
		return
	}
	ok, err := s.hasher.Verify(req.Password, localAuth.PasswordHash)
	if err != nil || !ok {
		writeErr(c, apperr.New(apperr.InvalidCredential, "api.handleLogin", err))
		return
	}

	if localAuth.TOTPEnabled {
		if !auth.VerifyTOTP(localAuth.TOTPSecret, req.TOTPCode) {
			writeErr(c, apperr.New(apperr.InvalidCredential, "api.handleLogin", fmt.Errorf("missing or invalid totp code")))
			return
		}
	}

	if _, err := s.rbacService.GetTenantUser(ctx, req.TenantID, user.ID); err != nil {
		writeErr(c, apperr.New(apperr.NoAccess, "api.handleLogin", err))
		return
	}
	roles, err := s.rbacService.GetUserRoles(ctx, req.TenantID, user.ID)
	if err != nil {
		writeErr(c, apperr.New(apperr.NoAccess, "api.handleLogin", err))
		return
	}

	fingerprint := models.HashAPIKey(c.ClientIP() + "|" + c.Request.UserAgent())
	token, sess, err := s.sessions.Open(ctx, req.TenantID, user.ID, roles, fingerprint)
	if err != nil {
		writeErr(c, apperr.New(apperr.Internal, "api.handleLogin", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"session_id": sess.ID,
		"expires_at": sess.ExpiresAt,
		"roles":      sess.Roles,
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	sessionID := c.GetString("session_id")
	userID := c.GetString("user_id")
	if sessionID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if err := s.sessions.Close(c.Request.Context(), userID, sessionID, "user_logout"); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type switchTenantRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
}

func (s *Server) handleSwitchTenant(c *gin.Context) {
	var req switchTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Unauthenticated, "api.handleSwitchTenant", err))
		return
	}
	sessionID := c.GetString("session_id")
	token, sess, err := s.sessions.SwitchTenant(c.Request.Context(), sessionID, req.TenantID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"session_id": sess.ID,
		"tenant_id":  sess.TenantID,
		"expires_at": sess.ExpiresAt,
	})
}

// --- users ---

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.rbacService.ListUsers(c.Request.Context(), rbac.UserFilters{Limit: 200})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var user models.User
	if err := c.ShouldBindJSON(&user); err != nil {
		writeErr(c, apperr.New(apperr.Internal, "api.handleCreateUser", err))
		return
	}
	actorUserID := c.GetString("user_id")
	if err := s.rbacService.CreateUser(c.Request.Context(), actorUserID, &user); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// --- access requests ---

type accessRoleRequest struct {
	TenantID string   `json:"tenantId" binding:"required"`
	UserID   string   `json:"userId" binding:"required"`
	Roles    []string `json:"roles" binding:"required"`
}

func (s *Server) handleAccessGrant(c *gin.Context) {
	var req accessRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Internal, "api.handleAccessGrant", err))
		return
	}
	actorUserID := c.GetString("user_id")
	if err := s.rbacService.AssignUserRoles(c.Request.Context(), req.TenantID, actorUserID, req.UserID, req.Roles); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "granted"})
}

func (s *Server) handleAccessRevoke(c *gin.Context) {
	var req accessRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Internal, "api.handleAccessRevoke", err))
		return
	}
	actorUserID := c.GetString("user_id")
	if err := s.rbacService.RemoveUserRoles(c.Request.Context(), req.TenantID, actorUserID, req.UserID, req.Roles); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

type accessRequestBody struct {
	TenantID      string `json:"tenantId" binding:"required"`
	RequestedRole string `json:"requestedRole" binding:"required"`
	Justification string `json:"justification"`
	ValidForHours int    `json:"validForHours"`
	BindPassword  string `json:"bindPassword"`
}

func (s *Server) handleAccessRequest(c *gin.Context) {
	var req accessRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Internal, "api.handleAccessRequest", err))
		return
	}
	requesterID := c.GetString("user_id")
	validFor := time.Duration(req.ValidForHours) * time.Hour
	if validFor <= 0 {
		validFor = 24 * time.Hour
	}

	ctx := c.Request.Context()
	ar, err := s.rbacService.SubmitAccessRequest(ctx, req.TenantID, requesterID, req.RequestedRole, req.Justification, validFor)
	if err != nil {
		writeErr(c, err)
		return
	}

	if s.directory != nil {
		preApproved, derr := s.directory.PreApprove(ctx, ar, req.BindPassword)
		if derr == nil && preApproved {
			if decided, decErr := s.rbacService.DecideAccessRequest(ctx, req.TenantID, "directory", ar.ID, true, "pre-approved via directory group membership"); decErr == nil {
				ar = decided
			}
		}
	}

	c.JSON(http.StatusCreated, ar)
}

func (s *Server) handleAccessDecision(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("id")
		var body struct {
			TenantID string `json:"tenantId" binding:"required"`
			Reason   string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			writeErr(c, apperr.New(apperr.Internal, "api.handleAccessDecision", err))
			return
		}
		deciderID := c.GetString("user_id")
		ar, err := s.rbacService.DecideAccessRequest(c.Request.Context(), body.TenantID, deciderID, requestID, approve, body.Reason)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ar)
	}
}

// --- query dispatch ---

type queryRequest struct {
	QueryText string `json:"query" binding:"required"`
	MaxRows   int    `json:"maxRows"`
}

func (s *Server) buildDispatchRequest(c *gin.Context, req queryRequest) (dispatch.Request, error) {
	tenantID := c.GetString("tenant_id")
	userID := c.GetString("user_id")
	roles, _ := c.Get("user_roles")
	roleList, _ := roles.([]string)

	level := gwrbac.LevelNone
	for _, roleName := range roleList {
		eff, err := gwrbac.Resolve(c.Request.Context(), s.rbacRepo, roleName)
		if err != nil {
			continue
		}
		level = gwrbac.Max(level, eff.Level)
	}

	maxRows := req.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}

	return dispatch.Request{
		TenantID:       tenantID,
		UserID:         userID,
		Roles:          roleList,
		EffectiveLevel: level,
		QueryText:      req.QueryText,
		MaxRows:        maxRows,
	}, nil
}

// dispatchTraced runs dreq through the dispatcher, wrapped in a query span
// when the global tracer has been initialized (monitoring.tracing_enabled).
func (s *Server) dispatchTraced(ctx context.Context, dreq dispatch.Request) (*dispatch.Result, error) {
	tracer := tracing.GetGlobalTracer()
	if tracer == nil {
		return s.dispatcher.Dispatch(ctx, dreq)
	}

	queryID := uuid.NewString()
	spanCtx, span := tracer.StartQuerySpan(ctx, dreq.TenantID, queryID, dreq.QueryText)
	defer span.End()

	start := time.Now()
	result, err := s.dispatcher.Dispatch(spanCtx, dreq)
	rowCount := int64(0)
	if result != nil {
		rowCount = int64(len(result.Rows))
	}
	tracer.RecordQueryMetrics(span, time.Since(start), rowCount, err == nil)
	if err != nil {
		tracer.RecordError(span, err)
	}
	return result, err
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Internal, "api.handleQuery", err))
		return
	}
	dreq, err := s.buildDispatchRequest(c, req)
	if err != nil {
		writeErr(c, err)
		return
	}
	result, err := s.dispatchTraced(c.Request.Context(), dreq)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleQueryExport(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Internal, "api.handleQueryExport", err))
		return
	}
	dreq, err := s.buildDispatchRequest(c, req)
	if err != nil {
		writeErr(c, err)
		return
	}
	result, err := s.dispatchTraced(c.Request.Context(), dreq)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=query-export.json")
	c.JSON(http.StatusOK, result.Rows)
}

// --- schema ---

func (s *Server) handleSchemaGet(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	ctx := c.Request.Context()
	fetch := func(ctx context.Context) (interface{}, error) {
		descriptor, err := s.registry.Resolve(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return descriptor, nil
	}
	b, err := s.resultCache.GetOrFetchSchema(ctx, tenantID, "deployments", fetch)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", b)
}

func (s *Server) handleSchemaRefresh(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	ctx := c.Request.Context()
	if _, err := s.registry.Refresh(ctx, tenantID); err != nil {
		writeErr(c, err)
		return
	}
	if err := s.resultCache.InvalidateSchema(ctx, tenantID, "deployments"); err != nil {
		s.log.Warn("failed to invalidate schema cache after refresh", "tenant_id", tenantID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}
