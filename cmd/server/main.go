package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/platformbuilds/tenant-gateway-core/internal/api"
	"github.com/platformbuilds/tenant-gateway-core/internal/auth"
	"github.com/platformbuilds/tenant-gateway-core/internal/breaker"
	gwcache "github.com/platformbuilds/tenant-gateway-core/internal/cache"
	"github.com/platformbuilds/tenant-gateway-core/internal/config"
	"github.com/platformbuilds/tenant-gateway-core/internal/directory"
	"github.com/platformbuilds/tenant-gateway-core/internal/dispatch"
	"github.com/platformbuilds/tenant-gateway-core/internal/pool"
	"github.com/platformbuilds/tenant-gateway-core/internal/registry"
	"github.com/platformbuilds/tenant-gateway-core/internal/repo/rbac"
	"github.com/platformbuilds/tenant-gateway-core/internal/session"
	"github.com/platformbuilds/tenant-gateway-core/internal/tracing"
	"github.com/platformbuilds/tenant-gateway-core/pkg/cache"
	"github.com/platformbuilds/tenant-gateway-core/pkg/logger"
)

// @title Tenant Gateway Core API
// @version 1.0.0
// @description Tenant Gateway Core routes, authorizes and dispatches queries for multiple tenants, each backed by its own pool of database clones, behind a shared RBAC and circuit-breaker layer.
// @termsOfService http://swagger.io/terms/

// @contact.name Platform Builds Team
// @contact.url https://github.com/platformbuilds/tenant-gateway-core
// @contact.email support@platformbuilds.com

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @externalDocs.description OpenAPI
// @externalDocs.url https://swagger.io/resources/open-api/

// These are set via -ldflags at build time
var (
	version    = "dev"
	commitHash = "unknown"
	buildTime  = ""
)

func main() {
	// Check for healthcheck command
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Configuration load failed: %v", err)
		}

		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/api/v1/health/system", cfg.Port))
		if err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			log.Fatalf("Health check failed: status %d", resp.StatusCode)
		}

		var healthResp struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
			log.Fatalf("Failed to parse health response: %v", err)
		}
		if healthResp.Status != "healthy" {
			log.Fatalf("Health check failed: invalid response %+v", healthResp)
		}

		log.Println("healthy")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting tenant-gateway-core", "version", version, "commit", commitHash, "built", buildTime, "environment", cfg.Environment)

	// Initialize Valkey cache: single-node when one address is provided; cluster otherwise
	var valkeyCache cache.ValkeyCluster
	if len(cfg.Cache.Nodes) == 1 {
		// Try immediate single-node connect; on failure, start with noop and auto-swap in background
		valkeyCache, err = cache.NewValkeySingle(cfg.Cache.Nodes[0], cfg.Cache.DB, cfg.Cache.Password, time.Duration(cfg.Cache.TTL)*time.Second)
		if err != nil {
			logger.Warn("Valkey single-node unavailable; starting with in-memory cache (auto-reconnect enabled)", "error", err)
			fallback := cache.NewNoopValkeyCache(logger)
			valkeyCache = cache.NewAutoSwapForSingle(cfg.Cache.Nodes[0], cfg.Cache.DB, cfg.Cache.Password, time.Duration(cfg.Cache.TTL)*time.Second, logger, fallback)
		} else {
			logger.Info("Valkey single-node cache initialized", "addr", cfg.Cache.Nodes[0])
		}
	} else {
		// Prefer cluster when multiple nodes provided; if the target is a standalone instance
		// (common in development), detect the specific error and fall back to single-node.
		valkeyCache, err = cache.NewValkeyCluster(cfg.Cache.Nodes, time.Duration(cfg.Cache.TTL)*time.Second)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "cluster support disabled") {
				logger.Warn("Valkey reports cluster support disabled; falling back to single-node mode", "nodes", cfg.Cache.Nodes)
				// Try single-node on the first address; if that fails, use noop with auto-swap-to-single
				if len(cfg.Cache.Nodes) > 0 {
					if single, sErr := cache.NewValkeySingle(cfg.Cache.Nodes[0], cfg.Cache.DB, cfg.Cache.Password, time.Duration(cfg.Cache.TTL)*time.Second); sErr == nil {
						valkeyCache = single
						logger.Info("Valkey single-node cache initialized via fallback", "addr", cfg.Cache.Nodes[0])
					} else {
						logger.Warn("Valkey single-node fallback unavailable; starting with in-memory cache (auto-reconnect to single)", "error", sErr)
						fallback := cache.NewNoopValkeyCache(logger)
						valkeyCache = cache.NewAutoSwapForSingle(cfg.Cache.Nodes[0], cfg.Cache.DB, cfg.Cache.Password, time.Duration(cfg.Cache.TTL)*time.Second, logger, fallback)
					}
				}
			} else {
				logger.Warn("Valkey cluster unavailable; starting with in-memory cache (auto-reconnect to cluster)", "error", err)
				fallback := cache.NewNoopValkeyCache(logger)
				valkeyCache = cache.NewAutoSwapForCluster(cfg.Cache.Nodes, time.Duration(cfg.Cache.TTL)*time.Second, logger, fallback)
			}
		} else {
			logger.Info("Valkey cluster cache initialized", "nodes", len(cfg.Cache.Nodes))
		}
	}

	// RBAC metadata store: in-memory, seeded by cmd/bootstrap. A Valkey- or
	// clone-backed RBACRepository can be substituted here without touching
	// any other component, since every downstream collaborator depends only
	// on the rbac.RBACRepository interface.
	rbacRepo := rbac.NewMemoryRBACRepository()
	if seedPath := os.Getenv("TENANTGW_SEED_FILE"); seedPath != "" {
		if err := loadSeed(rbacRepo, seedPath); err != nil {
			logger.Warn("Failed to load RBAC seed file; starting with an empty store", "path", seedPath, "error", err)
		} else {
			logger.Info("RBAC store restored from seed file", "path", seedPath)
		}
	}
	cacheRepo := rbac.NewNoOpCacheRepository()
	auditService := rbac.NewAuditService(rbacRepo)
	rbacService := rbac.NewRBACService(rbacRepo, cacheRepo, auditService)

	tokenCodec, err := auth.NewTokenCodec(cfg.Auth.JWT.Secret)
	if err != nil {
		logger.Fatal("Failed to initialize token codec", "error", err)
	}
	hasher, err := auth.NewPasswordHasher(cfg.Auth.PBKDF2Iterations)
	if err != nil {
		logger.Fatal("Failed to initialize password hasher", "error", err)
	}
	sessionTTL := cfg.Auth.JWT.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	sessions := session.NewManager(rbacService, tokenCodec, sessionTTL)

	tenantRegistry := registry.New(rbacRepo)
	poolManager := pool.NewManager(tenantRegistry, cfg.Pool, dialHTTP)
	breakerManager := breaker.NewManager(cfg.Breaker)
	resultCache := gwcache.New(valkeyCache, cfg.ResultCache.ResultTTL, cfg.ResultCache.SchemaTTL)

	auditSink := func(ctx context.Context, result *dispatch.Result, derr error) {
		if derr != nil {
			logger.Warn("query dispatch failed", "error", derr)
			return
		}
		logger.Info("query dispatched", "tenant_id", result.TenantID, "user_id", result.UserID, "cached", result.Cached, "rows", len(result.Rows), "duration", result.ExecutionTime)
	}
	dispatcher := dispatch.New(passthroughTranslator{}, poolManager, breakerManager, resultCache, executeHTTP, nil, auditSink)

	dir := directory.New(cfg.Directory, logger)

	if cfg.Monitoring.TracingEnabled {
		tp, terr := tracing.NewTracerProvider("tenant-gateway-core", version, cfg.Monitoring.OTLPEndpoint)
		if terr != nil {
			logger.Warn("Failed to initialize OpenTelemetry tracer provider; continuing without tracing", "error", terr)
		} else {
			tracing.InitGlobalTracer("tenant-gateway-core")
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(shutdownCtx)
			}()
			logger.Info("OpenTelemetry tracing enabled", "otlp_endpoint", cfg.Monitoring.OTLPEndpoint)
		}
	}

	apiServer := api.NewServer(cfg, logger, valkeyCache, rbacRepo, rbacService, sessions, hasher, tenantRegistry, poolManager, breakerManager, resultCache, dispatcher, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// If cache supports Stop (auto-swap connector), tie it to lifecycle
	if stopper, ok := interface{}(valkeyCache).(interface{ Stop() }); ok {
		go func() { <-ctx.Done(); stopper.Stop() }()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: apiServer.Engine(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
		}
		if err := poolManager.Close(); err != nil {
			logger.Warn("Pool manager close failed", "error", err)
		}
	}()

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server failed to start", "error", err)
	}

	logger.Info("tenant-gateway-core shutdown complete")
}

// loadSeed restores a Snapshot written by cmd/bootstrap into repo.
func loadSeed(repo *rbac.MemoryRBACRepository, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snap rbac.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	repo.Restore(&snap)
	return nil
}
