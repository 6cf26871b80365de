// Command bootstrap seeds a fresh RBAC store with the role templates, a
// default tenant and an initial admin user, then writes the result to a
// snapshot file cmd/server can load on startup via TENANTGW_SEED_FILE.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/platformbuilds/tenant-gateway-core/internal/auth"
	"github.com/platformbuilds/tenant-gateway-core/internal/config"
	"github.com/platformbuilds/tenant-gateway-core/internal/models"
	"github.com/platformbuilds/tenant-gateway-core/internal/repo/rbac"
	"github.com/platformbuilds/tenant-gateway-core/pkg/logger"
)

const (
	defaultTenantID = "PLATFORMBUILDS"
	defaultAdminID  = "aarvee"
)

func main() {
	seedOut := flag.String("out", "./bootstrap-seed.json", "path to write the RBAC seed snapshot to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.LogLevel)
	logg.Info("RBAC bootstrap starting", "environment", cfg.Environment)

	repo := rbac.NewMemoryRBACRepository()
	auditService := rbac.NewAuditService(repo)
	cacheRepo := rbac.NewNoOpCacheRepository()
	rbacService := rbac.NewRBACService(repo, cacheRepo, auditService)

	hasher, err := auth.NewPasswordHasher(cfg.Auth.PBKDF2Iterations)
	if err != nil {
		log.Fatalf("Failed to initialize password hasher: %v", err)
	}

	ctx := context.Background()
	if err := runBootstrap(ctx, repo, rbacService, hasher); err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}

	snap := repo.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal seed snapshot: %v", err)
	}
	if err := os.WriteFile(*seedOut, data, 0o600); err != nil {
		log.Fatalf("Failed to write seed snapshot: %v", err)
	}

	logg.Info("RBAC bootstrap completed", "seed_file", *seedOut)
	log.Println("Default credentials:")
	log.Printf("  Tenant:   %s\n", defaultTenantID)
	log.Printf("  Username: %s\n", defaultAdminID)
	log.Println("  Password: password123 (change immediately after first login)")
	log.Printf("Start the server with TENANTGW_SEED_FILE=%s to load this seed.\n", *seedOut)
}

// runBootstrap creates the role template lattice, a default tenant and an
// initial platform administrator able to log in with a local password.
func runBootstrap(ctx context.Context, repo *rbac.MemoryRBACRepository, svc *rbac.RBACService, hasher *auth.PasswordHasher) error {
	templates := []*models.RoleTemplate{
		{Name: "viewer", Level: "READ", Permissions: []string{"query.execute", "schema.read", "users.read"}, Description: "Read-only tenant access"},
		{Name: "editor", Level: "WRITE", ParentName: "viewer", Permissions: []string{"query.execute.write"}, Description: "Read/write tenant access"},
		{Name: "tenant_admin", Level: "ADMIN", ParentName: "editor", Permissions: []string{"users.write", "access.grant", "access.decide"}, Description: "Full tenant administration"},
	}
	for _, t := range templates {
		if err := repo.CreateRoleTemplate(ctx, t); err != nil {
			return err
		}
	}

	tenant := &models.Tenant{
		ID:          defaultTenantID,
		Name:        defaultTenantID,
		DisplayName: "Platform Builds",
		Status:      "active",
		IsSystem:    true,
		AdminEmail:  "admin@platformbuilds.io",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := svc.CreateTenant(ctx, "bootstrap", tenant); err != nil {
		return err
	}

	admin := &models.User{
		ID:         defaultAdminID,
		Username:   defaultAdminID,
		Email:      "admin@platformbuilds.io",
		FullName:   "Platform Administrator",
		GlobalRole: "global_admin",
		Status:     "active",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := svc.CreateUser(ctx, "bootstrap", admin); err != nil {
		return err
	}

	if _, err := svc.CreateTenantUser(ctx, &models.TenantUser{
		ID:         defaultTenantID + ":" + defaultAdminID,
		TenantID:   defaultTenantID,
		UserID:     defaultAdminID,
		TenantRole: "tenant_admin",
		Status:     "active",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}, "bootstrap"); err != nil {
		return err
	}

	hash, err := hasher.Hash("password123")
	if err != nil {
		return err
	}
	if err := repo.CreateLocalAuth(ctx, &models.LocalAuth{
		ID:           defaultAdminID + ":local",
		UserID:       admin.ID,
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: hash,
		TenantID:     defaultTenantID,
		IsActive:     true,
	}); err != nil {
		return err
	}

	return svc.AssignUserRoles(ctx, defaultTenantID, "bootstrap", admin.ID, []string{"tenant_admin"})
}
