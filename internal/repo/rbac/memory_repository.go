package rbac

import (
	"context"
	"fmt"
	"sync"

	"github.com/platformbuilds/tenant-gateway-core/internal/models"
)

// MemoryRBACRepository is an in-process RBACRepository backed by
// mutex-guarded maps. It is the default backend for local development and
// the backend every package test in this repository runs against; a
// deployment that needs durability swaps in a different RBACRepository
// implementation behind the same interface.
type MemoryRBACRepository struct {
	mu sync.RWMutex

	roles          map[string]map[string]*models.Role // tenantID -> roleName -> role
	permissions    map[string]map[string]*models.Permission
	groups         map[string]map[string]*models.Group
	groupMembers   map[string]map[string][]string // tenantID -> groupName -> userIDs
	userRoles      map[string]map[string][]string // tenantID -> userID -> roles
	userGroups     map[string]map[string][]string // tenantID -> userID -> groups
	roleBindings   []*models.RoleBinding
	audit          []*models.AuditLog
	tenants        map[string]*models.Tenant
	users          map[string]*models.User
	tenantUsers    map[string]map[string]*models.TenantUser // tenantID -> userID -> association
	localAuths   map[string]*models.LocalAuth           // userID -> auth
	authConfigs    map[string]*models.AuthConfig            // tenantID -> config
	apiKeys        map[string]map[string]*models.APIKey     // tenantID -> keyID -> key
	sessions       map[string]*models.Session               // sessionID -> session
	accessRequests map[string]*models.AccessRequest         // requestID -> request
	roleTemplates  map[string]*models.RoleTemplate          // name -> template
}

// NewMemoryRBACRepository creates an empty in-memory repository.
func NewMemoryRBACRepository() *MemoryRBACRepository {
	return &MemoryRBACRepository{
		roles:          make(map[string]map[string]*models.Role),
		permissions:    make(map[string]map[string]*models.Permission),
		groups:         make(map[string]map[string]*models.Group),
		groupMembers:   make(map[string]map[string][]string),
		userRoles:      make(map[string]map[string][]string),
		userGroups:     make(map[string]map[string][]string),
		tenants:        make(map[string]*models.Tenant),
		users:          make(map[string]*models.User),
		tenantUsers:    make(map[string]map[string]*models.TenantUser),
		localAuths:   make(map[string]*models.LocalAuth),
		authConfigs:    make(map[string]*models.AuthConfig),
		apiKeys:        make(map[string]map[string]*models.APIKey),
		sessions:       make(map[string]*models.Session),
		accessRequests: make(map[string]*models.AccessRequest),
		roleTemplates:  make(map[string]*models.RoleTemplate),
	}
}

// Role operations

func (r *MemoryRBACRepository) CreateRole(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.TenantID]; !ok {
		r.roles[role.TenantID] = make(map[string]*models.Role)
	}
	r.roles[role.TenantID][role.Name] = role
	return nil
}

func (r *MemoryRBACRepository) GetRole(ctx context.Context, tenantID, roleName string) (*models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[tenantID][roleName]
	if !ok {
		return nil, fmt.Errorf("role not found: %s", roleName)
	}
	return role, nil
}

func (r *MemoryRBACRepository) ListRoles(ctx context.Context, tenantID string) ([]*models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]*models.Role, 0, len(r.roles[tenantID]))
	for _, role := range r.roles[tenantID] {
		roles = append(roles, role)
	}
	return roles, nil
}

func (r *MemoryRBACRepository) UpdateRole(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.TenantID]; !ok {
		return fmt.Errorf("role not found: %s", role.Name)
	}
	r.roles[role.TenantID][role.Name] = role
	return nil
}

func (r *MemoryRBACRepository) DeleteRole(ctx context.Context, tenantID, roleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles[tenantID], roleName)
	return nil
}

// Permission operations

func (r *MemoryRBACRepository) CreatePermission(ctx context.Context, permission *models.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.permissions[permission.TenantID]; !ok {
		r.permissions[permission.TenantID] = make(map[string]*models.Permission)
	}
	r.permissions[permission.TenantID][permission.ID] = permission
	return nil
}

func (r *MemoryRBACRepository) GetPermission(ctx context.Context, tenantID, permissionID string) (*models.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perm, ok := r.permissions[tenantID][permissionID]
	if !ok {
		return nil, fmt.Errorf("permission not found: %s", permissionID)
	}
	return perm, nil
}

func (r *MemoryRBACRepository) ListPermissions(ctx context.Context, tenantID string) ([]*models.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perms := make([]*models.Permission, 0, len(r.permissions[tenantID]))
	for _, p := range r.permissions[tenantID] {
		perms = append(perms, p)
	}
	return perms, nil
}

func (r *MemoryRBACRepository) UpdatePermission(ctx context.Context, permission *models.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.permissions[permission.TenantID]; !ok {
		return fmt.Errorf("permission not found: %s", permission.ID)
	}
	r.permissions[permission.TenantID][permission.ID] = permission
	return nil
}

func (r *MemoryRBACRepository) DeletePermission(ctx context.Context, tenantID, permissionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.permissions[tenantID], permissionID)
	return nil
}

// User role operations

func (r *MemoryRBACRepository) AssignUserRoles(ctx context.Context, tenantID, userID string, roles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.userRoles[tenantID]; !ok {
		r.userRoles[tenantID] = make(map[string][]string)
	}
	existing := r.userRoles[tenantID][userID]
	for _, role := range roles {
		found := false
		for _, e := range existing {
			if e == role {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, role)
		}
	}
	r.userRoles[tenantID][userID] = existing
	return nil
}

func (r *MemoryRBACRepository) GetUserRoles(ctx context.Context, tenantID, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.userRoles[tenantID][userID]...), nil
}

func (r *MemoryRBACRepository) RemoveUserRoles(ctx context.Context, tenantID, userID string, roles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.userRoles[tenantID][userID]
	remaining := make([]string, 0, len(existing))
	for _, e := range existing {
		remove := false
		for _, role := range roles {
			if e == role {
				remove = true
				break
			}
		}
		if !remove {
			remaining = append(remaining, e)
		}
	}
	r.userRoles[tenantID][userID] = remaining
	return nil
}

// User group operations

func (r *MemoryRBACRepository) GetUserGroups(ctx context.Context, tenantID, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.userGroups[tenantID][userID]...), nil
}

// Role binding operations

func (r *MemoryRBACRepository) CreateRoleBinding(ctx context.Context, binding *models.RoleBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roleBindings = append(r.roleBindings, binding)
	return nil
}

// bindingMatchesTenant reports whether a binding belongs to tenantID.
// RoleBinding carries no TenantID field of its own: a tenant-scoped binding
// uses ResourceID to hold the tenant ID, while a resource-scoped binding
// records its owning tenant in Metadata["tenantId"].
func bindingMatchesTenant(b *models.RoleBinding, tenantID string) bool {
	if tenantID == "" {
		return true
	}
	if b.Scope == "tenant" && b.ResourceID == tenantID {
		return true
	}
	return b.Metadata["tenantId"] == tenantID
}

func (r *MemoryRBACRepository) GetRoleBindings(ctx context.Context, tenantID string, filters RoleBindingFilters) ([]*models.RoleBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.RoleBinding, 0)
	for _, b := range r.roleBindings {
		if !bindingMatchesTenant(b, tenantID) {
			continue
		}
		if filters.SubjectType != nil && b.SubjectType != *filters.SubjectType {
			continue
		}
		if filters.SubjectID != nil && b.SubjectID != *filters.SubjectID {
			continue
		}
		if filters.RoleID != nil && b.RoleID != *filters.RoleID {
			continue
		}
		result = append(result, b)
	}
	return result, nil
}

func (r *MemoryRBACRepository) UpdateRoleBinding(ctx context.Context, binding *models.RoleBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.roleBindings {
		if b.ID == binding.ID {
			r.roleBindings[i] = binding
			return nil
		}
	}
	return fmt.Errorf("role binding not found: %s", binding.ID)
}

func (r *MemoryRBACRepository) DeleteRoleBinding(ctx context.Context, tenantID, bindingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.roleBindings {
		if b.ID == bindingID {
			r.roleBindings = append(r.roleBindings[:i], r.roleBindings[i+1:]...)
			return nil
		}
	}
	return nil
}

// Group operations

func (r *MemoryRBACRepository) CreateGroup(ctx context.Context, group *models.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[group.TenantID]; !ok {
		r.groups[group.TenantID] = make(map[string]*models.Group)
	}
	r.groups[group.TenantID][group.Name] = group
	return nil
}

func (r *MemoryRBACRepository) GetGroup(ctx context.Context, tenantID, groupName string) (*models.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	group, ok := r.groups[tenantID][groupName]
	if !ok {
		return nil, fmt.Errorf("group not found: %s", groupName)
	}
	return group, nil
}

func (r *MemoryRBACRepository) ListGroups(ctx context.Context, tenantID string) ([]*models.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	groups := make([]*models.Group, 0, len(r.groups[tenantID]))
	for _, g := range r.groups[tenantID] {
		groups = append(groups, g)
	}
	return groups, nil
}

func (r *MemoryRBACRepository) UpdateGroup(ctx context.Context, group *models.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[group.TenantID]; !ok {
		return fmt.Errorf("group not found: %s", group.Name)
	}
	r.groups[group.TenantID][group.Name] = group
	return nil
}

func (r *MemoryRBACRepository) DeleteGroup(ctx context.Context, tenantID, groupName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups[tenantID], groupName)
	return nil
}

// Group membership operations

func (r *MemoryRBACRepository) AddUsersToGroup(ctx context.Context, tenantID, groupName string, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groupMembers[tenantID]; !ok {
		r.groupMembers[tenantID] = make(map[string][]string)
	}
	r.groupMembers[tenantID][groupName] = append(r.groupMembers[tenantID][groupName], userIDs...)
	return nil
}

func (r *MemoryRBACRepository) RemoveUsersFromGroup(ctx context.Context, tenantID, groupName string, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.groupMembers[tenantID][groupName]
	remaining := make([]string, 0, len(existing))
	for _, e := range existing {
		remove := false
		for _, id := range userIDs {
			if e == id {
				remove = true
				break
			}
		}
		if !remove {
			remaining = append(remaining, e)
		}
	}
	r.groupMembers[tenantID][groupName] = remaining
	return nil
}

func (r *MemoryRBACRepository) GetGroupMembers(ctx context.Context, tenantID, groupName string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.groupMembers[tenantID][groupName]...), nil
}

// Audit logging

func (r *MemoryRBACRepository) LogAuditEvent(ctx context.Context, event *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		event.ID = fmt.Sprintf("audit_%d", len(r.audit)+1)
	}
	r.audit = append(r.audit, event)
	return nil
}

func (r *MemoryRBACRepository) GetAuditEvents(ctx context.Context, tenantID string, filters AuditFilters) ([]*models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.AuditLog, 0)
	for _, e := range r.audit {
		if e.TenantID != tenantID && tenantID != "" {
			continue
		}
		if filters.Action != nil && e.Action != *filters.Action {
			continue
		}
		if filters.StartTime != nil && e.Timestamp.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && e.Timestamp.After(*filters.EndTime) {
			continue
		}
		result = append(result, e)
		if filters.Limit > 0 && len(result) >= filters.Limit {
			break
		}
	}
	return result, nil
}

// Tenant operations

func (r *MemoryRBACRepository) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *MemoryRBACRepository) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenant, ok := r.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant not found: %s", tenantID)
	}
	return tenant, nil
}

func (r *MemoryRBACRepository) ListTenants(ctx context.Context, filters TenantFilters) ([]*models.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.Tenant, 0)
	for _, t := range r.tenants {
		if filters.Name != nil && t.Name != *filters.Name {
			continue
		}
		if filters.Status != nil && t.Status != *filters.Status {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (r *MemoryRBACRepository) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[tenant.ID]; !ok {
		return fmt.Errorf("tenant not found: %s", tenant.ID)
	}
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *MemoryRBACRepository) DeleteTenant(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tenants, tenantID)
	return nil
}

// User operations

func (r *MemoryRBACRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRBACRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	return user, nil
}

func (r *MemoryRBACRepository) ListUsers(ctx context.Context, filters UserFilters) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.User, 0)
	for _, u := range r.users {
		if filters.Email != nil && u.Email != *filters.Email {
			continue
		}
		if filters.GlobalRole != nil && u.GlobalRole != *filters.GlobalRole {
			continue
		}
		if filters.Status != nil && u.Status != *filters.Status {
			continue
		}
		result = append(result, u)
	}
	return result, nil
}

func (r *MemoryRBACRepository) UpdateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRBACRepository) DeleteUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
	return nil
}

// Tenant-User association operations

func (r *MemoryRBACRepository) CreateTenantUser(ctx context.Context, tenantUser *models.TenantUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenantUsers[tenantUser.TenantID]; !ok {
		r.tenantUsers[tenantUser.TenantID] = make(map[string]*models.TenantUser)
	}
	r.tenantUsers[tenantUser.TenantID][tenantUser.UserID] = tenantUser
	return nil
}

func (r *MemoryRBACRepository) GetTenantUser(ctx context.Context, tenantID, userID string) (*models.TenantUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tu, ok := r.tenantUsers[tenantID][userID]
	if !ok {
		return nil, fmt.Errorf("tenant-user association not found")
	}
	return tu, nil
}

func (r *MemoryRBACRepository) ListTenantUsers(ctx context.Context, tenantID string, filters TenantUserFilters) ([]*models.TenantUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.TenantUser, 0)
	for _, tu := range r.tenantUsers[tenantID] {
		if filters.Status != nil && tu.Status != *filters.Status {
			continue
		}
		if filters.TenantRole != nil && tu.TenantRole != *filters.TenantRole {
			continue
		}
		result = append(result, tu)
	}
	return result, nil
}

func (r *MemoryRBACRepository) UpdateTenantUser(ctx context.Context, tenantUser *models.TenantUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenantUsers[tenantUser.TenantID]; !ok {
		return fmt.Errorf("tenant-user association not found")
	}
	r.tenantUsers[tenantUser.TenantID][tenantUser.UserID] = tenantUser
	return nil
}

func (r *MemoryRBACRepository) DeleteTenantUser(ctx context.Context, tenantID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tenantUsers[tenantID], userID)
	return nil
}

// LocalAuth operations (local password/TOTP credentials)

func (r *MemoryRBACRepository) CreateLocalAuth(ctx context.Context, auth *models.LocalAuth) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localAuths[auth.UserID] = auth
	return nil
}

func (r *MemoryRBACRepository) GetLocalAuth(ctx context.Context, userID string) (*models.LocalAuth, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	auth, ok := r.localAuths[userID]
	if !ok {
		return nil, fmt.Errorf("credentials not found for user: %s", userID)
	}
	return auth, nil
}

func (r *MemoryRBACRepository) UpdateLocalAuth(ctx context.Context, auth *models.LocalAuth) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.localAuths[auth.UserID]; !ok {
		return fmt.Errorf("credentials not found for user: %s", auth.UserID)
	}
	r.localAuths[auth.UserID] = auth
	return nil
}

func (r *MemoryRBACRepository) DeleteLocalAuth(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.localAuths, userID)
	return nil
}

// AuthConfig operations

func (r *MemoryRBACRepository) CreateAuthConfig(ctx context.Context, config *models.AuthConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authConfigs[config.TenantID] = config
	return nil
}

func (r *MemoryRBACRepository) GetAuthConfig(ctx context.Context, tenantID string) (*models.AuthConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.authConfigs[tenantID]
	if !ok {
		return nil, fmt.Errorf("auth config not found for tenant: %s", tenantID)
	}
	return config, nil
}

func (r *MemoryRBACRepository) UpdateAuthConfig(ctx context.Context, config *models.AuthConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authConfigs[config.TenantID] = config
	return nil
}

func (r *MemoryRBACRepository) DeleteAuthConfig(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.authConfigs, tenantID)
	return nil
}

// API Key operations

func (r *MemoryRBACRepository) CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apiKeys[apiKey.TenantID]; !ok {
		r.apiKeys[apiKey.TenantID] = make(map[string]*models.APIKey)
	}
	r.apiKeys[apiKey.TenantID][apiKey.ID] = apiKey
	return nil
}

func (r *MemoryRBACRepository) GetAPIKeyByHash(ctx context.Context, tenantID, keyHash string) (*models.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.apiKeys[tenantID] {
		if k.KeyHash == keyHash {
			return k, nil
		}
	}
	return nil, fmt.Errorf("api key not found")
}

func (r *MemoryRBACRepository) GetAPIKeyByID(ctx context.Context, tenantID, keyID string) (*models.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.apiKeys[tenantID][keyID]
	if !ok {
		return nil, fmt.Errorf("api key not found: %s", keyID)
	}
	return key, nil
}

func (r *MemoryRBACRepository) ListAPIKeys(ctx context.Context, tenantID, userID string) ([]*models.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.APIKey, 0)
	for _, k := range r.apiKeys[tenantID] {
		if userID != "" && k.UserID != userID {
			continue
		}
		result = append(result, k)
	}
	return result, nil
}

func (r *MemoryRBACRepository) UpdateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apiKeys[apiKey.TenantID]; !ok {
		return fmt.Errorf("api key not found: %s", apiKey.ID)
	}
	r.apiKeys[apiKey.TenantID][apiKey.ID] = apiKey
	return nil
}

func (r *MemoryRBACRepository) RevokeAPIKey(ctx context.Context, tenantID, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.apiKeys[tenantID][keyID]
	if !ok {
		return fmt.Errorf("api key not found: %s", keyID)
	}
	key.IsActive = false
	return nil
}

func (r *MemoryRBACRepository) ValidateAPIKey(ctx context.Context, tenantID, keyHash string) (*models.APIKey, error) {
	key, err := r.GetAPIKeyByHash(ctx, tenantID, keyHash)
	if err != nil {
		return nil, err
	}
	if !key.IsActive {
		return nil, fmt.Errorf("api key is revoked")
	}
	return key, nil
}

// Session operations

func (r *MemoryRBACRepository) CreateSession(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *MemoryRBACRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return session, nil
}

func (r *MemoryRBACRepository) ListSessionsByUser(ctx context.Context, tenantID, userID string) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.Session, 0)
	for _, s := range r.sessions {
		if s.UserID == userID && (tenantID == "" || s.TenantID == tenantID) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *MemoryRBACRepository) UpdateSession(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return fmt.Errorf("session not found: %s", session.ID)
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *MemoryRBACRepository) DeleteSession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// Access request operations

func (r *MemoryRBACRepository) CreateAccessRequest(ctx context.Context, request *models.AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessRequests[request.ID] = request
	return nil
}

func (r *MemoryRBACRepository) GetAccessRequest(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	request, ok := r.accessRequests[requestID]
	if !ok {
		return nil, fmt.Errorf("access request not found: %s", requestID)
	}
	return request, nil
}

func (r *MemoryRBACRepository) ListAccessRequests(ctx context.Context, tenantID string, filters AccessRequestFilters) ([]*models.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.AccessRequest, 0)
	for _, req := range r.accessRequests {
		if tenantID != "" && req.TenantID != tenantID {
			continue
		}
		if filters.RequesterID != nil && req.RequesterID != *filters.RequesterID {
			continue
		}
		if filters.Status != nil && req.Status != *filters.Status {
			continue
		}
		result = append(result, req)
	}
	return result, nil
}

func (r *MemoryRBACRepository) UpdateAccessRequest(ctx context.Context, request *models.AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accessRequests[request.ID]; !ok {
		return fmt.Errorf("access request not found: %s", request.ID)
	}
	r.accessRequests[request.ID] = request
	return nil
}

// Role template operations

func (r *MemoryRBACRepository) CreateRoleTemplate(ctx context.Context, template *models.RoleTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roleTemplates[template.Name] = template
	return nil
}

func (r *MemoryRBACRepository) GetRoleTemplate(ctx context.Context, name string) (*models.RoleTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	template, ok := r.roleTemplates[name]
	if !ok {
		return nil, fmt.Errorf("role template not found: %s", name)
	}
	return template, nil
}

func (r *MemoryRBACRepository) ListRoleTemplates(ctx context.Context) ([]*models.RoleTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.RoleTemplate, 0, len(r.roleTemplates))
	for _, t := range r.roleTemplates {
		result = append(result, t)
	}
	return result, nil
}

// Snapshot and Restore persist and restore the subset of repository state
// cmd/bootstrap seeds: tenants, users, their tenant memberships, local
// auth records, assigned roles and role templates. The in-memory
// repository has no durable backing store, so a server process restores
// its state from a snapshot file written by a prior bootstrap run rather
// than reading from a database on every restart.
type Snapshot struct {
	Tenants       []*models.Tenant                 `json:"tenants"`
	Users         []*models.User                   `json:"users"`
	TenantUsers   []*models.TenantUser              `json:"tenantUsers"`
	LocalAuths    []*models.LocalAuth               `json:"localAuths"`
	RoleTemplates []*models.RoleTemplate            `json:"roleTemplates"`
	UserRoles     map[string]map[string][]string    `json:"userRoles"` // tenantID -> userID -> roles
}

// Snapshot captures the repository's seedable state.
func (r *MemoryRBACRepository) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &Snapshot{UserRoles: make(map[string]map[string][]string)}
	for _, t := range r.tenants {
		s.Tenants = append(s.Tenants, t)
	}
	for _, u := range r.users {
		s.Users = append(s.Users, u)
	}
	for _, byUser := range r.tenantUsers {
		for _, tu := range byUser {
			s.TenantUsers = append(s.TenantUsers, tu)
		}
	}
	for _, la := range r.localAuths {
		s.LocalAuths = append(s.LocalAuths, la)
	}
	for _, rt := range r.roleTemplates {
		s.RoleTemplates = append(s.RoleTemplates, rt)
	}
	for tenantID, byUser := range r.userRoles {
		s.UserRoles[tenantID] = make(map[string][]string, len(byUser))
		for userID, roles := range byUser {
			s.UserRoles[tenantID][userID] = append([]string{}, roles...)
		}
	}
	return s
}

// Restore loads a Snapshot into the repository, overwriting any existing
// state for the entities it names.
func (r *MemoryRBACRepository) Restore(s *Snapshot) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range s.Tenants {
		r.tenants[t.ID] = t
	}
	for _, u := range s.Users {
		r.users[u.ID] = u
	}
	for _, tu := range s.TenantUsers {
		if _, ok := r.tenantUsers[tu.TenantID]; !ok {
			r.tenantUsers[tu.TenantID] = make(map[string]*models.TenantUser)
		}
		r.tenantUsers[tu.TenantID][tu.UserID] = tu
	}
	for _, la := range s.LocalAuths {
		r.localAuths[la.UserID] = la
	}
	for _, rt := range s.RoleTemplates {
		r.roleTemplates[rt.Name] = rt
	}
	for tenantID, byUser := range s.UserRoles {
		if _, ok := r.userRoles[tenantID]; !ok {
			r.userRoles[tenantID] = make(map[string][]string)
		}
		for userID, roles := range byUser {
			r.userRoles[tenantID][userID] = append([]string{}, roles...)
		}
	}
}
