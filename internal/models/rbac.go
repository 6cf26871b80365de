package models

import (
	"time"
)

// RBAC Models for Multi-Tenant Role-Based Access Control

// Tenant represents a tenant in the multi-tenant architecture
type Tenant struct {
	ID string `json:"id"`
	Name string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Deployments []TenantDeployment `json:"deployments"`
	Status string `json:"status"` // active, suspended, pending_deletion
	AdminEmail string `json:"adminEmail"`
	AdminName string `json:"adminName"`
	Quotas TenantQuotas `json:"quotas"`
	Features []string `json:"features"`
	Metadata map[string]string `json:"metadata"`
	Tags []string `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// TenantDeployment describes one backend connection target (a clone) that a
// tenant's connection pool may dial. A tenant with more than one deployment
// is load-balanced by Priority; deployments with equal priority are chosen
// round-robin by the pool manager.
type TenantDeployment struct {
	Environment string `json:"environment"` // primary, replica, analytics
	DSN string `json:"dsn"` // connection string, never logged verbatim
	MaxConns int `json:"maxConns"`
	Priority int `json:"priority"`
	Tags []string `json:"tags"`
}

// TenantQuotas represents tenant resource limits
type TenantQuotas struct {
	MaxUsers int `json:"maxUsers"`
	MaxDashboards int `json:"maxDashboards"`
	MaxKPIs int `json:"maxKpis"`
	StorageLimitGB int `json:"storageLimitGb"`
	APIRateLimit int `json:"apiRateLimit"`
}

// TenantUser represents the association between a user and a tenant
type TenantUser struct {
	ID string `json:"id"`
	TenantID string `json:"tenantId"`
	UserID string `json:"userId"`
	TenantRole string `json:"tenantRole"` // tenant_admin, tenant_editor, tenant_guest
	Status string `json:"status"` // active, invited, suspended, removed
	InvitedBy string `json:"invitedBy"`
	InvitedAt *time.Time `json:"invitedAt"`
	AcceptedAt *time.Time `json:"acceptedAt"`
	AdditionalPermissions []string `json:"additionalPermissions"`
	Metadata map[string]string `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// User represents a global user entity
type User struct {
	ID string `json:"id"`
	Email string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	GlobalRole string `json:"globalRole"` // global_admin, global_tenant_admin, tenant_user
	PasswordHash string `json:"-"` // Never serialize in JSON
	MFAEnabled bool `json:"mfaEnabled"`
	MFASecret string `json:"-"` // Never serialize in JSON
	Status string `json:"status"` // active, suspended, pending_verification, deactivated
	EmailVerified bool `json:"emailVerified"`
	Avatar string `json:"avatar"`
	Phone string `json:"phone"`
	Timezone string `json:"timezone"`
	Language string `json:"language"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	LoginCount int `json:"loginCount"`
	FailedLoginCount int `json:"failedLoginCount"`
	LockedUntil *time.Time `json:"lockedUntil"`
	Metadata map[string]string `json:"metadata"`
	Tags []string `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// LocalAuth represents local authentication credentials
type LocalAuth struct {
	ID string `json:"id"`
	UserID string `json:"userId"`
	Username string `json:"username"`
	Email string `json:"email"`
	PasswordHash string `json:"-"` // Never serialize in JSON
	Salt string `json:"-"` // Never serialize in JSON
	TOTPSecret string `json:"-"` // Never serialize in JSON
	TOTPEnabled bool `json:"totpEnabled"`
	BackupCodes []string `json:"-"` // Never serialize in JSON
	TenantID string `json:"tenantId"`
	Roles []string `json:"roles"` // Role IDs
	Groups []string `json:"groups"` // Group IDs
	IsActive bool `json:"isActive"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt"`
	PasswordExpiresAt *time.Time `json:"passwordExpiresAt"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	FailedLoginCount int `json:"failedLoginCount"`
	LockedUntil *time.Time `json:"lockedUntil"`
	RequirePasswordChange bool `json:"requirePasswordChange"`
	Metadata map[string]string `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// AuthConfig represents authentication configuration for a tenant
type AuthConfig struct {
	ID string `json:"id"`
	TenantID string `json:"tenantId"`
	DefaultBackend string `json:"defaultBackend"` // local, saml, oidc, ldap
	EnabledBackends []string `json:"enabledBackends"`
	BackendConfigs AuthBackendConfigs `json:"backendConfigs"`
	PasswordPolicy PasswordPolicy `json:"passwordPolicy"`
	Require2FA bool `json:"require2fa"`
	TOTPIssuer string `json:"totpIssuer"`
	SessionTimeoutMinutes int `json:"sessionTimeoutMinutes"`
	MaxConcurrentSessions int `json:"maxConcurrentSessions"`
	AllowRememberMe bool `json:"allowRememberMe"`
	RememberMeDays int `json:"rememberMeDays"`
	Metadata map[string]string `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// AuthBackendConfigs contains configuration for different auth backends
type AuthBackendConfigs struct {
	SAML SAMLConfig `json:"saml"`
	OIDC OIDCConfig `json:"oidc"`
	LDAP LDAPConfig `json:"ldap"`
}

// SAMLConfig represents SAML authentication configuration
type SAMLConfig struct {
	EntityID string `json:"entityId"`
	ACSURL string `json:"acsUrl"`
	MetadataURL string `json:"metadataUrl"`
	SigningCert string `json:"signingCert"`
	EncryptionCert string `json:"encryptionCert"`
	NameIDFormat string `json:"nameIdFormat"`
	AttributeMapping map[string]string `json:"attributeMapping"`
}

// OIDCConfig represents OIDC authentication configuration
type OIDCConfig struct {
	ClientID string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	IssuerURL string `json:"issuerUrl"`
	RedirectURL string `json:"redirectUrl"`
	Scopes []string `json:"scopes"`
	AttributeMapping map[string]string `json:"attributeMapping"`
}

// LDAPConfig represents LDAP authentication configuration
type LDAPConfig struct {
	Host string `json:"host"`
	Port int `json:"port"`
	UseTLS bool `json:"useTls"`
	BindDN string `json:"bindDn"`
	BindPassword string `json:"bindPassword"`
	BaseDN string `json:"baseDn"`
	UserFilter string `json:"userFilter"`
	GroupFilter string `json:"groupFilter"`
	AttributeMapping map[string]string `json:"attributeMapping"`
}

// PasswordPolicy represents password policy configuration
type PasswordPolicy struct {
	MinLength int `json:"minLength"`
	RequireUppercase bool `json:"requireUppercase"`
	RequireLowercase bool `json:"requireLowercase"`
	RequireNumbers bool `json:"requireNumbers"`
	RequireSymbols bool `json:"requireSymbols"`
	MaxAgeDays int `json:"maxAgeDays"`
	PreventReuseCount int `json:"preventReuseCount"`
	LockoutThreshold int `json:"lockoutThreshold"`
	LockoutDurationMinutes int `json:"lockoutDurationMinutes"`
}

// Role represents a tenant-scoped role
type Role struct {
	ID string `json:"id"`
	Name string `json:"name"`
	Description string `json:"description"`
	TenantID string `json:"tenantId"`
	Permissions []string `json:"permissions"` // Permission IDs
	IsSystem bool `json:"isSystem"`
	ParentRoles []string `json:"parentRoles"` // Role IDs
	Metadata map[string]string `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// Permission represents granular permissions
type Permission struct {
	ID string `json:"id"`
	Resource string `json:"resource"` // dashboard, kpi_definition, layout, user_prefs, admin, rbac
	Action string `json:"action"` // create, read, update, delete, list, admin
	Scope string `json:"scope"` // global, tenant, resource
	Description string `json:"description"`
	ResourcePattern string `json:"resourcePattern"`
	Conditions PermissionConditions `json:"conditions"`
	IsSystem bool `json:"isSystem"`
	Metadata map[string]string `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// PermissionConditions represents ABAC conditions
type PermissionConditions struct {
	TimeBased TimeBasedCondition `json:"timeBased"`
	IPBased []string `json:"ipBased"`
	AttributeBased AttributeBasedCondition `json:"attributeBased"`
}

// TimeBasedCondition represents time-based access conditions
type TimeBasedCondition struct {
	AllowedHours []string `json:"allowedHours"` // "09:00-17:00"
	AllowedDays []string `json:"allowedDays"` // "monday", "tuesday", etc.
}

// AttributeBasedCondition represents user attribute requirements
type AttributeBasedCondition struct {
	Department []string `json:"department"`
	ClearanceLevel string `json:"clearanceLevel"`
}

// Group represents user groups for role assignment
type Group struct {
	ID string `json:"id"`
	Name string `json:"name"`
	Description string `json:"description"`
	TenantID string `json:"tenantId"`
	Members []string `json:"members"` // User IDs
	Roles []string `json:"roles"` // Role IDs
	ParentGroups []string `json:"parentGroups"` // Group IDs
	IsSystem bool `json:"isSystem"`
	MaxMembers int `json:"maxMembers"`
	MemberSyncEnabled bool `json:"memberSyncEnabled"`
	ExternalID string `json:"externalId"`
	Metadata map[string]string `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// RoleBinding represents role assignments to users/groups
type RoleBinding struct {
	ID string `json:"id"`
	SubjectType string `json:"subjectType"` // user, group
	SubjectID string `json:"subjectId"`
	RoleID string `json:"roleId"`
	Scope string `json:"scope"` // tenant, resource
	ResourceID string `json:"resourceId"`
	ExpiresAt *time.Time `json:"expiresAt"`
	NotBefore *time.Time `json:"notBefore"`
	Precedence string `json:"precedence"` // allow, deny
	Conditions RoleBindingConditions `json:"conditions"`
	Justification string `json:"justification"`
	ApprovedBy string `json:"approvedBy"`
	ApprovedAt *time.Time `json:"approvedAt"`
	Metadata map[string]string `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// RoleBindingConditions represents binding conditions
type RoleBindingConditions struct {
	IPRanges []string `json:"ipRanges"`
	TimeWindows []TimeWindowCondition `json:"timeWindows"`
	DeviceTypes []string `json:"deviceTypes"`
	RiskLevels []string `json:"riskLevels"`
}

// TimeWindowCondition represents time window restrictions
type TimeWindowCondition struct {
	DaysOfWeek []string `json:"daysOfWeek"`
	StartTime string `json:"startTime"` // HH:MM
	EndTime string `json:"endTime"` // HH:MM
}

// GroupBinding represents user membership in groups
type GroupBinding struct {
	ID string `json:"id"`
	UserID string `json:"userId"`
	GroupID string `json:"groupId"`
	TenantID string `json:"tenantId"`
	ExpiresAt *time.Time `json:"expiresAt"`
	NotBefore *time.Time `json:"notBefore"`
	AddedBy string `json:"addedBy"`
	AddedAt *time.Time `json:"addedAt"`
	Justification string `json:"justification"`
	SyncSource string `json:"syncSource"` // manual, ldap_sync, scim
	Metadata map[string]string `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}

// AuditLog represents audit log entries
type AuditLog struct {
	ID string `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	TenantID string `json:"tenantId"`
	SubjectID string `json:"subjectId"`
	SubjectType string `json:"subjectType"` // user, service_account, system
	Action string `json:"action"`
	Resource string `json:"resource"`
	ResourceID string `json:"resourceId"`
	Result string `json:"result"` // success, failure, denied, error
	Details AuditLogDetails `json:"details"`
	Severity string `json:"severity"` // low, medium, high, critical
	Source string `json:"source"` // api, auth, rbac, system
	CorrelationID string `json:"correlationId"`
	RetentionClass string `json:"retentionClass"` // standard, extended, permanent
}

// AuditLogDetails contains structured audit details
type AuditLogDetails struct {
	UserAgent string `json:"userAgent"`
	IPAddress string `json:"ipAddress"`
	SessionID string `json:"sessionId"`
	RequestID string `json:"requestId"`
	Method string `json:"method"`
	Endpoint string `json:"endpoint"`
	OldValues map[string]interface{}`json:"oldValues"`
	NewValues map[string]interface{}`json:"newValues"`
	ErrorMessage string `json:"errorMessage"`
	Metadata map[string]interface{}`json:"metadata"`
}

// Session represents an authenticated, tenant-scoped session bound to a
// signed token. Status transitions are one-way: Active is the only
// non-terminal state, all others (Expired, Revoked, Logged_out) are final.
type Session struct {
	ID string `json:"id"`
	UserID string `json:"userId"`
	TenantID string `json:"tenantId"`
	Roles []string `json:"roles"`
	Fingerprint string `json:"fingerprint"` // hash of client attributes bound at login
	Status string `json:"status"` // active, expired, revoked, logged_out
	IssuedAt time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	RevokedAt *time.Time `json:"revokedAt"`
	RevokedBy string `json:"revokedBy"`
	RevokedReason string `json:"revokedReason"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
	AuthType string `json:"authType"` // password, api_key, ldap
	Settings map[string]interface{}`json:"settings,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AccessRequest represents a user's request for a role grant (including
// cross-tenant access) awaiting approval by a tenant admin. Once Decided,
// the request is terminal: a second decision on the same request is
// rejected by the service layer (invariant: no re-deciding a closed request).
type AccessRequest struct {
	ID string `json:"id"`
	TenantID string `json:"tenantId"`
	RequesterID string `json:"requesterId"`
	RequestedRole string `json:"requestedRole"`
	Justification string `json:"justification"`
	Status string `json:"status"` // pending, approved, rejected, expired
	DecidedBy string `json:"decidedBy"`
	DecidedAt *time.Time `json:"decidedAt"`
	DecisionReason string `json:"decisionReason"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoleTemplate is a versioned, single-inheritance role blueprint seeded at
// bootstrap. Effective permissions for a template are the union of its own
// Level/Permissions and everything inherited from ParentName, resolved
// transitively up to a root template (ParentName == "").
type RoleTemplate struct {
	Name string `json:"name"`
	Version int `json:"version"`
	ParentName string `json:"parentName"`
	Level string `json:"level"` // NONE, READ, WRITE, CREATE, DELETE, ADMIN
	Permissions []string `json:"permissions"`
	Description string `json:"description"`
}

// IdentityMapping represents identity normalization across authentication providers
type IdentityMapping struct {
	ID string `json:"id"`
	NormalizedID string `json:"normalizedId"`
	ProviderUserID string `json:"providerUserId"`
	AuthProvider string `json:"authProvider"` // local, saml, jwt, oidc, ldap
	User *User `json:"user"`
	TenantID string `json:"tenantId"`
	ProviderAttributes map[string]string `json:"providerAttributes"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	LoginCount int `json:"loginCount"`
	FirstLoginAt time.Time `json:"firstLoginAt"`
	AccountStatus string `json:"accountStatus"` // active, suspended, deactivated
	IdentityVerification string `json:"identityVerification"` // verified, unverified, pending
	RiskScore float64 `json:"riskScore"`
	Metadata map[string]string `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`
}
