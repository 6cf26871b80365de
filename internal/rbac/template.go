package rbac

import (
	"context"
	"fmt"

	"github.com/platformbuilds/tenant-gateway-core/internal/models"
)

// TemplateStore is the subset of the RBAC repository the resolver needs;
// satisfied by internal/repo/rbac.RBACRepository.
type TemplateStore interface {
	GetRoleTemplate(ctx context.Context, name string) (*models.RoleTemplate, error)
}

// maxInheritanceDepth bounds the single-inheritance chain walk so a cyclic
// ParentName (a seeding bug, never a valid configuration) fails fast instead
// of looping forever.
const maxInheritanceDepth = 32

// EffectivePermissions is the resolved result of walking a RoleTemplate's
// single-inheritance chain: the union of permissions from the template up
// through every ancestor, and the highest Level seen along the way.
type EffectivePermissions struct {
	Level       Level
	Permissions []string
}

// Resolve walks template.ParentName up to the root (ParentName == ""),
// unioning Permissions and taking the highest Level encountered. A chain
// longer than maxInheritanceDepth is treated as a cycle and rejected.
func Resolve(ctx context.Context, store TemplateStore, templateName string) (*EffectivePermissions, error) {
	seen := make(map[string]bool)
	permSet := make(map[string]bool)
	result := &EffectivePermissions{Level: LevelNone}

	name := templateName
	for depth := 0; ; depth++ {
		if depth > maxInheritanceDepth {
			return nil, fmt.Errorf("rbac: role template inheritance chain too deep (cycle at %q?)", name)
		}
		if name == "" {
			break
		}
		if seen[name] {
			return nil, fmt.Errorf("rbac: role template inheritance cycle detected at %q", name)
		}
		seen[name] = true

		tmpl, err := store.GetRoleTemplate(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("rbac: resolving template %q: %w", name, err)
		}

		level, err := ParseLevel(tmpl.Level)
		if err != nil {
			return nil, err
		}
		result.Level = Max(result.Level, level)

		for _, p := range tmpl.Permissions {
			permSet[p] = true
		}

		name = tmpl.ParentName
	}

	result.Permissions = make([]string, 0, len(permSet))
	for p := range permSet {
		result.Permissions = append(result.Permissions, p)
	}
	return result, nil
}
