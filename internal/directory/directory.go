// Package directory consults the gateway's configured LDAP backend to
// pre-approve access requests whose requested role matches a group the
// requester already belongs to, sparing an admin a manual
// decide_access_request call for the common "I'm already in the group"
// case. Adapted from pkg/auth.LDAPAuthenticator.
package directory

import (
	"context"
	"strings"

	"github.com/platformbuilds/tenant-gateway-core/internal/config"
	"github.com/platformbuilds/tenant-gateway-core/internal/models"
	"github.com/platformbuilds/tenant-gateway-core/pkg/auth"
	"github.com/platformbuilds/tenant-gateway-core/pkg/logger"
)

// GroupLookup resolves the LDAP groups a username belongs to. Satisfied by
// pkg/auth.LDAPAuthenticator via its embedded group-membership search.
type GroupLookup interface {
	Authenticate(username, password string) (*auth.UserInfo, error)
}

// Directory decides whether a pending access request can be pre-approved
// from LDAP group membership. Disabled (cfg.Enabled == false) it always
// declines, leaving every access request to a manual admin decision.
type Directory struct {
	enabled bool
	lookup  GroupLookup
}

// New builds a Directory from the gateway's directory configuration.
func New(cfg config.DirectoryConfig, log logger.Logger) *Directory {
	if !cfg.Enabled {
		return &Directory{enabled: false}
	}
	ldapCfg := models.LDAPConfig{
		Host:         cfg.Host,
		Port:         cfg.Port,
		UseTLS:       cfg.UseTLS,
		BindDN:       cfg.BindDN,
		BindPassword: cfg.BindPassword,
		BaseDN:       cfg.BaseDN,
		GroupFilter:  cfg.GroupFilter,
	}
	return &Directory{enabled: true, lookup: auth.NewLDAPAuthenticator(ldapCfg, log)}
}

// PreApprove reports whether request.RequesterID already belongs to an LDAP
// group matching request.RequestedRole. bindPassword is the requester's own
// directory credential (never stored); a Directory built with
// DirectoryConfig.Enabled == false always returns false.
func (d *Directory) PreApprove(ctx context.Context, request *models.AccessRequest, bindPassword string) (bool, error) {
	if !d.enabled {
		return false, nil
	}
	info, err := d.lookup.Authenticate(request.RequesterID, bindPassword)
	if err != nil {
		return false, nil
	}
	for _, role := range info.Roles {
		if strings.EqualFold(role, request.RequestedRole) {
			return true, nil
		}
	}
	return false, nil
}
