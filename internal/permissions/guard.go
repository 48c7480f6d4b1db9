// Package permissions gates commands on the configured admin sets.
package permissions

import (
	"github.com/sirupsen/logrus"

	"sendlater/internal/models"
	"sendlater/internal/privacy"
)

// ConfigProvider returns the current permission sets. The guard reads
// through it on every call so hot-reloaded configuration applies to
// group membership changes without a restart.
type ConfigProvider interface {
	Permissions() models.PermissionsConfig
}

// StaticProvider wraps a fixed config, mainly for tests.
type StaticProvider models.PermissionsConfig

func (p StaticProvider) Permissions() models.PermissionsConfig {
	return models.PermissionsConfig(p)
}

type Guard struct {
	provider ConfigProvider
	logger   *logrus.Logger
}

func NewGuard(provider ConfigProvider, logger *logrus.Logger) *Guard {
	return &Guard{provider: provider, logger: logger}
}

// Authorize reports whether userID may issue commands from groupID.
// Query and cancel share the same gate as send and forward. If the
// admin-user set is empty, every member of an admin group passes.
// Callers must surface denials as a generic "not authorized" only.
func (g *Guard) Authorize(userID, groupID string) bool {
	perms := g.provider.Permissions()

	if !contains(perms.AdminGroups, groupID) {
		g.logDenial(userID, groupID, "group not privileged")
		return false
	}
	if len(perms.AdminUsers) > 0 && !contains(perms.AdminUsers, userID) {
		g.logDenial(userID, groupID, "user not privileged")
		return false
	}
	return true
}

// AllowedReceiver reports whether groupID may be the target of a send,
// forward or recall.
func (g *Guard) AllowedReceiver(groupID string) bool {
	return contains(g.provider.Permissions().ReceiverGroups, groupID)
}

func (g *Guard) logDenial(userID, groupID, reason string) {
	g.logger.WithFields(logrus.Fields{
		"user":   privacy.MaskID(userID),
		"group":  privacy.MaskID(groupID),
		"reason": reason,
	}).Warn("Command authorization denied")
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
