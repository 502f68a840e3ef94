package catalog

import (
	"math"

	"github.com/faucetdb/rolekeeper/internal/model"
)

const (
	baseAccessLevel  = 20
	grantAccessRange = 80
)

// ComputeAccessLevel derives the 0-100 access score. SuperAdmins score 100
// regardless of permissions; everyone else scores 20 plus a share of 80
// proportional to the distinct valid tokens they hold.
func ComputeAccessLevel(role model.Role, permissions []string) int {
	if role == model.RoleSuperAdmin {
		return 100
	}
	total := MaxPermissionCount()
	if total == 0 {
		return baseAccessLevel
	}
	held := len(Filter(permissions))
	level := int(math.Round(baseAccessLevel + float64(held)/float64(total)*grantAccessRange))
	return clamp(level, 0, 100)
}

// Normalize recomputes the derived fields of a record in place: a
// SuperAdmin holds the full catalog, everyone else holds only valid tokens,
// and AccessLevel follows from both.
func Normalize(a *model.Admin) {
	if a.Role == model.RoleSuperAdmin {
		a.Permissions = AllPermissions()
	} else {
		a.Permissions = Filter(a.Permissions)
	}
	a.AccessLevel = ComputeAccessLevel(a.Role, a.Permissions)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
