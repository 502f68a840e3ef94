// Package catalog is the static permission catalog: the valid permission
// tokens, the default grant for each role, and the access level derived
// from a role and its grants.
package catalog

import "github.com/faucetdb/rolekeeper/internal/model"

// Definition describes one grantable permission.
type Definition struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Module string `json:"module"`
}

// definitions is ordered; stored permission lists follow this order.
var definitions = []Definition{
	{Key: "campaigns.view", Label: "View campaigns", Module: "campaigns"},
	{Key: "campaigns.create", Label: "Create campaigns", Module: "campaigns"},
	{Key: "campaigns.edit", Label: "Edit campaigns", Module: "campaigns"},
	{Key: "campaigns.delete", Label: "Delete campaigns", Module: "campaigns"},
	{Key: "campaigns.approve", Label: "Approve campaigns", Module: "campaigns"},
	{Key: "donations.view", Label: "View donations", Module: "donations"},
	{Key: "donations.refund", Label: "Refund donations", Module: "donations"},
	{Key: "donors.view", Label: "View donors", Module: "donors"},
	{Key: "donors.manage", Label: "Manage donors", Module: "donors"},
	{Key: "reports.view", Label: "View reports", Module: "reports"},
	{Key: "reports.export", Label: "Export reports", Module: "reports"},
	{Key: "notifications.send", Label: "Send notifications", Module: "notifications"},
	{Key: "admins.view", Label: "View administrators", Module: "admins"},
	{Key: "settings.manage", Label: "Manage settings", Module: "settings"},
}

var regularDefaults = []string{
	"campaigns.view",
	"campaigns.create",
	"campaigns.edit",
	"donations.view",
	"donors.view",
	"reports.view",
}

var index = func() map[string]int {
	m := make(map[string]int, len(definitions))
	for i, d := range definitions {
		m[d.Key] = i
	}
	return m
}()

// Definitions returns every permission definition in catalog order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// AllPermissions returns every valid token in catalog order.
func AllPermissions() []string {
	out := make([]string, len(definitions))
	for i, d := range definitions {
		out[i] = d.Key
	}
	return out
}

// MaxPermissionCount is the size of the full catalog.
func MaxPermissionCount() int {
	return len(definitions)
}

// IsValid reports whether token is a catalog permission.
func IsValid(token string) bool {
	_, ok := index[token]
	return ok
}

// DefaultPermissionsFor returns the permissions a freshly created record of
// the given role holds. A SuperAdmin gets the full catalog.
func DefaultPermissionsFor(role model.Role) []string {
	switch role {
	case model.RoleSuperAdmin:
		return AllPermissions()
	case model.RoleRegularAdmin:
		return append([]string(nil), regularDefaults...)
	}
	return []string{}
}

// Filter drops unknown tokens and duplicates and returns the rest in
// catalog order. The result is never nil.
func Filter(tokens []string) []string {
	seen := make([]bool, len(definitions))
	n := 0
	for _, t := range tokens {
		if i, ok := index[t]; ok && !seen[i] {
			seen[i] = true
			n++
		}
	}
	out := make([]string, 0, n)
	for i, d := range definitions {
		if seen[i] {
			out = append(out, d.Key)
		}
	}
	return out
}

// Invalid returns the tokens Filter would drop, in input order.
func Invalid(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if !IsValid(t) {
			out = append(out, t)
		}
	}
	return out
}
