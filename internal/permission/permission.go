// Package permission resolves a user's effective permission set from their
// role and explicitly granted permissions.
//
// Two disjoint vocabularies: module permissions (one per panel module) and
// special permissions (cross-cutting administrative capabilities). Privileged
// roles are elevated to the union of everything; all other roles get exactly
// what was granted, normalized.
package permission

import (
	"strings"
	"unicode"
)

// Module permissions, one per panel module.
const (
	Beneficiaries   = "beneficiaries"
	AidApplications = "aid-applications"
	Donations       = "donations"
	Scholarships    = "scholarships"
	Workflow        = "workflow"
	Messages        = "messages"
	Partners        = "partners"
	Finance         = "finance"
	Reports         = "reports"
	Settings        = "settings"
)

// Special permissions, cross-cutting administrative capabilities.
const (
	UsersManage    = "users:manage"
	SettingsManage = "settings:manage"
)

// Wildcard is stripped during normalization. It appears in some imported user
// records but grants nothing by itself.
const Wildcard = "*"

// Modules lists every module permission. Order matters only for readability.
var Modules = []string{
	Beneficiaries,
	AidApplications,
	Donations,
	Scholarships,
	Workflow,
	Messages,
	Partners,
	Finance,
	Reports,
	Settings,
}

// Specials lists every special permission.
var Specials = []string{
	UsersManage,
	SettingsManage,
}

// privilegedRoles are the role display strings elevated to full permissions.
// Matched by case-folded exact comparison, never substring -- a role named
// "administrative assistant" must not become an admin.
var privilegedRoles = []string{
	"admin",
	"dernek başkanı",
	"başkan",
	"president",
	"director",
}

// Normalize deduplicates perms and drops the wildcard token and empty strings.
// First-occurrence order is preserved. Idempotent: Normalize(Normalize(p))
// equals Normalize(p).
func Normalize(perms []string) []string {
	out := make([]string, 0, len(perms))
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if p == "" || p == Wildcard {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// foldRole uppercases a role for comparison with Turkish casing collapsed:
// dotted and dotless i variants (i, ı, İ, I) all map to I. Unicode simple
// folding would leave İ and ı unmatched against their lowercase table entries.
func foldRole(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case 'i', 'ı', 'İ':
			return 'I'
		}
		return unicode.ToUpper(r)
	}, s)
}

// IsPrivilegedRole reports whether role matches the privileged-role table,
// ignoring case (including Turkish İ/ı spellings) and surrounding whitespace.
// An empty role never matches.
func IsPrivilegedRole(role string) bool {
	role = foldRole(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range privilegedRoles {
		if role == foldRole(r) {
			return true
		}
	}
	return false
}

// Effective computes the effective permission set for a role and its explicit
// grants. Privileged roles receive all module and special permissions on top
// of the normalized explicit list -- strictly a superset, never a subset.
// Everyone else receives exactly the normalized explicit list.
func Effective(role string, explicit []string) []string {
	normalized := Normalize(explicit)
	if !IsPrivilegedRole(role) {
		return normalized
	}

	full := make([]string, 0, len(Modules)+len(Specials)+len(normalized))
	full = append(full, Modules...)
	full = append(full, Specials...)
	full = append(full, normalized...)
	return Normalize(full)
}

// Has reports whether target is a member of perms.
func Has(perms []string, target string) bool {
	for _, p := range perms {
		if p == target {
			return true
		}
	}
	return false
}

// HasAny reports whether at least one of targets is in perms.
// False for an empty targets list.
func HasAny(perms []string, targets []string) bool {
	for _, t := range targets {
		if Has(perms, t) {
			return true
		}
	}
	return false
}

// HasAll reports whether every element of targets is in perms.
// Vacuously true for an empty targets list.
func HasAll(perms []string, targets []string) bool {
	for _, t := range targets {
		if !Has(perms, t) {
			return false
		}
	}
	return true
}
