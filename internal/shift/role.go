package shift

import "strings"

// Role classifies who a shift belongs to.
type Role string

const (
	RoleScribe    Role = "Scribe"
	RolePhysician Role = "Physician"
	RoleMLP       Role = "MLP"
	RoleUnknown   Role = "Unknown"
)

// Valid reports whether the role is one that the reconciler accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleScribe, RolePhysician, RoleMLP:
		return true
	default:
		return false
	}
}

// RoleFromSite derives a role hint from a roster site's display name.
func RoleFromSite(site string) Role {
	lower := strings.ToLower(site)
	switch {
	case strings.Contains(lower, "scribe"):
		return RoleScribe
	case strings.Contains(lower, "physician"):
		return RolePhysician
	case strings.Contains(lower, "mlp"):
		return RoleMLP
	default:
		return RoleUnknown
	}
}

// ParseRole maps a stored role string back onto the enum. Unrecognized
// values become RoleUnknown.
func ParseRole(value string) Role {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "scribe":
		return RoleScribe
	case "physician":
		return RolePhysician
	case "mlp", "midlevelprovider", "mid-level provider":
		return RoleMLP
	default:
		return RoleUnknown
	}
}
