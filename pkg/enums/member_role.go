package enums

import "fmt"

// MemberRole maps to the member_role enum in Postgres.
type MemberRole string

const (
	RoleAdmin    MemberRole = "admin"
	RoleOperator MemberRole = "operator"
	RoleViewer   MemberRole = "viewer"
)

var validMemberRoles = []MemberRole{
	RoleAdmin,
	RoleOperator,
	RoleViewer,
}

// IsValid reports whether the role matches the canonical member_role enum.
func (r MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseMemberRole converts raw input into MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
