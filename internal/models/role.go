package models

// Role represents a user's role in the team.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// DefaultRole is assigned when no role is given (self-registration, join by invite).
const DefaultRole = RoleMember

// Valid reports whether r is one of the fixed roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// ParseRole returns the role for s, or false when s is not a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Permission is a capability tag granted to roles.
type Permission string

const (
	PermManageTeam     Permission = "manage_team"
	PermInviteMembers  Permission = "invite_members"
	PermRemoveMembers  Permission = "remove_members"
	PermManageCards    Permission = "manage_cards"
	PermViewAnalytics  Permission = "view_analytics"
	PermManageSettings Permission = "manage_settings"
	PermUpdateStatus   Permission = "update_status"
	PermManageOwnCard  Permission = "manage_own_card"
	PermViewTeam       Permission = "view_team"
)

var rolePermissions = map[Role]map[Permission]struct{}{
	RoleAdmin: set(
		PermManageTeam, PermInviteMembers, PermRemoveMembers, PermManageCards,
		PermViewAnalytics, PermManageSettings, PermViewTeam, PermUpdateStatus, PermManageOwnCard,
	),
	RoleMember: set(PermUpdateStatus, PermManageOwnCard, PermViewTeam, PermViewAnalytics),
	RoleViewer: set(PermViewTeam),
}

func set(perms ...Permission) map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		m[p] = struct{}{}
	}
	return m
}

// Can reports whether role holds permission. Unknown roles hold nothing.
func Can(role Role, perm Permission) bool {
	_, ok := rolePermissions[role][perm]
	return ok
}
