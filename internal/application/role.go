package application

import "strings"

// RoleResolver grants moderator rights to staff and to members of a configured group.
type RoleResolver struct {
	moderatorGroup string
}

// NewRoleResolver returns a resolver. An empty group means only staff moderate.
func NewRoleResolver(moderatorGroup string) RoleResolver {
	return RoleResolver{moderatorGroup: strings.TrimSpace(moderatorGroup)}
}

// Resolve picks the role for user.
func (r RoleResolver) Resolve(user ActingUser) Role {
	if user.IsStaff {
		return RoleModerator
	}
	if r.moderatorGroup == "" {
		return RoleAttendee
	}
	for _, group := range user.Groups {
		if group == r.moderatorGroup {
			return RoleModerator
		}
	}
	return RoleAttendee
}
