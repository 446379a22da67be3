package domain

// Action enumerates the catalog-management operations gated by role.
// Review writing is intentionally absent: it is gated by authentication
// alone, not by role.
type Action int

const (
	ActionAdd Action = iota
	ActionEdit
	ActionDelete
	ActionViewStats
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionEdit:
		return "edit"
	case ActionDelete:
		return "delete"
	case ActionViewStats:
		return "view_stats"
	default:
		return "unknown"
	}
}

// capabilities is the static role × action table. The policy is a pure
// function of (role, action); there are no per-record exceptions.
var capabilities = map[Role]map[Action]bool{
	RoleAdmin: {
		ActionAdd:       true,
		ActionEdit:      true,
		ActionDelete:    true,
		ActionViewStats: true,
	},
	RoleModerator: {
		ActionAdd:       true,
		ActionEdit:      true,
		ActionDelete:    true,
		ActionViewStats: true,
	},
	RoleUser: {},
}

// Can reports whether a role is allowed to perform an action. Unknown roles
// and unknown actions are denied.
func Can(role Role, action Action) bool {
	return capabilities[role][action]
}
