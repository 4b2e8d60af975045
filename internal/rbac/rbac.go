package rbac

import (
	"fmt"
	"strings"
)

type Role string
type Action string

const (
	RoleUser      Role = "user"
	RoleEditor    Role = "editor"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead     Action = "read"
	ActionEdit     Action = "edit"
	ActionReview   Action = "review"
	ActionFlag     Action = "flag"
	ActionModerate Action = "moderate"
	ActionPublish  Action = "publish"
	ActionAdmin    Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModerator:
		return action != ActionAdmin
	case RoleEditor, RoleUser:
		return action == ActionRead || action == ActionEdit || action == ActionReview || action == ActionFlag
	default:
		return false
	}
}

// Privileged reports whether the role skips peer review when publishing.
func Privileged(role Role) bool {
	return Can(role, ActionPublish)
}

// Parse validates a role claim. Unknown roles are rejected rather than
// downgraded.
func Parse(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleUser, RoleEditor, RoleModerator, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}
