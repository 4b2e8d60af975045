package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "user review", role: RoleUser, action: ActionReview, allow: true},
		{name: "user edit", role: RoleUser, action: ActionEdit, allow: true},
		{name: "user moderate", role: RoleUser, action: ActionModerate, allow: false},
		{name: "editor publish", role: RoleEditor, action: ActionPublish, allow: false},
		{name: "moderator moderate", role: RoleModerator, action: ActionModerate, allow: true},
		{name: "moderator publish", role: RoleModerator, action: ActionPublish, allow: true},
		{name: "moderator admin", role: RoleModerator, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("viewer"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestParse(t *testing.T) {
	for _, raw := range []string{"admin", "Moderator", " editor ", "user"} {
		if _, err := Parse(raw); err != nil {
			t.Fatalf("Parse(%q) error = %v", raw, err)
		}
	}
	for _, raw := range []string{"", "viewer", "superuser"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q) expected error", raw)
		}
	}
}

func TestPrivileged(t *testing.T) {
	if !Privileged(RoleAdmin) || !Privileged(RoleModerator) {
		t.Fatal("admin and moderator should be privileged")
	}
	if Privileged(RoleEditor) || Privileged(RoleUser) {
		t.Fatal("editor and user should not be privileged")
	}
}
