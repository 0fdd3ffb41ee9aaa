package scope

import (
	"errors"
	"testing"
)

func TestKeyPaths(t *testing.T) {
	cases := []struct {
		key  Key
		want string
	}{
		{WorkspacesKey(), "workspaces"},
		{MembersKey("w1"), "workspaces/w1/members"},
		{ProjectsKey("w1"), "workspaces/w1/projects"},
		{TasksKey("w1", "p1"), "workspaces/w1/projects/p1/tasks"},
		{IssuesKey("w1", "p1"), "workspaces/w1/projects/p1/issues"},
		{ProjectUpdatesKey("w1", "p1"), "workspaces/w1/projects/p1/updates"},
		{TaskUpdatesKey("w1", "p1", "t1"), "workspaces/w1/projects/p1/tasks/t1/updates"},
	}
	for _, tc := range cases {
		if got := tc.key.Path(); got != tc.want {
			t.Fatalf("Path(%+v): expected %q, got %q", tc.key, tc.want, got)
		}
		if err := tc.key.Validate(); err != nil {
			t.Fatalf("Validate(%+v): unexpected error: %v", tc.key, err)
		}
		back, err := Parse(tc.key.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.key.String(), err)
		}
		if back != tc.key {
			t.Fatalf("Parse(%q): expected %+v, got %+v", tc.key.String(), tc.key, back)
		}
	}
}

func TestValidateMissingIDs(t *testing.T) {
	cases := []struct {
		key   Key
		field string
	}{
		{MembersKey(""), "workspace id"},
		{ProjectsKey(" "), "workspace id"},
		{TasksKey("w1", ""), "project id"},
		{IssuesKey("", "p1"), "workspace id"},
		{ProjectUpdatesKey("w1", ""), "project id"},
		{TaskUpdatesKey("w1", "p1", ""), "task id"},
		{WorkspaceTasksKey(""), "workspace id"},
	}
	for _, tc := range cases {
		err := tc.key.Validate()
		var pe PreconditionError
		if !errors.As(err, &pe) {
			t.Fatalf("Validate(%+v): expected PreconditionError; got %v", tc.key, err)
		}
		if pe.Field != tc.field {
			t.Fatalf("Validate(%+v): expected field %q, got %q", tc.key, tc.field, pe.Field)
		}
	}
}

func TestGroupKey(t *testing.T) {
	k := WorkspaceTasksKey("w1")
	if k.Path() != "" {
		t.Fatalf("expected empty path for group key; got %q", k.Path())
	}
	if got := k.Prefix(); got != "workspaces/w1/" {
		t.Fatalf("expected prefix workspaces/w1/; got %q", got)
	}
	if k.String() == TasksKey("w1", "p1").String() {
		t.Fatalf("group key must not collide with a project task key")
	}
	back, err := Parse(k.String())
	if err != nil || back != k {
		t.Fatalf("expected %+v; got %+v (err=%v)", k, back, err)
	}

	bad := Key{Collection: Projects, WorkspaceID: "w1", Group: true}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for projects group key")
	}
}
