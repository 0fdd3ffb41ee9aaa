package model

import (
	"errors"
	"testing"
	"time"

	"teamboard/internal/scope"
)

func strPtr(s string) *string { return &s }

func TestDecodeUsesDocumentID(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p, err := Decode[Project]("p1", map[string]any{
		"id":        "ignored",
		"name":      "Launch",
		"status":    "in-progress",
		"lead":      "u1",
		"createdAt": created,
		"resources": []any{map[string]any{"id": "r1", "title": "Doc", "url": "https://x"}},
	})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if p.ID != "p1" {
		t.Fatalf("expected id p1; got %q", p.ID)
	}
	if p.Status != ProjectInProgress {
		t.Fatalf("expected status in-progress; got %q", p.Status)
	}
	if p.Lead == nil || *p.Lead != "u1" {
		t.Fatalf("expected lead u1; got %v", p.Lead)
	}
	if !p.CreatedAt.Equal(created) {
		t.Fatalf("expected createdAt %v; got %v", created, p.CreatedAt)
	}
	if len(p.Resources) != 1 || p.Resources[0].ID != "r1" {
		t.Fatalf("expected one resource r1; got %+v", p.Resources)
	}
}

func TestFieldsKeepsTimestampsAndDropsID(t *testing.T) {
	target := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f, err := Fields(Task{ID: "t1", Title: "Write", Assignees: []string{"a"}, TargetDate: &target})
	if err != nil {
		t.Fatalf("Fields error: %v", err)
	}
	if _, ok := f["id"]; ok {
		t.Fatalf("expected id to be omitted; got %v", f["id"])
	}
	if got, ok := f["targetDate"].(time.Time); !ok || !got.Equal(target) {
		t.Fatalf("expected targetDate time.Time; got %#v", f["targetDate"])
	}
	if f["startDate"] != nil {
		t.Fatalf("expected nil startDate; got %#v", f["startDate"])
	}
	if got, ok := f["assignees"].([]any); !ok || len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected assignees [a]; got %#v", f["assignees"])
	}
	if _, ok := f["summary"]; ok {
		t.Fatalf("expected empty summary to be omitted")
	}
}

func TestApplyPatch(t *testing.T) {
	p := Project{ID: "p1", Name: "Launch", Status: ProjectPlanned, Lead: strPtr("u1")}
	got, err := ApplyPatch(p, Patch{"status": "in-progress", "lead": nil, "bogus": 1})
	if err != nil {
		t.Fatalf("ApplyPatch error: %v", err)
	}
	if got.Status != ProjectInProgress {
		t.Fatalf("expected status in-progress; got %q", got.Status)
	}
	if got.Lead != nil {
		t.Fatalf("expected lead cleared; got %v", *got.Lead)
	}
	if got.Name != "Launch" || got.ID != "p1" {
		t.Fatalf("expected untouched fields to survive; got %+v", got)
	}
	if p.Status != ProjectPlanned {
		t.Fatalf("expected original to be unchanged; got %q", p.Status)
	}
}

func TestGroupKeysFallBackToFirstOption(t *testing.T) {
	task := Task{ID: "t1", Status: "weird", Priority: ""}
	if got := task.GroupKeys(FieldStatus); len(got) != 1 || got[0] != string(TaskBacklog) {
		t.Fatalf("expected [backlog]; got %v", got)
	}
	if got := task.GroupKeys(FieldPriority); len(got) != 1 || got[0] != string(TaskNoPriority) {
		t.Fatalf("expected [no-priority]; got %v", got)
	}
	if got := task.GroupKeys(FieldAssignee); len(got) != 1 || got[0] != Unassigned {
		t.Fatalf("expected [unassigned]; got %v", got)
	}
}

func TestTaskAssigneeMovePatch(t *testing.T) {
	task := Task{ID: "t1", Assignees: []string{"a", "b"}}

	if _, ok := task.MovePatch(FieldAssignee, "a", "b"); ok {
		t.Fatalf("expected no patch when target assignee already present")
	}

	p, ok := task.MovePatch(FieldAssignee, "a", "c")
	if !ok {
		t.Fatalf("expected patch")
	}
	got := p["assignees"].([]string)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("expected [b c]; got %v", got)
	}

	p, ok = task.MovePatch(FieldAssignee, "a", Unassigned)
	if !ok || len(p["assignees"].([]string)) != 0 {
		t.Fatalf("expected cleared assignees; got %v (ok=%v)", p, ok)
	}

	empty := Task{ID: "t2"}
	if _, ok := empty.MovePatch(FieldAssignee, Unassigned, Unassigned); ok {
		t.Fatalf("expected no patch for unassigned -> unassigned")
	}
}

func TestSingleValuedMovePatch(t *testing.T) {
	p := Project{ID: "p1", Status: ProjectPlanned}
	if _, ok := p.MovePatch(FieldStatus, "planned", "planned"); ok {
		t.Fatalf("expected no patch for same status")
	}
	patch, ok := p.MovePatch(FieldStatus, "planned", "completed")
	if !ok || patch["status"] != "completed" {
		t.Fatalf("expected status patch; got %v", patch)
	}
	patch, ok = p.MovePatch(FieldAssignee, Unassigned, "u1")
	if !ok || patch["lead"] != "u1" {
		t.Fatalf("expected lead patch; got %v", patch)
	}

	i := Issue{ID: "i1", AssigneeID: strPtr("u1")}
	patch, ok = i.MovePatch(FieldAssignee, "u1", Unassigned)
	if !ok {
		t.Fatalf("expected patch")
	}
	if v, present := patch["assigneeId"]; !present || v != nil {
		t.Fatalf("expected assigneeId nil; got %v", patch)
	}
}

func TestValidate(t *testing.T) {
	var pe scope.PreconditionError
	if err := (Task{Title: "  "}).Validate(); !errors.As(err, &pe) || pe.Field != "title" {
		t.Fatalf("expected title precondition; got %v", err)
	}
	if err := (Project{Name: "x", Status: "nope"}).Validate(); !errors.As(err, &pe) || pe.Field != "status" {
		t.Fatalf("expected status precondition; got %v", err)
	}
	if err := (Issue{Title: "x", Priority: IssuePriorityHigh}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseOption(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"In Progress", "in-progress", false},
		{"in_progress", "in-progress", false},
		{"DONE", "done", false},
		{"No priority", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseOption(TaskStatuses, tc.in)
		if tc.wantErr && err == nil {
			t.Fatalf("ParseOption(%q): expected error", tc.in)
		}
		if !tc.wantErr && (err != nil || got != tc.want) {
			t.Fatalf("ParseOption(%q): expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
		}
	}
}

func TestSlugify(t *testing.T) {
	if got := Slugify("  Acme Corp, Inc. "); got != "acme-corp-inc" {
		t.Fatalf("expected acme-corp-inc; got %q", got)
	}
}
