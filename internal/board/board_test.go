package board

import (
	"testing"

	"teamboard/internal/cache"
	"teamboard/internal/model"
)

type recordingMutator struct {
	calls []model.Patch
	ids   []string
}

func (r *recordingMutator) Mutate(id string, patch model.Patch) {
	r.ids = append(r.ids, id)
	r.calls = append(r.calls, patch)
}

func lookupIn[T model.Groupable](c *cache.Cache[T]) Lookup {
	return func(id string) (model.Groupable, bool) {
		v, ok := c.Get(id)
		if !ok {
			return nil, false
		}
		return v, true
	}
}

func strPtr(s string) *string { return &s }

func TestPriorityColumnsIncludeEmpty(t *testing.T) {
	items := []model.Project{
		{ID: "p1", Name: "A", Priority: model.ProjectPriorityHigh},
		{ID: "p2", Name: "B", Priority: model.ProjectPriorityLow},
		{ID: "p3", Name: "C"},
	}
	b, err := Build(items, model.KindProject, ByPriority, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(b.Columns) != 5 {
		t.Fatalf("expected 5 priority columns; got %d", len(b.Columns))
	}
	want := []string{"none", "urgent", "high", "medium", "low"}
	for i, k := range want {
		if b.Columns[i].Key != k {
			t.Fatalf("expected column %d to be %q; got %q", i, k, b.Columns[i].Key)
		}
	}
	if n := len(b.Columns[1].Items); n != 0 {
		t.Fatalf("expected empty urgent column; got %d", n)
	}
	if got := b.Columns[0].Items; len(got) != 1 || got[0].ID != "p3" {
		t.Fatalf("expected unset priority in first column; got %+v", got)
	}
}

func TestUnknownStatusFallsBackToFirstColumn(t *testing.T) {
	items := []model.Task{{ID: "t1", Title: "x", Status: "weird"}}
	b, err := Build(items, model.KindTask, ByStatus, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if got := b.Columns[0].Items; len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("expected t1 in %q; got %+v", b.Columns[0].Key, got)
	}
}

func TestAssigneeColumns(t *testing.T) {
	members := []model.Member{{UserID: "u1", DisplayName: "Ada Lovelace"}, {UserID: "u2", DisplayName: "Grace"}}
	items := []model.Task{
		{ID: "t1", Title: "both", Assignees: []string{"u1", "u2"}},
		{ID: "t2", Title: "none"},
		{ID: "t3", Title: "gone", Assignees: []string{"u9"}},
	}
	b, err := Build(items, model.KindTask, ByAssignee, members)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(b.Columns) != 3 || b.Columns[0].Key != model.Unassigned {
		t.Fatalf("expected unassigned + 2 member columns; got %+v", b.Columns)
	}
	if b.Columns[1].Icon != "AL" {
		t.Fatalf("expected initials AL; got %q", b.Columns[1].Icon)
	}
	if len(b.Columns[1].Items) != 1 || len(b.Columns[2].Items) != 1 {
		t.Fatalf("expected t1 under both members; got %+v", b.Columns)
	}
	if len(b.Columns[0].Items) != 1 || b.Columns[0].Items[0].ID != "t2" {
		t.Fatalf("expected t2 unassigned; got %+v", b.Columns[0].Items)
	}
	if len(b.Unplaced) != 1 || b.Unplaced[0].ID != "t3" {
		t.Fatalf("expected t3 unplaced; got %+v", b.Unplaced)
	}
}

func TestSameColumnDropDoesNotMutate(t *testing.T) {
	c := cache.New[model.Task]()
	c.ReplaceAll([]model.Task{
		{ID: "t1", Title: "one", Status: model.TaskTodo},
		{ID: "t2", Title: "two", Status: model.TaskTodo},
	})
	b, err := FromCache(c, ByStatus, nil)
	if err != nil {
		t.Fatalf("FromCache error: %v", err)
	}
	col, _ := b.Column(string(model.TaskTodo))
	d, ok := b.PickUp(col, 0)
	if !ok {
		t.Fatalf("expected pick up")
	}
	d.Hover(col, 1)
	m := &recordingMutator{}
	res := b.Drop(d, lookupIn(c), m)
	if res.Outcome != DropReordered {
		t.Fatalf("expected reordered; got %q", res.Outcome)
	}
	if len(m.calls) != 0 {
		t.Fatalf("expected no mutation; got %d", len(m.calls))
	}
	if b.Columns[col].Items[1].ID != "t1" {
		t.Fatalf("expected t1 moved to index 1; got %+v", b.Columns[col].Items)
	}
}

func TestCrossColumnDropMutatesOnce(t *testing.T) {
	c := cache.New[model.Issue]()
	c.ReplaceAll([]model.Issue{{ID: "i1", Title: "bug", Status: model.IssueTodo}})
	b, _ := FromCache(c, ByStatus, nil)
	from, _ := b.Column(string(model.IssueTodo))
	to, _ := b.Column(string(model.IssueDone))

	d, _ := b.PickUp(from, 0)
	d.Hover(to, 0)
	m := &recordingMutator{}
	res := b.Drop(d, lookupIn(c), m)
	if res.Outcome != DropMoved || len(m.calls) != 1 {
		t.Fatalf("expected one mutation; got %q with %d calls", res.Outcome, len(m.calls))
	}
	if m.ids[0] != "i1" || m.calls[0]["status"] != "done" {
		t.Fatalf("expected status done for i1; got %v %v", m.ids, m.calls)
	}
}

func TestDropOfVanishedItemIsIgnored(t *testing.T) {
	c := cache.New[model.Project]()
	c.ReplaceAll([]model.Project{{ID: "p1", Name: "A", Lead: strPtr("u1")}})
	members := []model.Member{{UserID: "u1"}, {UserID: "u2"}}
	b, _ := FromCache(c, ByAssignee, members)
	from, _ := b.Column("u1")
	to, _ := b.Column("u2")
	d, _ := b.PickUp(from, 0)
	d.Hover(to, 0)

	c.RemoveOne("p1")
	m := &recordingMutator{}
	if res := b.Drop(d, lookupIn(c), m); res.Outcome != DropMissing {
		t.Fatalf("expected missing; got %q", res.Outcome)
	}
	if len(m.calls) != 0 {
		t.Fatalf("expected no mutation; got %d", len(m.calls))
	}
}

func TestDropOntoExistingAssigneeIsNoop(t *testing.T) {
	c := cache.New[model.Task]()
	c.ReplaceAll([]model.Task{{ID: "t1", Title: "x", Assignees: []string{"u1", "u2"}}})
	members := []model.Member{{UserID: "u1"}, {UserID: "u2"}}
	b, _ := FromCache(c, ByAssignee, members)
	from, _ := b.Column("u1")
	to, _ := b.Column("u2")
	d, _ := b.PickUp(from, 0)
	d.Hover(to, 0)
	m := &recordingMutator{}
	if res := b.Drop(d, lookupIn(c), m); res.Outcome != DropNoop || len(m.calls) != 0 {
		t.Fatalf("expected noop; got %q with %d calls", res.Outcome, len(m.calls))
	}
}

func TestClampFollowsItemID(t *testing.T) {
	items := []model.Task{
		{ID: "t1", Title: "a", Status: model.TaskTodo},
		{ID: "t2", Title: "b", Status: model.TaskDone},
	}
	b, _ := Build(items, model.KindTask, ByStatus, nil)
	done, _ := b.Column(string(model.TaskDone))
	sel := b.Clamp(Selection{Col: 0, Item: 5, ItemID: "t2"})
	if sel.Col != done || sel.Item != 0 {
		t.Fatalf("expected selection to follow t2; got %+v", sel)
	}

	sel = b.Clamp(Selection{Col: 99, Item: 3})
	if sel.Col != len(b.Columns)-1 || sel.Item != -1 {
		t.Fatalf("expected clamped empty selection; got %+v", sel)
	}
	if _, ok := b.Selected(sel); ok {
		t.Fatalf("expected nothing selected in an empty column")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("Lead"); err != nil || m != ByAssignee {
		t.Fatalf("expected assignee; got %q %v", m, err)
	}
	if _, err := ParseMode("size"); err == nil {
		t.Fatalf("expected error")
	}
	if ByAssignee.Next() != ByStatus {
		t.Fatalf("expected mode cycle to wrap")
	}
}
