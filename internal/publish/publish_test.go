package publish

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"teamboard/internal/model"
)

func testPage() ProjectPage {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	lead := "u1"
	target := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	assignee := "u2"
	return ProjectPage{
		Project: model.Project{
			ID: "p1", Name: "Launch", Summary: "Ship v1", Description: "Some **markdown**.",
			Status: model.ProjectInProgress, Priority: model.ProjectPriorityHigh,
			Lead: &lead, TargetDate: &target, CreatedAt: now,
			Resources: []model.Resource{{ID: "r1", URL: "https://example.com/design-doc"}},
		},
		Tasks: []model.Task{
			{ID: "t2", Title: "Announce", Status: model.TaskTodo, CreatedAt: now},
			{ID: "t1", Title: "Write docs", Status: model.TaskBacklog, Assignees: []string{"u1", "u2"}, CreatedAt: now},
		},
		Issues: []model.Issue{
			{ID: "i1", Title: "Crash", Status: model.IssueTodo, Priority: model.IssuePriorityUrgent, AssigneeID: &assignee},
		},
		Updates: []model.Update{
			{ID: "u-2", AuthorID: "u1", Content: "Second", CreatedAt: now.Add(2 * time.Hour)},
			{ID: "u-1", AuthorID: "u1", Content: "First", Status: "on-track", CreatedAt: now.Add(time.Hour)},
		},
		Members: []model.Member{{UserID: "u1", DisplayName: "Ada"}, {UserID: "u2"}},
	}
}

func TestRenderProjectMarkdown(t *testing.T) {
	md := RenderProjectMarkdown(testPage())
	for _, want := range []string{
		"# Launch",
		"> Ship v1",
		"- Status: In Progress",
		"- Lead: Ada (u1)",
		"- Target: 2026-04-01",
		"[https://example.com/design-doc](https://example.com/design-doc)",
		"- Crash (Todo, Urgent) @u2",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in markdown; got:\n%s", want, md)
		}
	}
	// Tasks follow status order: backlog before todo.
	if strings.Index(md, "tasks/t1.md") > strings.Index(md, "tasks/t2.md") {
		t.Fatalf("expected backlog task first; got:\n%s", md)
	}
	// Updates read oldest first.
	if strings.Index(md, "First") > strings.Index(md, "Second") {
		t.Fatalf("expected updates oldest first; got:\n%s", md)
	}
}

func TestRenderTaskMarkdown(t *testing.T) {
	p := testPage()
	md := RenderTaskMarkdown(TaskPage{Project: p.Project, Task: p.Tasks[1], Members: p.Members})
	if !strings.Contains(md, "- Assignees: Ada (u1), u2") {
		t.Fatalf("expected assignees; got:\n%s", md)
	}
	if !strings.Contains(md, "[Launch](../index.md)") {
		t.Fatalf("expected link back to the project; got:\n%s", md)
	}
}

func TestWriteProjectRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	res, err := WriteProject(testPage(), map[string][]model.Update{
		"t1": {{ID: "x", AuthorID: "u2", Content: "Halfway"}},
	}, dir, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteProject error: %v", err)
	}
	if len(res.Written) != 3 {
		t.Fatalf("expected index + 2 task pages; got %v", res.Written)
	}
	b, err := os.ReadFile(filepath.Join(dir, "projects", "p1", "tasks", "t1.md"))
	if err != nil {
		t.Fatalf("read task page: %v", err)
	}
	if !strings.Contains(string(b), "Halfway") {
		t.Fatalf("expected task update in page; got:\n%s", b)
	}

	if _, err := WriteProject(testPage(), nil, dir, WriteOptions{}); err == nil || !strings.Contains(err.Error(), "--overwrite") {
		t.Fatalf("expected overwrite error; got %v", err)
	}
	if _, err := WriteProject(testPage(), nil, dir, WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("expected overwrite to succeed; got %v", err)
	}
}
