package publish

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"teamboard/internal/model"
)

// ProjectPage is everything an exported project shows.
type ProjectPage struct {
	Project model.Project
	Tasks   []model.Task
	Issues  []model.Issue
	Updates []model.Update
	Members []model.Member
}

// TaskPage is one exported task with its updates.
type TaskPage struct {
	Project model.Project
	Task    model.Task
	Updates []model.Update
	Members []model.Member
}

type lines struct{ buf bytes.Buffer }

func (l *lines) ln(s string) {
	l.buf.WriteString(s)
	l.buf.WriteString("\n")
}

func (l *lines) meta(label, v string) {
	if v = strings.TrimSpace(v); v != "" {
		l.ln("- " + label + ": " + v)
	}
}

// who resolves a member id to "Name (id)".
func who(members []model.Member, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	for _, m := range members {
		if m.UserID == id && m.Label() != id {
			return m.Label() + " (" + id + ")"
		}
	}
	return id
}

func date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func optionLabel(opts []model.Option, v string) string {
	for _, o := range opts {
		if o.Value == v {
			return o.Label
		}
	}
	return v
}

// byCreated returns updates oldest first; an export reads as a log.
func byCreated(us []model.Update) []model.Update {
	out := append([]model.Update(nil), us...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func writeUpdates(l *lines, members []model.Member, updates []model.Update) {
	if len(updates) == 0 {
		return
	}
	l.ln("")
	l.ln("## Updates")
	l.ln("")
	for _, u := range byCreated(updates) {
		head := u.CreatedAt.UTC().Format(time.RFC3339)
		if s := strings.TrimSpace(u.Status); s != "" {
			head += " · " + s
		}
		l.ln("### " + head)
		l.ln("")
		l.meta("Author", who(members, u.AuthorID))
		l.ln("")
		body := strings.TrimSpace(u.Content)
		if body == "" {
			body = "(empty)"
		}
		l.ln(body)
		for _, link := range u.Links {
			title := strings.TrimSpace(link.Title)
			if title == "" {
				title = link.URL
			}
			l.ln("")
			l.ln(fmt.Sprintf("- [%s](%s)", title, link.URL))
		}
		l.ln("")
	}
}

// RenderProjectMarkdown renders a project index page linking to its task pages.
func RenderProjectMarkdown(p ProjectPage) string {
	var l lines
	pr := p.Project
	l.ln("# " + strings.TrimSpace(pr.Name))
	l.ln("")
	if s := strings.TrimSpace(pr.Summary); s != "" {
		l.ln("> " + s)
		l.ln("")
	}

	l.ln("## Meta")
	l.ln("")
	l.ln("- ID: " + pr.ID)
	l.meta("Status", optionLabel(model.ProjectStatuses, string(pr.Status)))
	l.meta("Priority", optionLabel(model.ProjectPriorities, string(pr.Priority)))
	if pr.Lead != nil {
		l.meta("Lead", who(p.Members, *pr.Lead))
	}
	l.meta("Start", date(pr.StartDate))
	l.meta("Target", date(pr.TargetDate))
	if !pr.CreatedAt.IsZero() {
		l.ln("- Created: " + pr.CreatedAt.UTC().Format(time.RFC3339))
	}

	if d := strings.TrimSpace(pr.Description); d != "" {
		l.ln("")
		l.ln("## Description")
		l.ln("")
		l.ln(d)
	}

	if len(pr.Resources) > 0 {
		l.ln("")
		l.ln("## Resources")
		l.ln("")
		for _, r := range pr.Resources {
			title := strings.TrimSpace(r.Title)
			if title == "" {
				title = r.URL
			}
			l.ln(fmt.Sprintf("- [%s](%s)", title, r.URL))
		}
	}

	if len(p.Tasks) > 0 {
		l.ln("")
		l.ln("## Tasks")
		l.ln("")
		// Grouped in status order, the way the board shows them.
		for _, opt := range model.TaskStatuses {
			for _, t := range p.Tasks {
				if string(t.Status) != opt.Value {
					continue
				}
				l.ln(fmt.Sprintf("- [%s](tasks/%s.md) (%s)", strings.TrimSpace(t.Title), t.ID, opt.Label))
			}
		}
	}

	if len(p.Issues) > 0 {
		l.ln("")
		l.ln("## Issues")
		l.ln("")
		for _, i := range p.Issues {
			line := fmt.Sprintf("- %s (%s, %s)", strings.TrimSpace(i.Title),
				optionLabel(model.IssueStatuses, string(i.Status)),
				optionLabel(model.IssuePriorities, string(i.Priority)))
			if i.AssigneeID != nil {
				line += " @" + who(p.Members, *i.AssigneeID)
			}
			l.ln(line)
		}
	}

	writeUpdates(&l, p.Members, p.Updates)
	return l.buf.String()
}

// RenderTaskMarkdown renders a single task page.
func RenderTaskMarkdown(p TaskPage) string {
	var l lines
	t := p.Task
	l.ln("# " + strings.TrimSpace(t.Title))
	l.ln("")

	l.ln("## Meta")
	l.ln("")
	l.ln("- ID: " + t.ID)
	if name := strings.TrimSpace(p.Project.Name); name != "" {
		l.ln("- Project: [" + name + "](../index.md)")
	}
	l.meta("Status", optionLabel(model.TaskStatuses, string(t.Status)))
	l.meta("Priority", optionLabel(model.TaskPriorities, string(t.Priority)))
	if len(t.Assignees) > 0 {
		names := make([]string, 0, len(t.Assignees))
		for _, id := range t.Assignees {
			names = append(names, who(p.Members, id))
		}
		l.ln("- Assignees: " + strings.Join(names, ", "))
	}
	l.meta("Start", date(t.StartDate))
	l.meta("Target", date(t.TargetDate))
	if !t.CreatedAt.IsZero() {
		l.ln("- Created: " + t.CreatedAt.UTC().Format(time.RFC3339))
	}
	if !t.UpdatedAt.IsZero() {
		l.ln("- Updated: " + t.UpdatedAt.UTC().Format(time.RFC3339))
	}

	if s := strings.TrimSpace(t.Summary); s != "" {
		l.ln("")
		l.ln("> " + s)
	}
	if d := strings.TrimSpace(t.Description); d != "" {
		l.ln("")
		l.ln("## Description")
		l.ln("")
		l.ln(d)
	}
	if len(t.Attachments) > 0 {
		l.ln("")
		l.ln("## Attachments")
		l.ln("")
		for _, a := range t.Attachments {
			l.ln(fmt.Sprintf("- [%s](%s)", strings.TrimSpace(a.Title), a.URL))
		}
	}

	writeUpdates(&l, p.Members, p.Updates)
	return l.buf.String()
}
