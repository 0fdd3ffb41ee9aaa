package model

import (
	"strings"
	"time"
)

// Field names a groupable dimension of a board.
type Field string

const (
	FieldStatus   Field = "status"
	FieldPriority Field = "priority"
	// FieldAssignee is the lead for projects, the assignee set for tasks and the single
	// assignee for issues.
	FieldAssignee Field = "assignee"
)

// Unassigned is the group key used for items without a lead/assignee.
const Unassigned = ""

// Groupable is the shared capability surface of the board-able entity variants.
type Groupable interface {
	Entity
	// GroupKeys returns the column keys this item belongs to for f. Status and priority
	// always yield exactly one key; assignee may yield several.
	GroupKeys(f Field) []string
	// MovePatch returns the patch that moves the item from column `from` to column `to`,
	// or false when the item already belongs to `to`.
	MovePatch(f Field, from, to string) (Patch, bool)
	BoardItem() BoardItem
}

// BoardItem is the read-only projection rendered in board columns.
type BoardItem struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary,omitempty"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	Lead       string     `json:"lead,omitempty"`
	Assignees  []string   `json:"assignees,omitempty"`
	TargetDate *time.Time `json:"targetDate,omitempty"`
}

func enumKey(opts []Option, v string) string {
	v = strings.TrimSpace(v)
	if HasOption(opts, v) {
		return v
	}
	// Unknown or empty values land in the first (default) option.
	if len(opts) > 0 {
		return opts[0].Value
	}
	return v
}

func ptrKey(p *string) string {
	if p == nil {
		return Unassigned
	}
	return strings.TrimSpace(*p)
}

func singleMove(current, to string, field string) (Patch, bool) {
	if current == to {
		return nil, false
	}
	return Patch{field: to}, true
}

func (p Project) GroupKeys(f Field) []string {
	switch f {
	case FieldStatus:
		return []string{enumKey(ProjectStatuses, string(p.Status))}
	case FieldPriority:
		return []string{enumKey(ProjectPriorities, string(p.Priority))}
	case FieldAssignee:
		return []string{ptrKey(p.Lead)}
	}
	return nil
}

func (p Project) MovePatch(f Field, from, to string) (Patch, bool) {
	switch f {
	case FieldStatus:
		return singleMove(enumKey(ProjectStatuses, string(p.Status)), to, "status")
	case FieldPriority:
		return singleMove(enumKey(ProjectPriorities, string(p.Priority)), to, "priority")
	case FieldAssignee:
		if ptrKey(p.Lead) == to {
			return nil, false
		}
		if to == Unassigned {
			return Patch{"lead": nil}, true
		}
		return Patch{"lead": to}, true
	}
	return nil, false
}

func (p Project) BoardItem() BoardItem {
	return BoardItem{
		ID:         p.ID,
		Kind:       KindProject,
		Title:      p.Name,
		Summary:    p.Summary,
		Status:     enumKey(ProjectStatuses, string(p.Status)),
		Priority:   enumKey(ProjectPriorities, string(p.Priority)),
		Lead:       ptrKey(p.Lead),
		TargetDate: p.TargetDate,
	}
}

func (t Task) GroupKeys(f Field) []string {
	switch f {
	case FieldStatus:
		return []string{enumKey(TaskStatuses, string(t.Status))}
	case FieldPriority:
		return []string{enumKey(TaskPriorities, string(t.Priority))}
	case FieldAssignee:
		ids := NormalizeAssignees(t.Assignees)
		if len(ids) == 0 {
			return []string{Unassigned}
		}
		return ids
	}
	return nil
}

func (t Task) MovePatch(f Field, from, to string) (Patch, bool) {
	switch f {
	case FieldStatus:
		return singleMove(enumKey(TaskStatuses, string(t.Status)), to, "status")
	case FieldPriority:
		return singleMove(enumKey(TaskPriorities, string(t.Priority)), to, "priority")
	case FieldAssignee:
		cur := NormalizeAssignees(t.Assignees)
		if to != Unassigned && containsString(cur, to) {
			return nil, false
		}
		if to == Unassigned && len(cur) == 0 {
			return nil, false
		}
		next := make([]string, 0, len(cur)+1)
		for _, id := range cur {
			// Moving into "unassigned" clears the set; otherwise only the source column's
			// assignee is swapped for the target.
			if to == Unassigned || id == from {
				continue
			}
			next = append(next, id)
		}
		if to != Unassigned {
			next = append(next, to)
		}
		return Patch{"assignees": next}, true
	}
	return nil, false
}

func (t Task) BoardItem() BoardItem {
	return BoardItem{
		ID:         t.ID,
		Kind:       KindTask,
		Title:      t.Title,
		Summary:    t.Summary,
		Status:     enumKey(TaskStatuses, string(t.Status)),
		Priority:   enumKey(TaskPriorities, string(t.Priority)),
		Assignees:  NormalizeAssignees(t.Assignees),
		TargetDate: t.TargetDate,
	}
}

func (i Issue) GroupKeys(f Field) []string {
	switch f {
	case FieldStatus:
		return []string{enumKey(IssueStatuses, string(i.Status))}
	case FieldPriority:
		return []string{enumKey(IssuePriorities, string(i.Priority))}
	case FieldAssignee:
		return []string{ptrKey(i.AssigneeID)}
	}
	return nil
}

func (i Issue) MovePatch(f Field, from, to string) (Patch, bool) {
	switch f {
	case FieldStatus:
		return singleMove(enumKey(IssueStatuses, string(i.Status)), to, "status")
	case FieldPriority:
		return singleMove(enumKey(IssuePriorities, string(i.Priority)), to, "priority")
	case FieldAssignee:
		if ptrKey(i.AssigneeID) == to {
			return nil, false
		}
		if to == Unassigned {
			return Patch{"assigneeId": nil}, true
		}
		return Patch{"assigneeId": to}, true
	}
	return nil, false
}

func (i Issue) BoardItem() BoardItem {
	var assignees []string
	if k := ptrKey(i.AssigneeID); k != Unassigned {
		assignees = []string{k}
	}
	return BoardItem{
		ID:         i.ID,
		Kind:       KindIssue,
		Title:      i.Title,
		Summary:    i.Summary,
		Status:     enumKey(IssueStatuses, string(i.Status)),
		Priority:   enumKey(IssuePriorities, string(i.Priority)),
		Assignees:  assignees,
		TargetDate: i.TargetDate,
	}
}

// NormalizeAssignees trims, drops empties and de-duplicates while keeping first-seen order.
func NormalizeAssignees(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// ProjectChild is implemented by entities stored under a project.
type ProjectChild interface {
	ParentProjectID() string
}

func (t Task) ParentProjectID() string  { return t.ProjectID }
func (i Issue) ParentProjectID() string { return i.ProjectID }
