package model

import (
	"fmt"
	"strings"
)

type ProjectStatus string

const (
	ProjectPlanned    ProjectStatus = "planned"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

type ProjectPriority string

const (
	ProjectPriorityNone   ProjectPriority = "none"
	ProjectPriorityUrgent ProjectPriority = "urgent"
	ProjectPriorityHigh   ProjectPriority = "high"
	ProjectPriorityMedium ProjectPriority = "medium"
	ProjectPriorityLow    ProjectPriority = "low"
)

type TaskStatus string

const (
	TaskBacklog    TaskStatus = "backlog"
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskInReview   TaskStatus = "in-review"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

type TaskPriority string

const (
	TaskNoPriority     TaskPriority = "no-priority"
	TaskPriorityUrgent TaskPriority = "urgent"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

type IssueStatus string

const (
	IssueBacklog    IssueStatus = "backlog"
	IssueTodo       IssueStatus = "todo"
	IssueInProgress IssueStatus = "in-progress"
	IssueDone       IssueStatus = "done"
	IssueCancelled  IssueStatus = "cancelled"
)

type IssuePriority string

const (
	IssuePriorityNone   IssuePriority = "none"
	IssuePriorityUrgent IssuePriority = "urgent"
	IssuePriorityHigh   IssuePriority = "high"
	IssuePriorityMedium IssuePriority = "medium"
	IssuePriorityLow    IssuePriority = "low"
)

// Option is one value of a closed enumeration, in display order.
type Option struct {
	Value string
	Label string
	Icon  string
}

// The option lists below define column order on boards; keep them in domain order.

var ProjectStatuses = []Option{
	{Value: string(ProjectPlanned), Label: "Planned", Icon: "○"},
	{Value: string(ProjectInProgress), Label: "In Progress", Icon: "◐"},
	{Value: string(ProjectCompleted), Label: "Completed", Icon: "●"},
	{Value: string(ProjectCancelled), Label: "Cancelled", Icon: "⊘"},
}

var ProjectPriorities = []Option{
	{Value: string(ProjectPriorityNone), Label: "No priority", Icon: "·"},
	{Value: string(ProjectPriorityUrgent), Label: "Urgent", Icon: "!"},
	{Value: string(ProjectPriorityHigh), Label: "High", Icon: "▲"},
	{Value: string(ProjectPriorityMedium), Label: "Medium", Icon: "■"},
	{Value: string(ProjectPriorityLow), Label: "Low", Icon: "▼"},
}

var TaskStatuses = []Option{
	{Value: string(TaskBacklog), Label: "Backlog", Icon: "◌"},
	{Value: string(TaskTodo), Label: "Todo", Icon: "○"},
	{Value: string(TaskInProgress), Label: "In Progress", Icon: "◐"},
	{Value: string(TaskInReview), Label: "In Review", Icon: "◑"},
	{Value: string(TaskDone), Label: "Done", Icon: "●"},
	{Value: string(TaskCancelled), Label: "Cancelled", Icon: "⊘"},
}

var TaskPriorities = []Option{
	{Value: string(TaskNoPriority), Label: "No priority", Icon: "·"},
	{Value: string(TaskPriorityUrgent), Label: "Urgent", Icon: "!"},
	{Value: string(TaskPriorityHigh), Label: "High", Icon: "▲"},
	{Value: string(TaskPriorityMedium), Label: "Medium", Icon: "■"},
	{Value: string(TaskPriorityLow), Label: "Low", Icon: "▼"},
}

var IssueStatuses = []Option{
	{Value: string(IssueBacklog), Label: "Backlog", Icon: "◌"},
	{Value: string(IssueTodo), Label: "Todo", Icon: "○"},
	{Value: string(IssueInProgress), Label: "In Progress", Icon: "◐"},
	{Value: string(IssueDone), Label: "Done", Icon: "●"},
	{Value: string(IssueCancelled), Label: "Cancelled", Icon: "⊘"},
}

var IssuePriorities = []Option{
	{Value: string(IssuePriorityNone), Label: "No priority", Icon: "·"},
	{Value: string(IssuePriorityUrgent), Label: "Urgent", Icon: "!"},
	{Value: string(IssuePriorityHigh), Label: "High", Icon: "▲"},
	{Value: string(IssuePriorityMedium), Label: "Medium", Icon: "■"},
	{Value: string(IssuePriorityLow), Label: "Low", Icon: "▼"},
}

// StatusOptions returns the status enumeration for a groupable kind.
func StatusOptions(k Kind) []Option {
	switch k {
	case KindProject:
		return ProjectStatuses
	case KindTask:
		return TaskStatuses
	case KindIssue:
		return IssueStatuses
	default:
		return nil
	}
}

// PriorityOptions returns the priority enumeration for a groupable kind.
func PriorityOptions(k Kind) []Option {
	switch k {
	case KindProject:
		return ProjectPriorities
	case KindTask:
		return TaskPriorities
	case KindIssue:
		return IssuePriorities
	default:
		return nil
	}
}

// ParseOption normalizes user input ("In Progress", "in_progress", "IN-PROGRESS") to an option value.
func ParseOption(opts []Option, s string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", "-")
	norm = strings.ReplaceAll(norm, " ", "-")
	if norm == "" {
		return "", fmt.Errorf("invalid value: empty")
	}
	for _, o := range opts {
		if o.Value == norm || strings.EqualFold(o.Label, strings.TrimSpace(s)) {
			return o.Value, nil
		}
	}
	vals := make([]string, 0, len(opts))
	for _, o := range opts {
		vals = append(vals, o.Value)
	}
	return "", fmt.Errorf("invalid value: %q (expected %s)", s, strings.Join(vals, "|"))
}

// HasOption reports whether v is one of the option values.
func HasOption(opts []Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}

// NormalizeRole parses a member role.
func NormalizeRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "owner":
		return RoleOwner, nil
	case "admin":
		return RoleAdmin, nil
	case "", "member":
		return RoleMember, nil
	default:
		return "", fmt.Errorf("invalid role: %q (expected owner|admin|member)", s)
	}
}
