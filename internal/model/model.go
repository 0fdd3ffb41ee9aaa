package model

import "time"

type Kind string

const (
	KindWorkspace Kind = "workspace"
	KindMember    Kind = "member"
	KindProject   Kind = "project"
	KindTask      Kind = "task"
	KindIssue     Kind = "issue"
	KindUpdate    Kind = "update"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Entity is implemented by every persisted document kind.
type Entity interface {
	EntityID() string
	EntityKind() Kind
	Created() time.Time
}

type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func (w Workspace) EntityID() string   { return w.ID }
func (w Workspace) EntityKind() Kind   { return KindWorkspace }
func (w Workspace) Created() time.Time { return w.CreatedAt }

// Member is a workspace-scoped user reference. The document id is the user id.
type Member struct {
	UserID      string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"createdAt"`
}

func (m Member) EntityID() string   { return m.UserID }
func (m Member) EntityKind() Kind   { return KindMember }
func (m Member) Created() time.Time { return m.JoinedAt }

// Label returns the display name, falling back to email and then the user id.
func (m Member) Label() string {
	switch {
	case m.DisplayName != "":
		return m.DisplayName
	case m.Email != "":
		return m.Email
	default:
		return m.UserID
	}
}

type Resource struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	AddedBy string    `json:"addedBy"`
	AddedAt time.Time `json:"addedAt"`
}

type Attachment struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Link struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

type Project struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspaceId"`
	Name        string          `json:"name"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      ProjectStatus   `json:"status"`
	Priority    ProjectPriority `json:"priority"`
	Lead        *string         `json:"lead"`
	StartDate   *time.Time      `json:"startDate"`
	TargetDate  *time.Time      `json:"targetDate"`
	Resources   []Resource      `json:"resources"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p Project) EntityID() string   { return p.ID }
func (p Project) EntityKind() Kind   { return KindProject }
func (p Project) Created() time.Time { return p.CreatedAt }

type Task struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"projectId"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary,omitempty"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	Assignees   []string     `json:"assignees"`
	StartDate   *time.Time   `json:"startDate"`
	TargetDate  *time.Time   `json:"targetDate"`
	Attachments []Attachment `json:"attachments"`
	CreatedBy   string       `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (t Task) EntityID() string   { return t.ID }
func (t Task) EntityKind() Kind   { return KindTask }
func (t Task) Created() time.Time { return t.CreatedAt }

// Issue is the single-assignee variant of Task with its own status and priority sets.
type Issue struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"projectId"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary,omitempty"`
	Description string        `json:"description,omitempty"`
	Status      IssueStatus   `json:"status"`
	Priority    IssuePriority `json:"priority"`
	AssigneeID  *string       `json:"assigneeId"`
	StartDate   *time.Time    `json:"startDate"`
	TargetDate  *time.Time    `json:"targetDate"`
	Attachments []Attachment  `json:"attachments"`
	CreatedBy   string        `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (i Issue) EntityID() string   { return i.ID }
func (i Issue) EntityKind() Kind   { return KindIssue }
func (i Issue) Created() time.Time { return i.CreatedAt }

// Update is a status post attached to either a project or a task; the parent is implied by the
// collection it lives in.
type Update struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Status    string    `json:"status,omitempty"`
	Links     []Link    `json:"links,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u Update) EntityID() string   { return u.ID }
func (u Update) EntityKind() Kind   { return KindUpdate }
func (u Update) Created() time.Time { return u.CreatedAt }
