package scope

import (
	"fmt"
	"strings"
)

type Collection string

const (
	Workspaces     Collection = "workspaces"
	Members        Collection = "members"
	Projects       Collection = "projects"
	Tasks          Collection = "tasks"
	Issues         Collection = "issues"
	ProjectUpdates Collection = "project-updates"
	TaskUpdates    Collection = "task-updates"
)

// Key identifies one collection instance in the document store. A Group key addresses every
// collection with the same leaf name below a workspace (collection group query).
type Key struct {
	Collection  Collection
	WorkspaceID string
	ProjectID   string
	TaskID      string
	Group       bool
}

func WorkspacesKey() Key { return Key{Collection: Workspaces} }

func MembersKey(ws string) Key { return Key{Collection: Members, WorkspaceID: ws} }

func ProjectsKey(ws string) Key { return Key{Collection: Projects, WorkspaceID: ws} }

func TasksKey(ws, project string) Key {
	return Key{Collection: Tasks, WorkspaceID: ws, ProjectID: project}
}

func IssuesKey(ws, project string) Key {
	return Key{Collection: Issues, WorkspaceID: ws, ProjectID: project}
}

func ProjectUpdatesKey(ws, project string) Key {
	return Key{Collection: ProjectUpdates, WorkspaceID: ws, ProjectID: project}
}

func TaskUpdatesKey(ws, project, task string) Key {
	return Key{Collection: TaskUpdates, WorkspaceID: ws, ProjectID: project, TaskID: task}
}

// WorkspaceTasksKey addresses every task of every project in a workspace.
func WorkspaceTasksKey(ws string) Key {
	return Key{Collection: Tasks, WorkspaceID: ws, Group: true}
}

// PreconditionError is returned before any I/O when a required scope id or field is missing.
type PreconditionError struct {
	Field  string
	Reason string
}

func (e PreconditionError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "is required"
	}
	return fmt.Sprintf("precondition failed: %s %s", e.Field, reason)
}

func missing(field string) error { return PreconditionError{Field: field} }

// Validate reports the first required id the collection needs but the key lacks.
func (k Key) Validate() error {
	ws := strings.TrimSpace(k.WorkspaceID)
	p := strings.TrimSpace(k.ProjectID)
	t := strings.TrimSpace(k.TaskID)
	if k.Group {
		if k.Collection != Tasks && k.Collection != Issues {
			return PreconditionError{Field: "collection", Reason: fmt.Sprintf("%q cannot be queried as a group", k.Collection)}
		}
		if ws == "" {
			return missing("workspace id")
		}
		return nil
	}
	switch k.Collection {
	case Workspaces:
		return nil
	case Members, Projects:
		if ws == "" {
			return missing("workspace id")
		}
	case Tasks, Issues, ProjectUpdates:
		if ws == "" {
			return missing("workspace id")
		}
		if p == "" {
			return missing("project id")
		}
	case TaskUpdates:
		if ws == "" {
			return missing("workspace id")
		}
		if p == "" {
			return missing("project id")
		}
		if t == "" {
			return missing("task id")
		}
	default:
		return PreconditionError{Field: "collection", Reason: fmt.Sprintf("unknown collection %q", k.Collection)}
	}
	return nil
}

// Leaf is the store's collection id (last path segment).
func (k Key) Leaf() string {
	switch k.Collection {
	case ProjectUpdates, TaskUpdates:
		return "updates"
	default:
		return string(k.Collection)
	}
}

// Path returns the collection path, e.g. workspaces/{ws}/projects/{p}/tasks. Group keys have no
// single path and return "".
func (k Key) Path() string {
	if k.Group {
		return ""
	}
	switch k.Collection {
	case Workspaces:
		return "workspaces"
	case Members, Projects:
		return "workspaces/" + k.WorkspaceID + "/" + k.Leaf()
	case Tasks, Issues, ProjectUpdates:
		return "workspaces/" + k.WorkspaceID + "/projects/" + k.ProjectID + "/" + k.Leaf()
	case TaskUpdates:
		return "workspaces/" + k.WorkspaceID + "/projects/" + k.ProjectID + "/tasks/" + k.TaskID + "/updates"
	}
	return ""
}

// Prefix is the ownership path prefix used to filter group queries.
func (k Key) Prefix() string {
	return "workspaces/" + k.WorkspaceID + "/"
}

// DocPath returns the full document path for id inside a non-group key.
func (k Key) DocPath(id string) string {
	return k.Path() + "/" + id
}

// String is stable and unique per key; it is used as the subscription identity.
func (k Key) String() string {
	if k.Group {
		return "group:" + k.Leaf() + "@" + k.Prefix()
	}
	return k.Path()
}

// Parse turns a collection path (or "group:tasks@workspaces/{ws}/") back into a Key.
func Parse(s string) (Key, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if rest, ok := strings.CutPrefix(s, "group:"); ok {
		leaf, prefix, found := strings.Cut(rest, "@")
		if !found {
			return Key{}, fmt.Errorf("invalid group key: %q", s)
		}
		segs := strings.Split(strings.Trim(prefix, "/"), "/")
		if len(segs) != 2 || segs[0] != "workspaces" {
			return Key{}, fmt.Errorf("invalid group prefix: %q", prefix)
		}
		k := Key{Collection: Collection(leaf), WorkspaceID: segs[1], Group: true}
		return k, k.Validate()
	}
	segs := strings.Split(s, "/")
	var k Key
	switch {
	case len(segs) == 1 && segs[0] == "workspaces":
		k = WorkspacesKey()
	case len(segs) == 3 && segs[0] == "workspaces" && segs[2] == "members":
		k = MembersKey(segs[1])
	case len(segs) == 3 && segs[0] == "workspaces" && segs[2] == "projects":
		k = ProjectsKey(segs[1])
	case len(segs) == 5 && segs[0] == "workspaces" && segs[2] == "projects":
		switch segs[4] {
		case "tasks":
			k = TasksKey(segs[1], segs[3])
		case "issues":
			k = IssuesKey(segs[1], segs[3])
		case "updates":
			k = ProjectUpdatesKey(segs[1], segs[3])
		default:
			return Key{}, fmt.Errorf("unknown collection: %q", segs[4])
		}
	case len(segs) == 7 && segs[0] == "workspaces" && segs[2] == "projects" && segs[4] == "tasks" && segs[6] == "updates":
		k = TaskUpdatesKey(segs[1], segs[3], segs[5])
	default:
		return Key{}, fmt.Errorf("unrecognized collection path: %q", s)
	}
	return k, k.Validate()
}
