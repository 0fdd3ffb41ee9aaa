package mutate

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamboard/internal/model"
)

func SetStatus(v string) model.Patch   { return model.Patch{"status": strings.TrimSpace(v)} }
func SetPriority(v string) model.Patch { return model.Patch{"priority": strings.TrimSpace(v)} }
func SetTitle(v string) model.Patch    { return model.Patch{"title": strings.TrimSpace(v)} }
func SetName(v string) model.Patch     { return model.Patch{"name": strings.TrimSpace(v)} }
func SetSummary(v string) model.Patch  { return model.Patch{"summary": v} }

func SetDescription(v string) model.Patch { return model.Patch{"description": v} }

// SetLead sets or (with "") clears a project lead.
func SetLead(memberID string) model.Patch {
	return model.Patch{"lead": optionalID(memberID)}
}

// SetAssignee sets or (with "") clears an issue assignee.
func SetAssignee(memberID string) model.Patch {
	return model.Patch{"assigneeId": optionalID(memberID)}
}

// SetAssignees replaces a task's assignee set.
func SetAssignees(ids []string) model.Patch {
	next := model.NormalizeAssignees(ids)
	if next == nil {
		next = []string{}
	}
	return model.Patch{"assignees": next}
}

func SetStartDate(t *time.Time) model.Patch  { return model.Patch{"startDate": optionalTime(t)} }
func SetTargetDate(t *time.Time) model.Patch { return model.Patch{"targetDate": optionalTime(t)} }

func SetAttachments(xs []model.Attachment) model.Patch {
	if xs == nil {
		xs = []model.Attachment{}
	}
	return model.Patch{"attachments": plain(xs)}
}

func optionalID(id string) any {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return id
}

func optionalTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

// plain converts nested structs to JSON-shaped values so every backend stores them under their
// JSON field names.
func plain(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// AddResourcePatch returns the patch that appends r to the project's resources. A resource with
// the same id is replaced in place, so ids stay unique. Missing ids are generated.
func AddResourcePatch(p model.Project, r model.Resource, now time.Time) (model.Patch, model.Resource) {
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.AddedAt.IsZero() {
		r.AddedAt = now.UTC()
	}
	next := make([]model.Resource, 0, len(p.Resources)+1)
	replaced := false
	seen := map[string]bool{}
	for _, cur := range p.Resources {
		if seen[cur.ID] {
			continue
		}
		seen[cur.ID] = true
		if cur.ID == r.ID {
			next = append(next, r)
			replaced = true
			continue
		}
		next = append(next, cur)
	}
	if !replaced {
		next = append(next, r)
	}
	return model.Patch{"resources": plain(next)}, r
}

// RemoveResourcePatch drops the resource with id; false when the project has no such resource.
func RemoveResourcePatch(p model.Project, id string) (model.Patch, bool) {
	id = strings.TrimSpace(id)
	next := make([]model.Resource, 0, len(p.Resources))
	found := false
	for _, cur := range p.Resources {
		if cur.ID == id {
			found = true
			continue
		}
		next = append(next, cur)
	}
	if !found {
		return nil, false
	}
	return model.Patch{"resources": plain(next)}, true
}

// AddResource appends a resource to a cached project through the coordinator.
func AddResource(c *Coordinator[model.Project], projectID string, r model.Resource) (model.Resource, error) {
	p, ok := c.cache.Get(strings.TrimSpace(projectID))
	if !ok {
		return model.Resource{}, NotFoundError{Kind: string(model.KindProject), ID: projectID}
	}
	if strings.TrimSpace(r.URL) == "" {
		return model.Resource{}, requiredField("url")
	}
	patch, added := AddResourcePatch(p, r, c.now())
	c.Mutate(p.ID, patch)
	return added, nil
}

// RemoveResource drops a resource from a cached project through the coordinator.
func RemoveResource(c *Coordinator[model.Project], projectID, resourceID string) error {
	p, ok := c.cache.Get(strings.TrimSpace(projectID))
	if !ok {
		return NotFoundError{Kind: string(model.KindProject), ID: projectID}
	}
	patch, ok := RemoveResourcePatch(p, resourceID)
	if !ok {
		return NotFoundError{Kind: "resource", ID: resourceID}
	}
	c.Mutate(p.ID, patch)
	return nil
}
