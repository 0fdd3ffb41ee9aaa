package resolver

import (
	"log/slog"
	"strings"
	"sync"

	"teamboard/internal/model"
)

type State string

const (
	Resolving State = "resolving"
	Valid     State = "valid"
	Switching State = "switching"
	Invalid   State = "invalid"
)

// Hooks are the scope transitions the resolver drives. Any hook may be nil.
type Hooks struct {
	// Teardown runs for the outgoing workspace before the next one is activated.
	Teardown func(workspaceID string)
	// Activate attaches the incoming workspace. rest is the sub-path after the workspace token.
	Activate func(ws model.Workspace, rest string)
	// Redirect receives the rewritten location when the workspace token did not resolve.
	Redirect func(location string)
	// Changed observes every settled status.
	Changed func(Status)
}

type Status struct {
	State     State            `json:"state"`
	Location  string           `json:"location"`
	Workspace *model.Workspace `json:"workspace,omitempty"`
	// Redirected is the location the last unknown token was rewritten to, if any.
	Redirected string `json:"redirected,omitempty"`
}

// Resolver derives the active workspace from a location such as "/acme/projects/p1".
// Inputs are serialized; a hook that feeds the resolver again only queues its input.
type Resolver struct {
	hooks Hooks
	log   *slog.Logger

	mu         sync.Mutex
	queue      []func()
	draining   bool
	location   string
	workspaces []model.Workspace
	loaded     bool
	state      State
	active     *model.Workspace
	redirected string
}

func New(hooks Hooks, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{hooks: hooks, log: log, state: Resolving, location: "/"}
}

// SetLocation records the navigation location and re-resolves.
func (r *Resolver) SetLocation(location string) Status {
	loc := normalize(location)
	return r.submit(func() { r.location = loc })
}

// SetWorkspaces records the (possibly empty) list of workspaces visible to the user and
// re-resolves.
func (r *Resolver) SetWorkspaces(list []model.Workspace) Status {
	next := append([]model.Workspace(nil), list...)
	return r.submit(func() {
		r.workspaces = next
		r.loaded = true
	})
}

func (r *Resolver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

// ActiveID returns the active workspace id, or "".
func (r *Resolver) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.ID
}

func (r *Resolver) statusLocked() Status {
	st := Status{State: r.state, Location: r.location, Redirected: r.redirected}
	if r.active != nil {
		ws := *r.active
		st.Workspace = &ws
	}
	return st
}

func (r *Resolver) submit(apply func()) Status {
	r.mu.Lock()
	r.queue = append(r.queue, apply)
	if r.draining {
		st := r.statusLocked()
		r.mu.Unlock()
		return st
	}
	r.draining = true
	for len(r.queue) > 0 {
		fn := r.queue[0]
		r.queue = r.queue[1:]
		fn()
		r.stepLocked()
		if r.hooks.Changed != nil {
			st := r.statusLocked()
			r.unlocked(func() { r.hooks.Changed(st) })
		}
	}
	r.draining = false
	st := r.statusLocked()
	r.mu.Unlock()
	return st
}

// unlocked runs a hook without holding r.mu. Must be called with r.mu held.
func (r *Resolver) unlocked(fn func()) {
	r.mu.Unlock()
	defer r.mu.Lock()
	fn()
}

func (r *Resolver) stepLocked() {
	if !r.loaded {
		r.state = Resolving
		return
	}
	token, rest := split(r.location)
	ws, ok := match(r.workspaces, token)
	if !ok {
		r.state = Invalid
		target, ok := r.redirectTargetLocked()
		if !ok {
			r.log.Warn("no workspace to resolve", "location", r.location)
			r.deactivateLocked()
			return
		}
		loc := join(target, rest)
		r.log.Info("redirecting unknown workspace", "from", r.location, "to", loc)
		r.location = loc
		r.redirected = loc
		if r.hooks.Redirect != nil {
			r.unlocked(func() { r.hooks.Redirect(loc) })
		}
		ws = target
	}

	if r.active != nil && r.active.ID == ws.ID {
		// Same workspace: refresh the record (slug or name may have changed), keep the scope.
		cur := ws
		r.active = &cur
		r.state = Valid
		return
	}
	if r.active != nil {
		r.state = Switching
		r.deactivateLocked()
	}
	if r.hooks.Activate != nil {
		r.unlocked(func() { r.hooks.Activate(ws, rest) })
	}
	cur := ws
	r.active = &cur
	r.state = Valid
	r.log.Info("workspace active", "workspace_id", ws.ID, "slug", ws.Slug)
}

func (r *Resolver) deactivateLocked() {
	if r.active == nil {
		return
	}
	prev := r.active.ID
	r.active = nil
	if r.hooks.Teardown != nil {
		r.unlocked(func() { r.hooks.Teardown(prev) })
	}
}

// redirectTargetLocked prefers the active workspace (its slug may have been renamed) and then
// the first listed one.
func (r *Resolver) redirectTargetLocked() (model.Workspace, bool) {
	if r.active != nil {
		for _, w := range r.workspaces {
			if w.ID == r.active.ID {
				return w, true
			}
		}
	}
	if len(r.workspaces) == 0 {
		return model.Workspace{}, false
	}
	return r.workspaces[0], true
}

// match resolves a location token by slug first, then by id.
func match(list []model.Workspace, token string) (model.Workspace, bool) {
	if token == "" {
		return model.Workspace{}, false
	}
	for _, w := range list {
		if w.Slug != "" && w.Slug == token {
			return w, true
		}
	}
	for _, w := range list {
		if w.ID == token {
			return w, true
		}
	}
	return model.Workspace{}, false
}

func normalize(location string) string {
	location = strings.TrimSpace(location)
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	location = strings.Trim(location, "/")
	if location == "" {
		return "/"
	}
	return "/" + location
}

// split returns the workspace token and the remaining sub-path ("" or "/...").
func split(location string) (string, string) {
	p := strings.TrimPrefix(location, "/")
	if p == "" {
		return "", ""
	}
	token, rest, found := strings.Cut(p, "/")
	if !found || rest == "" {
		return token, ""
	}
	return token, "/" + rest
}

func join(ws model.Workspace, rest string) string {
	token := ws.Slug
	if token == "" {
		token = ws.ID
	}
	return "/" + token + rest
}

// Path builds a location for a workspace and optional sub-path segments.
func Path(ws model.Workspace, segments ...string) string {
	rest := ""
	for _, s := range segments {
		s = strings.Trim(strings.TrimSpace(s), "/")
		if s != "" {
			rest += "/" + s
		}
	}
	return join(ws, rest)
}

// SubPath splits the sub-path of a location into its segments.
func SubPath(location string) []string {
	_, rest := split(normalize(location))
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
