package resolver

import (
	"reflect"
	"testing"

	"teamboard/internal/model"
)

type recorder struct {
	events    []string
	redirects []string
}

func (rec *recorder) hooks() Hooks {
	return Hooks{
		Teardown: func(id string) { rec.events = append(rec.events, "teardown:"+id) },
		Activate: func(ws model.Workspace, rest string) {
			rec.events = append(rec.events, "activate:"+ws.ID+rest)
		},
		Redirect: func(loc string) { rec.redirects = append(rec.redirects, loc) },
	}
}

var (
	acme  = model.Workspace{ID: "w1", Name: "Acme", Slug: "acme"}
	other = model.Workspace{ID: "w2", Name: "Other", Slug: "other"}
)

func TestResolvingUntilListLoads(t *testing.T) {
	rec := &recorder{}
	r := New(rec.hooks(), nil)
	if st := r.SetLocation("/acme/projects"); st.State != Resolving {
		t.Fatalf("expected resolving; got %q", st.State)
	}
	st := r.SetWorkspaces([]model.Workspace{acme, other})
	if st.State != Valid || st.Workspace == nil || st.Workspace.ID != "w1" {
		t.Fatalf("expected valid w1; got %+v", st)
	}
	if !reflect.DeepEqual(rec.events, []string{"activate:w1/projects"}) {
		t.Fatalf("unexpected events: %v", rec.events)
	}
}

func TestMatchesSlugBeforeID(t *testing.T) {
	tricky := model.Workspace{ID: "acme", Slug: "tricky"}
	rec := &recorder{}
	r := New(rec.hooks(), nil)
	r.SetWorkspaces([]model.Workspace{tricky, acme})
	st := r.SetLocation("/acme")
	if st.Workspace == nil || st.Workspace.ID != "w1" {
		t.Fatalf("expected slug match w1; got %+v", st.Workspace)
	}
	st = r.SetLocation("/w1/tasks")
	if st.Workspace == nil || st.Workspace.ID != "w1" {
		t.Fatalf("expected id match w1; got %+v", st.Workspace)
	}
}

func TestUnknownTokenRedirectsPreservingSubPath(t *testing.T) {
	rec := &recorder{}
	r := New(rec.hooks(), nil)
	r.SetLocation("/old/projects/p1")
	st := r.SetWorkspaces([]model.Workspace{other, acme})
	if st.State != Valid || st.Location != "/other/projects/p1" || st.Redirected != "/other/projects/p1" {
		t.Fatalf("expected redirect to /other/projects/p1; got %+v", st)
	}
	if !reflect.DeepEqual(rec.redirects, []string{"/other/projects/p1"}) {
		t.Fatalf("unexpected redirects: %v", rec.redirects)
	}
}

func TestSwitchTearsDownBeforeActivate(t *testing.T) {
	rec := &recorder{}
	r := New(rec.hooks(), nil)
	r.SetWorkspaces([]model.Workspace{acme, other})
	r.SetLocation("/acme")
	r.SetLocation("/other/projects")
	want := []string{"activate:w1", "teardown:w1", "activate:w2/projects"}
	if !reflect.DeepEqual(rec.events, want) {
		t.Fatalf("expected %v; got %v", want, rec.events)
	}
}

func TestSameWorkspaceIsNoop(t *testing.T) {
	rec := &recorder{}
	r := New(rec.hooks(), nil)
	r.SetWorkspaces([]model.Workspace{acme})
	r.SetLocation("/acme")
	r.SetLocation("/acme/projects/p1")
	r.SetLocation("/w1")
	r.SetWorkspaces([]model.Workspace{acme, other})
	if len(rec.events) != 1 {
		t.Fatalf("expected a single activation; got %v", rec.events)
	}
}

func TestRenamedSlugRedirectsToSameWorkspace(t *testing.T) {
	rec := &recorder{}
	r := New(rec.hooks(), nil)
	r.SetWorkspaces([]model.Workspace{other, acme})
	r.SetLocation("/acme/tasks")
	renamed := acme
	renamed.Slug = "acme-inc"
	st := r.SetWorkspaces([]model.Workspace{other, renamed})
	if st.Location != "/acme-inc/tasks" || st.Workspace.ID != "w1" {
		t.Fatalf("expected redirect to renamed slug; got %+v", st)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected no teardown; got %v", rec.events)
	}
}

func TestEmptyListIsInvalidWithoutRedirect(t *testing.T) {
	rec := &recorder{}
	r := New(rec.hooks(), nil)
	r.SetWorkspaces([]model.Workspace{acme})
	r.SetLocation("/acme")
	st := r.SetWorkspaces(nil)
	if st.State != Invalid || st.Workspace != nil {
		t.Fatalf("expected invalid with no workspace; got %+v", st)
	}
	if len(rec.redirects) != 0 {
		t.Fatalf("expected no redirect; got %v", rec.redirects)
	}
	if rec.events[len(rec.events)-1] != "teardown:w1" {
		t.Fatalf("expected teardown of w1; got %v", rec.events)
	}
}

func TestReentrantInputIsQueued(t *testing.T) {
	var r *Resolver
	var events []string
	r = New(Hooks{
		Activate: func(ws model.Workspace, _ string) {
			events = append(events, ws.ID)
			if ws.ID == "w1" {
				if st := r.SetLocation("/other"); st.State == Valid && st.Workspace != nil && st.Workspace.ID == "w2" {
					t.Errorf("expected queued input not to be applied yet")
				}
			}
		},
	}, nil)
	r.SetLocation("/acme")
	st := r.SetWorkspaces([]model.Workspace{acme, other})
	if st.Workspace == nil || st.Workspace.ID != "w2" {
		t.Fatalf("expected queued navigation to w2; got %+v", st)
	}
	if !reflect.DeepEqual(events, []string{"w1", "w2"}) {
		t.Fatalf("unexpected activations: %v", events)
	}
}

func TestPathHelpers(t *testing.T) {
	if got := Path(acme, "projects", "/p1/"); got != "/acme/projects/p1" {
		t.Fatalf("expected /acme/projects/p1; got %q", got)
	}
	if got := SubPath("acme/projects/p1?x=1"); !reflect.DeepEqual(got, []string{"projects", "p1"}) {
		t.Fatalf("unexpected sub path: %v", got)
	}
	if got := Path(model.Workspace{ID: "w9"}); got != "/w9" {
		t.Fatalf("expected id fallback; got %q", got)
	}
}
