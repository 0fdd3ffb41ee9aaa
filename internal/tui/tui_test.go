package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"teamboard/internal/board"
	"teamboard/internal/docstore"
	"teamboard/internal/engine"
	"teamboard/internal/logging"
	"teamboard/internal/model"
	"teamboard/internal/mutate"
)

func newTestEngine(t *testing.T) (*engine.Engine, *docstore.Memory) {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemory()
	set := func(collection, id string, fields map[string]any) {
		fields["createdAt"] = docstore.ServerTimestamp
		if err := store.Set(ctx, collection, id, fields); err != nil {
			t.Fatalf("Set error: %v", err)
		}
	}
	set("workspaces", "w1", map[string]any{"name": "Acme", "slug": "acme"})
	set("workspaces/w1/projects", "p1", map[string]any{"name": "Alpha", "status": "planned", "priority": "high", "description": "# Goals\n\nShip the **beta**."})
	set("workspaces/w1/projects", "p2", map[string]any{"name": "Beta", "status": "in-progress", "priority": "none"})
	set("workspaces/w1/projects/p1/tasks", "t1", map[string]any{"title": "Write docs", "projectId": "p1", "status": "todo"})

	e, err := engine.New(engine.Options{Store: store, UserID: "u1", Logger: logging.Discard(), Strategy: mutate.Inline{}})
	if err != nil {
		t.Fatalf("engine.New error: %v", err)
	}
	if err := e.Start("/acme"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e, store
}

func press(t *testing.T, m boardModel, msgs ...tea.Msg) boardModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(boardModel)
	}
	return m
}

var (
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	right = tea.KeyMsg{Type: tea.KeyRight}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
)

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestViewShowsColumnsAndCards(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	e, _ := newTestEngine(t)
	m := newBoardModel(e, "projects", board.ByStatus, nil)
	m = press(t, m, tea.WindowSizeMsg{Width: 120, Height: 20})

	out := xansi.Strip(m.View())
	for _, want := range []string{"Acme / projects", "Planned (1)", "In Progress (1)", "Alpha", "Beta"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view; got\n%s", want, out)
		}
	}
}

func TestDragAcrossColumnsMutatesOnce(t *testing.T) {
	e, store := newTestEngine(t)
	m := newBoardModel(e, "projects", board.ByStatus, nil)

	var writes int
	store.SetWriteHook(func(string, string, string) error {
		writes++
		return nil
	})
	m = press(t, m, space, right, right, space)
	if m.drag != nil {
		t.Fatalf("expected drag to end on drop")
	}
	doc, _ := store.Get("workspaces/w1/projects", "p1")
	if doc["status"] != "completed" {
		t.Fatalf("expected p1 completed; got %v", doc["status"])
	}
	if writes != 1 {
		t.Fatalf("expected exactly one remote write; got %d", writes)
	}
}

func TestDropInSameColumnDoesNotWrite(t *testing.T) {
	e, store := newTestEngine(t)
	m := newBoardModel(e, "projects", board.ByStatus, nil)
	var writes int
	store.SetWriteHook(func(string, string, string) error {
		writes++
		return nil
	})
	m = press(t, m, space, down, space)
	if writes != 0 {
		t.Fatalf("expected no remote write; got %d", writes)
	}
}

func TestEscCancelsDrag(t *testing.T) {
	e, store := newTestEngine(t)
	m := newBoardModel(e, "projects", board.ByStatus, nil)
	m = press(t, m, space, right, esc, space)
	if m.drag == nil {
		t.Fatalf("expected second space to start a new drag after cancel")
	}
	doc, _ := store.Get("workspaces/w1/projects", "p1")
	if doc["status"] != "planned" {
		t.Fatalf("expected p1 unchanged; got %v", doc["status"])
	}
}

func TestModeAndKindSwitchReportState(t *testing.T) {
	e, _ := newTestEngine(t)
	m := newBoardModel(e, "projects", board.ByStatus, nil)
	var gotKind string
	var gotMode board.Mode
	m.onState = func(kind string, mode board.Mode) { gotKind, gotMode = kind, mode }

	m = press(t, m, runes("m"))
	if m.mode != board.ByPriority || gotMode != board.ByPriority {
		t.Fatalf("expected priority mode; got %q / %q", m.mode, gotMode)
	}
	if len(m.board.Columns) != 5 {
		t.Fatalf("expected 5 priority columns; got %d", len(m.board.Columns))
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.kind != "tasks" || gotKind != "tasks" {
		t.Fatalf("expected tasks; got %q / %q", m.kind, gotKind)
	}
}

func TestOpenProjectShowsItsTasks(t *testing.T) {
	e, _ := newTestEngine(t)
	m := newBoardModel(e, "projects", board.ByStatus, nil)
	m = press(t, m, runes("o"))
	if e.Scope().ProjectID != "p1" || m.kind != "tasks" {
		t.Fatalf("expected p1 tasks; got %+v kind %q", e.Scope(), m.kind)
	}
	if m.board.Len() != 1 {
		t.Fatalf("expected 1 task on the board; got %d", m.board.Len())
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	if e.Scope().ProjectID != "" || m.kind != "projects" {
		t.Fatalf("expected back at projects; got %+v kind %q", e.Scope(), m.kind)
	}
}

func TestDetailRendersDescription(t *testing.T) {
	t.Setenv("TEAMBOARD_TUI_THEME", "dark")
	e, _ := newTestEngine(t)
	m := newBoardModel(e, "projects", board.ByStatus, nil)
	m = press(t, m, tea.WindowSizeMsg{Width: 140, Height: 30}, enter)
	if !m.showDetail {
		t.Fatalf("expected detail pane")
	}
	out := xansi.Strip(m.View())
	if !strings.Contains(out, "Goals") || !strings.Contains(out, "beta") {
		t.Fatalf("expected rendered description; got\n%s", out)
	}
}

func TestNewCardLandsInSelectedColumn(t *testing.T) {
	e, _ := newTestEngine(t)
	m := newBoardModel(e, "projects", board.ByStatus, nil)
	m = press(t, m, right, runes("n"))
	if !m.creating {
		t.Fatalf("expected create prompt")
	}
	m = press(t, m, runes("Gamma"))
	next, cmd := m.Update(enter)
	m = next.(boardModel)
	if cmd == nil {
		t.Fatalf("expected create command")
	}
	m = press(t, m, cmd())
	var found *model.Project
	for _, p := range e.Projects.Cache().Items() {
		if p.Name == "Gamma" {
			p := p
			found = &p
		}
	}
	if found == nil || found.Status != model.ProjectInProgress {
		t.Fatalf("expected Gamma in progress; got %+v", found)
	}
}

func TestWatchChangesCoalesces(t *testing.T) {
	e, store := newTestEngine(t)
	ch, stop := watchChanges(e)
	defer stop()
	for i := 0; i < 3; i++ {
		if _, err := store.Create(context.Background(), "workspaces/w1/projects", map[string]any{"name": "x", "createdAt": docstore.ServerTimestamp}); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	if len(ch) != 1 {
		t.Fatalf("expected one pending signal; got %d", len(ch))
	}
	if msg := waitForChange(ch)(); msg != (changedMsg{}) {
		t.Fatalf("expected changedMsg; got %#v", msg)
	}
}
