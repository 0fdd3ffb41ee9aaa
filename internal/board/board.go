package board

import (
	"fmt"
	"strings"

	"teamboard/internal/cache"
	"teamboard/internal/model"
)

type Mode string

const (
	ByStatus   Mode = "status"
	ByPriority Mode = "priority"
	// ByAssignee groups tasks and issues by assignee and projects by lead.
	ByAssignee Mode = "assignee"
)

var Modes = []Mode{ByStatus, ByPriority, ByAssignee}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "status", "by-status":
		return ByStatus, nil
	case "priority", "by-priority":
		return ByPriority, nil
	case "assignee", "by-assignee", "lead", "by-lead":
		return ByAssignee, nil
	default:
		return "", fmt.Errorf("invalid mode: %q (expected status|priority|assignee)", s)
	}
}

func (m Mode) Field() model.Field {
	switch m {
	case ByPriority:
		return model.FieldPriority
	case ByAssignee:
		return model.FieldAssignee
	default:
		return model.FieldStatus
	}
}

// Next cycles through Modes.
func (m Mode) Next() Mode {
	for i, x := range Modes {
		if x == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return Modes[0]
}

// Label is the human name of a mode for a kind.
func (m Mode) Label(kind model.Kind) string {
	switch m {
	case ByPriority:
		return "Priority"
	case ByAssignee:
		if kind == model.KindProject {
			return "Lead"
		}
		return "Assignee"
	default:
		return "Status"
	}
}

type Column struct {
	Key   string            `json:"key"`
	Label string            `json:"label"`
	Icon  string            `json:"icon,omitempty"`
	Items []model.BoardItem `json:"items"`
}

// Board is the grouped projection of one cache. It is rebuilt on every cache change; local
// reorders made by a drop live only until then.
type Board struct {
	Kind    model.Kind `json:"kind"`
	Mode    Mode       `json:"mode"`
	Columns []Column   `json:"columns"`
	// Unplaced lists items whose key matches no column (e.g. an assignee who left the workspace).
	Unplaced []model.BoardItem `json:"unplaced,omitempty"`
}

// Columns returns the fixed, ordered columns of a mode with no items.
func Columns(kind model.Kind, mode Mode, members []model.Member) ([]Column, error) {
	var opts []model.Option
	switch mode {
	case ByStatus:
		opts = model.StatusOptions(kind)
	case ByPriority:
		opts = model.PriorityOptions(kind)
	case ByAssignee:
		label := "Unassigned"
		if kind == model.KindProject {
			label = "No lead"
		}
		cols := make([]Column, 0, len(members)+1)
		cols = append(cols, Column{Key: model.Unassigned, Label: label, Icon: "○", Items: []model.BoardItem{}})
		seen := map[string]bool{}
		for _, m := range members {
			id := strings.TrimSpace(m.UserID)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			cols = append(cols, Column{Key: id, Label: m.Label(), Icon: initials(m.Label()), Items: []model.BoardItem{}})
		}
		return cols, nil
	default:
		return nil, fmt.Errorf("invalid mode: %q", mode)
	}
	if len(opts) == 0 {
		return nil, fmt.Errorf("%s cannot be shown on a board", kind)
	}
	cols := make([]Column, 0, len(opts))
	for _, o := range opts {
		cols = append(cols, Column{Key: o.Value, Label: o.Label, Icon: o.Icon, Items: []model.BoardItem{}})
	}
	return cols, nil
}

func initials(label string) string {
	var b strings.Builder
	for _, f := range strings.Fields(label) {
		r := []rune(f)
		b.WriteString(strings.ToUpper(string(r[0])))
		if b.Len() >= 2 {
			break
		}
	}
	return b.String()
}

// Build groups items (in their given order) into the mode's columns.
func Build[T model.Groupable](items []T, kind model.Kind, mode Mode, members []model.Member) (Board, error) {
	cols, err := Columns(kind, mode, members)
	if err != nil {
		return Board{}, err
	}
	keys := make([]string, 0, len(cols))
	for _, c := range cols {
		keys = append(keys, c.Key)
	}
	g := cache.Group(items, mode.Field(), keys)
	for i := range cols {
		for _, it := range g.Items[cols[i].Key] {
			cols[i].Items = append(cols[i].Items, it.BoardItem())
		}
	}
	b := Board{Kind: kind, Mode: mode, Columns: cols}
	for _, it := range g.Other {
		b.Unplaced = append(b.Unplaced, it.BoardItem())
	}
	return b, nil
}

// FromCache builds a board from the current contents of c.
func FromCache[T model.Groupable](c *cache.Cache[T], mode Mode, members []model.Member) (Board, error) {
	var zero T
	return Build(c.Items(), zero.EntityKind(), mode, members)
}

// Column returns the index of the column with key.
func (b *Board) Column(key string) (int, bool) {
	for i, c := range b.Columns {
		if c.Key == key {
			return i, true
		}
	}
	return 0, false
}

// Len is the number of cards on the board; multi-assigned tasks count once per column.
func (b *Board) Len() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Items)
	}
	return n
}
