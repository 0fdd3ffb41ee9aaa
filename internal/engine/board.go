package engine

import (
	"fmt"

	"teamboard/internal/board"
	"teamboard/internal/model"
)

// Board projects the collection behind kind into columns. It returns the view a drop on the
// board writes through.
func (e *Engine) Board(kind string, mode board.Mode) (board.Board, View, error) {
	v, ok := e.ViewFor(kind)
	if !ok {
		return board.Board{}, nil, fmt.Errorf("unknown kind: %q", kind)
	}
	members := e.MemberList()
	var (
		b   board.Board
		err error
	)
	switch c := v.(type) {
	case *Collection[model.Project]:
		b, err = board.FromCache(c.Cache(), mode, members)
	case *Collection[model.Task]:
		b, err = board.FromCache(c.Cache(), mode, members)
	case *Collection[model.Issue]:
		b, err = board.FromCache(c.Cache(), mode, members)
	default:
		return board.Board{}, nil, fmt.Errorf("%s cannot be shown on a board", v.Name())
	}
	if err != nil {
		return board.Board{}, nil, err
	}
	return b, v, nil
}

// Move drops item id onto column to, the way a drag from column from would. An empty from uses
// the first column the item is in.
func (e *Engine) Move(kind string, mode board.Mode, id, from, to string) (board.DropResult, error) {
	b, v, err := e.Board(kind, mode)
	if err != nil {
		return board.DropResult{}, err
	}
	toCol, ok := b.Column(to)
	if !ok {
		return board.DropResult{}, fmt.Errorf("unknown column %q for mode %s", to, mode)
	}
	fromCol, idx, found := -1, -1, false
	if from != "" {
		col, ok := b.Column(from)
		if !ok {
			return board.DropResult{}, fmt.Errorf("unknown column %q for mode %s", from, mode)
		}
		for i, it := range b.Columns[col].Items {
			if it.ID == id {
				fromCol, idx, found = col, i, true
				break
			}
		}
	} else {
		fromCol, idx, found = b.IndexOf(id)
	}
	if !found {
		return board.DropResult{ItemID: id, From: from, To: to, Outcome: board.DropMissing}, nil
	}
	d, _ := b.PickUp(fromCol, idx)
	d.Hover(toCol, 0)
	return b.Drop(d, v.Lookup, v), nil
}
