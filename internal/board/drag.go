package board

import (
	"strings"

	"teamboard/internal/model"
)

// Selection tracks a focused card. ItemID is preferred over the indexes so focus survives
// rebuilds and column changes.
type Selection struct {
	Col    int
	Item   int
	ItemID string
}

func (b *Board) IndexOf(itemID string) (int, int, bool) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return 0, 0, false
	}
	for ci := range b.Columns {
		for ii := range b.Columns[ci].Items {
			if b.Columns[ci].Items[ii].ID == itemID {
				return ci, ii, true
			}
		}
	}
	return 0, 0, false
}

// Clamp keeps sel inside the board, following ItemID when it is still present.
func (b *Board) Clamp(sel Selection) Selection {
	if len(b.Columns) == 0 {
		return Selection{Col: 0, Item: -1}
	}
	if sel.ItemID != "" {
		// Stay in the same column when the item is still there (multi-membership).
		if sel.Col >= 0 && sel.Col < len(b.Columns) {
			for ii, it := range b.Columns[sel.Col].Items {
				if it.ID == sel.ItemID {
					sel.Item = ii
					return sel
				}
			}
		}
		if ci, ii, ok := b.IndexOf(sel.ItemID); ok {
			sel.Col, sel.Item = ci, ii
			return sel
		}
		sel.ItemID = ""
	}
	if sel.Col < 0 {
		sel.Col = 0
	}
	if sel.Col >= len(b.Columns) {
		sel.Col = len(b.Columns) - 1
	}
	n := len(b.Columns[sel.Col].Items)
	if n == 0 {
		sel.Item = -1
		return sel
	}
	if sel.Item < 0 {
		sel.Item = 0
	}
	if sel.Item >= n {
		sel.Item = n - 1
	}
	sel.ItemID = b.Columns[sel.Col].Items[sel.Item].ID
	return sel
}

func (b *Board) Selected(sel Selection) (model.BoardItem, bool) {
	sel = b.Clamp(sel)
	if sel.Item < 0 {
		return model.BoardItem{}, false
	}
	return b.Columns[sel.Col].Items[sel.Item], true
}

// Drag is an in-progress drag gesture.
type Drag struct {
	ItemID  string
	FromCol int
	FromIdx int
	FromKey string
	OverCol int
	OverIdx int
}

// PickUp starts dragging the card at (col, idx).
func (b *Board) PickUp(col, idx int) (*Drag, bool) {
	if col < 0 || col >= len(b.Columns) {
		return nil, false
	}
	items := b.Columns[col].Items
	if idx < 0 || idx >= len(items) {
		return nil, false
	}
	return &Drag{
		ItemID:  items[idx].ID,
		FromCol: col,
		FromIdx: idx,
		FromKey: b.Columns[col].Key,
		OverCol: col,
		OverIdx: idx,
	}, true
}

// Hover records the current drop target.
func (d *Drag) Hover(col, idx int) {
	if d == nil {
		return
	}
	d.OverCol = col
	d.OverIdx = idx
}

// Mutator is the optimistic write path a drop hands its patch to.
type Mutator interface {
	Mutate(id string, patch model.Patch)
}

// Lookup resolves the live entity for a card id.
type Lookup func(id string) (model.Groupable, bool)

type DropOutcome string

const (
	DropMoved     DropOutcome = "moved"
	DropReordered DropOutcome = "reordered"
	DropNoop      DropOutcome = "noop"
	DropMissing   DropOutcome = "missing"
	DropInvalid   DropOutcome = "invalid"
)

type DropResult struct {
	Outcome DropOutcome `json:"outcome"`
	ItemID  string      `json:"itemId"`
	From    string      `json:"from"`
	To      string      `json:"to"`
	Patch   model.Patch `json:"patch,omitempty"`
}

// Drop finishes a drag. Only a cross-column drop whose value differs calls m.Mutate, exactly
// once. A same-column drop reorders the column locally and is not persisted. An item that
// disappeared from the cache during the drag is ignored.
func (b *Board) Drop(d *Drag, lookup Lookup, m Mutator) DropResult {
	if d == nil {
		return DropResult{Outcome: DropInvalid}
	}
	res := DropResult{ItemID: d.ItemID, From: d.FromKey}
	if d.OverCol < 0 || d.OverCol >= len(b.Columns) {
		res.Outcome = DropInvalid
		return res
	}
	res.To = b.Columns[d.OverCol].Key

	item, ok := lookup(d.ItemID)
	if !ok {
		res.Outcome = DropMissing
		return res
	}

	if d.OverCol == d.FromCol {
		if b.reorder(d.FromCol, d.ItemID, d.OverIdx) {
			res.Outcome = DropReordered
		} else {
			res.Outcome = DropNoop
		}
		return res
	}

	patch, ok := item.MovePatch(b.Mode.Field(), d.FromKey, res.To)
	if !ok {
		res.Outcome = DropNoop
		return res
	}
	m.Mutate(d.ItemID, patch)
	res.Outcome = DropMoved
	res.Patch = patch
	return res
}

func (b *Board) reorder(col int, itemID string, to int) bool {
	items := b.Columns[col].Items
	from := -1
	for i, it := range items {
		if it.ID == itemID {
			from = i
			break
		}
	}
	if from < 0 {
		return false
	}
	if to < 0 {
		to = 0
	}
	if to >= len(items) {
		to = len(items) - 1
	}
	if to == from {
		return false
	}
	moved := items[from]
	next := make([]model.BoardItem, 0, len(items))
	next = append(next, items[:from]...)
	next = append(next, items[from+1:]...)
	next = append(next[:to], append([]model.BoardItem{moved}, next[to:]...)...)
	b.Columns[col].Items = next
	return true
}
