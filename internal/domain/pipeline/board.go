package pipeline

import (
	"fmt"

	"coachcrm/internal/domain/lead"
)

// Column is one stage bucket. LeadIDs order is the display and drop order.
type Column struct {
	ID      string
	Title   string
	LeadIDs []string
}

// Board is a snapshot of the pipeline: leads by ID, columns by ID and the
// fixed left-to-right column order.
//
// Boards are treated as values: every transformation returns a new *Board and
// leaves the receiver untouched, so a snapshot handed to a reader stays stable.
type Board struct {
	Leads       map[string]lead.Lead
	Columns     map[string]Column
	ColumnOrder []string
}

// NewBoard returns an empty board with all five columns present.
func NewBoard() *Board {
	b := &Board{
		Leads:       make(map[string]lead.Lead),
		Columns:     make(map[string]Column, len(stageTable)),
		ColumnOrder: ColumnOrder(),
	}
	for _, d := range stageTable {
		b.Columns[d.columnID] = Column{ID: d.columnID, Title: d.title, LeadIDs: []string{}}
	}
	return b
}

// Build creates a board from persisted records.
// Each record's stage is derived from its status (unknown statuses go to the
// first column) and IDs are bucketed in input order.
// PRE: records belong to a single owner
// POST: all five columns are present; every record appears exactly once
func Build(records []lead.Record) *Board {
	b := NewBoard()
	for _, r := range records {
		if _, dup := b.Leads[r.ID]; dup {
			continue
		}
		status, _ := ParseStatus(r.Status)
		colID := ColumnForStatus(status)
		col := b.Columns[colID]

		l := r.Lead.Clone()
		l.Stage = col.Title
		b.Leads[l.ID] = l

		col.LeadIDs = append(col.LeadIDs, l.ID)
		b.Columns[colID] = col
	}
	return b
}

// Lead returns the lead with the given ID.
func (b *Board) Lead(id string) (lead.Lead, bool) {
	l, ok := b.Leads[id]
	return l, ok
}

// Column returns the column with the given ID.
func (b *Board) Column(id string) (Column, bool) {
	c, ok := b.Columns[id]
	return c, ok
}

// ColumnLeads resolves a column's lead IDs, skipping any that are not on the board.
func (b *Board) ColumnLeads(columnID string) []lead.Lead {
	col, ok := b.Columns[columnID]
	if !ok {
		return nil
	}
	out := make([]lead.Lead, 0, len(col.LeadIDs))
	for _, id := range col.LeadIDs {
		if l, ok := b.Leads[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// LocateLead returns the column ID and index holding the lead, or false.
func (b *Board) LocateLead(id string) (string, int, bool) {
	for _, colID := range b.ColumnOrder {
		for i, lid := range b.Columns[colID].LeadIDs {
			if lid == id {
				return colID, i, true
			}
		}
	}
	return "", 0, false
}

// AddLead places an already persisted lead at the head of the column named by
// its Stage. Unknown stages fall back to the first column, and the stored
// lead's Stage is set to the title of the column it lands in.
// PRE: l.ID is non-empty
// POST: returns a new board; l.ID heads its column and appears in no other
func (b *Board) AddLead(l lead.Lead) *Board {
	next := b.clone()
	colID := ColumnForStage(l.Stage)

	next.removeEverywhere(l.ID)
	col := next.Columns[colID]
	col.LeadIDs = insertAt(col.LeadIDs, 0, l.ID)
	next.Columns[colID] = col

	l = l.Clone()
	l.Stage = col.Title
	next.Leads[l.ID] = l
	return next
}

// WithLead replaces the stored record for a lead already on the board.
// The stage is kept as the board has it. Unknown IDs return the receiver.
func (b *Board) WithLead(l lead.Lead) *Board {
	current, ok := b.Leads[l.ID]
	if !ok {
		return b
	}
	next := b.clone()
	l = l.Clone()
	l.Stage = current.Stage
	next.Leads[l.ID] = l
	return next
}

// Len returns the number of leads on the board.
func (b *Board) Len() int {
	return len(b.Leads)
}

// Validate checks the board invariants: fixed columns, no dangling or
// duplicated lead IDs, every lead placed once, and stage equal to column title.
// PRE: none
// POST: returns nil or an error wrapping ErrInvariant
func (b *Board) Validate() error {
	if len(b.ColumnOrder) != len(stageTable) {
		return fmt.Errorf("%w: %d columns, want %d", ErrInvariant, len(b.ColumnOrder), len(stageTable))
	}
	seen := make(map[string]string, len(b.Leads))
	for i, colID := range b.ColumnOrder {
		if colID != stageTable[i].columnID {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrInvariant, i, colID, stageTable[i].columnID)
		}
		col, ok := b.Columns[colID]
		if !ok {
			return fmt.Errorf("%w: column %q missing", ErrInvariant, colID)
		}
		for _, id := range col.LeadIDs {
			l, ok := b.Leads[id]
			if !ok {
				return fmt.Errorf("%w: column %q references unknown lead %q", ErrInvariant, colID, id)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: lead %q in both %q and %q", ErrInvariant, id, prev, colID)
			}
			seen[id] = colID
			if l.Stage != col.Title {
				return fmt.Errorf("%w: lead %q has stage %q in column %q", ErrInvariant, id, l.Stage, col.Title)
			}
		}
	}
	if len(seen) != len(b.Leads) {
		return fmt.Errorf("%w: %d leads on board, %d placed in columns", ErrInvariant, len(b.Leads), len(seen))
	}
	return nil
}

// clone copies the maps and order; column slices are shared until replaced.
func (b *Board) clone() *Board {
	next := &Board{
		Leads:       make(map[string]lead.Lead, len(b.Leads)),
		Columns:     make(map[string]Column, len(b.Columns)),
		ColumnOrder: append([]string(nil), b.ColumnOrder...),
	}
	for id, l := range b.Leads {
		next.Leads[id] = l
	}
	for id, c := range b.Columns {
		next.Columns[id] = c
	}
	return next
}

// removeEverywhere drops id from every column. Only valid on a cloned board.
func (b *Board) removeEverywhere(id string) {
	for colID, col := range b.Columns {
		if idx := indexOf(col.LeadIDs, id); idx >= 0 {
			col.LeadIDs = removeAt(col.LeadIDs, idx)
			b.Columns[colID] = col
		}
	}
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// removeAt returns a new slice without the element at i.
func removeAt(ids []string, i int) []string {
	out := make([]string, 0, len(ids))
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}

// insertAt returns a new slice with id at position i, clamped to [0, len].
func insertAt(ids []string, i int, id string) []string {
	if i < 0 {
		i = 0
	}
	if i > len(ids) {
		i = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:i]...)
	out = append(out, id)
	return append(out, ids[i:]...)
}
