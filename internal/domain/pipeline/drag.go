package pipeline

// Location is a position on the board: a column and an index within it.
type Location struct {
	ColumnID string `json:"columnId"`
	Index    int    `json:"index"`
}

// DragResult describes a finished drag. Destination is nil when the card was
// dropped outside any column.
type DragResult struct {
	Source      Location  `json:"source"`
	Destination *Location `json:"destination"`
	DraggedID   string    `json:"draggedId"`
}

// StatusWrite is the store update a cross-column move still owes.
// From and To carry enough to undo the move if the write fails.
type StatusWrite struct {
	LeadID string
	Status Status
	From   Location
	To     Location
}

// Outcome is the result of ApplyDrag. Board is the optimistic board;
// PendingWrite is nil unless a status update must be persisted.
type Outcome struct {
	Board        *Board
	PendingWrite *StatusWrite
}

// Changed reports whether the drag produced a new board.
func (o Outcome) Changed(prev *Board) bool {
	return o.Board != prev
}

// ApplyDrag computes the board after a drop.
// Cancelled drops, drops back onto the source slot and drops referencing an
// unknown column or lead return the input board unchanged. Same-column drops
// reorder without a write. Cross-column drops move the lead, set its stage to
// the destination title and return the status write to persist; its From is
// where the board held the lead, whatever the drag reported.
// PRE: b satisfies Validate
// POST: Outcome.Board satisfies Validate; Outcome.Board == b for no-ops
func ApplyDrag(b *Board, d DragResult) Outcome {
	noop := Outcome{Board: b}
	if d.Destination == nil {
		return noop
	}
	dst := *d.Destination
	if dst == d.Source {
		return noop
	}
	srcCol, ok := b.Columns[d.Source.ColumnID]
	if !ok {
		return noop
	}
	dstCol, ok := b.Columns[dst.ColumnID]
	if !ok {
		return noop
	}
	moved, ok := b.Leads[d.DraggedID]
	if !ok {
		return noop
	}

	if srcCol.ID == dstCol.ID {
		if indexOf(srcCol.LeadIDs, d.DraggedID) < 0 {
			return noop
		}
		ids := withoutDragged(srcCol.LeadIDs, d.Source.Index, d.DraggedID)
		next := b.clone()
		srcCol.LeadIDs = insertAt(ids, dst.Index, d.DraggedID)
		next.Columns[srcCol.ID] = srcCol
		return Outcome{Board: next}
	}

	// From is where the board holds the lead; the reported source may be stale.
	fromCol, fromIdx, ok := b.LocateLead(d.DraggedID)
	if !ok {
		return noop
	}
	from := Location{ColumnID: fromCol, Index: fromIdx}
	if fromCol == dstCol.ID {
		if from == dst {
			return noop
		}
		next := b.clone()
		dstCol.LeadIDs = insertAt(removeAt(dstCol.LeadIDs, fromIdx), dst.Index, d.DraggedID)
		next.Columns[dstCol.ID] = dstCol
		return Outcome{Board: next}
	}

	next := b.clone()
	next.removeEverywhere(d.DraggedID)

	dstCol = next.Columns[dstCol.ID]
	dstCol.LeadIDs = insertAt(dstCol.LeadIDs, dst.Index, d.DraggedID)
	next.Columns[dstCol.ID] = dstCol

	moved = moved.Clone()
	moved.Stage = dstCol.Title
	next.Leads[moved.ID] = moved

	return Outcome{
		Board: next,
		PendingWrite: &StatusWrite{
			LeadID: moved.ID,
			Status: StatusOf(dstCol.Title),
			From:   from,
			To:     dst,
		},
	}
}

// Rollback undoes the cross-column move described by w after its write failed.
// The lead returns to the source column at the source index (clamped) and its
// stage reverts to the source title. If the lead has since left the
// destination column, or is gone, the board is returned unchanged.
// PRE: w came from ApplyDrag on an ancestor of b
// POST: result satisfies Validate when b does
func Rollback(b *Board, w StatusWrite) *Board {
	l, ok := b.Leads[w.LeadID]
	if !ok {
		return b
	}
	dstCol, ok := b.Columns[w.To.ColumnID]
	if !ok || indexOf(dstCol.LeadIDs, w.LeadID) < 0 {
		return b
	}
	srcCol, ok := b.Columns[w.From.ColumnID]
	if !ok {
		return b
	}

	next := b.clone()
	next.removeEverywhere(w.LeadID)
	srcCol = next.Columns[srcCol.ID]
	srcCol.LeadIDs = insertAt(srcCol.LeadIDs, w.From.Index, w.LeadID)
	next.Columns[srcCol.ID] = srcCol

	l = l.Clone()
	l.Stage = srcCol.Title
	next.Leads[l.ID] = l
	return next
}

// withoutDragged removes id from ids, preferring the index the drag library
// reported. Absent IDs leave the list as is.
func withoutDragged(ids []string, at int, id string) []string {
	if at >= 0 && at < len(ids) && ids[at] == id {
		return removeAt(ids, at)
	}
	if i := indexOf(ids, id); i >= 0 {
		return removeAt(ids, i)
	}
	return append([]string(nil), ids...)
}
