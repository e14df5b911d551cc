package pipeline_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

func at(col string, idx int) pipeline.Location {
	return pipeline.Location{ColumnID: col, Index: idx}
}

func dest(col string, idx int) *pipeline.Location {
	l := at(col, idx)
	return &l
}

// scenarioBoard is New Leads = [L1, L2], Contacted = [L3].
func scenarioBoard() *pipeline.Board {
	return pipeline.Build([]lead.Record{record("L1", "new"), record("L2", "new"), record("L3", "contacted")})
}

// Moving L2 from New Leads to the head of Contacted.
func TestApplyDrag_CrossColumn(t *testing.T) {
	b := scenarioBoard()

	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-1", 1),
		Destination: dest("column-2", 0),
		DraggedID:   "L2",
	})

	require.NoError(t, out.Board.Validate())
	assert.Equal(t, []string{"L1"}, out.Board.Columns["column-1"].LeadIDs)
	assert.Equal(t, []string{"L2", "L3"}, out.Board.Columns["column-2"].LeadIDs)
	l2, _ := out.Board.Lead("L2")
	assert.Equal(t, pipeline.StageContacted, l2.Stage)

	require.NotNil(t, out.PendingWrite)
	assert.Equal(t, pipeline.StatusWrite{
		LeadID: "L2",
		Status: pipeline.StatusContacted,
		From:   at("column-1", 1),
		To:     at("column-2", 0),
	}, *out.PendingWrite)

	// Receiver untouched.
	assert.Equal(t, []string{"L1", "L2"}, b.Columns["column-1"].LeadIDs)
	old, _ := b.Lead("L2")
	assert.Equal(t, pipeline.StageNewLeads, old.Stage)
}

// New Leads = [L1, L2, L4]; L4 is dragged to the top.
func TestApplyDrag_SameColumnReorder(t *testing.T) {
	b := pipeline.Build([]lead.Record{record("L1", "new"), record("L2", "new"), record("L4", "new")})

	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-1", 2),
		Destination: dest("column-1", 0),
		DraggedID:   "L4",
	})

	require.NoError(t, out.Board.Validate())
	assert.Nil(t, out.PendingWrite)
	assert.Equal(t, []string{"L4", "L1", "L2"}, out.Board.Columns["column-1"].LeadIDs)
	assert.True(t, out.Changed(b))
}

func TestApplyDrag_SameColumnDownward(t *testing.T) {
	b := pipeline.Build([]lead.Record{record("L1", "new"), record("L2", "new"), record("L3", "new")})

	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-1", 0),
		Destination: dest("column-1", 2),
		DraggedID:   "L1",
	})

	assert.Equal(t, []string{"L2", "L3", "L1"}, out.Board.Columns["column-1"].LeadIDs)
}

func TestApplyDrag_NoOps(t *testing.T) {
	b := scenarioBoard()

	tests := []struct {
		name string
		drag pipeline.DragResult
	}{
		{"cancelled drop", pipeline.DragResult{Source: at("column-1", 0), DraggedID: "L1"}},
		{"same slot", pipeline.DragResult{Source: at("column-1", 1), Destination: dest("column-1", 1), DraggedID: "L2"}},
		{"unknown source column", pipeline.DragResult{Source: at("column-9", 0), Destination: dest("column-1", 0), DraggedID: "L1"}},
		{"unknown destination column", pipeline.DragResult{Source: at("column-1", 0), Destination: dest("column-9", 0), DraggedID: "L1"}},
		{"unknown lead", pipeline.DragResult{Source: at("column-1", 0), Destination: dest("column-2", 0), DraggedID: "L9"}},
		{"lead not in reordered column", pipeline.DragResult{Source: at("column-1", 0), Destination: dest("column-1", 1), DraggedID: "L3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := pipeline.ApplyDrag(b, tt.drag)
			assert.Same(t, b, out.Board)
			assert.Nil(t, out.PendingWrite)
			assert.False(t, out.Changed(b))
		})
	}
}

func TestApplyDrag_IndexPastEndAppends(t *testing.T) {
	b := scenarioBoard()

	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-1", 0),
		Destination: dest("column-2", 42),
		DraggedID:   "L1",
	})

	assert.Equal(t, []string{"L3", "L1"}, out.Board.Columns["column-2"].LeadIDs)
}

func TestApplyDrag_StaleSourceIndex(t *testing.T) {
	b := scenarioBoard()

	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-1", 7),
		Destination: dest("column-5", 0),
		DraggedID:   "L2",
	})

	require.NoError(t, out.Board.Validate())
	assert.Equal(t, []string{"L1"}, out.Board.Columns["column-1"].LeadIDs)
	assert.Equal(t, []string{"L2"}, out.Board.Columns["column-5"].LeadIDs)
}

func TestApplyDrag_WrongSourceColumnLeavesNoDuplicate(t *testing.T) {
	b := scenarioBoard()

	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-3", 0),
		Destination: dest("column-4", 0),
		DraggedID:   "L3",
	})

	require.NoError(t, out.Board.Validate())
	assert.Empty(t, out.Board.Columns["column-2"].LeadIDs)
	assert.Equal(t, []string{"L3"}, out.Board.Columns["column-4"].LeadIDs)
}

// A drag reporting the wrong source column still records where the lead was,
// so undoing it puts the lead back there.
func TestApplyDrag_WrongSourceColumnRollsBackToRealColumn(t *testing.T) {
	b := pipeline.Build([]lead.Record{record("L1", "new"), record("L3", "meeting_scheduled")})

	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-1", 0),
		Destination: dest("column-2", 0),
		DraggedID:   "L3",
	})
	require.NotNil(t, out.PendingWrite)
	assert.Equal(t, at("column-3", 0), out.PendingWrite.From)
	assert.Equal(t, []string{"L1"}, out.Board.Columns["column-1"].LeadIDs)

	back := pipeline.Rollback(out.Board, *out.PendingWrite)

	require.NoError(t, back.Validate())
	assert.Equal(t, []string{"L1"}, back.Columns["column-1"].LeadIDs)
	assert.Empty(t, back.Columns["column-2"].LeadIDs)
	assert.Equal(t, []string{"L3"}, back.Columns["column-3"].LeadIDs)
	l3, _ := back.Lead("L3")
	assert.Equal(t, pipeline.StageMeetingScheduled, l3.Stage)
}

// A wrong source column naming the destination's own lead is a plain reorder.
func TestApplyDrag_WrongSourceIntoOwnColumnReorders(t *testing.T) {
	b := pipeline.Build([]lead.Record{record("L3", "contacted"), record("L4", "contacted")})

	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-1", 0),
		Destination: dest("column-2", 0),
		DraggedID:   "L4",
	})

	require.NoError(t, out.Board.Validate())
	assert.Nil(t, out.PendingWrite)
	assert.Equal(t, []string{"L4", "L3"}, out.Board.Columns["column-2"].LeadIDs)
}

// A failed write after moving L2 to Contacted is undone completely.
func TestRollback(t *testing.T) {
	b := scenarioBoard()
	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-1", 1),
		Destination: dest("column-2", 0),
		DraggedID:   "L2",
	})
	require.NotNil(t, out.PendingWrite)

	back := pipeline.Rollback(out.Board, *out.PendingWrite)

	require.NoError(t, back.Validate())
	assert.Equal(t, []string{"L1", "L2"}, back.Columns["column-1"].LeadIDs)
	assert.Equal(t, []string{"L3"}, back.Columns["column-2"].LeadIDs)
	l2, _ := back.Lead("L2")
	assert.Equal(t, pipeline.StageNewLeads, l2.Stage)
}

func TestRollback_AfterOtherChanges(t *testing.T) {
	b := scenarioBoard()
	out := pipeline.ApplyDrag(b, pipeline.DragResult{
		Source:      at("column-1", 1),
		Destination: dest("column-2", 0),
		DraggedID:   "L2",
	})
	// L1 leaves New Leads while the write is pending.
	mid := pipeline.ApplyDrag(out.Board, pipeline.DragResult{
		Source:      at("column-1", 0),
		Destination: dest("column-3", 0),
		DraggedID:   "L1",
	}).Board

	back := pipeline.Rollback(mid, *out.PendingWrite)

	require.NoError(t, back.Validate())
	assert.Equal(t, []string{"L2"}, back.Columns["column-1"].LeadIDs)
	assert.Equal(t, []string{"L1"}, back.Columns["column-3"].LeadIDs)
}

func TestRollback_LeadMovedOnIsUnchanged(t *testing.T) {
	b := scenarioBoard()
	w := pipeline.StatusWrite{LeadID: "L3", Status: pipeline.StatusProposalSent, From: at("column-1", 0), To: at("column-4", 0)}

	assert.Same(t, b, pipeline.Rollback(b, w))
	assert.Same(t, b, pipeline.Rollback(b, pipeline.StatusWrite{LeadID: "ghost", To: at("column-2", 0)}))
}

// Random drags keep every invariant and never lose or duplicate a lead.
func TestApplyDrag_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	statuses := []string{"new", "contacted", "meeting_scheduled", "proposal_sent", "closed_won"}

	var records []lead.Record
	for i := 0; i < 12; i++ {
		records = append(records, record(string(rune('a'+i)), statuses[rng.Intn(len(statuses))]))
	}
	b := pipeline.Build(records)
	order := pipeline.ColumnOrder()

	for step := 0; step < 500; step++ {
		src := order[rng.Intn(len(order))]
		ids := b.Columns[src].LeadIDs
		if len(ids) == 0 {
			continue
		}
		idx := rng.Intn(len(ids))
		dst := order[rng.Intn(len(order))]
		before := columnSet(b, dst)

		out := pipeline.ApplyDrag(b, pipeline.DragResult{
			Source:      at(src, idx),
			Destination: dest(dst, rng.Intn(len(b.Columns[dst].LeadIDs)+2)),
			DraggedID:   ids[idx],
		})
		require.NoError(t, out.Board.Validate(), "step %d", step)
		require.Equal(t, 12, out.Board.Len())

		if src == dst {
			assert.Nil(t, out.PendingWrite)
			assert.Equal(t, before, columnSet(out.Board, dst), "reorder must keep membership")
		} else {
			moved, _ := out.Board.Lead(ids[idx])
			assert.Equal(t, out.Board.Columns[dst].Title, moved.Stage)
			require.NotNil(t, out.PendingWrite)
			if rng.Intn(4) == 0 {
				out.Board = pipeline.Rollback(out.Board, *out.PendingWrite)
				require.NoError(t, out.Board.Validate())
			}
		}
		b = out.Board
	}
}

func columnSet(b *pipeline.Board, col string) []string {
	ids := append([]string(nil), b.Columns[col].LeadIDs...)
	sort.Strings(ids)
	return ids
}
