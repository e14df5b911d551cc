package projections

import (
	"github.com/dustin/go-humanize"

	"coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// LeadCard is the compact lead shown on a board column.
type LeadCard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Value       string `json:"value"`
	LastContact string `json:"lastContact"`
	Stage       string `json:"stage"`
	OpenTasks   int    `json:"openTasks"`
	Notes       int    `json:"notes"`
}

// ColumnView is one column as rendered.
type ColumnView struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Count      int        `json:"count"`
	TotalValue string     `json:"totalValue"`
	Leads      []LeadCard `json:"leads"`
}

// BoardView is the board in display order.
type BoardView struct {
	Columns    []ColumnView `json:"columns"`
	TotalLeads int          `json:"totalLeads"`
	TotalValue string       `json:"totalValue"`
}

// QueryBoardView projects a board into columns in display order.
// Column IDs pointing at missing leads are skipped.
// PRE: b is non-nil
// POST: Columns has one entry per column in b.ColumnOrder
func QueryBoardView(b *pipeline.Board) BoardView {
	view := BoardView{Columns: make([]ColumnView, 0, len(b.ColumnOrder))}
	var total float64
	for _, colID := range b.ColumnOrder {
		col, _ := b.Column(colID)
		leads := b.ColumnLeads(colID)
		cv := ColumnView{
			ID:     col.ID,
			Title:  col.Title,
			Status: string(pipeline.StatusOf(col.Title)),
			Count:  len(leads),
			Leads:  make([]LeadCard, 0, len(leads)),
		}
		var colTotal float64
		for _, l := range leads {
			cv.Leads = append(cv.Leads, cardFor(l))
			colTotal += lead.ParseValue(l.Value)
		}
		cv.TotalValue = money(colTotal)
		total += colTotal
		view.TotalLeads += cv.Count
		view.Columns = append(view.Columns, cv)
	}
	view.TotalValue = money(total)
	return view
}

func cardFor(l lead.Lead) LeadCard {
	open := 0
	for _, t := range l.Tasks {
		if !t.Completed {
			open++
		}
	}
	return LeadCard{
		ID:          l.ID,
		Name:        l.Name,
		Email:       l.Email,
		Value:       l.Value,
		LastContact: l.LastContact,
		Stage:       l.Stage,
		OpenTasks:   open,
		Notes:       len(l.Notes),
	}
}

func money(v float64) string {
	return "$" + humanize.Commaf(v)
}
