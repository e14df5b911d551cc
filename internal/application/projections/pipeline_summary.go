package projections

import (
	"fmt"

	"coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// StageSummary aggregates one stage.
type StageSummary struct {
	Stage        string  `json:"stage"`
	Status       string  `json:"status"`
	Count        int     `json:"count"`
	Value        float64 `json:"value"`
	ValueDisplay string  `json:"valueDisplay"`
}

// PipelineSummary is the Reports view of a board.
type PipelineSummary struct {
	Stages         []StageSummary `json:"stages"`
	TotalLeads     int            `json:"totalLeads"`
	TotalValue     string         `json:"totalValue"`
	WonValue       string         `json:"wonValue"`
	AverageDeal    string         `json:"averageDeal"`
	ConversionRate float64        `json:"conversionRate"` // closed won / all leads, 0..1
	Conversion     string         `json:"conversion"`     // e.g. "24%"
}

// QueryPipelineSummary computes per-stage counts and values and the share of
// leads that reached Closed Won.
// PRE: b is non-nil
// POST: Stages follows the board's column order; rates are 0 for an empty board
func QueryPipelineSummary(b *pipeline.Board) PipelineSummary {
	var (
		sum        PipelineSummary
		total, won float64
		wonCount   int
	)
	for _, colID := range b.ColumnOrder {
		col, _ := b.Column(colID)
		st := StageSummary{Stage: col.Title, Status: string(pipeline.StatusOf(col.Title))}
		for _, l := range b.ColumnLeads(colID) {
			st.Count++
			st.Value += lead.ParseValue(l.Value)
		}
		st.ValueDisplay = money(st.Value)
		sum.Stages = append(sum.Stages, st)
		sum.TotalLeads += st.Count
		total += st.Value
		if col.Title == pipeline.StageClosedWon {
			won = st.Value
			wonCount = st.Count
		}
	}
	sum.TotalValue = money(total)
	sum.WonValue = money(won)
	sum.AverageDeal = money(0)
	if wonCount > 0 {
		sum.AverageDeal = money(won / float64(wonCount))
	}
	if sum.TotalLeads > 0 {
		sum.ConversionRate = float64(wonCount) / float64(sum.TotalLeads)
	}
	sum.Conversion = fmt.Sprintf("%.0f%%", sum.ConversionRate*100)
	return sum
}
