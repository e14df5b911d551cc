package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"coachcrm/internal/application/orchestrators"
	"coachcrm/internal/domain/pipeline"
)

var moveCmd = &cobra.Command{
	Use:   "move <lead-id> <stage>",
	Short: "Move a lead to another stage",
	Long: `Move a lead to another stage, the way dragging its card does on the board.

<stage> is a column title ("Proposal Sent") or a status ("proposal_sent").
The lead lands at the bottom of the column unless --index is given.
Moving within the same column only reorders and does not touch the stored status.`,
	GroupID: "pipeline",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		leadID := args[0]
		index, _ := cmd.Flags().GetInt("index")

		dstColumn, err := columnForArg(args[1])
		if err != nil {
			return err
		}

		ws, b, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.Close()

		drag, err := dragTo(b, leadID, dstColumn, index)
		if err != nil {
			return err
		}
		res, err := orchestrators.ExecuteMoveLead(cmd.Context(), ws.session, orchestrators.MoveLeadInput{Drag: drag},
			orchestrators.MoveLeadDeps{LeadStore: ws.store, Publisher: ws.publisher})

		var persistErr *pipeline.PersistError
		if errors.As(err, &persistErr) {
			return fmt.Errorf("move rolled back: %w", err)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		l, _ := res.Board.Lead(leadID)
		if wantJSON(out) {
			return printJSON(out, struct {
				LeadID    string `json:"leadId"`
				Stage     string `json:"stage"`
				Persisted bool   `json:"persisted"`
				Reordered bool   `json:"reordered"`
			}{leadID, l.Stage, res.Persisted, res.Write == nil})
		}
		if res.Write == nil {
			fmt.Fprintf(out, "Reordered %s within %s\n", leadID, l.Stage)
			return nil
		}
		fmt.Fprintf(out, "Moved %s to %s\n", leadID, l.Stage)
		return nil
	},
}

func init() {
	moveCmd.Flags().Int("index", -1, "position in the destination column (0 = top)")
}

func columnForArg(raw string) (string, error) {
	if pipeline.IsStage(raw) {
		return pipeline.ColumnForStage(raw), nil
	}
	if s, ok := pipeline.ParseStatus(raw); ok {
		return pipeline.ColumnForStatus(s), nil
	}
	return "", fmt.Errorf("unknown stage %q (one of %v)", raw, pipeline.Stages())
}

// dragTo builds the drag that carries leadID from where it sits to index in
// columnID. A negative index means the bottom of the column.
func dragTo(b *pipeline.Board, leadID, columnID string, index int) (pipeline.DragResult, error) {
	srcColumn, srcIndex, ok := b.LocateLead(leadID)
	if !ok {
		return pipeline.DragResult{}, fmt.Errorf("%w: %s", orchestrators.ErrLeadNotFound, leadID)
	}
	if index < 0 {
		index = len(b.Columns[columnID].LeadIDs)
		if columnID == srcColumn {
			index--
		}
	}
	return pipeline.DragResult{
		Source:      pipeline.Location{ColumnID: srcColumn, Index: srcIndex},
		Destination: &pipeline.Location{ColumnID: columnID, Index: index},
		DraggedID:   leadID,
	}, nil
}
