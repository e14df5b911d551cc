package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coachcrm/internal/application/projections"
)

var boardCmd = &cobra.Command{
	Use:     "board",
	Short:   "Show the pipeline board, column by column",
	GroupID: "pipeline",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, b, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.Close()

		view := projections.QueryBoardView(b)
		out := cmd.OutOrStdout()
		if wantJSON(out) {
			return printJSON(out, view)
		}
		printBoardTable(out, view)
		return nil
	},
}

func printBoardTable(out io.Writer, view projections.BoardView) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tID\tNAME\tVALUE\tLAST CONTACT\tTASKS")
	for _, col := range view.Columns {
		if len(col.Leads) == 0 {
			fmt.Fprintf(w, "%s\t-\t\t\t\t\n", col.Title)
			continue
		}
		for _, l := range col.Leads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				col.Title,
				l.ID,
				truncate(l.Name, 30),
				l.Value,
				l.LastContact,
				l.OpenTasks,
			)
		}
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d leads, %s in pipeline\n", view.TotalLeads, view.TotalValue)
}
