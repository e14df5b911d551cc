package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coachcrm/internal/application/projections"
)

var summaryCmd = &cobra.Command{
	Use:     "summary",
	Short:   "Show lead counts and values per stage",
	GroupID: "pipeline",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, b, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.Close()

		sum := projections.QueryPipelineSummary(b)
		out := cmd.OutOrStdout()
		if wantJSON(out) {
			return printJSON(out, sum)
		}
		printSummaryTable(out, sum)
		return nil
	},
}

func printSummaryTable(out io.Writer, sum projections.PipelineSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tLEADS\tVALUE")
	for _, s := range sum.Stages {
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.Stage, s.Count, s.ValueDisplay)
	}
	w.Flush()
	fmt.Fprintf(out, "\nTotal %s across %d leads, won %s, average deal %s, conversion %s\n",
		sum.TotalValue, sum.TotalLeads, sum.WonValue, sum.AverageDeal, sum.Conversion)
}
