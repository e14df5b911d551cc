package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coachcrm/internal/application/orchestrators"
	"coachcrm/internal/domain/pipeline"
)

var addCmd = &cobra.Command{
	Use:     "add <name> <email>",
	Short:   "Add a lead to the pipeline",
	GroupID: "pipeline",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, _ := cmd.Flags().GetString("value")
		phone, _ := cmd.Flags().GetString("phone")
		source, _ := cmd.Flags().GetString("source")
		note, _ := cmd.Flags().GetString("note")
		stage, _ := cmd.Flags().GetString("stage")
		if stage != "" && !pipeline.IsStage(stage) {
			return fmt.Errorf("unknown stage %q (one of %v)", stage, pipeline.Stages())
		}

		ws, _, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.Close()

		l, _, err := orchestrators.ExecuteAddLead(cmd.Context(), ws.session, orchestrators.AddLeadInput{
			Name:   args[0],
			Email:  args[1],
			Phone:  phone,
			Value:  value,
			Source: source,
			Note:   note,
			Stage:  stage,
		}, orchestrators.AddLeadDeps{
			LeadStore: ws.store,
			Publisher: ws.publisher,
			Now:       timeNow,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if wantJSON(out) {
			return printJSON(out, l)
		}
		fmt.Fprintf(out, "Added %s (%s) to %s, %s\n", l.Name, l.ID, l.Stage, l.Value)
		return nil
	},
}

func init() {
	addCmd.Flags().String("value", "", "deal value, e.g. 1200 or $1,200 (required)")
	addCmd.Flags().String("phone", "", "phone number")
	addCmd.Flags().String("source", "", "where the lead came from")
	addCmd.Flags().String("note", "", "first note")
	addCmd.Flags().String("stage", "", "stage to start in (default "+pipeline.StageNewLeads+")")
}
