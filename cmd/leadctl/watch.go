package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"coachcrm/internal/adapters/events"
)

var watchCmd = &cobra.Command{
	Use:   "watch [subject]",
	Short: "Stream lead events from NATS",
	Long: `Stream lead events published by the server and by other leadctl runs.

The subject defaults to crm.> (every lead event). Stops on Ctrl-C, or after
--count events when given.`,
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		subject := "crm.>"
		if len(args) == 1 {
			subject = args[0]
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS server: pass --nats or set CRM_NATS_URL")
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		nc, err := nats.Connect(natsURL, nats.Name("leadctl-watch"))
		if err != nil {
			return fmt.Errorf("connecting to NATS at %s: %w", natsURL, err)
		}
		defer nc.Close()

		ch, cancel, err := events.Subscribe(nc, subject)
		if err != nil {
			return err
		}
		defer cancel()
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s on %s\n", subject, natsURL)

		out := cmd.OutOrStdout()
		asJSON := wantJSON(out)
		seen := 0
		for {
			select {
			case <-ctx.Done():
				return nil
			case data, ok := <-ch:
				if !ok {
					return nil
				}
				printEvent(out, data, asJSON)
				seen++
				if count > 0 && seen >= count {
					return nil
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().Int("count", 0, "exit after this many events (0 = run until interrupted)")
}

func printEvent(out io.Writer, data []byte, asJSON bool) {
	if asJSON {
		fmt.Fprintln(out, strings.TrimSpace(string(data)))
		return
	}
	fmt.Fprintln(out, describeEvent(data))
}

// describeEvent renders one event payload as a single human-readable line.
// Payloads are told apart by their fields since subjects are not carried.
func describeEvent(data []byte) string {
	var probe struct {
		LeadID     string          `json:"lead_id"`
		OwnerID    string          `json:"owner_id"`
		Lead       json.RawMessage `json:"lead"`
		FromStage  string          `json:"from_stage"`
		ToStage    string          `json:"to_stage"`
		RevertedTo string          `json:"reverted_to"`
		Error      string          `json:"error"`
		When       string          `json:"when"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Sprintf("unreadable event: %s", truncate(string(data), 80))
	}

	switch {
	case len(probe.Lead) > 0:
		var created events.LeadCreated
		_ = json.Unmarshal(data, &created)
		return fmt.Sprintf("[%s] created %s (%s) in %s, %s",
			probe.OwnerID, created.Lead.ID, created.Lead.Name, created.Lead.Stage, created.Lead.Value)
	case probe.ToStage != "":
		return fmt.Sprintf("[%s] moved %s: %s -> %s", probe.OwnerID, probe.LeadID, probe.FromStage, probe.ToStage)
	case probe.RevertedTo != "":
		return fmt.Sprintf("[%s] move of %s failed, back in %s: %s", probe.OwnerID, probe.LeadID, probe.RevertedTo, probe.Error)
	case probe.When != "":
		return fmt.Sprintf("[%s] meeting with %s at %s", probe.OwnerID, probe.LeadID, probe.When)
	}
	return fmt.Sprintf("[%s] %s", probe.OwnerID, truncate(string(data), 80))
}
