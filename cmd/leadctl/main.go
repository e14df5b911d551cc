// Command leadctl inspects and edits a coach's lead pipeline directly
// against the CRM database.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"coachcrm/internal/adapters/events"
	"coachcrm/internal/adapters/storage"
	leadStore "coachcrm/internal/adapters/storage/lead"
	"coachcrm/internal/application/boards"
	"coachcrm/internal/application/orchestrators"
	"coachcrm/internal/domain/pipeline"
)

var (
	dbPath     string
	owner      string
	natsURL    string
	jsonOutput bool
	verbose    bool
)

// timeNow is swapped in tests.
var timeNow = time.Now

func defaultDBPath() string {
	if s := os.Getenv("CRM_DB_PATH"); s != "" {
		return s
	}
	return "coachcrm.db"
}

var rootCmd = &cobra.Command{
	Use:           "leadctl <command>",
	Short:         "Inspect and edit a lead pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", os.Getenv("CRM_OWNER"), "owner (coach user ID) whose pipeline to use")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats", os.Getenv("CRM_NATS_URL"), "NATS URL for lead events (empty = none)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug events to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "pipeline", Title: "Pipeline:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(summaryCmd)

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// workspace is an opened database plus a board session for one owner.
type workspace struct {
	db        *sql.DB
	store     *leadStore.SQLiteStore
	session   *boards.Session
	publisher events.Publisher
}

// openWorkspace opens and migrates the database and loads the owner's board.
func openWorkspace(ctx context.Context) (*workspace, *pipeline.Board, error) {
	if owner == "" {
		return nil, nil, fmt.Errorf("no owner: pass --owner or set CRM_OWNER")
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.MigrateDB(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	ws := &workspace{
		db:        db,
		store:     leadStore.NewSQLiteStore(db).WithClock(timeNow),
		session:   boards.NewRegistry(time.Hour).Session(boards.Viewer{UserID: owner}),
		publisher: &events.NoopPublisher{},
	}
	if natsURL != "" {
		pub, err := events.NewNATSPublisher(natsURL)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		ws.publisher = pub
	}
	b, err := orchestrators.EnsureBoard(ctx, ws.session, false, orchestrators.LoadBoardDeps{LeadStore: ws.store})
	if err != nil {
		ws.Close()
		return nil, nil, err
	}
	return ws, b, nil
}

func (ws *workspace) Close() error {
	ws.publisher.Close()
	return ws.db.Close()
}

// wantJSON reports whether output should be JSON: forced by --json, or
// because stdout is not a terminal.
func wantJSON(w io.Writer) bool {
	if jsonOutput {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
