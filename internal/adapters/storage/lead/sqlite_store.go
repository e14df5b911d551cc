package lead

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"coachcrm/internal/adapters/storage"
	domain "coachcrm/internal/domain/lead"
	"coachcrm/internal/idgen"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// DefaultStatus is written when a new record carries no status.
const DefaultStatus = "new"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     storage.SQLDB
	now    func() time.Time
	newID  func() string
	noteID func() string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		now:    time.Now,
		newID:  uuid.NewString,
		noteID: idgen.Func(idgen.NotePrefix),
	}
}

// WithClock returns a copy of the store using now as its time source.
func (s *SQLiteStore) WithClock(now func() time.Time) *SQLiteStore {
	cp := *s
	cp.now = now
	return &cp
}

const leadColumns = `id, owner_id, name, email, phone, value, source, status, last_contact_at, created_at, updated_at`

// ListByOwner returns the owner's leads, newest first, with notes and tasks.
// PRE: ownerID is non-empty
// POST: Returns all leads for the owner; notes and tasks are in creation order
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM lead WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	records, err := s.scanLeads(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("scan leads: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	var notes map[string][]string
	var tasks map[string][]domain.Task
	var g errgroup.Group
	g.Go(func() error {
		var err error
		notes, err = s.notesByOwner(ctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = s.tasksByOwner(ctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Notes = nonNilNotes(notes[records[i].ID])
		records[i].Tasks = nonNilTasks(tasks[records[i].ID])
	}
	return records, nil
}

// GetByID retrieves a single lead with its notes and tasks.
// PRE: ownerID and id are non-empty
// POST: Returns the record or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, ownerID, id string) (domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM lead WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return domain.Record{}, fmt.Errorf("get lead: %w", err)
	}
	records, err := s.scanLeads(rows)
	rows.Close()
	if err != nil {
		return domain.Record{}, fmt.Errorf("scan lead: %w", err)
	}
	if len(records) == 0 {
		return domain.Record{}, ErrNotFound
	}
	r := records[0]

	notes, err := s.queryNotes(ctx, `WHERE n.lead_id = ?`, id)
	if err != nil {
		return domain.Record{}, err
	}
	tasks, err := s.queryTasks(ctx, `WHERE t.lead_id = ?`, id)
	if err != nil {
		return domain.Record{}, err
	}
	r.Notes = nonNilNotes(notes[id])
	r.Tasks = nonNilTasks(tasks[id])
	return r, nil
}

// Insert creates a lead and its initial note in one transaction.
// PRE: r has been validated
// POST: Returns the generated lead ID
func (s *SQLiteStore) Insert(ctx context.Context, r domain.NewRecord) (string, error) {
	id := s.newID()
	now := s.now().UTC().Format(timeLayout)
	status := r.Status
	if status == "" {
		status = DefaultStatus
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lead (`+leadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.OwnerID, r.Name, r.Email, r.Phone, r.Value, r.Source, status, now, now, now)
	if err != nil {
		return "", fmt.Errorf("insert lead: %w", err)
	}
	if r.Note != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lead_note (id, lead_id, body, created_at) VALUES (?, ?, ?, ?)`,
			s.noteID(), id, r.Note, now)
		if err != nil {
			return "", fmt.Errorf("insert note: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit insert: %w", err)
	}
	return id, nil
}

// UpdateStatus sets the persisted status of a lead.
// PRE: status is a pipeline status token
// POST: status and updated_at are written, or ErrNotFound
func (s *SQLiteStore) UpdateStatus(ctx context.Context, ownerID, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		status, s.now().UTC().Format(timeLayout), id, ownerID)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireOneRow(res)
}

// AddNote appends a note to a lead and marks it as contacted now.
// PRE: body is non-empty
// POST: note persisted, or ErrNotFound if the lead is not the owner's
func (s *SQLiteStore) AddNote(ctx context.Context, ownerID, leadID, body string) error {
	now := s.now().UTC().Format(timeLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add note: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE lead SET last_contact_at = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		now, now, leadID, ownerID)
	if err != nil {
		return fmt.Errorf("touch lead: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO lead_note (id, lead_id, body, created_at) VALUES (?, ?, ?, ?)`,
		s.noteID(), leadID, body, now); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return tx.Commit()
}

// AddTask appends a task to a lead.
// PRE: t.ID and t.Text are non-empty
// POST: task persisted, or ErrNotFound if the lead is not the owner's
func (s *SQLiteStore) AddTask(ctx context.Context, ownerID, leadID string, t domain.Task) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_task (id, lead_id, text, due_date, completed, created_at)
		 SELECT ?, id, ?, ?, ?, ? FROM lead WHERE id = ? AND owner_id = ?`,
		t.ID, t.Text, t.DueDate, boolToInt(t.Completed), s.now().UTC().Format(timeLayout), leadID, ownerID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return requireOneRow(res)
}

// SetTaskCompleted flips a task's completed flag.
// PRE: taskID belongs to leadID
// POST: flag written, or ErrNotFound
func (s *SQLiteStore) SetTaskCompleted(ctx context.Context, ownerID, leadID, taskID string, completed bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_task SET completed = ?
		 WHERE id = ? AND lead_id = (SELECT id FROM lead WHERE id = ? AND owner_id = ?)`,
		boolToInt(completed), taskID, leadID, ownerID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) notesByOwner(ctx context.Context, ownerID string) (map[string][]string, error) {
	return s.queryNotes(ctx, `JOIN lead l ON l.id = n.lead_id WHERE l.owner_id = ?`, ownerID)
}

func (s *SQLiteStore) tasksByOwner(ctx context.Context, ownerID string) (map[string][]domain.Task, error) {
	return s.queryTasks(ctx, `JOIN lead l ON l.id = t.lead_id WHERE l.owner_id = ?`, ownerID)
}

func (s *SQLiteStore) queryNotes(ctx context.Context, where string, arg string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.lead_id, n.body FROM lead_note n `+where+` ORDER BY n.created_at, n.rowid`, arg)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var leadID, body string
		if err := rows.Scan(&leadID, &body); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out[leadID] = append(out[leadID], body)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) queryTasks(ctx context.Context, where string, arg string) (map[string][]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.lead_id, t.id, t.text, t.due_date, t.completed FROM lead_task t `+where+` ORDER BY t.created_at, t.rowid`, arg)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Task)
	for rows.Next() {
		var leadID string
		var t domain.Task
		var completed int
		if err := rows.Scan(&leadID, &t.ID, &t.Text, &t.DueDate, &completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Completed = completed != 0
		out[leadID] = append(out[leadID], t)
	}
	return out, rows.Err()
}

// scanLeads scans lead rows. Notes and tasks are filled in by the caller.
func (s *SQLiteStore) scanLeads(rows *sql.Rows) ([]domain.Record, error) {
	now := s.now()
	records := []domain.Record{}
	for rows.Next() {
		var r domain.Record
		var lastContact sql.NullString
		var createdAt, updatedAt string
		err := rows.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Email, &r.Phone, &r.Value, &r.Source,
			&r.Status, &lastContact, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt, "created_at", r.ID)
		r.UpdatedAt = parseTime(updatedAt, "updated_at", r.ID)
		if lastContact.Valid {
			r.LastContact = domain.FormatLastContact(parseTime(lastContact.String, "last_contact_at", r.ID), now)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// parseTime parses a time string, logging a warning on failure.
func parseTime(raw, field, leadID string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		slog.Warn("lead: failed to parse time", "field", field, "lead_id", leadID, "raw", raw, "error", err)
	}
	return t
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err means the lead or task does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNilNotes(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilTasks(in []domain.Task) []domain.Task {
	if in == nil {
		return []domain.Task{}
	}
	return in
}
