package lead

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"coachcrm/internal/adapters/storage"
	domain "coachcrm/internal/domain/lead"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// newTestStore opens a migrated in-memory database.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteStore(db).WithClock(func() time.Time { return testNow })
}

func insertLead(t *testing.T, s *SQLiteStore, r domain.NewRecord) string {
	t.Helper()
	id, err := s.Insert(context.Background(), r)
	if err != nil {
		t.Fatalf("Insert(%s): %v", r.Name, err)
	}
	return id
}

// TestSQLiteStore_InsertAndGet verifies a new lead round-trips with its first note.
func TestSQLiteStore_InsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := insertLead(t, s, domain.NewRecord{
		OwnerID: "u1", Name: "Sarah Johnson", Email: "sarah@example.com",
		Phone: "555-0101", Value: "$2,500", Source: "Website", Note: "Wants a 12-week plan",
	})
	if id == "" {
		t.Fatal("expected generated ID")
	}

	r, err := s.GetByID(ctx, "u1", id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if r.Name != "Sarah Johnson" || r.Phone != "555-0101" || r.Source != "Website" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.Status != DefaultStatus {
		t.Errorf("Status = %q, want %q", r.Status, DefaultStatus)
	}
	if r.LastContact != domain.LastContactToday {
		t.Errorf("LastContact = %q, want Today", r.LastContact)
	}
	if len(r.Notes) != 1 || r.Notes[0] != "Wants a 12-week plan" {
		t.Errorf("Notes = %v", r.Notes)
	}
	if r.Tasks == nil || len(r.Tasks) != 0 {
		t.Errorf("Tasks = %#v, want empty non-nil", r.Tasks)
	}
	if !r.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, testNow)
	}
}

// TestSQLiteStore_GetByID_OtherOwner verifies owner scoping.
func TestSQLiteStore_GetByID_OtherOwner(t *testing.T) {
	s := newTestStore(t)
	id := insertLead(t, s, domain.NewRecord{OwnerID: "u1", Name: "A", Email: "a@example.com", Value: "$1"})

	_, err := s.GetByID(context.Background(), "u2", id)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(other owner) error = %v, want ErrNotFound", err)
	}
}

// TestSQLiteStore_ListByOwner verifies ordering and that notes and tasks are attached.
func TestSQLiteStore_ListByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := insertLead(t, s, domain.NewRecord{OwnerID: "u1", Name: "First", Email: "f@example.com", Value: "$1", Status: "contacted"})
	s = s.WithClock(func() time.Time { return testNow.Add(time.Minute) })
	second := insertLead(t, s, domain.NewRecord{OwnerID: "u1", Name: "Second", Email: "s@example.com", Value: "$2", Note: "hello"})
	insertLead(t, s, domain.NewRecord{OwnerID: "u2", Name: "Other", Email: "o@example.com", Value: "$3"})

	if err := s.AddTask(ctx, "u1", first, domain.Task{ID: "task-1", Text: "Call", DueDate: "2026-03-12"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	records, err := s.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != second || records[1].ID != first {
		t.Errorf("order = [%s %s], want newest first", records[0].ID, records[1].ID)
	}
	if records[1].Status != "contacted" {
		t.Errorf("Status = %q, want contacted", records[1].Status)
	}
	if len(records[0].Notes) != 1 || records[0].Notes[0] != "hello" {
		t.Errorf("Notes = %v, want [hello]", records[0].Notes)
	}
	if len(records[1].Tasks) != 1 || records[1].Tasks[0].ID != "task-1" {
		t.Errorf("Tasks = %+v, want task-1", records[1].Tasks)
	}
}

// TestSQLiteStore_ListByOwner_Empty verifies an unknown owner yields an empty list.
func TestSQLiteStore_ListByOwner_Empty(t *testing.T) {
	s := newTestStore(t)
	records, err := s.ListByOwner(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("records = %#v, want empty non-nil", records)
	}
}

// TestSQLiteStore_UpdateStatus verifies status writes and owner scoping.
func TestSQLiteStore_UpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertLead(t, s, domain.NewRecord{OwnerID: "u1", Name: "A", Email: "a@example.com", Value: "$1"})

	if err := s.UpdateStatus(ctx, "u1", id, "proposal_sent"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	r, _ := s.GetByID(ctx, "u1", id)
	if r.Status != "proposal_sent" {
		t.Errorf("Status = %q, want proposal_sent", r.Status)
	}

	if err := s.UpdateStatus(ctx, "u2", id, "closed_won"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus(other owner) error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateStatus(ctx, "u1", "missing", "closed_won"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus(missing) error = %v, want ErrNotFound", err)
	}
}

// TestSQLiteStore_NotesAndTasks verifies detail edits.
func TestSQLiteStore_NotesAndTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertLead(t, s, domain.NewRecord{OwnerID: "u1", Name: "A", Email: "a@example.com", Value: "$1", Note: "first"})

	if err := s.AddNote(ctx, "u1", id, "second"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := s.AddNote(ctx, "u2", id, "intruder"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddNote(other owner) error = %v, want ErrNotFound", err)
	}
	if err := s.AddTask(ctx, "u1", id, domain.Task{ID: "task-a", Text: "Send proposal"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := s.AddTask(ctx, "u2", id, domain.Task{ID: "task-b", Text: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddTask(other owner) error = %v, want ErrNotFound", err)
	}
	if err := s.SetTaskCompleted(ctx, "u1", id, "task-a", true); err != nil {
		t.Fatalf("SetTaskCompleted: %v", err)
	}
	if err := s.SetTaskCompleted(ctx, "u1", id, "task-zzz", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetTaskCompleted(missing) error = %v, want ErrNotFound", err)
	}

	r, err := s.GetByID(ctx, "u1", id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(r.Notes) != 2 || r.Notes[1] != "second" {
		t.Errorf("Notes = %v, want [first second]", r.Notes)
	}
	if len(r.Tasks) != 1 || !r.Tasks[0].Completed {
		t.Errorf("Tasks = %+v, want one completed task", r.Tasks)
	}
}

// TestSQLiteStore_LastContactAges verifies the relative display string.
func TestSQLiteStore_LastContactAges(t *testing.T) {
	s := newTestStore(t)
	id := insertLead(t, s, domain.NewRecord{OwnerID: "u1", Name: "A", Email: "a@example.com", Value: "$1"})

	later := s.WithClock(func() time.Time { return testNow.Add(72 * time.Hour) })
	r, err := later.GetByID(context.Background(), "u1", id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if r.LastContact != "3 days ago" {
		t.Errorf("LastContact = %q, want 3 days ago", r.LastContact)
	}
}

// --- failure paths with sqlmock ---

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return NewSQLiteStore(db).WithClock(func() time.Time { return testNow }), mock
}

var leadRowColumns = []string{
	"id", "owner_id", "name", "email", "phone", "value", "source", "status", "last_contact_at", "created_at", "updated_at",
}

// TestSQLiteStore_ListByOwner_QueryError verifies the lead query error is wrapped.
func TestSQLiteStore_ListByOwner_QueryError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT .+ FROM lead WHERE owner_id = \\?").WithArgs("u1").WillReturnError(boom)

	_, err := s.ListByOwner(context.Background(), "u1")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

// TestSQLiteStore_ListByOwner_NotesError verifies a failing fan-out query fails the list.
func TestSQLiteStore_ListByOwner_NotesError(t *testing.T) {
	s, mock := newMockStore(t)
	ts := testNow.Format(timeLayout)
	mock.ExpectQuery("SELECT .+ FROM lead WHERE owner_id = \\?").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(leadRowColumns).
			AddRow("l1", "u1", "A", "a@example.com", "", "$1", "", "new", ts, ts, ts))
	boom := errors.New("notes table locked")
	mock.ExpectQuery("SELECT .+ FROM lead_note").WithArgs("u1").WillReturnError(boom)
	mock.ExpectQuery("SELECT .+ FROM lead_task").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"lead_id", "id", "text", "due_date", "completed"}))

	_, err := s.ListByOwner(context.Background(), "u1")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

// TestSQLiteStore_UpdateStatus_ExecError verifies write errors are wrapped.
func TestSQLiteStore_UpdateStatus_ExecError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("database is locked")
	mock.ExpectExec("UPDATE lead SET status").
		WithArgs("contacted", sqlmock.AnyArg(), "l1", "u1").
		WillReturnError(boom)

	err := s.UpdateStatus(context.Background(), "u1", "l1", "contacted")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

// TestSQLiteStore_Insert_RollsBackOnNoteError verifies the transaction is rolled back.
func TestSQLiteStore_Insert_RollsBackOnNoteError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(true)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO lead \\(").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO lead_note").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := s.Insert(context.Background(), domain.NewRecord{OwnerID: "u1", Name: "A", Email: "a@example.com", Value: "$1", Note: "n"})
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("error = %v, want wrapped ErrConnDone", err)
	}
}

// TestIsNotFound verifies both not-found forms are recognised.
func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrNotFound) || !IsNotFound(sql.ErrNoRows) {
		t.Error("expected ErrNotFound and sql.ErrNoRows to be not-found")
	}
	if IsNotFound(errors.New("other")) {
		t.Error("unexpected not-found for unrelated error")
	}
}
