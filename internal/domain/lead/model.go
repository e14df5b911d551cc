package lead

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Domain errors
var (
	ErrEmptyName     = errors.New("lead name cannot be empty")
	ErrEmptyEmail    = errors.New("lead email cannot be empty")
	ErrInvalidEmail  = errors.New("lead email is not a valid address")
	ErrEmptyValue    = errors.New("lead potential value cannot be empty")
	ErrEmptyOwner    = errors.New("lead owner is required")
	ErrEmptyNote     = errors.New("note cannot be empty")
	ErrEmptyTaskText = errors.New("task text cannot be empty")
	ErrTaskNotFound  = errors.New("task not found")
)

// LastContactToday is the display string for a contact made on the current day.
const LastContactToday = "Today"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Task is a follow-up item attached to a lead.
type Task struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	DueDate   string `json:"dueDate"`
	Completed bool   `json:"completed"`
}

// Lead is a prospective client tracked on the pipeline board.
// Phone, Source, Notes and Tasks are optional and use zero values when absent.
type Lead struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Value       string    `json:"value"`       // formatted, e.g. "$2,500"
	LastContact string    `json:"lastContact"` // display string, e.g. "2 days ago"
	Stage       string    `json:"stage"`       // pipeline stage title
	Source      string    `json:"source,omitempty"`
	Notes       []string  `json:"notes"`
	Tasks       []Task    `json:"tasks"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Record is a lead as persisted. Status is the raw persisted token, which may be
// empty or unrecognised; the board decides how to map it to a stage.
type Record struct {
	Lead
	Status string `json:"status"`
}

// NewRecord carries the fields written when a lead is first created.
type NewRecord struct {
	OwnerID string
	Name    string
	Email   string
	Phone   string
	Value   string
	Source  string
	Note    string
	Status  string
}

// Validate checks the fields required for a new lead.
// PRE: NewRecord is populated
// POST: Returns nil if valid, error otherwise
func (r *NewRecord) Validate() error {
	if r.OwnerID == "" {
		return ErrEmptyOwner
	}
	return validateContact(r.Name, r.Email, r.Value)
}

// Validate checks that the Lead carries the required contact details.
// PRE: Lead struct is populated
// POST: Returns nil if valid, error otherwise
func (l *Lead) Validate() error {
	return validateContact(l.Name, l.Email, l.Value)
}

func validateContact(name, email, value string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(email) == "" {
		return ErrEmptyEmail
	}
	if !ValidEmail(email) {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(value) == "" {
		return ErrEmptyValue
	}
	return nil
}

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// FormatValue normalises a free-text money amount to "$1,234.5" form.
// Everything except digits and dots is dropped; input with no parsable number yields "$0".
func FormatValue(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return "$0"
	}
	// Mirror parseFloat: read the longest valid prefix.
	if i := strings.Index(cleaned, "."); i >= 0 {
		if j := strings.Index(cleaned[i+1:], "."); j >= 0 {
			cleaned = cleaned[:i+1+j]
		}
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(cleaned, "."), 64)
	if err != nil {
		return "$0"
	}
	return "$" + humanize.Commaf(n)
}

// ParseValue returns the numeric amount of a formatted value string.
// Unparsable input yields 0.
func ParseValue(formatted string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(formatted)
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return n
}

// FormatLastContact renders the time since the last contact for display.
// Contacts on the same calendar day as now read "Today".
func FormatLastContact(last, now time.Time) string {
	if last.IsZero() {
		return ""
	}
	ly, lm, ld := last.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	if ly == ny && lm == nm && ld == nd {
		return LastContactToday
	}
	return humanize.RelTime(last, now, "ago", "from now")
}

// AddNote appends a note to the lead.
// PRE: text is non-empty
// POST: Notes has the new note as its last element
func (l *Lead) AddNote(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyNote
	}
	l.Notes = append(cloneNotes(l.Notes), text)
	return nil
}

// AddTask appends a task to the lead.
// PRE: t.Text is non-empty
// POST: Tasks has t as its last element
func (l *Lead) AddTask(t Task) error {
	if strings.TrimSpace(t.Text) == "" {
		return ErrEmptyTaskText
	}
	l.Tasks = append(cloneTasks(l.Tasks), t)
	return nil
}

// SetTaskCompleted flips the completed flag on the task with the given ID.
// PRE: taskID refers to a task on this lead
// POST: the task's Completed equals completed
func (l *Lead) SetTaskCompleted(taskID string, completed bool) error {
	tasks := cloneTasks(l.Tasks)
	for i := range tasks {
		if tasks[i].ID == taskID {
			tasks[i].Completed = completed
			l.Tasks = tasks
			return nil
		}
	}
	return ErrTaskNotFound
}

// Clone returns a copy of the lead that shares no slices with the original.
func (l Lead) Clone() Lead {
	l.Notes = cloneNotes(l.Notes)
	l.Tasks = cloneTasks(l.Tasks)
	return l
}

func cloneNotes(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneTasks(in []Task) []Task {
	out := make([]Task, len(in))
	copy(out, in)
	return out
}
