// Package pipeline holds the lead pipeline board: the fixed stage table, the
// normalized board snapshot and the drag-and-drop transition rules.
package pipeline

// Status is the machine token persisted for a lead's stage.
type Status string

// Persisted statuses, in pipeline order.
const (
	StatusNew              Status = "new"
	StatusContacted        Status = "contacted"
	StatusMeetingScheduled Status = "meeting_scheduled"
	StatusProposalSent     Status = "proposal_sent"
	StatusClosedWon        Status = "closed_won"
)

// Stage titles shown on the board, in pipeline order.
const (
	StageNewLeads         = "New Leads"
	StageContacted        = "Contacted"
	StageMeetingScheduled = "Meeting Scheduled"
	StageProposalSent     = "Proposal Sent"
	StageClosedWon        = "Closed Won"
)

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

type stageDef struct {
	columnID string
	title    string
	status   Status
}

// stageTable is the single source for both mapping directions.
// Row order is the left-to-right column order; row 0 is the fallback.
var stageTable = [...]stageDef{
	{columnID: "column-1", title: StageNewLeads, status: StatusNew},
	{columnID: "column-2", title: StageContacted, status: StatusContacted},
	{columnID: "column-3", title: StageMeetingScheduled, status: StatusMeetingScheduled},
	{columnID: "column-4", title: StageProposalSent, status: StatusProposalSent},
	{columnID: "column-5", title: StageClosedWon, status: StatusClosedWon},
}

// ParseStatus returns the Status for a persisted token, and false if the token is unknown.
func ParseStatus(raw string) (Status, bool) {
	for _, d := range stageTable {
		if string(d.status) == raw {
			return d.status, true
		}
	}
	return "", false
}

// StageOf maps a status to its stage title. Unknown statuses map to the first stage.
func StageOf(s Status) string {
	return defForStatus(s).title
}

// StatusOf maps a stage title to its status. Unknown titles map to the first status.
func StatusOf(stage string) Status {
	return defForStage(stage).status
}

// ColumnForStage returns the column ID holding a stage. Unknown titles map to the first column.
func ColumnForStage(stage string) string {
	return defForStage(stage).columnID
}

// ColumnForStatus returns the column ID for a status. Unknown statuses map to the first column.
func ColumnForStatus(s Status) string {
	return defForStatus(s).columnID
}

// IsStage reports whether title names one of the fixed stages.
func IsStage(title string) bool {
	for _, d := range stageTable {
		if d.title == title {
			return true
		}
	}
	return false
}

// Stages returns the stage titles in board order.
func Stages() []string {
	out := make([]string, len(stageTable))
	for i, d := range stageTable {
		out[i] = d.title
	}
	return out
}

// ColumnOrder returns the fixed column IDs in board order.
func ColumnOrder() []string {
	out := make([]string, len(stageTable))
	for i, d := range stageTable {
		out[i] = d.columnID
	}
	return out
}

func defForStatus(s Status) stageDef {
	for _, d := range stageTable {
		if d.status == s {
			return d
		}
	}
	return stageTable[0]
}

func defForStage(title string) stageDef {
	for _, d := range stageTable {
		if d.title == title {
			return d
		}
	}
	return stageTable[0]
}
