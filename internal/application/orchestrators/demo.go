package orchestrators

import (
	"coachcrm/internal/application/boards"
	domain "coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// DemoRecords returns the sample leads shown to demo-mode viewers.
func DemoRecords() []domain.Record {
	sample := []struct {
		id, name, email, value, lastContact string
		status                               pipeline.Status
	}{
		{"lead-1", "Sarah Johnson", "sarah@example.com", "$2,500", "2 days ago", pipeline.StatusNew},
		{"lead-2", "Michael Brown", "michael@example.com", "$3,800", "5 days ago", pipeline.StatusNew},
		{"lead-3", "Jessica Williams", "jessica@example.com", "$1,500", "1 day ago", pipeline.StatusContacted},
		{"lead-4", "David Miller", "david@example.com", "$5,000", "3 days ago", pipeline.StatusContacted},
		{"lead-5", "Emma Davis", "emma@example.com", "$4,200", "1 week ago", pipeline.StatusMeetingScheduled},
		{"lead-6", "James Wilson", "james@example.com", "$3,000", domain.LastContactToday, pipeline.StatusProposalSent},
	}
	records := make([]domain.Record, 0, len(sample))
	for _, s := range sample {
		records = append(records, domain.Record{
			Lead: domain.Lead{
				ID:          s.id,
				OwnerID:     boards.DemoOwnerID,
				Name:        s.name,
				Email:       s.email,
				Value:       s.value,
				LastContact: s.lastContact,
				Notes:       []string{},
				Tasks:       []domain.Task{},
			},
			Status: string(s.status),
		})
	}
	return records
}

// DemoBoard builds the fixed sample board.
func DemoBoard() *pipeline.Board {
	return pipeline.Build(DemoRecords())
}
