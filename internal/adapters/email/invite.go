package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// ErrNoRecipients is returned when a request has no To addresses.
var ErrNoRecipients = errors.New("email: no recipients")

// MeetingInvite describes a meeting a coach proposes to a lead.
type MeetingInvite struct {
	LeadID     string
	LeadName   string
	LeadEmail  string
	CoachName  string
	CoachEmail string
	When       time.Time
	Duration   time.Duration
	Message    string
}

var inviteTmpl = template.Must(template.New("invite").Parse(`<p>Hi {{.LeadName}},</p>
<p>{{if .CoachName}}{{.CoachName}} would{{else}}I'd{{end}} like to meet with you on <strong>{{.Date}}</strong> at <strong>{{.Time}}</strong> ({{.Minutes}} minutes).</p>
{{if .Message}}<p>{{.Message}}</p>
{{end}}<p>Reply to this email if the time doesn't suit and we'll find another.</p>`))

// BuildMeetingInvite renders inv into a send request addressed to the lead.
// PRE: inv.LeadEmail is set
// POST: Subject names the date; ReplyTo is the coach address when known
func BuildMeetingInvite(inv MeetingInvite) (SendRequest, error) {
	if inv.LeadEmail == "" {
		return SendRequest{}, ErrNoRecipients
	}
	if inv.Duration <= 0 {
		inv.Duration = 30 * time.Minute
	}
	var buf bytes.Buffer
	err := inviteTmpl.Execute(&buf, struct {
		MeetingInvite
		Date    string
		Time    string
		Minutes int
	}{
		MeetingInvite: inv,
		Date:          inv.When.Format("Monday 2 January 2006"),
		Time:          inv.When.Format("3:04 PM"),
		Minutes:       int(inv.Duration / time.Minute),
	})
	if err != nil {
		return SendRequest{}, fmt.Errorf("render meeting invite: %w", err)
	}
	return SendRequest{
		To:      []string{inv.LeadEmail},
		Subject: fmt.Sprintf("Meeting request for %s", inv.When.Format("Mon 2 Jan")),
		HTML:    buf.String(),
		ReplyTo: inv.CoachEmail,
		LeadID:  inv.LeadID,
		Attachments: []Attachment{{
			Filename:    "meeting.ics",
			ContentType: "text/calendar; method=REQUEST",
			Content:     calendarEvent(inv),
		}},
	}, nil
}

const icsTime = "20060102T150405Z"

// calendarEvent renders inv as a single-event iCalendar request.
func calendarEvent(inv MeetingInvite) []byte {
	start := inv.When.UTC()
	summary := "Meeting with " + inv.LeadName
	if inv.CoachName != "" {
		summary = "Meeting with " + inv.CoachName
	}
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//coachcrm//meeting invite//EN",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:%s-%d@coachcrm", inv.LeadID, start.Unix()),
		"DTSTAMP:" + start.Format(icsTime),
		"DTSTART:" + start.Format(icsTime),
		"DTEND:" + start.Add(inv.Duration).Format(icsTime),
		"SUMMARY:" + icsEscape(summary),
	}
	if inv.Message != "" {
		lines = append(lines, "DESCRIPTION:"+icsEscape(inv.Message))
	}
	if inv.CoachEmail != "" {
		lines = append(lines, "ORGANIZER:mailto:"+inv.CoachEmail)
	}
	lines = append(lines, "ATTENDEE;RSVP=TRUE:mailto:"+inv.LeadEmail, "END:VEVENT", "END:VCALENDAR", "")
	return []byte(strings.Join(lines, "\r\n"))
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

func icsEscape(s string) string {
	return icsEscaper.Replace(s)
}
