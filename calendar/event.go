package calendar

import (
	"fmt"
	"strings"
	"time"

	calapi "google.golang.org/api/calendar/v3"
)

const (
	timedLayout  = "Monday, 02 January 2006 at 03:04 PM"
	allDayLayout = "Monday, 02 January 2006"
)

// Attendee is one participant on an event.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`
	ResponseStatus string `json:"response_status"`
}

// CalendarEvent is the structured form of an API event record. Start and
// End are human-formatted strings in the configured display timezone.
type CalendarEvent struct {
	Status      string     `json:"status"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Creator     string     `json:"creator"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Attendees   []Attendee `json:"attendees"`
}

// ParseEvent converts a raw API event, rendering its times in loc.
func ParseEvent(ev *calapi.Event, loc *time.Location) (CalendarEvent, error) {
	start, err := formatEventTime(ev.Start, loc)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("event %q start: %w", ev.Summary, err)
	}
	end, err := formatEventTime(ev.End, loc)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("event %q end: %w", ev.Summary, err)
	}

	event := CalendarEvent{
		Status:      ev.Status,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       start,
		End:         end,
	}
	if ev.Creator != nil {
		event.Creator = ev.Creator.Email
	}
	for _, a := range ev.Attendees {
		event.Attendees = append(event.Attendees, Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			ResponseStatus: a.ResponseStatus,
		})
	}
	return event, nil
}

// formatEventTime renders a timed event in loc, an all-day event as a bare
// date.
func formatEventTime(edt *calapi.EventDateTime, loc *time.Location) (string, error) {
	if edt == nil {
		return "", nil
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return "", err
		}
		return t.In(loc).Format(timedLayout), nil
	}
	t, err := time.Parse("2006-01-02", edt.Date)
	if err != nil {
		return "", err
	}
	return t.Format(allDayLayout), nil
}

// declinedBy reports whether the attendee entry matching selfEmail has
// declined the event. Always false when selfEmail is empty.
func (e CalendarEvent) declinedBy(selfEmail string) bool {
	if selfEmail == "" {
		return false
	}
	for _, a := range e.Attendees {
		if strings.HasPrefix(a.Email, selfEmail) && a.ResponseStatus == "declined" {
			return true
		}
	}
	return false
}

func (e CalendarEvent) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s - %s)", e.Summary, e.Start, e.End)
	if e.Location != "" {
		fmt.Fprintf(&sb, " at %s", e.Location)
	}
	return sb.String()
}
