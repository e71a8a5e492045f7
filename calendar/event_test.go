package calendar

import (
	"testing"
	"time"

	"github.com/nalgeon/be"
	calapi "google.golang.org/api/calendar/v3"
)

func TestParseEvent(t *testing.T) {
	raw := &calapi.Event{
		Status:      "confirmed",
		Summary:     "Planning sync",
		Description: "Quarterly planning.",
		Location:    "Room 4",
		Creator:     &calapi.EventCreator{Email: "alex@example.com"},
		Start:       &calapi.EventDateTime{DateTime: "2025-06-30T14:00:00Z"},
		End:         &calapi.EventDateTime{DateTime: "2025-06-30T15:00:00Z"},
		Attendees: []*calapi.EventAttendee{
			{Email: "alex@example.com", DisplayName: "Alex", ResponseStatus: "accepted"},
			{Email: "sam@example.com", ResponseStatus: "needsAction"},
		},
	}

	event, err := ParseEvent(raw, time.UTC)
	be.Err(t, err, nil)
	be.Equal(t, event.Status, "confirmed")
	be.Equal(t, event.Summary, "Planning sync")
	be.Equal(t, event.Creator, "alex@example.com")
	be.Equal(t, event.Start, "Monday, 30 June 2025 at 02:00 PM")
	be.Equal(t, event.End, "Monday, 30 June 2025 at 03:00 PM")
	be.Equal(t, len(event.Attendees), 2)
	be.Equal(t, event.Attendees[0].DisplayName, "Alex")
}

func TestParseEventAllDay(t *testing.T) {
	raw := &calapi.Event{
		Summary: "Offsite",
		Creator: &calapi.EventCreator{Email: "alex@example.com"},
		Start:   &calapi.EventDateTime{Date: "2025-07-04"},
		End:     &calapi.EventDateTime{Date: "2025-07-05"},
	}
	event, err := ParseEvent(raw, time.UTC)
	be.Err(t, err, nil)
	be.Equal(t, event.Start, "Friday, 04 July 2025")
	be.Equal(t, event.End, "Saturday, 05 July 2025")
}

func TestParseEventTimezoneConversion(t *testing.T) {
	zone := time.FixedZone("BST", 3600)
	raw := &calapi.Event{
		Summary: "Late call",
		Start:   &calapi.EventDateTime{DateTime: "2025-06-30T22:30:00Z"},
		End:     &calapi.EventDateTime{DateTime: "2025-06-30T23:00:00Z"},
	}
	event, err := ParseEvent(raw, zone)
	be.Err(t, err, nil)
	be.Equal(t, event.Start, "Monday, 30 June 2025 at 11:30 PM")
}

func TestParseEventBadTime(t *testing.T) {
	raw := &calapi.Event{
		Summary: "Broken",
		Start:   &calapi.EventDateTime{DateTime: "not-a-time"},
	}
	_, err := ParseEvent(raw, time.UTC)
	be.True(t, err != nil)
}

func TestDeclinedBy(t *testing.T) {
	event := CalendarEvent{
		Attendees: []Attendee{
			{Email: "alex@example.com", ResponseStatus: "declined"},
			{Email: "sam@example.com", ResponseStatus: "accepted"},
		},
	}

	be.True(t, event.declinedBy("alex@example.com"))
	// Prefix match covers bare-localpart configuration.
	be.True(t, event.declinedBy("alex"))
	be.True(t, !event.declinedBy("sam@example.com"))
	// No configured self address means the filter is a no-op.
	be.True(t, !event.declinedBy(""))
}

func TestEventString(t *testing.T) {
	event := CalendarEvent{
		Summary:  "Sync",
		Start:    "Monday, 30 June 2025 at 02:00 PM",
		End:      "Monday, 30 June 2025 at 03:00 PM",
		Location: "Room 4",
	}
	be.Equal(t, event.String(), "Sync (Monday, 30 June 2025 at 02:00 PM - Monday, 30 June 2025 at 03:00 PM) at Room 4")
}
