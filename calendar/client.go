// Package calendar wraps the read-only Calendar API operations the agent
// needs and parses raw event records into structured events.
package calendar

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	calapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	calendarID        = "primary"
	defaultEventCount = 50
)

// ListOptions narrows a ListEvents call. StartDate and EndDate are
// YYYY-MM-DD calendar dates interpreted as UTC day boundaries, EndDate
// inclusive through the end of its day. When none of NumEvents/StartDate/
// EndDate is given the fetch defaults to 50 events starting now.
type ListOptions struct {
	NumEvents    int64
	StartDate    string
	EndDate      string
	UpdatedSince time.Time
}

// Client wraps an authenticated Calendar service.
type Client struct {
	srv       *calapi.Service
	selfEmail string
	loc       *time.Location
}

// NewClient builds a client on an authorized HTTP client. selfEmail drives
// the declined-event filter and may be empty, making the filter a no-op.
func NewClient(ctx context.Context, httpClient *http.Client, selfEmail string, loc *time.Location) (*Client, error) {
	srv, err := calapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{srv: srv, selfEmail: selfEmail, loc: loc}, nil
}

// ListEvents fetches upcoming events ordered by start time, with recurring
// events expanded to single occurrences. Events the configured user has
// declined are dropped. Zero matching events is an empty slice, not an
// error.
func (c *Client) ListEvents(ctx context.Context, opts ListOptions) ([]CalendarEvent, error) {
	numEvents := opts.NumEvents
	if numEvents == 0 && opts.StartDate == "" && opts.EndDate == "" {
		numEvents = defaultEventCount
	}

	timeMin := time.Now().UTC()
	if opts.StartDate != "" {
		t, err := time.Parse("2006-01-02", opts.StartDate)
		if err != nil {
			return nil, fmt.Errorf("parse start date %q: %w", opts.StartDate, err)
		}
		timeMin = t.UTC()
	}

	call := c.srv.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if numEvents > 0 {
		call = call.MaxResults(numEvents)
	}
	if opts.EndDate != "" {
		t, err := time.Parse("2006-01-02", opts.EndDate)
		if err != nil {
			return nil, fmt.Errorf("parse end date %q: %w", opts.EndDate, err)
		}
		timeMax := t.UTC().Add(24*time.Hour - time.Microsecond)
		call = call.TimeMax(timeMax.Format(time.RFC3339Nano))
	}
	if !opts.UpdatedSince.IsZero() {
		call = call.UpdatedMin(opts.UpdatedSince.UTC().Format(time.RFC3339))
	}

	results, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var events []CalendarEvent
	for _, item := range results.Items {
		event, err := ParseEvent(item, c.loc)
		if err != nil {
			log.Printf("calendar: skipping malformed event: %v", err)
			continue
		}
		if event.declinedBy(c.selfEmail) {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
