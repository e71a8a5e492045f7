// Package agent runs the polling loop tying credentials, the calendar and
// mail clients, and the triage engine together, plus the one-shot
// interactive call path.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/adnsh/clerk/calendar"
	"github.com/adnsh/clerk/config"
	"github.com/adnsh/clerk/gmail"
	"github.com/adnsh/clerk/llm"
	"github.com/adnsh/clerk/prompt"
)

// MailLister fetches inbox messages. Satisfied by *gmail.Client.
type MailLister interface {
	ListMessages(ctx context.Context, opts gmail.ListOptions) ([]gmail.EmailMessage, error)
}

// EventLister fetches calendar events. Satisfied by *calendar.Client.
type EventLister interface {
	ListEvents(ctx context.Context, opts calendar.ListOptions) ([]calendar.CalendarEvent, error)
}

// Triager classifies a batch of emails. Satisfied by *triage.Engine.
type Triager interface {
	Triage(ctx context.Context, emails []gmail.EmailMessage)
}

// ToolRunner answers a prompt with executable tools attached. Satisfied by
// *llm.Client.
type ToolRunner interface {
	RunTools(ctx context.Context, prompt string, tools []llm.Tool) (string, error)
}

// Agent owns the poll cycle. The checkpoint is an explicit field advanced
// after each successful mail fetch; it is not persisted across restarts.
type Agent struct {
	Settings config.Settings
	Mail     MailLister
	Calendar EventLister
	Triage   Triager
	LLM      ToolRunner
	Prompt   prompt.Builder

	// Refresh re-validates credentials before each cycle. Optional.
	Refresh func(ctx context.Context) error

	// Out receives progress lines; defaults to stdout. Now exists for
	// tests and defaults to time.Now.
	Out io.Writer
	Now func() time.Time

	lastCkpt time.Time
}

func (a *Agent) out() io.Writer {
	if a.Out != nil {
		return a.Out
	}
	return os.Stdout
}

func (a *Agent) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Run polls until ctx is cancelled: one cycle immediately, then one per
// poll interval. Remote failures degrade the cycle to empty results; they
// never stop the loop.
func (a *Agent) Run(ctx context.Context) {
	a.lastCkpt = a.now().UTC()
	a.Cycle(ctx)

	ticker := time.NewTicker(a.Settings.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("agent: stopping")
			return
		case <-ticker.C:
			a.Cycle(ctx)
		}
	}
}

// Cycle runs one poll iteration: refresh credentials, report calendar
// changes since the checkpoint, then fetch and triage unread mail.
func (a *Agent) Cycle(ctx context.Context) {
	if a.Refresh != nil {
		if err := a.Refresh(ctx); err != nil {
			log.Printf("agent: refresh credentials: %v", err)
			return
		}
	}

	if a.Settings.PollCalendar && a.Calendar != nil {
		fmt.Fprintln(a.out(), "Fetching latest events...")
		events, err := a.Calendar.ListEvents(ctx, calendar.ListOptions{UpdatedSince: a.lastCkpt})
		if err != nil {
			log.Printf("agent: fetch events: %v", err)
		} else {
			for _, event := range events {
				fmt.Fprintln(a.out(), event)
			}
		}
	}

	if a.Settings.PollGmail && a.Mail != nil {
		fmt.Fprintln(a.out(), "Fetching latest emails...")
		emails, err := a.Mail.ListMessages(ctx, gmail.ListOptions{UnreadOnly: true})
		if err != nil {
			log.Printf("agent: fetch emails: %v", err)
			return
		}
		a.lastCkpt = a.now().UTC()
		if len(emails) > 0 {
			a.Triage.Triage(ctx, emails)
		}
	}
}

// Checkpoint returns the current lower bound for "new since last poll".
func (a *Agent) Checkpoint() time.Time {
	return a.lastCkpt
}

// Call answers one free-text query with the read-only calendar and mail
// tools attached, and returns the model's text response.
func (a *Agent) Call(ctx context.Context, userInput string) (string, error) {
	return a.LLM.RunTools(ctx, a.Prompt.Build(userInput), a.readTools())
}

type eventArgs struct {
	NumEvents int64  `json:"num_events"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type emailArgs struct {
	NumEmails  int    `json:"num_emails"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	UnreadOnly bool   `json:"unread_only"`
}

// readTools exposes the calendar and mail fetches to the model. Results are
// rendered as JSON text; no mutating operation is reachable from here.
func (a *Agent) readTools() []llm.Tool {
	dateProp := func(desc string) jsonschema.Definition {
		return jsonschema.Definition{Type: jsonschema.String, Description: desc}
	}

	eventsSchema := &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"num_events": {Type: jsonschema.Integer, Description: "If set, fetch the next num_events events."},
			"start_date": dateProp("Fetch events starting from this date, YYYY-MM-DD."),
			"end_date":   dateProp("Fetch events up to this date, YYYY-MM-DD."),
		},
	}
	emailsSchema := &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"num_emails":  {Type: jsonschema.Integer, Description: "A limit on the total number of emails to fetch."},
			"start_date":  dateProp("Filter emails received on or after this date, YYYY-MM-DD."),
			"end_date":    dateProp("Filter emails received before this date, YYYY-MM-DD."),
			"unread_only": {Type: jsonschema.Boolean, Description: "Whether to filter to unread emails."},
		},
	}

	return []llm.Tool{
		{
			Definition: llm.FunctionTool("get_events", "Fetches the user's calendar events.", eventsSchema),
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var parsed eventArgs
				if len(args) > 0 {
					if err := json.Unmarshal(args, &parsed); err != nil {
						return "", fmt.Errorf("parse get_events arguments: %w", err)
					}
				}
				events, err := a.Calendar.ListEvents(ctx, calendar.ListOptions{
					NumEvents: parsed.NumEvents,
					StartDate: parsed.StartDate,
					EndDate:   parsed.EndDate,
				})
				if err != nil {
					return "", err
				}
				return renderJSON(events)
			},
		},
		{
			Definition: llm.FunctionTool("get_emails", "Gets emails from the user's inbox.", emailsSchema),
			Run: func(ctx context.Context, args json.RawMessage) (string, error) {
				var parsed emailArgs
				if len(args) > 0 {
					if err := json.Unmarshal(args, &parsed); err != nil {
						return "", fmt.Errorf("parse get_emails arguments: %w", err)
					}
				}
				emails, err := a.Mail.ListMessages(ctx, gmail.ListOptions{
					NumEmails:  parsed.NumEmails,
					StartDate:  parsed.StartDate,
					EndDate:    parsed.EndDate,
					UnreadOnly: parsed.UnreadOnly,
				})
				if err != nil {
					return "", err
				}
				return renderJSON(emails)
			},
		},
	}
}

func renderJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
