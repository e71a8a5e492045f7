// Package triage classifies unread emails with one LLM call each and
// performs exactly one of three actions: mark-as-read, star, or
// draft-a-reply.
package triage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/adnsh/clerk/gmail"
	"github.com/adnsh/clerk/llm"
	"github.com/adnsh/clerk/prompt"
)

// rubric gives the model illustrative examples for the three-way decision.
const rubric = `Your job is to help the user triage their inbox. You can either mark emails as read if you don't think the user needs to respond to them (with the option to star them for the user's offline review), or draft responses to confirm with the user.

Examples of emails that *do not* need a response and can be IGNORED:
  - Notifications about code changes, automated tickets, or other automated emails
  - Purely informational emails, like changing the time of a meeting
  - Meeting invitations and notices about other people accepting or declining a meeting
  - Automated thank-you notes

Examples of emails that *do not* need a response and can be STARRED for the user's offline review:
  - Documents shared that the user might want to take a look at
  - Large group emails with critical organizational updates
  - Meeting *requests*

Examples of emails that *do* need a response:
  - Emails where a response from the user is explicitly requested
  - Emails sent from individuals to the user as the sole recipient

`

// Action is the closed set of triage outcomes.
type Action int

const (
	ActionNone Action = iota
	ActionIgnore
	ActionStar
	ActionRespond
)

// LLM is the slice of the llm client the engine needs.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Choose(ctx context.Context, prompt string, tools []openai.Tool) (llm.Selection, error)
}

// Mailer performs the server-side mail mutations. Satisfied by
// *gmail.Client.
type Mailer interface {
	UpdateLabels(ctx context.Context, msg gmail.EmailMessage, star, markAsRead bool) (*gmail.EmailMessage, error)
	CreateDraft(ctx context.Context, body string, original gmail.EmailMessage) error
}

// Engine runs the per-email decision. Out receives the human-readable
// outcome lines and defaults to stdout.
type Engine struct {
	LLM  LLM
	Mail Mailer
	Out  io.Writer
}

func decisionTools() []openai.Tool {
	return []openai.Tool{
		llm.FunctionTool("ignore", "Marks an email as not needing any attention.", nil),
		llm.FunctionTool("star", "Stars an email for the user's offline review.", nil),
		llm.FunctionTool("respond", "Marks an email as needing a response.", nil),
	}
}

func decisionPrompt(email gmail.EmailMessage) string {
	return prompt.Preamble + rubric + email.Render(true)
}

func draftPrompt(email gmail.EmailMessage) string {
	return "Draft a response to this email:\n\n" + email.Render(false) +
		"\n\nReturn only the body of the reply email, with no alternatives or explanation."
}

// Triage classifies each email in turn. A failure on one email never stops
// the batch.
func (e *Engine) Triage(ctx context.Context, emails []gmail.EmailMessage) {
	for _, email := range emails {
		e.triageOne(ctx, email)
	}
}

// triageOne runs the decision call and performs the selected side effect.
// At most one of the three actions executes, and mark-as-read is always the
// final mutation.
func (e *Engine) triageOne(ctx context.Context, email gmail.EmailMessage) Action {
	out := e.Out
	if out == nil {
		out = os.Stdout
	}

	sel, err := e.LLM.Choose(ctx, decisionPrompt(email), decisionTools())
	if err != nil {
		log.Printf("triage: decision call for %q: %v", email.Subject, err)
		fmt.Fprintf(out, "Failed to triage email: %s\n", email.Subject)
		return ActionNone
	}

	switch sel.Tool {
	case "ignore":
		if _, err := e.Mail.UpdateLabels(ctx, email, false, true); err != nil {
			log.Printf("triage: mark read %q: %v", email.Subject, err)
			return ActionIgnore
		}
		fmt.Fprintf(out, "Marked email %s as read.\n", email.Subject)
		return ActionIgnore

	case "star":
		if _, err := e.Mail.UpdateLabels(ctx, email, true, true); err != nil {
			log.Printf("triage: star %q: %v", email.Subject, err)
			return ActionStar
		}
		fmt.Fprintf(out, "Starred email %s.\n", email.Subject)
		return ActionStar

	case "respond":
		draft, err := e.LLM.Complete(ctx, draftPrompt(email))
		if err != nil {
			log.Printf("triage: draft call for %q: %v", email.Subject, err)
			fmt.Fprintf(out, "Failed to triage email: %s\n", email.Subject)
			return ActionNone
		}
		if err := e.Mail.CreateDraft(ctx, draft, email); err != nil {
			log.Printf("triage: create draft for %q: %v", email.Subject, err)
			return ActionRespond
		}
		fmt.Fprintf(out, "Drafted response to email:\n%s\n", draft)
		if _, err := e.Mail.UpdateLabels(ctx, email, false, true); err != nil {
			log.Printf("triage: mark read %q: %v", email.Subject, err)
		}
		return ActionRespond

	default:
		fmt.Fprintf(out, "Failed to triage email: %s\n", email.Subject)
		return ActionNone
	}
}
