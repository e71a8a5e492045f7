package triage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	openai "github.com/sashabaranov/go-openai"

	"github.com/adnsh/clerk/gmail"
	"github.com/adnsh/clerk/llm"
)

// stubLLM selects a fixed tool, or routes per-email via pick.
type stubLLM struct {
	tool  string
	draft string
	pick  func(prompt string) string

	completePrompts []string
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	s.completePrompts = append(s.completePrompts, prompt)
	return s.draft, nil
}

func (s *stubLLM) Choose(ctx context.Context, prompt string, tools []openai.Tool) (llm.Selection, error) {
	tool := s.tool
	if s.pick != nil {
		tool = s.pick(prompt)
	}
	return llm.Selection{Tool: tool}, nil
}

// mutation records one UpdateLabels call.
type mutation struct {
	id         string
	star       bool
	markAsRead bool
}

// draftCall records one CreateDraft call.
type draftCall struct {
	body     string
	threadID string
}

type stubMailer struct {
	mutations []mutation
	drafts    []draftCall
	labelErr  error
	draftErr  error
}

func (m *stubMailer) UpdateLabels(ctx context.Context, msg gmail.EmailMessage, star, markAsRead bool) (*gmail.EmailMessage, error) {
	if m.labelErr != nil {
		return nil, m.labelErr
	}
	m.mutations = append(m.mutations, mutation{id: msg.ID, star: star, markAsRead: markAsRead})
	return &msg, nil
}

func (m *stubMailer) CreateDraft(ctx context.Context, body string, original gmail.EmailMessage) error {
	if m.draftErr != nil {
		return m.draftErr
	}
	m.drafts = append(m.drafts, draftCall{body: body, threadID: original.ThreadID})
	return nil
}

var fixtureEmail = gmail.EmailMessage{
	ID:       "msg-1",
	ThreadID: "thread-1",
	Subject:  "RESPONSE REQUIRED",
	Sender:   "Mike Smith <mike@example.com>",
	Snippet:  "Please respond.",
	Body:     "Please respond to this message with a short poem about dragons.",
}

func TestTriageIgnore(t *testing.T) {
	mail := &stubMailer{}
	var out bytes.Buffer
	engine := &Engine{LLM: &stubLLM{tool: "ignore"}, Mail: mail, Out: &out}

	action := engine.triageOne(context.Background(), fixtureEmail)

	be.Equal(t, action, ActionIgnore)
	be.Equal(t, len(mail.mutations), 1)
	be.Equal(t, mail.mutations[0], mutation{id: "msg-1", star: false, markAsRead: true})
	be.Equal(t, len(mail.drafts), 0)
	be.Equal(t, out.String(), "Marked email RESPONSE REQUIRED as read.\n")
}

func TestTriageStar(t *testing.T) {
	mail := &stubMailer{}
	var out bytes.Buffer
	engine := &Engine{LLM: &stubLLM{tool: "star"}, Mail: mail, Out: &out}

	action := engine.triageOne(context.Background(), fixtureEmail)

	be.Equal(t, action, ActionStar)
	be.Equal(t, len(mail.mutations), 1)
	be.Equal(t, mail.mutations[0], mutation{id: "msg-1", star: true, markAsRead: true})
	be.Equal(t, len(mail.drafts), 0)
	be.Equal(t, out.String(), "Starred email RESPONSE REQUIRED.\n")
}

func TestTriageRespond(t *testing.T) {
	mail := &stubMailer{}
	var out bytes.Buffer
	stub := &stubLLM{tool: "respond", draft: "Here is a short poem about dragons."}
	engine := &Engine{LLM: stub, Mail: mail, Out: &out}

	action := engine.triageOne(context.Background(), fixtureEmail)

	be.Equal(t, action, ActionRespond)
	be.Equal(t, len(mail.drafts), 1)
	be.Equal(t, mail.drafts[0], draftCall{body: "Here is a short poem about dragons.", threadID: "thread-1"})
	// Mark-as-read follows the draft.
	be.Equal(t, len(mail.mutations), 1)
	be.Equal(t, mail.mutations[0], mutation{id: "msg-1", star: false, markAsRead: true})
	be.Equal(t, out.String(), "Drafted response to email:\nHere is a short poem about dragons.\n")

	// The draft call sees the full body, not the snippet.
	be.Equal(t, len(stub.completePrompts), 1)
	be.True(t, strings.Contains(stub.completePrompts[0], fixtureEmail.Body))
	be.True(t, !strings.Contains(stub.completePrompts[0], fixtureEmail.Snippet))
}

func TestTriageUnrecognizedTool(t *testing.T) {
	mail := &stubMailer{}
	var out bytes.Buffer
	engine := &Engine{LLM: &stubLLM{tool: "archive"}, Mail: mail, Out: &out}

	action := engine.triageOne(context.Background(), fixtureEmail)

	be.Equal(t, action, ActionNone)
	be.Equal(t, len(mail.mutations), 0)
	be.Equal(t, len(mail.drafts), 0)
	be.Equal(t, out.String(), "Failed to triage email: RESPONSE REQUIRED\n")
}

func TestTriageNoTool(t *testing.T) {
	mail := &stubMailer{}
	var out bytes.Buffer
	engine := &Engine{LLM: &stubLLM{}, Mail: mail, Out: &out}

	action := engine.triageOne(context.Background(), fixtureEmail)

	be.Equal(t, action, ActionNone)
	be.Equal(t, len(mail.mutations), 0)
	be.Equal(t, len(mail.drafts), 0)
}

func TestTriageLabelFailureStopsEmail(t *testing.T) {
	mail := &stubMailer{labelErr: errors.New("remote unavailable")}
	var out bytes.Buffer
	engine := &Engine{LLM: &stubLLM{tool: "ignore"}, Mail: mail, Out: &out}

	engine.triageOne(context.Background(), fixtureEmail)

	// The mutation was not confirmed, so no success line is printed.
	be.Equal(t, out.String(), "")
	be.Equal(t, len(mail.drafts), 0)
}

func TestTriageBatch(t *testing.T) {
	emails := []gmail.EmailMessage{
		{
			ID:       "e1",
			ThreadID: "t1",
			Subject:  "Automated email from RoboSystem",
			Sender:   "robosystem-noreply@example.com",
			Snippet:  "This is an automated email.",
		},
		{
			ID:       "e2",
			ThreadID: "t2",
			Subject:  "Document shared with you: Random FAQ for My Product",
			Sender:   "Mike Smith (via Google Docs)",
			Snippet:  "Please see the attached document for my product.",
		},
		{
			ID:       "e3",
			ThreadID: "t3",
			Subject:  "RESPONSE REQUIRED",
			Sender:   "Mike Smith",
			Body:     "Please respond to this message with a short poem about dragons.",
		},
	}

	stub := &stubLLM{
		draft: "A short poem about dragons.",
		pick: func(prompt string) string {
			switch {
			case strings.Contains(prompt, "RoboSystem"):
				return "ignore"
			case strings.Contains(prompt, "Document shared"):
				return "star"
			case strings.Contains(prompt, "RESPONSE REQUIRED"):
				return "respond"
			}
			return ""
		},
	}
	mail := &stubMailer{}
	var out bytes.Buffer
	engine := &Engine{LLM: stub, Mail: mail, Out: &out}

	engine.Triage(context.Background(), emails)

	want := "Marked email Automated email from RoboSystem as read.\n" +
		"Starred email Document shared with you: Random FAQ for My Product.\n" +
		"Drafted response to email:\nA short poem about dragons.\n"
	be.Equal(t, out.String(), want)

	be.Equal(t, len(mail.drafts), 1)
	be.Equal(t, mail.drafts[0].threadID, "t3")
	be.Equal(t, len(mail.mutations), 3)
	be.Equal(t, mail.mutations[0], mutation{id: "e1", star: false, markAsRead: true})
	be.Equal(t, mail.mutations[1], mutation{id: "e2", star: true, markAsRead: true})
	be.Equal(t, mail.mutations[2], mutation{id: "e3", star: false, markAsRead: true})
}

func TestDecisionPromptUsesShortForm(t *testing.T) {
	email := gmail.EmailMessage{
		Subject: "Hi",
		Snippet: "the snippet",
		Body:    "the full body text",
	}
	p := decisionPrompt(email)
	be.True(t, strings.Contains(p, "the snippet"))
	be.True(t, !strings.Contains(p, "the full body text"))
	be.True(t, strings.Contains(p, "triage their inbox"))
}
