package gmail

import (
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
)

// dateLayout is the RFC-2822 style date carried in the Date header, after
// any trailing "(TZ)" comment has been stripped.
const dateLayout = "Mon, 2 Jan 2006 15:04:05 -0700"

// EmailMessage holds the essential information extracted from a Gmail
// message. It is never mutated after parsing; read/starred state lives
// server-side and is changed through label modifications addressed by ID.
type EmailMessage struct {
	ID       string    `json:"id"`
	ThreadID string    `json:"thread_id"`
	Subject  string    `json:"subject"`
	Sender   string    `json:"sender"`
	Snippet  string    `json:"snippet"`
	Body     string    `json:"body"`
	Date     time.Time `json:"date"`
}

// ParseMessage extracts an EmailMessage from a full-format API record.
// Headers are matched case-insensitively, first match wins. An unparseable
// Date header leaves the Date zero and logs a warning rather than failing
// the message.
func ParseMessage(msg *gmailapi.Message) EmailMessage {
	email := EmailMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}
	if msg.Payload == nil {
		return email
	}
	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			if email.Subject == "" {
				email.Subject = header.Value
			}
		case "from":
			if email.Sender == "" {
				email.Sender = header.Value
			}
		case "date":
			if !email.Date.IsZero() {
				continue
			}
			parsed, err := parseDateHeader(header.Value)
			if err != nil {
				log.Printf("gmail: could not parse date %q on message %s: %v", header.Value, msg.Id, err)
				continue
			}
			email.Date = parsed
		}
	}
	email.Body = plainTextBody(msg.Payload)
	return email
}

// parseDateHeader strips a trailing parenthesized zone name, e.g.
// "(UTC)", and parses the remainder.
func parseDateHeader(value string) (time.Time, error) {
	if i := strings.Index(value, "("); i != -1 {
		value = strings.TrimSpace(value[:i])
	}
	return time.Parse(dateLayout, value)
}

// plainTextBody returns the decoded text/plain content of a message
// payload: the first text/plain part of a multipart message, the root body
// of a singlepart one, or "" when neither has data.
func plainTextBody(payload *gmailapi.MessagePart) string {
	if len(payload.Parts) > 0 {
		for _, part := range payload.Parts {
			if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
				return decodeBody(part.Body.Data)
			}
		}
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}
	return ""
}

// decodeBody decodes base64url content, accepting both padded and unpadded
// forms since the API emits either.
func decodeBody(data string) string {
	b, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		b, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			log.Printf("gmail: could not decode message body: %v", err)
			return ""
		}
	}
	return string(b)
}

// Render formats the message for an LLM prompt. The short form carries the
// snippet, the long form the full body.
func (m EmailMessage) Render(short bool) string {
	var sb strings.Builder
	sb.WriteString("Email message:\n")
	fmt.Fprintf(&sb, "Subject: %s\n", m.Subject)
	fmt.Fprintf(&sb, "Sender: %s\n", m.Sender)
	if short {
		sb.WriteString(m.Snippet)
	} else {
		sb.WriteString(m.Body)
	}
	return sb.String()
}
