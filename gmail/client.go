// Package gmail wraps the Gmail API operations the agent needs: listing and
// fetching inbox messages, mutating labels, and creating draft replies.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	user             = "me"
	defaultListCount = 100
	listMaxAttempts  = 5
)

// ListOptions narrows a ListMessages call. Dates are calendar dates in
// YYYY-MM-DD form. When none of NumEmails/StartDate/EndDate is given the
// fetch defaults to 100 messages.
type ListOptions struct {
	NumEmails     int
	StartDate     string
	EndDate       string
	UnreadOnly    bool
	ReceivedSince time.Time
}

// Client wraps an authenticated Gmail service.
type Client struct {
	srv *gmailapi.Service
}

// NewClient builds a client on an authorized HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	srv, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{srv: srv}, nil
}

// buildQuery assembles the server-side search string. Dates arrive as
// YYYY-MM-DD and go out in the YYYY/MM/DD form the query syntax expects;
// ReceivedSince becomes a unix-timestamp after: clause.
func buildQuery(opts ListOptions) string {
	var parts []string
	if opts.StartDate != "" {
		parts = append(parts, "after:"+strings.ReplaceAll(opts.StartDate, "-", "/"))
	}
	if opts.EndDate != "" {
		parts = append(parts, "before:"+strings.ReplaceAll(opts.EndDate, "-", "/"))
	}
	if !opts.ReceivedSince.IsZero() {
		parts = append(parts, fmt.Sprintf("after:%d", opts.ReceivedSince.Unix()))
	}
	return strings.Join(parts, " ")
}

// effectiveLimit applies the default message count when no narrowing option
// was given.
func effectiveLimit(opts ListOptions) int {
	if opts.NumEmails == 0 && opts.StartDate == "" && opts.EndDate == "" {
		return defaultListCount
	}
	return opts.NumEmails
}

// ListMessages fetches inbox messages matching opts, newest first. It
// paginates until the requested count is reached or the continuation token
// runs out, fetching each message's full record individually. A failed list
// call surfaces as an error; a failed per-message get or parse is logged
// and skipped so one bad message cannot abort the batch.
func (c *Client) ListMessages(ctx context.Context, opts ListOptions) ([]EmailMessage, error) {
	limit := effectiveLimit(opts)
	query := buildQuery(opts)
	labelIDs := []string{"INBOX"}
	if opts.UnreadOnly {
		labelIDs = append(labelIDs, "UNREAD")
	}

	var emails []EmailMessage
	pageToken := ""
	for {
		call := c.srv.Users.Messages.List(user).
			Q(query).
			LabelIds(labelIDs...).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		results, err := listWithBackoff(ctx, call)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		if len(results.Messages) == 0 {
			break
		}

		for _, info := range results.Messages {
			if limit > 0 && len(emails) >= limit {
				return emails, nil
			}
			full, err := c.srv.Users.Messages.Get(user, info.Id).Format("full").Context(ctx).Do()
			if err != nil {
				log.Printf("gmail: could not fetch message %s: %v", info.Id, err)
				continue
			}
			emails = append(emails, ParseMessage(full))
		}

		pageToken = results.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return emails, nil
}

// listWithBackoff retries the list call with exponential backoff, but only
// for the transient "server not found" network class. API-level failures
// are permanent.
func listWithBackoff(ctx context.Context, call *gmailapi.UsersMessagesListCall) (*gmailapi.ListMessagesResponse, error) {
	var results *gmailapi.ListMessagesResponse
	op := func() error {
		r, err := call.Do()
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		results = r
		return nil
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), listMaxAttempts-1),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return results, nil
}

func isTransient(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout() || urlErr.Temporary()
	}
	return false
}

// UpdateLabels applies the star and/or mark-as-read mutations in one remote
// call. On error the returned message is nil and callers must treat the
// remote state as unchanged.
func (c *Client) UpdateLabels(ctx context.Context, msg EmailMessage, star, markAsRead bool) (*EmailMessage, error) {
	req := &gmailapi.ModifyMessageRequest{}
	if star {
		req.AddLabelIds = append(req.AddLabelIds, "STARRED")
	}
	if markAsRead {
		req.RemoveLabelIds = append(req.RemoveLabelIds, "UNREAD")
	}
	if _, err := c.srv.Users.Messages.Modify(user, msg.ID, req).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("modify labels on message %s: %w", msg.ID, err)
	}
	return &msg, nil
}

// CreateDraft creates a plaintext draft reply on the original message's
// thread, addressed to the original sender with a Re: subject.
func (c *Client) CreateDraft(ctx context.Context, body string, original EmailMessage) error {
	raw := buildReply(body, original)
	draft := &gmailapi.Draft{
		Message: &gmailapi.Message{
			ThreadId: original.ThreadID,
			Raw:      base64.URLEncoding.EncodeToString(raw),
		},
	}
	if _, err := c.srv.Users.Drafts.Create(user, draft).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create draft on thread %s: %w", original.ThreadID, err)
	}
	return nil
}

// buildReply assembles the RFC 2822 reply message.
func buildReply(body string, original EmailMessage) []byte {
	var sb strings.Builder
	if original.Sender != "" {
		fmt.Fprintf(&sb, "To: %s\r\n", original.Sender)
	}
	fmt.Fprintf(&sb, "Subject: %s\r\n", replySubject(original.Subject))
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}

// replySubject prefixes Re: without doubling it up.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
