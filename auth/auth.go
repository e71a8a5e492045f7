// Package auth obtains and refreshes the Google OAuth credential used by the
// mail and calendar clients. Tokens are cached in a local JSON file; a first
// run walks the user through the interactive consent flow.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
)

// ErrAuth marks credential failures that should abort startup.
var ErrAuth = errors.New("auth failed")

var scopes = []string{
	calendar.CalendarScope,
	gmail.GmailReadonlyScope,
	gmail.GmailModifyScope,
}

// Provider loads, refreshes, and persists the user's OAuth token.
type Provider struct {
	tokenFile string
	config    *oauth2.Config

	// In supplies the authorization code during the interactive flow.
	In io.Reader
}

// NewProvider reads the OAuth client secret file and prepares a provider.
func NewProvider(tokenFile, credentialsFile string) (*Provider, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read client secret file %s: %v", ErrAuth, credentialsFile, err)
	}
	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parse client secret file: %v", ErrAuth, err)
	}
	return &Provider{tokenFile: tokenFile, config: config, In: os.Stdin}, nil
}

// Token returns a valid token, refreshing or running the interactive flow as
// needed. The cache file is rewritten whenever the token changes.
func (p *Provider) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := loadToken(p.tokenFile)
	if err == nil && tok.Valid() {
		return tok, nil
	}

	if err == nil && tok.RefreshToken != "" {
		fresh, refreshErr := p.config.TokenSource(ctx, tok).Token()
		if refreshErr == nil {
			if saveErr := saveToken(p.tokenFile, fresh); saveErr != nil {
				return nil, saveErr
			}
			return fresh, nil
		}
		// Refresh token revoked or expired; fall through to re-consent.
	}

	tok, err = p.tokenFromWeb(ctx)
	if err != nil {
		return nil, err
	}
	if err := saveToken(p.tokenFile, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Client returns an authorized HTTP client. Tokens refreshed mid-flight are
// written back to the cache file.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	tok, err := p.Token(ctx)
	if err != nil {
		return nil, err
	}
	src := &savingSource{
		src:  p.config.TokenSource(ctx, tok),
		path: p.tokenFile,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

func (p *Provider) tokenFromWeb(ctx context.Context) (*oauth2.Token, error) {
	authURL := p.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)

	var authCode string
	if _, err := fmt.Fscan(p.In, &authCode); err != nil {
		return nil, fmt.Errorf("%w: read authorization code: %v", ErrAuth, err)
	}
	tok, err := p.config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange authorization code: %v", ErrAuth, err)
	}
	return tok, nil
}

// savingSource persists refreshed tokens so the cache never goes stale while
// the agent runs.
type savingSource struct {
	src  oauth2.TokenSource
	path string
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := saveToken(s.path, tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

func loadToken(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
