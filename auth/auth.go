// Package auth acquires and refreshes the YouTube OAuth token.
//
// Resolution order:
//  1. YOUTUBE_REFRESH_TOKEN in the environment (CI): refresh on first use.
//  2. Token file present and still valid: use it.
//  3. Token file present but expired: refresh, persist, use.
//  4. Nothing stored: interactive consent in the terminal, persist.
//
// Any token the source hands out later (after a refresh) is written back to
// the token file.
package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"album-publisher/logging"
)

// Scopes requested on consent
var Scopes = []string{
	youtube.YoutubeUploadScope,
	youtube.YoutubeScope,
	youtube.YoutubeForceSslScope,
}

// ErrNoCode is returned when the pasted redirect URL carries no code
var ErrNoCode = errors.New("no authorization code found in URL")

// Source describes where the token in use came from
type Source string

const (
	SourceEnv         Source = "env"
	SourceStored      Source = "stored"
	SourceRefreshed   Source = "refreshed"
	SourceInteractive Source = "interactive"
)

// Manager owns the OAuth config and the token file
type Manager struct {
	conf         *oauth2.Config
	tokenPath    string
	refreshToken string
	in           io.Reader
	out          io.Writer
	log          logrus.FieldLogger
	now          func() time.Time
}

// Options configures a Manager
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	RefreshToken string
	TokenPath    string
	Endpoint     *oauth2.Endpoint
	In           io.Reader
	Out          io.Writer
	Logger       logrus.FieldLogger
}

// NewManager validates credentials and builds a Manager
func NewManager(opts Options) (*Manager, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("YouTube OAuth credentials not found in environment (YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET)")
	}

	endpoint := google.Endpoint
	if opts.Endpoint != nil {
		endpoint = *opts.Endpoint
	}
	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	return &Manager{
		conf: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		tokenPath:    opts.TokenPath,
		refreshToken: opts.RefreshToken,
		in:           in,
		out:          out,
		log:          logging.Component(opts.Logger, "auth"),
		now:          time.Now,
	}, nil
}

// Client returns an HTTP client that authorizes every request
func (m *Manager) Client(ctx context.Context) (*http.Client, error) {
	ts, _, err := m.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}

// TokenSource resolves a token and returns a source that persists refreshes
func (m *Manager) TokenSource(ctx context.Context) (oauth2.TokenSource, Source, error) {
	if m.refreshToken != "" {
		m.log.Info("Using refresh token from environment")
		tok := &oauth2.Token{
			RefreshToken: m.refreshToken,
			Expiry:       m.now().Add(-time.Hour), // force refresh
		}
		return m.conf.TokenSource(ctx, tok), SourceEnv, nil
	}

	tok, err := m.loadToken()
	switch {
	case err == nil && m.valid(tok):
		m.log.Info("Using existing YouTube credentials")
		return m.persisting(ctx, tok), SourceStored, nil

	case err == nil:
		m.log.Info("Token expired, refreshing...")
		fresh, err := m.conf.TokenSource(ctx, tok).Token()
		if err != nil {
			return nil, "", fmt.Errorf("refresh token: %w", err)
		}
		if err := m.saveToken(fresh); err != nil {
			return nil, "", err
		}
		return m.persisting(ctx, fresh), SourceRefreshed, nil

	case errors.Is(err, os.ErrNotExist):
		fresh, err := m.consent(ctx)
		if err != nil {
			return nil, "", err
		}
		return m.persisting(ctx, fresh), SourceInteractive, nil

	default:
		return nil, "", err
	}
}

func (m *Manager) valid(tok *oauth2.Token) bool {
	if tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || tok.Expiry.After(m.now())
}

// consent walks the user through the browser flow
func (m *Manager) consent(ctx context.Context) (*oauth2.Token, error) {
	authURL := m.conf.AuthCodeURL("state",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	fmt.Fprintln(m.out, "\nYouTube Authorization Required")
	fmt.Fprintln(m.out, "\nVisit this URL to authorize the application:")
	fmt.Fprintln(m.out, authURL)
	fmt.Fprintln(m.out, "\nAfter authorizing, you will be redirected to a URL.")
	fmt.Fprintln(m.out, "Copy the ENTIRE URL from your browser and paste it here.")
	fmt.Fprint(m.out, "\nEnter the full redirect URL: ")

	line, err := bufio.NewReader(m.in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("read redirect URL: %w", err)
	}

	code, err := extractCode(strings.TrimSpace(line))
	if err != nil {
		return nil, err
	}

	tok, err := m.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if err := m.saveToken(tok); err != nil {
		return nil, err
	}
	m.log.WithField("path", m.tokenPath).Info("Tokens saved")
	return tok, nil
}

func extractCode(redirect string) (string, error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", ErrNoCode
	}
	return code, nil
}

func (m *Manager) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(m.tokenPath)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", m.tokenPath, err)
	}
	return &tok, nil
}

func (m *Manager) saveToken(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.tokenPath, data, 0600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// persisting wraps the refreshing source so new access tokens land on disk
func (m *Manager) persisting(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return &persistingSource{
		base: m.conf.TokenSource(ctx, tok),
		last: tok.AccessToken,
		save: m.saveToken,
		log:  m.log,
	}
}

type persistingSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last string
	save func(*oauth2.Token) error
	log  logrus.FieldLogger
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.save(tok); err != nil {
			s.log.WithError(err).Warn("Could not persist refreshed token")
		}
	}
	return tok, nil
}
