// Package auth manages the OAuth2 credentials of the CLI: the stored session,
// the interactive authorization-code flow and the refresh-token flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/takak2166/onenotecli/internal/logger"
	"github.com/takak2166/onenotecli/internal/models"
	"golang.org/x/oauth2"
)

// Endpoint holds the provider's consent and token URLs
type Endpoint struct {
	AuthURL  string
	TokenURL string
}

// LiveEndpoint is the Microsoft account OAuth endpoint used by OneNote
var LiveEndpoint = Endpoint{
	AuthURL:  "https://login.live.com/oauth20_authorize.srf",
	TokenURL: "https://login.live.com/oauth20_token.srf",
}

// State is the position of the credential set in the token lifecycle
type State int

const (
	// Unauthenticated has neither an access token nor a refresh token
	Unauthenticated State = iota
	// Authenticated has a cached access token
	Authenticated
	// Refreshable has no access token but a refresh token
	Refreshable
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshable:
		return "refreshable"
	default:
		return "unauthenticated"
	}
}

// CodeAcquirer sends the user to the consent URL and returns the query of the
// redirect that comes back.
type CodeAcquirer interface {
	AcquireCode(ctx context.Context, consentURL string) (url.Values, error)
}

// Manager owns one credential set and hands out access tokens
type Manager struct {
	creds      models.Credentials
	store      CredentialStore
	codes      CodeAcquirer
	endpoint   Endpoint
	httpClient *http.Client
	newState   func() string
}

// Option configures a Manager
type Option func(*Manager)

// WithEndpoint overrides the OAuth endpoint
func WithEndpoint(e Endpoint) Option { return func(m *Manager) { m.endpoint = e } }

// WithHTTPClient sets the client used for token requests
func WithHTTPClient(c *http.Client) Option { return func(m *Manager) { m.httpClient = c } }

// NewManager creates a manager. A complete registration starts a fresh
// credential set without tokens; otherwise the stored session is loaded, and a
// missing or corrupt one leaves the manager unauthenticated.
func NewManager(store CredentialStore, codes CodeAcquirer, registration *models.Credentials, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		codes:    codes,
		endpoint: LiveEndpoint,
		newState: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}

	if registration != nil && registration.HasRegistration() {
		m.creds = models.Credentials{
			ClientID:     registration.ClientID,
			ClientSecret: registration.ClientSecret,
			Scope:        registration.Scope,
			RedirectURL:  registration.RedirectURL,
		}
		return m
	}

	creds, err := store.Load()
	if err != nil {
		logger.Debug("Starting without a stored session", map[string]interface{}{
			"reason": err.Error(),
		})
		return m
	}
	m.creds = *creds
	return m
}

// State reports the current lifecycle state
func (m *Manager) State() State {
	switch {
	case m.creds.AccessToken != "":
		return Authenticated
	case m.creds.RefreshToken != "":
		return Refreshable
	default:
		return Unauthenticated
	}
}

// Credentials returns a copy of the current credential set
func (m *Manager) Credentials() models.Credentials {
	return m.creds
}

// Token returns a usable access token. A cached token is returned without a
// network round trip; otherwise the refresh flow runs when a refresh token is
// held, and the interactive flow when it is not.
func (m *Manager) Token(ctx context.Context) (string, error) {
	switch m.State() {
	case Authenticated:
		return m.creds.AccessToken, nil
	case Refreshable:
		return m.Refresh(ctx)
	default:
		return m.Authenticate(ctx)
	}
}

// Authenticate runs the interactive authorization-code flow. Nothing is
// changed or written unless the exchange succeeds.
func (m *Manager) Authenticate(ctx context.Context) (string, error) {
	if !m.creds.HasRegistration() {
		return "", ErrNoRegistration
	}
	logger.Info("Starting interactive authorization")

	conf := m.oauthConfig()
	state := m.newState()
	consentURL := conf.AuthCodeURL(state, oauth2.SetAuthURLParam("redirect_url", m.creds.RedirectURL))

	query, err := m.codes.AcquireCode(ctx, consentURL)
	if err != nil {
		return "", fmt.Errorf("failed to acquire authorization code: %w", err)
	}
	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: %w", ErrAuthFailure, ErrNoCode)
	}
	if got := query.Get("state"); got != "" && got != state {
		return "", fmt.Errorf("%w: redirect state does not match", ErrAuthFailure)
	}

	tokenCtx, tr := m.oauthContext(ctx, nil)
	tok, err := conf.Exchange(tokenCtx, code, oauth2.SetAuthURLParam("redirect_url", m.creds.RedirectURL))
	if err != nil {
		logger.Error("Authorization code exchange failed", err, map[string]interface{}{
			"status": retrieveStatus(err),
		})
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	// Only a 200 carries a token worth keeping.
	if tr.status != http.StatusOK {
		logger.Warn("Token endpoint answered without 200", map[string]interface{}{
			"status": tr.status,
		})
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrAuthFailure, tr.status)
	}

	m.creds.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		m.creds.RefreshToken = tok.RefreshToken
	}
	m.persist()

	logger.Info("Authorization completed", map[string]interface{}{
		"has_refresh_token": m.creds.RefreshToken != "",
	})
	return m.creds.AccessToken, nil
}

// Refresh mints a new access token from the refresh token. Failure clears
// both tokens so that the next Token call starts the interactive flow.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.creds.AccessToken = ""
	if m.creds.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", ErrAuthFailure)
	}
	logger.Debug("Refreshing access token")

	tokenCtx, tr := m.oauthContext(ctx, url.Values{"redirect_url": {m.creds.RedirectURL}})
	src := m.oauthConfig().TokenSource(tokenCtx, &oauth2.Token{
		RefreshToken: m.creds.RefreshToken,
	})
	tok, err := src.Token()
	if err != nil {
		m.creds.ClearTokens()
		logger.Error("Token refresh failed", err, map[string]interface{}{
			"status": retrieveStatus(err),
		})
		return "", fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	if tr.status != http.StatusOK {
		m.creds.ClearTokens()
		logger.Warn("Token endpoint answered without 200", map[string]interface{}{
			"status": tr.status,
		})
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrAuthFailure, tr.status)
	}

	m.creds.AccessToken = tok.AccessToken
	// x/oauth2 carries the old refresh token over when the provider does not rotate it.
	m.creds.RefreshToken = tok.RefreshToken
	m.persist()

	return m.creds.AccessToken, nil
}

// HandleUnauthorized drops the rejected access token and acquires a new one
func (m *Manager) HandleUnauthorized(ctx context.Context) (string, error) {
	logger.Info("Access token was rejected, acquiring a new one", map[string]interface{}{
		"state": m.State().String(),
	})
	m.creds.AccessToken = ""
	return m.Token(ctx)
}

func (m *Manager) persist() {
	if err := m.store.Save(&m.creds); err != nil {
		logger.Error("Failed to persist session", err)
	}
}

func (m *Manager) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.creds.ClientID,
		ClientSecret: m.creds.ClientSecret,
		RedirectURL:  m.creds.RedirectURL,
		Scopes:       strings.Fields(m.creds.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.endpoint.AuthURL,
			TokenURL:  m.endpoint.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// oauthContext carries an HTTP client for x/oauth2 whose transport adds extra
// to the token request form.
func (m *Manager) oauthContext(ctx context.Context, extra url.Values) (context.Context, *tokenTransport) {
	base := http.DefaultClient
	if m.httpClient != nil {
		base = m.httpClient
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	tr := &tokenTransport{base: rt, extra: extra}
	client := &http.Client{Transport: tr, Timeout: base.Timeout}
	return context.WithValue(ctx, oauth2.HTTPClient, client), tr
}

func retrieveStatus(err error) int {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}
