package hubspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// Default endpoints and client id of the HubSpace mobile app.
const (
	DefaultAPIURL   = "https://api2.afero.net/v1"
	DefaultTokenURL = "https://accounts.hubspaceconnect.com/auth/realms/thd/protocol/openid-connect/token"
	DefaultClientID = "hubspace_android"

	defaultTimeout = 10 * time.Second

	// maxBodySize caps response bodies read into memory.
	maxBodySize = 16 << 20
)

// Logger defines the logging interface used by the hubspace package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds client settings. Empty URLs and client id use the defaults.
type Config struct {
	Username string
	Password string
	APIURL   string
	TokenURL string
	ClientID string

	// Timeout bounds every HTTP request, including token requests.
	Timeout time.Duration

	// HTTPClient is the base client; its transport is wrapped with OAuth2.
	HTTPClient *http.Client
}

// Client talks to the HubSpace cloud API.
type Client struct {
	apiURL string
	http   *http.Client
	tokens oauth2.TokenSource
	logger Logger
	now    func() time.Time

	accountMu sync.Mutex
	accountID string
}

// New creates a client. No network traffic happens until the first call.
func New(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidConfig)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	oauthCfg := &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"openid", "offline_access"},
	}

	// Token requests run outside any caller context, so they use a
	// background context carrying the base client.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	src := &passwordTokenSource{
		ctx:      tokenCtx,
		cfg:      oauthCfg,
		username: cfg.Username,
		password: cfg.Password,
	}
	tokens := oauth2.ReuseTokenSource(nil, src)

	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &oauth2.Transport{Source: tokens, Base: base.Transport},
		},
		tokens: tokens,
		logger: noopLogger{},
		now:    time.Now,
	}, nil
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Login obtains a token, verifying the credentials.
//
// Returns:
//   - error: ErrAuthFailed for rejected credentials, ErrConnectionFailed
//     when the identity service cannot be reached
func (c *Client) Login(ctx context.Context) error {
	type result struct {
		err error
	}
	done := make(chan result, 1)
	go func() {
		_, err := c.tokens.Token()
		done <- result{err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return classify("login", r.err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: login: %w", ErrConnectionFailed, ctx.Err())
	}
}

// AccountID returns the account id of the logged-in user. The value is
// fetched once and cached.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	c.accountMu.Lock()
	defer c.accountMu.Unlock()

	if c.accountID != "" {
		return c.accountID, nil
	}

	var me struct {
		AccountAccess []struct {
			Account struct {
				AccountID string `json:"accountId"`
			} `json:"account"`
		} `json:"accountAccess"`
	}
	body, err := c.do(ctx, http.MethodGet, "/users/me", nil)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, &me); err != nil {
		return "", fmt.Errorf("%w: decoding user: %w", ErrUnexpectedResponse, err)
	}
	if len(me.AccountAccess) == 0 || me.AccountAccess[0].Account.AccountID == "" {
		return "", ErrNoAccount
	}

	c.accountID = me.AccountAccess[0].Account.AccountID
	c.logger.Debug("resolved hubspace account", "account_id", c.accountID)
	return c.accountID, nil
}

// Metadevices returns the raw device listing including embedded state.
// The body is handed to device.Parse, which owns its validation.
func (c *Client) Metadevices(ctx context.Context) ([]byte, error) {
	acct, err := c.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet,
		"/accounts/"+url.PathEscape(acct)+"/metadevices?expansions=state", nil)
}

// DeviceState returns the current state tuples of one child device.
func (c *Client) DeviceState(ctx context.Context, childID string) ([]device.State, error) {
	acct, err := c.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodGet, statePath(acct, childID), nil)
	if err != nil {
		return nil, err
	}
	states, err := device.ParseStates(childID, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return states, nil
}

// wireState is the write form of a state tuple. The cloud expects an
// explicit null instance when the function has none.
type wireState struct {
	FunctionClass    string  `json:"functionClass"`
	FunctionInstance *string `json:"functionInstance"`
	Value            any     `json:"value"`
	LastUpdateTime   int64   `json:"lastUpdateTime"`
}

type stateRequest struct {
	MetadeviceID string      `json:"metadeviceId"`
	Values       []wireState `json:"values"`
}

// SetStates writes state tuples to one child device in a single request.
// There is no retry.
func (c *Client) SetStates(ctx context.Context, childID string, states []device.State) error {
	if len(states) == 0 {
		return nil
	}
	acct, err := c.AccountID(ctx)
	if err != nil {
		return err
	}

	ts := c.now().UnixMilli()
	req := stateRequest{MetadeviceID: childID, Values: make([]wireState, len(states))}
	for i, s := range states {
		w := wireState{FunctionClass: s.Class, Value: s.Value, LastUpdateTime: ts}
		if s.Instance != "" {
			inst := s.Instance
			w.FunctionInstance = &inst
		}
		req.Values[i] = w
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding states: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPut, statePath(acct, childID), payload); err != nil {
		return err
	}
	c.logger.Debug("states written", "child_id", childID, "count", len(states))
	return nil
}

func statePath(acct, childID string) string {
	return "/accounts/" + url.PathEscape(acct) + "/metadevices/" + url.PathEscape(childID) + "/state"
}

// do performs an authenticated request and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(method+" "+path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrConnectionFailed, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrAuthFailed, method, path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s %s: status %d: %s",
			ErrUnexpectedResponse, method, path, resp.StatusCode, truncate(data, 256))
	}
	return data, nil
}

// classify maps transport and token errors onto the package sentinels.
func classify(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" || rerr.ErrorCode == "unauthorized_client" ||
			(rerr.Response != nil && (rerr.Response.StatusCode == http.StatusUnauthorized ||
				rerr.Response.StatusCode == http.StatusForbidden)) {
			return fmt.Errorf("%w: %s: %w", ErrAuthFailed, op, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrUnexpectedResponse, op, err)
	}

	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, op, err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnexpectedResponse, op, err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// passwordTokenSource obtains tokens with the password grant and refreshes
// them with the refresh token while it is accepted.
type passwordTokenSource struct {
	ctx      context.Context
	cfg      *oauth2.Config
	username string
	password string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && s.last.RefreshToken != "" {
		tok, err := s.cfg.TokenSource(s.ctx, &oauth2.Token{RefreshToken: s.last.RefreshToken}).Token()
		if err == nil {
			s.last = tok
			return tok, nil
		}
	}

	tok, err := s.cfg.PasswordCredentialsToken(s.ctx, s.username, s.password)
	if err != nil {
		return nil, err
	}
	s.last = tok
	return tok, nil
}
