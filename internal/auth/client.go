// Package auth is the client for the authentication and profile service.
// The provider owns all token and session cryptography; this client only
// performs the sign-up/sign-in/sign-out/session-query operations and the
// bearer-authed profile submission.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/bookworm-labs/bookchat/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client talks to the auth/profile endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger

	mu     sync.Mutex
	tokens *domain.TokenPair
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// NewClient creates an auth client. A nil httpClient gets a default with a
// cookie jar so the provider's session cookie is retained.
func NewClient(baseURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: defaultTimeout, Jar: jar}
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger.With().Str("component", "auth-client").Logger(),
	}
}

// HTTPClient returns the underlying HTTP client, so the chat client can
// share the same cookie jar and send authenticated requests.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, input domain.UserCreate) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", input, false, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignIn authenticates and retains the returned token pair for later
// bearer-authed calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	var tokens domain.TokenPair
	input := domain.UserLogin{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", input, false, &tokens); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tokens = &tokens
	c.mu.Unlock()

	c.logger.Info().Str("email", email).Msg("Signed in")
	return &tokens, nil
}

// SignOut ends the session and drops the retained tokens.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, false, nil)

	c.mu.Lock()
	c.tokens = nil
	c.mu.Unlock()

	return err
}

// Session queries the provider for the current session.
func (c *Client) Session(ctx context.Context) (*domain.SessionInfo, error) {
	var info domain.SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, true, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SubmitProfile sends the background questionnaire answers.
func (c *Client) SubmitProfile(ctx context.Context, req domain.ProfileRequest) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := c.do(ctx, http.MethodPost, "/api/user/profile", req, true, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SignedIn reports whether a non-expired access token is held.
func (c *Client) SignedIn() bool {
	token := c.accessToken()
	if token == "" {
		return false
	}

	// Expiry only; signature verification is the provider's job.
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt == nil || claims.ExpiresAt.After(time.Now())
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken
}

func (c *Client) do(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		token := c.accessToken()
		if token == "" {
			return fmt.Errorf("not signed in")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Success {
		return fmt.Errorf("auth provider returned status %d: %s", resp.StatusCode, string(envelope.Error))
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
