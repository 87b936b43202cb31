package backend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookworm-labs/bookchat/internal/backend/response"
	"github.com/bookworm-labs/bookchat/internal/config"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-at-least-32-bytes-long",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		},
	}
	return NewRouter(cfg, zerolog.Nop())
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)
}

func TestRouter_ChatMessageStreamsEvents(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/chat/message",
		map[string]string{"message": "hello", "session_id": "s1"}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	lines := strings.Split(rec.Body.String(), "\n")
	var sources, content, done int
	for _, line := range lines {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			done++
			continue
		}
		var ev struct {
			Type  string `json:"type"`
			Delta string `json:"delta"`
		}
		require.NoError(t, json.Unmarshal([]byte(payload), &ev))
		switch ev.Type {
		case "sources":
			sources++
		case "content":
			content++
			assert.NotEmpty(t, ev.Delta)
		}
	}

	assert.Equal(t, 1, sources, "exactly one sources event")
	assert.Greater(t, content, 1, "reply arrives in multiple deltas")
	assert.Equal(t, 1, done, "stream ends with the sentinel")

	// Sources always precede content.
	body := rec.Body.String()
	assert.Less(t, strings.Index(body, `"sources"`), strings.Index(body, `"content"`))
}

func TestRouter_ChatMessageRequiresText(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/chat/message",
		map[string]string{"message": ""}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestRouter_RegisterLoginSessionFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
		"name":     "Reader",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &tokens))
	require.NotEmpty(t, tokens.AccessToken)

	// Login also sets the session cookie for the chat endpoint.
	cookies := rec.Result().Cookies()
	var sessionCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == "bookchat_session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	rec = doJSON(t, router, http.MethodGet, "/api/auth/session", nil, map[string]string{
		"Authorization": "Bearer " + tokens.AccessToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var session struct {
		Email string `json:"email"`
	}
	env = decodeEnvelope(t, rec)
	data, err = json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &session))
	assert.Equal(t, "reader@example.com", session.Email)
}

func TestRouter_RegisterDuplicateEmail(t *testing.T) {
	router := newTestRouter(t)
	body := map[string]string{"email": "dup@example.com", "password": "password123"}

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/register", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_RegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_LoginWrongPassword(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "reader@example.com", "password": "password123",
	}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "reader@example.com", "password": "wrong-password",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_SessionRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/auth/session", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ProfileRoundTrip(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "reader@example.com", "password": "password123",
	}, nil)
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "reader@example.com", "password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	data, err := json.Marshal(decodeEnvelope(t, rec).Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &tokens))
	auth := map[string]string{"Authorization": "Bearer " + tokens.AccessToken}

	rec = doJSON(t, router, http.MethodPost, "/api/user/profile", map[string]any{
		"software_context": map[string]any{
			"languages":        []string{"python", "go"},
			"experience_level": "intermediate",
		},
		"hardware_context": map[string]any{
			"devices": []string{"jetson"},
		},
	}, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/user/profile", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile struct {
		SoftwareContext struct {
			Languages       []string `json:"languages"`
			ExperienceLevel string   `json:"experience_level"`
		} `json:"software_context"`
		HardwareContext struct {
			Devices []string `json:"devices"`
		} `json:"hardware_context"`
	}
	data, err = json.Marshal(decodeEnvelope(t, rec).Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &profile))
	assert.Equal(t, []string{"python", "go"}, profile.SoftwareContext.Languages)
	assert.Equal(t, "intermediate", profile.SoftwareContext.ExperienceLevel)
	assert.Equal(t, []string{"jetson"}, profile.HardwareContext.Devices)
}

func TestRouter_ProfileRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/user/profile", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
