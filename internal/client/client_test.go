package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	"github.com/noah-isme/worksmarter/pkg/middleware/requestid"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  map[string]interface{}{"code": code, "message": message, "status": status},
		"detail": message,
	})
}

func newTestClient(t *testing.T, handler http.Handler, tokens *Tokens) (*Client, *Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	session, err := NewSession(nil)
	require.NoError(t, err)
	if tokens != nil {
		require.NoError(t, session.Set(&models.TokenPair{Access: tokens.Access, Refresh: tokens.Refresh, User: tokens.User}))
	}
	return New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, session), session
}

func TestClientRefreshesOnceAndRetries(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "refresh-1", body["refresh"])
		assert.Empty(t, r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, models.TokenPair{Access: "fresh", Refresh: "refresh-2"})
	})
	mux.HandleFunc("/api/classrooms/c1/tables/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token expired")
			return
		}
		writeEnvelope(w, http.StatusOK, dto.TablesSnapshot{ClassroomID: "c1", Version: 7})
	})

	c, session := newTestClient(t, mux, &Tokens{Access: "stale", Refresh: "refresh-1", User: &models.UserInfo{ID: "s1"}})

	snapshot, err := c.Tables(context.Background(), "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 7, snapshot.Version)
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
	assert.Equal(t, "fresh", session.CurrentToken())
	require.NotNil(t, session.User())
	assert.Equal(t, "s1", session.User().ID)
}

func TestClientClearsSessionWhenRefreshFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "refresh token revoked")
	})
	var calls int32
	mux.HandleFunc("/api/classrooms/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	})

	c, session := newTestClient(t, mux, &Tokens{Access: "stale", Refresh: "bad"})
	fired := false
	session.OnUnauthorized = func() { fired = true }

	_, err := c.Classrooms(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.True(t, fired)
	assert.Empty(t, session.CurrentToken())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClientErrorKinds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/classrooms/c1/tables/assign/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, CodeTableFull, "table is full")
	})
	mux.HandleFunc("/api/classrooms/tables/t1/messages/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "message cannot be empty")
	})
	mux.HandleFunc("/api/groups/t1/generate/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c, _ := newTestClient(t, mux, &Tokens{Access: "a", Refresh: "r"})
	ctx := context.Background()

	table := "t2"
	_, err := c.AssignSeat(ctx, "c1", "s1", &table)
	assert.Equal(t, KindDomain, KindOf(err))
	assert.True(t, HasCode(err, CodeTableFull))

	_, err = c.SendMessage(ctx, "t1", "  ", "k")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "message cannot be empty", apiErr.Message)

	_, err = c.GeneratePrompts(ctx, "t1", "a1", 3)
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestClientTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	session, _ := NewSession(nil)
	c := New(Config{BaseURL: srv.URL, Timeout: time.Second}, session)

	_, err := c.Classrooms(context.Background())
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestClientStampsRequestID(t *testing.T) {
	seen := make(chan string, 2)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get(requestid.Header)
		writeEnvelope(w, http.StatusOK, []models.Message{})
	})
	c, _ := newTestClient(t, handler, &Tokens{Access: "a", Refresh: "r"})

	_, err := c.Messages(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, <-seen)

	_, err = c.Messages(requestid.WithValue(context.Background(), "trace-1"), "t1", 4)
	require.NoError(t, err)
	assert.Equal(t, "trace-1", <-seen)
}

func TestClientLoginPersistsTokens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, models.TokenPair{
			Access:  "a1",
			Refresh: "r1",
			User:    &models.UserInfo{ID: "s1", Role: models.RoleStudent},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "session.json")}
	session, err := NewSession(store)
	require.NoError(t, err)
	c := New(Config{BaseURL: srv.URL}, session)

	user, err := c.Login(context.Background(), "s@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "s1", user.ID)

	reloaded, err := NewSession(store)
	require.NoError(t, err)
	assert.Equal(t, "a1", reloaded.CurrentToken())
	assert.Equal(t, models.RoleStudent, reloaded.User().Role)

	require.NoError(t, reloaded.Clear())
	tokens, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, tokens)
}
