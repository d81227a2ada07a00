package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_LegacyLogin(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("token") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "user_id", r.PostForm.Get("fields"))
		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": "alice"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/Sessions/Login", nil, 10, time.Minute)
	user, err := c.GetUser(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	// second lookup is served from the cache
	_, err = c.GetUser(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.GetUser(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClient_TokenEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.Header.Get("Authorization") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"user": "bob"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/V2/token", nil, 10, time.Minute)
	user, err := c.GetUser(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "bob", user)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, 10, time.Minute)
	_, err := c.GetUser(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = c.GetUser(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TokenFromContext(ctx))
	assert.Empty(t, UserFromContext(ctx))
	ctx = WithUser(WithToken(ctx, "t"), "u")
	assert.Equal(t, "t", TokenFromContext(ctx))
	assert.Equal(t, "u", UserFromContext(ctx))
}
