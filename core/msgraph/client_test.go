package msgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planbord/backend/core"
)

var ctx = context.Background()

func testConfig(authority, graphBaseURL string) *core.Config {
	return &core.Config{
		Microsoft: core.MicrosoftConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			TenantID:     "common",
			RedirectURI:  "http://localhost:8000/auth/microsoft/callback",
			Authority:    authority,
			GraphBaseURL: graphBaseURL,
		},
	}
}

func newTestClient(conf *core.Config) (*Client, *InMemStore) {
	store := NewInMemStore()
	return NewClient(conf, store, core.NewNopLogger()), store
}

func TestToken_Valid(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		tok  Token
		want bool
	}{
		{name: "empty", tok: Token{}},
		{name: "no access token", tok: Token{ExpiresAt: now.Add(time.Hour)}},
		{name: "expired", tok: Token{AccessToken: "at", ExpiresAt: now.Add(-time.Hour)}},
		{name: "exactly at expiry", tok: Token{AccessToken: "at", ExpiresAt: now}},
		{name: "valid", tok: Token{AccessToken: "at", ExpiresAt: now.Add(time.Hour)}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tok.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_AuthURL(t *testing.T) {
	conf := testConfig("https://login.microsoftonline.com", "https://graph.microsoft.com/v1.0")
	client, _ := newTestClient(conf)

	t.Run("not configured", func(t *testing.T) {
		blank, _ := newTestClient(&core.Config{})
		_, err := blank.AuthURL("")
		require.Error(t, err)
		assert.Equal(t, core.NotConfigured, core.KindOf(err))
	})

	t.Run("default state", func(t *testing.T) {
		authURL, err := client.AuthURL("")
		require.NoError(t, err)

		u, err := url.Parse(authURL)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(authURL, "https://login.microsoftonline.com/common/oauth2/v2.0/authorize?"))
		assert.Equal(t, "client-id", u.Query().Get("client_id"))
		assert.Equal(t, "code", u.Query().Get("response_type"))
		assert.Equal(t, conf.Microsoft.RedirectURI, u.Query().Get("redirect_uri"))
		assert.Equal(t, "https://graph.microsoft.com/.default", u.Query().Get("scope"))
		assert.Equal(t, DefaultAuthState, u.Query().Get("state"))
	})

	t.Run("custom state", func(t *testing.T) {
		authURL, err := client.AuthURL("my-state")
		require.NoError(t, err)
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		assert.Equal(t, "my-state", u.Query().Get("state"))
	})
}

func TestClient_ExchangeCode(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/common/oauth2/v2.0/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-at",
			"refresh_token": "new-rt",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	conf := testConfig(srv.URL, srv.URL)

	t.Run("success", func(t *testing.T) {
		client, store := newTestClient(conf)
		require.True(t, client.ExchangeCode(ctx, "good-code"))

		assert.True(t, client.IsAuthenticated())
		tok := client.Token()
		assert.Equal(t, "new-at", tok.AccessToken)
		assert.Equal(t, "new-rt", tok.RefreshToken)
		assert.True(t, tok.ExpiresAt.After(time.Now().UTC().Add(59*time.Minute)))

		// token must have been persisted
		assert.True(t, store.Saved())
		saved, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, tok, saved)

		// the token request carries the full credential set
		assert.Equal(t, "client-id", gotForm.Get("client_id"))
		assert.Equal(t, "client-secret", gotForm.Get("client_secret"))
		assert.Equal(t, conf.Microsoft.RedirectURI, gotForm.Get("redirect_uri"))
		assert.Equal(t, "https://graph.microsoft.com/.default", gotForm.Get("scope"))
		assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	})

	t.Run("rejected code leaves token untouched", func(t *testing.T) {
		client, store := newTestClient(conf)
		require.False(t, client.ExchangeCode(ctx, "bad-code"))

		assert.False(t, client.IsAuthenticated())
		assert.Equal(t, Token{}, client.Token())
		assert.False(t, store.Saved())
	})

	t.Run("not configured", func(t *testing.T) {
		client, _ := newTestClient(&core.Config{})
		assert.False(t, client.ExchangeCode(ctx, "good-code"))
	})
}

func TestClient_Refresh(t *testing.T) {
	rotate := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "old-rt", r.PostForm.Get("refresh_token"))

		resp := map[string]interface{}{"access_token": "fresh-at"}
		if rotate {
			resp["refresh_token"] = "rotated-rt"
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	conf := testConfig(srv.URL, srv.URL)

	t.Run("no refresh token", func(t *testing.T) {
		client, _ := newTestClient(conf)
		assert.False(t, client.Refresh(ctx))
	})

	t.Run("rotated refresh token is adopted", func(t *testing.T) {
		rotate = true
		client, _ := newTestClient(conf)
		client.token = Token{AccessToken: "old-at", RefreshToken: "old-rt"}

		require.True(t, client.Refresh(ctx))
		tok := client.Token()
		assert.Equal(t, "fresh-at", tok.AccessToken)
		assert.Equal(t, "rotated-rt", tok.RefreshToken)
		assert.True(t, client.IsAuthenticated())
	})

	t.Run("missing refresh token in response keeps the old one", func(t *testing.T) {
		rotate = false
		client, _ := newTestClient(conf)
		client.token = Token{AccessToken: "old-at", RefreshToken: "old-rt"}

		require.True(t, client.Refresh(ctx))
		tok := client.Token()
		assert.Equal(t, "fresh-at", tok.AccessToken)
		assert.Equal(t, "old-rt", tok.RefreshToken)
	})
}

func TestClient_ValidateToken(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me", r.URL.Path)
		require.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	conf := testConfig(srv.URL, srv.URL)
	client, _ := newTestClient(conf)

	t.Run("no token, no request", func(t *testing.T) {
		assert.False(t, client.ValidateToken(ctx))
	})

	client.token = Token{AccessToken: "at", ExpiresAt: time.Now().UTC().Add(time.Hour)}

	t.Run("valid", func(t *testing.T) {
		status = http.StatusOK
		assert.True(t, client.ValidateToken(ctx))
	})
	t.Run("rejected", func(t *testing.T) {
		status = http.StatusUnauthorized
		assert.False(t, client.ValidateToken(ctx))
	})
}

func TestClient_UserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"displayName": "Jo Tester",
			"mail":        "jo@test.test",
		})
	}))
	defer srv.Close()

	conf := testConfig(srv.URL, srv.URL)
	client, _ := newTestClient(conf)

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := client.UserInfo(ctx)
		require.Error(t, err)
		assert.Equal(t, core.Unauthenticated, core.KindOf(err))
	})

	t.Run("profile returned", func(t *testing.T) {
		client.token = Token{AccessToken: "at", ExpiresAt: time.Now().UTC().Add(time.Hour)}
		info, err := client.UserInfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Jo Tester", info["displayName"])
		assert.Equal(t, "jo@test.test", info["mail"])
	})
}

func TestClient_Disconnect(t *testing.T) {
	conf := testConfig("https://login.microsoftonline.com", "https://graph.microsoft.com/v1.0")
	client, store := newTestClient(conf)

	tok := Token{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	client.token = tok
	require.NoError(t, store.Save(tok))
	require.True(t, client.IsAuthenticated())

	client.Disconnect()

	assert.False(t, client.IsAuthenticated())
	assert.Equal(t, Token{}, client.Token())
	assert.False(t, store.Saved())
}
