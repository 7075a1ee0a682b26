package salesforce

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slack-salesforce-link/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("client-id", "client-secret", "https://app.example/salesforce/oauth_redirect", srv.URL, zerolog.Nop())
	return c, srv.URL
}

func TestBuildAuthorizeURL(t *testing.T) {
	c := NewClient("client-id", "client-secret", "https://app.example/salesforce/oauth_redirect", "", zerolog.Nop())
	raw := c.BuildAuthorizeURL("state-123")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "login.salesforce.com", parsed.Host)
	assert.Equal(t, "/services/oauth2/authorize", parsed.Path)
	assert.Equal(t, "state-123", parsed.Query().Get("state"))
	assert.Equal(t, "client-id", parsed.Query().Get("client_id"))
	assert.Equal(t, "code", parsed.Query().Get("response_type"))
}

func TestExchangeCodeCapturesInstanceURL(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "code-1", r.FormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"access_token": "sf-access",
			"refresh_token": "sf-refresh",
			"token_type": "Bearer",
			"instance_url": "https://acme.my.salesforce.example",
			"id": "https://login.salesforce.example/id/00Dxx/005xx"
		}`)
	})

	tok, err := c.ExchangeCode(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "sf-access", tok.AccessToken)
	assert.Equal(t, "sf-refresh", tok.RefreshToken)
	assert.Equal(t, "https://acme.my.salesforce.example", tok.Extra["instance_url"])
}

func TestExchangeCodeInvalidGrant(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant", "error_description": "expired authorization code"}`)
	})

	_, err := c.ExchangeCode(context.Background(), "spent-code")
	assert.True(t, domain.IsInvalidGrant(err))
}

func TestExchangeCodeServerErrorIsTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.ExchangeCode(context.Background(), "code-1")
	assert.True(t, domain.IsTransientAuth(err))
}

func TestRefreshPreservesRefreshToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "sf-refresh", r.FormValue("refresh_token"))

		// Salesforce refresh responses omit refresh_token.
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"access_token": "sf-access-2",
			"token_type": "Bearer",
			"instance_url": "https://acme.my.salesforce.example"
		}`)
	})

	tok, err := c.Refresh(context.Background(), "sf-refresh")
	require.NoError(t, err)
	assert.Equal(t, "sf-access-2", tok.AccessToken)
	assert.Equal(t, "sf-refresh", tok.RefreshToken)
}

func TestRefreshRevokedToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant", "error_description": "token revoked"}`)
	})

	_, err := c.Refresh(context.Background(), "revoked")
	assert.True(t, domain.IsInvalidGrant(err))
}

func TestUserInfo(t *testing.T) {
	c, baseURL := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/oauth2/userinfo", r.URL.Path)
		assert.Equal(t, "Bearer sf-access", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"user_id": "005xx", "organization_id": "00Dxx"}`)
	})

	identity, err := c.UserInfo(context.Background(), baseURL, "sf-access")
	require.NoError(t, err)
	assert.Equal(t, "005xx", identity.UserID)
	assert.Equal(t, "00Dxx", identity.OrgID)
}

func TestUserInfoRejectedToken(t *testing.T) {
	c, baseURL := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `[{"errorCode": "INVALID_SESSION_ID"}]`)
	})

	_, err := c.UserInfo(context.Background(), baseURL, "stale-token")
	assert.True(t, domain.IsInvalidGrant(err))
}

func TestGetUserRecord(t *testing.T) {
	c, baseURL := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/data/v59.0/query", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "FROM User WHERE Id = '005xx'")
		assert.Equal(t, "Bearer sf-access", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"totalSize": 1,
			"records": [{
				"Id": "005xx",
				"Name": "Ada Lovelace",
				"Email": "ada@acme.example",
				"Phone": "+44 20 7946 0000",
				"Profile": {"Name": "System Administrator"}
			}]
		}`)
	})

	record, err := c.GetUserRecord(context.Background(), &domain.CrmAuthorization{
		WorkspaceID: "T1000",
		AccessToken: "sf-access",
		InstanceURL: baseURL,
		CrmUserID:   "005xx",
	})
	require.NoError(t, err)
	assert.Equal(t, "005xx", record.ID)
	assert.Equal(t, "Ada Lovelace", record.Name)
	assert.Equal(t, "ada@acme.example", record.Email)
	assert.Equal(t, "System Administrator", record.ProfileName)
}

func TestGetUserRecordExpiredSession(t *testing.T) {
	c, baseURL := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `[{"errorCode": "INVALID_SESSION_ID"}]`)
	})

	_, err := c.GetUserRecord(context.Background(), &domain.CrmAuthorization{
		AccessToken: "stale",
		InstanceURL: baseURL,
		CrmUserID:   "005xx",
	})
	assert.True(t, domain.IsInvalidGrant(err))
}
