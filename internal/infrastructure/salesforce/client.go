package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"slack-salesforce-link/internal/domain"
	"slack-salesforce-link/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const apiVersion = "v59.0"

// Client wraps the Salesforce web-server OAuth flow and the REST endpoints
// the app calls on behalf of a linked workspace.
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Salesforce client bound to one connected app.
// loginURL defaults to the production login host; point it at
// https://test.salesforce.com for sandbox orgs.
func NewClient(clientID, clientSecret, redirectURL, loginURL string, logger zerolog.Logger) *Client {
	if loginURL == "" {
		loginURL = "https://login.salesforce.com"
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"api", "refresh_token", "id"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   loginURL + "/services/oauth2/authorize",
				TokenURL:  loginURL + "/services/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// BuildAuthorizeURL constructs the authorize URL carrying the state token.
func (c *Client) BuildAuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a token. The instance_url
// field of the token response rides along in Extra.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*ports.OAuthToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, c.mapOAuthError("exchange", err)
	}
	return tokenFromOAuth2(tok), nil
}

// Refresh trades a refresh token for a fresh access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*ports.OAuthToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, c.mapOAuthError("refresh", err)
	}
	out := tokenFromOAuth2(tok)
	// Salesforce refresh responses omit the refresh token; keep the old one.
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

// UserInfo resolves the identity behind an access token.
func (c *Client) UserInfo(ctx context.Context, instanceURL, accessToken string) (*domain.CrmIdentity, error) {
	var payload struct {
		UserID string `json:"user_id"`
		OrgID  string `json:"organization_id"`
	}
	if err := c.apiGet(ctx, instanceURL+"/services/oauth2/userinfo", accessToken, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == "" {
		return nil, domain.NewAuthError(domain.ReasonTransient, errors.New("userinfo response missing user_id"))
	}
	return &domain.CrmIdentity{UserID: payload.UserID, OrgID: payload.OrgID}, nil
}

// GetUserRecord fetches the User record behind the authorization via SOQL.
func (c *Client) GetUserRecord(ctx context.Context, auth *domain.CrmAuthorization) (*domain.CrmUserRecord, error) {
	soql := fmt.Sprintf("SELECT Id, Name, Phone, Email, Profile.Name FROM User WHERE Id = '%s'", auth.CrmUserID)
	queryURL := fmt.Sprintf("%s/services/data/%s/query?q=%s", auth.InstanceURL, apiVersion, url.QueryEscape(soql))

	var payload struct {
		Records []struct {
			ID      string `json:"Id"`
			Name    string `json:"Name"`
			Email   string `json:"Email"`
			Phone   string `json:"Phone"`
			Profile struct {
				Name string `json:"Name"`
			} `json:"Profile"`
		} `json:"records"`
	}
	if err := c.apiGet(ctx, queryURL, auth.AccessToken, &payload); err != nil {
		return nil, err
	}
	if len(payload.Records) == 0 {
		return nil, fmt.Errorf("no user record for id %s", auth.CrmUserID)
	}

	rec := payload.Records[0]
	return &domain.CrmUserRecord{
		ID:          rec.ID,
		Name:        rec.Name,
		Email:       rec.Email,
		Phone:       rec.Phone,
		ProfileName: rec.Profile.Name,
	}, nil
}

// apiGet performs an authenticated GET and decodes the JSON response,
// mapping HTTP failures onto the auth error taxonomy.
func (c *Client) apiGet(ctx context.Context, rawURL, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewAuthError(domain.ReasonTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// INVALID_SESSION_ID and friends: the token was rejected. Callers
		// decide whether a refresh can recover it.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.NewAuthError(domain.ReasonInvalidGrant,
			fmt.Errorf("salesforce rejected token: status %d, body: %s", resp.StatusCode, body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.NewAuthError(domain.ReasonTransient,
			fmt.Errorf("salesforce returned status %d, body: %s", resp.StatusCode, body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode salesforce response: %w", err)
	}
	return nil
}

// mapOAuthError classifies token endpoint failures. invalid_grant means the
// code or refresh token is spent or revoked and must never be retried.
func (c *Client) mapOAuthError(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" ||
			(rerr.Response != nil && rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500) {
			c.logger.Warn().Str("op", op).Str("code", rerr.ErrorCode).Msg("Salesforce rejected grant")
			return domain.NewAuthError(domain.ReasonInvalidGrant, err)
		}
	}
	c.logger.Warn().Str("op", op).Err(err).Msg("Salesforce token endpoint failure")
	return domain.NewAuthError(domain.ReasonTransient, err)
}

func tokenFromOAuth2(tok *oauth2.Token) *ports.OAuthToken {
	out := &ports.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Extra:        map[string]string{},
	}
	for _, key := range []string{"instance_url", "id"} {
		if v, ok := tok.Extra(key).(string); ok {
			out.Extra[key] = v
		}
	}
	return out
}

var _ ports.SalesforceClient = (*Client)(nil)
