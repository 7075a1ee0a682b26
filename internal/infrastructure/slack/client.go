package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slack-salesforce-link/internal/domain"
	"slack-salesforce-link/internal/ports"

	"github.com/rs/zerolog"
)

const defaultAPIBaseURL = "https://slack.com/api"

// Client wraps the subset of the Slack Web API the app depends on: the
// OAuth v2 install exchange and chat.postMessage.
type Client struct {
	clientID     string
	clientSecret string
	redirectURL  string
	scopes       []string
	apiBaseURL   string
	httpClient   *http.Client
	logger       zerolog.Logger
}

// NewClient creates a Slack client bound to one app's credentials.
func NewClient(clientID, clientSecret, redirectURL string, logger zerolog.Logger) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		scopes: []string{
			"channels:read",
			"groups:read",
			"channels:manage",
			"chat:write",
			"incoming-webhook",
			"commands",
		},
		apiBaseURL: defaultAPIBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// NewClientWithBaseURL creates a client against a non-default API host.
// Used by tests to point at an httptest server.
func NewClientWithBaseURL(clientID, clientSecret, redirectURL, apiBaseURL string, logger zerolog.Logger) *Client {
	c := NewClient(clientID, clientSecret, redirectURL, logger)
	c.apiBaseURL = apiBaseURL
	return c
}

// BuildAuthorizeURL constructs the Slack OAuth v2 authorize URL.
func (c *Client) BuildAuthorizeURL(state string) string {
	return fmt.Sprintf(
		"https://slack.com/oauth/v2/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		url.QueryEscape(c.clientID),
		url.QueryEscape(strings.Join(c.scopes, ",")),
		url.QueryEscape(c.redirectURL),
		url.QueryEscape(state),
	)
}

// oauthAccessResponse is the oauth.v2.access envelope. Slack reports
// failures as ok=false with an error code, not with HTTP status codes.
type oauthAccessResponse struct {
	OK           bool   `json:"ok"`
	Error        string `json:"error"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Team         struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	IncomingWebhook struct {
		ChannelID string `json:"channel_id"`
		Channel   string `json:"channel"`
	} `json:"incoming_webhook"`
}

// ExchangeCode trades an install code for a bot token via oauth.v2.access.
// Team and channel details ride along in Extra.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*ports.OAuthToken, error) {
	values := url.Values{}
	values.Set("client_id", c.clientID)
	values.Set("client_secret", c.clientSecret)
	values.Set("code", code)
	values.Set("redirect_uri", c.redirectURL)

	payload, err := c.oauthAccess(ctx, values)
	if err != nil {
		return nil, err
	}

	return &ports.OAuthToken{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Extra: map[string]string{
			"team_id":    payload.Team.ID,
			"team_name":  payload.Team.Name,
			"channel_id": payload.IncomingWebhook.ChannelID,
			"channel":    payload.IncomingWebhook.Channel,
		},
	}, nil
}

// Refresh rotates a bot token via oauth.v2.access with the refresh_token
// grant. Only used when token rotation is enabled on the Slack app.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*ports.OAuthToken, error) {
	values := url.Values{}
	values.Set("client_id", c.clientID)
	values.Set("client_secret", c.clientSecret)
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)

	payload, err := c.oauthAccess(ctx, values)
	if err != nil {
		return nil, err
	}
	return &ports.OAuthToken{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}, nil
}

// ExchangeInstallCode exchanges an install code and decodes the response
// into an install payload.
func (c *Client) ExchangeInstallCode(ctx context.Context, code string) (*domain.InstallPayload, error) {
	tok, err := c.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	payload := &domain.InstallPayload{
		WorkspaceID:      tok.Extra["team_id"],
		TeamName:         tok.Extra["team_name"],
		InstallToken:     tok.AccessToken,
		DefaultChannelID: tok.Extra["channel_id"],
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("incomplete install response: %w", err)
	}
	return payload, nil
}

// PostMessage posts text into a channel using the given bot token.
func (c *Client) PostMessage(ctx context.Context, token, channelID, text string) error {
	body, err := json.Marshal(map[string]string{
		"channel": channelID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/chat.postMessage", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewAuthError(domain.ReasonTransient, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode postMessage response: %w", err)
	}
	if !envelope.OK {
		return c.mapAPIError("chat.postMessage", envelope.Error)
	}
	return nil
}

// oauthAccess posts to oauth.v2.access and decodes the envelope.
func (c *Client) oauthAccess(ctx context.Context, values url.Values) (*oauthAccessResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/oauth.v2.access", strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewAuthError(domain.ReasonTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, domain.NewAuthError(domain.ReasonTransient,
			fmt.Errorf("slack returned status %d", resp.StatusCode))
	}

	var payload oauthAccessResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if !payload.OK {
		return nil, c.mapAPIError("oauth.v2.access", payload.Error)
	}
	return &payload, nil
}

// mapAPIError classifies a Slack error code onto the auth error taxonomy.
func (c *Client) mapAPIError(method, code string) error {
	err := fmt.Errorf("slack %s failed: %s", method, code)
	switch code {
	case "invalid_code", "code_already_used", "invalid_grant_type",
		"invalid_refresh_token", "invalid_auth", "token_revoked", "account_inactive":
		c.logger.Warn().Str("method", method).Str("code", code).Msg("Slack rejected grant")
		return domain.NewAuthError(domain.ReasonInvalidGrant, err)
	}
	return domain.NewAuthError(domain.ReasonTransient, err)
}

var _ ports.SlackClient = (*Client)(nil)
