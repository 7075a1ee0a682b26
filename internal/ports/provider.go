package ports

import (
	"context"

	"slack-salesforce-link/internal/domain"
)

// OAuthToken is the result of an authorization-code exchange or a refresh.
// Extra carries provider-specific response fields (Salesforce instance_url,
// Slack team id) without widening the shared contract.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	Extra        map[string]string
}

// OAuthClient is the contract shared by both provider integrations. Each
// instance is bound to one provider's endpoints and credentials.
type OAuthClient interface {
	// BuildAuthorizeURL constructs the provider authorize URL carrying the
	// given state token. No I/O.
	BuildAuthorizeURL(state string) string

	// ExchangeCode trades an authorization code for a token in a single
	// round trip. Failures are *domain.AuthError: invalid_grant when the
	// code was already used or expired, transient otherwise.
	ExchangeCode(ctx context.Context, code string) (*OAuthToken, error)

	// Refresh trades a refresh token for a fresh access token. Same error
	// taxonomy as ExchangeCode.
	Refresh(ctx context.Context, refreshToken string) (*OAuthToken, error)
}

// SalesforceClient extends the OAuth contract with the Salesforce API calls
// the app makes on behalf of a linked workspace.
type SalesforceClient interface {
	OAuthClient

	// UserInfo resolves the identity behind a freshly exchanged token.
	UserInfo(ctx context.Context, instanceURL, accessToken string) (*domain.CrmIdentity, error)

	// GetUserRecord fetches the User record for the authorization's
	// CrmUserID. A rejected session surfaces as invalid_grant so callers
	// can apply the refresh policy.
	GetUserRecord(ctx context.Context, auth *domain.CrmAuthorization) (*domain.CrmUserRecord, error)
}

// SlackClient extends the OAuth contract with the Slack Web API calls the
// app depends on.
type SlackClient interface {
	OAuthClient

	// ExchangeInstallCode exchanges an install code and decodes the
	// oauth.v2.access response into an install payload.
	ExchangeInstallCode(ctx context.Context, code string) (*domain.InstallPayload, error)

	// PostMessage posts text into a channel using the given bot token.
	PostMessage(ctx context.Context, token, channelID, text string) error
}
