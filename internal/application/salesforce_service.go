package application

import (
	"context"
	"errors"

	"slack-salesforce-link/internal/domain"
	"slack-salesforce-link/internal/ports"

	"github.com/rs/zerolog"
)

// SalesforceService runs Salesforce queries on behalf of linked workspaces,
// applying the token refresh policy along the way.
type SalesforceService struct {
	store  ports.CrmAuthorizationStore
	client ports.SalesforceClient
	logger zerolog.Logger
}

// NewSalesforceService creates a new Salesforce application service.
func NewSalesforceService(
	store ports.CrmAuthorizationStore,
	client ports.SalesforceClient,
	logger zerolog.Logger,
) *SalesforceService {
	return &SalesforceService{
		store:  store,
		client: client,
		logger: logger,
	}
}

// WhoAmI returns the Salesforce User record linked to the workspace.
//
// Refresh policy: a rejected session triggers one refresh-and-retry. When
// the refresh itself is rejected the grant is revoked, so the stored
// authorization is cleared and ErrReauthorizationRequired tells the caller
// to send the user back through the authorize flow.
func (s *SalesforceService) WhoAmI(ctx context.Context, workspaceID string) (*domain.CrmUserRecord, error) {
	auth, err := s.store.GetAuthorization(ctx, workspaceID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrReauthorizationRequired
	}
	if err != nil {
		return nil, err
	}

	record, err := s.client.GetUserRecord(ctx, auth)
	if err == nil {
		return record, nil
	}
	if !domain.IsInvalidGrant(err) {
		return nil, err
	}

	refreshed, err := s.refresh(ctx, auth)
	if err != nil {
		return nil, err
	}
	return s.client.GetUserRecord(ctx, refreshed)
}

// refresh exchanges the stored refresh token for a fresh access token and
// persists the updated authorization.
func (s *SalesforceService) refresh(ctx context.Context, auth *domain.CrmAuthorization) (*domain.CrmAuthorization, error) {
	if auth.RefreshToken == "" {
		return nil, s.revoke(ctx, auth.WorkspaceID)
	}

	tok, err := s.client.Refresh(ctx, auth.RefreshToken)
	if err != nil {
		if domain.IsInvalidGrant(err) {
			return nil, s.revoke(ctx, auth.WorkspaceID)
		}
		return nil, err
	}

	auth.AccessToken = tok.AccessToken
	auth.RefreshToken = tok.RefreshToken
	if instanceURL := tok.Extra["instance_url"]; instanceURL != "" {
		auth.InstanceURL = instanceURL
	}
	if !auth.Complete() {
		// A refresh that strips the token or instance URL is as good as a
		// revocation; don't persist it.
		return nil, s.revoke(ctx, auth.WorkspaceID)
	}

	if err := s.store.PutAuthorization(ctx, auth); err != nil {
		return nil, err
	}

	s.logger.Info().Str("workspaceId", auth.WorkspaceID).Msg("Refreshed Salesforce access token")
	return auth, nil
}

// revoke clears the stored authorization and reports that the user must
// reauthorize. Clearing is distinguishable from a transient failure: only a
// definitive invalid_grant lands here.
func (s *SalesforceService) revoke(ctx context.Context, workspaceID string) error {
	if err := s.store.ClearAuthorization(ctx, workspaceID); err != nil {
		s.logger.Error().Err(err).Str("workspaceId", workspaceID).Msg("Failed to clear revoked authorization")
		return err
	}
	s.logger.Warn().Str("workspaceId", workspaceID).Msg("Salesforce grant revoked, authorization cleared")
	return domain.ErrReauthorizationRequired
}
