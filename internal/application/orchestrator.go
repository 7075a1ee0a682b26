package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"slack-salesforce-link/internal/domain"
	"slack-salesforce-link/internal/infrastructure/metrics"
	"slack-salesforce-link/internal/ports"

	"github.com/rs/zerolog"
)

// LinkStatus is the outcome of a Salesforce link attempt.
type LinkStatus string

const (
	// LinkLinked means the workspace is now linked to a Salesforce user.
	LinkLinked LinkStatus = "linked"
	// LinkStateExpiredOrInvalid means the state token was unknown, expired,
	// or already consumed. Nothing was persisted; the user must start over.
	LinkStateExpiredOrInvalid LinkStatus = "state_expired_or_invalid"
	// LinkFailedInvalidGrant means Salesforce rejected the code outright.
	LinkFailedInvalidGrant LinkStatus = "failed_invalid_grant"
	// LinkFailedTransient means the exchange failed for a retryable reason,
	// but the state token is spent: authorization codes are single-use, so
	// the user must request a fresh authorize URL.
	LinkFailedTransient LinkStatus = "failed_transient"
)

// LinkResult is the typed outcome of CompleteLink.
type LinkResult struct {
	Status      LinkStatus
	WorkspaceID string
}

// WorkspaceNotifier posts best-effort messages back into a workspace.
type WorkspaceNotifier interface {
	Notify(ctx context.Context, workspaceID, text string)
}

// Orchestrator owns the correlation between the Slack install flow and the
// Salesforce authorization flow. It holds no state of its own: everything
// durable lives in the credential store, so the process can restart at any
// point without losing installations or breaking in-flight callbacks.
type Orchestrator struct {
	store      ports.CredentialStore
	salesforce ports.SalesforceClient
	slack      ports.SlackClient
	notifier   WorkspaceNotifier
	logger     zerolog.Logger
	linkTTL    time.Duration
	now        func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLinkRequestTTL overrides the default 10 minute state token expiry.
func WithLinkRequestTTL(ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.linkTTL = ttl }
}

// WithNotifier attaches a notifier for link completion messages.
func WithNotifier(n WorkspaceNotifier) OrchestratorOption {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates a new linking orchestrator.
func NewOrchestrator(
	store ports.CredentialStore,
	salesforce ports.SalesforceClient,
	slack ports.SlackClient,
	logger zerolog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		salesforce: salesforce,
		slack:      slack,
		logger:     logger,
		linkTTL:    10 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RequestInstall mints an install-flow state token and returns the Slack
// authorize URL carrying it.
func (o *Orchestrator) RequestInstall(ctx context.Context) (string, error) {
	state, err := newStateToken()
	if err != nil {
		return "", err
	}

	now := o.now()
	req := &domain.LinkRequest{
		State:     state,
		Kind:      domain.LinkKindInstall,
		CreatedAt: now,
		ExpiresAt: now.Add(o.linkTTL),
	}
	if err := o.store.CreateLinkRequest(ctx, req); err != nil {
		return "", err
	}
	return o.slack.BuildAuthorizeURL(state), nil
}

// ConsumeInstallState validates and spends an install-flow state token.
// Returns domain.ErrStateExpiredOrInvalid on replay, expiry, or a token
// minted for the wrong flow.
func (o *Orchestrator) ConsumeInstallState(ctx context.Context, state string) error {
	req, err := o.store.ConsumeLinkRequest(ctx, state)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrStateExpiredOrInvalid
	}
	if err != nil {
		return err
	}
	if req.Kind != domain.LinkKindInstall {
		return domain.ErrStateExpiredOrInvalid
	}
	return nil
}

// CompleteInstall upserts the workspace installation. Idempotent: running it
// again for an installed workspace updates the token and channel but never
// touches an existing Salesforce authorization, which lives separately.
func (o *Orchestrator) CompleteInstall(ctx context.Context, payload *domain.InstallPayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}

	inst := &domain.Installation{
		WorkspaceID:      payload.WorkspaceID,
		TeamName:         payload.TeamName,
		InstallToken:     payload.InstallToken,
		DefaultChannelID: payload.DefaultChannelID,
	}
	if err := o.store.PutInstallation(ctx, inst); err != nil {
		return "", err
	}

	metrics.InstallsCompleted.Inc()
	o.logger.Info().
		Str("workspaceId", payload.WorkspaceID).
		Str("team", payload.TeamName).
		Msg("Workspace installation completed")
	return payload.WorkspaceID, nil
}

// RequestLink mints a Salesforce-flow state token for an installed workspace
// and returns the authorize URL carrying it. A workspace may hold several
// outstanding link requests at once; the first callback to consume one wins
// and the rest expire on their own.
func (o *Orchestrator) RequestLink(ctx context.Context, workspaceID string) (string, error) {
	if _, err := o.store.GetInstallation(ctx, workspaceID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("workspace %s is not installed: %w", workspaceID, err)
		}
		return "", err
	}

	state, err := newStateToken()
	if err != nil {
		return "", err
	}

	now := o.now()
	req := &domain.LinkRequest{
		State:       state,
		Kind:        domain.LinkKindSalesforce,
		WorkspaceID: workspaceID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(o.linkTTL),
	}
	if err := o.store.CreateLinkRequest(ctx, req); err != nil {
		return "", err
	}
	return o.salesforce.BuildAuthorizeURL(state), nil
}

// CompleteLink consumes the state token, exchanges the authorization code,
// and persists the resulting Salesforce authorization.
//
// Errors are only returned for store failures before the state is spent;
// every other outcome is a LinkResult. Once the state is consumed the
// attempt is terminal either way, because authorization codes are
// single-use by provider contract.
func (o *Orchestrator) CompleteLink(ctx context.Context, state, code string) (*LinkResult, error) {
	req, err := o.store.ConsumeLinkRequest(ctx, state)
	if errors.Is(err, domain.ErrNotFound) {
		o.logger.Info().Msg("Link callback with unknown or spent state")
		return o.finishLink(ctx, &LinkResult{Status: LinkStateExpiredOrInvalid}), nil
	}
	if err != nil {
		return nil, err
	}
	if req.Kind != domain.LinkKindSalesforce {
		return o.finishLink(ctx, &LinkResult{Status: LinkStateExpiredOrInvalid}), nil
	}

	workspaceID := req.WorkspaceID

	tok, err := o.salesforce.ExchangeCode(ctx, code)
	if err != nil {
		return o.finishLink(ctx, failedResult(workspaceID, err)), nil
	}
	if tok.AccessToken == "" || tok.Extra["instance_url"] == "" {
		// Never persist a partial authorization.
		o.logger.Error().Str("workspaceId", workspaceID).Msg("Salesforce token response incomplete")
		return o.finishLink(ctx, &LinkResult{Status: LinkFailedTransient, WorkspaceID: workspaceID}), nil
	}

	identity, err := o.salesforce.UserInfo(ctx, tok.Extra["instance_url"], tok.AccessToken)
	if err != nil {
		return o.finishLink(ctx, failedResult(workspaceID, err)), nil
	}

	auth := &domain.CrmAuthorization{
		WorkspaceID:  workspaceID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		InstanceURL:  tok.Extra["instance_url"],
		CrmUserID:    identity.UserID,
		CrmOrgID:     identity.OrgID,
		IssuedAt:     o.now(),
	}
	if err := o.store.PutAuthorization(ctx, auth); err != nil {
		// The code is spent; surfacing a retryable error would tempt the
		// endpoint into re-consuming a state that no longer exists.
		o.logger.Error().Err(err).Str("workspaceId", workspaceID).Msg("Failed to persist authorization")
		return o.finishLink(ctx, &LinkResult{Status: LinkFailedTransient, WorkspaceID: workspaceID}), nil
	}

	o.logger.Info().
		Str("workspaceId", workspaceID).
		Str("crmUserId", identity.UserID).
		Str("crmOrgId", identity.OrgID).
		Msg("Workspace linked to Salesforce user")
	return o.finishLink(ctx, &LinkResult{Status: LinkLinked, WorkspaceID: workspaceID}), nil
}

// Uninstall removes the installation and any Salesforce authorization for a
// workspace. Tolerates a workspace that is already gone.
func (o *Orchestrator) Uninstall(ctx context.Context, workspaceID string) error {
	if err := o.store.ClearAuthorization(ctx, workspaceID); err != nil {
		return err
	}
	err := o.store.DeleteInstallation(ctx, workspaceID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	metrics.Uninstalls.Inc()
	o.logger.Info().Str("workspaceId", workspaceID).Msg("Workspace uninstalled")
	return nil
}

// State reports the durable linking state for a workspace.
func (o *Orchestrator) State(ctx context.Context, workspaceID string) (domain.WorkspaceState, error) {
	_, err := o.store.GetInstallation(ctx, workspaceID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.StateUninstalled, nil
	}
	if err != nil {
		return "", err
	}

	_, err = o.store.GetAuthorization(ctx, workspaceID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.StateInstalledUnlinked, nil
	}
	if err != nil {
		return "", err
	}
	return domain.StateLinked, nil
}

// finishLink records metrics and fires the completion notification.
func (o *Orchestrator) finishLink(ctx context.Context, result *LinkResult) *LinkResult {
	metrics.LinkResults.WithLabelValues(string(result.Status)).Inc()

	if o.notifier != nil && result.WorkspaceID != "" {
		switch result.Status {
		case LinkLinked:
			o.notifier.Notify(ctx, result.WorkspaceID,
				"Slack is now connected to your Salesforce user. Try /whoami.")
		case LinkFailedInvalidGrant, LinkFailedTransient:
			o.notifier.Notify(ctx, result.WorkspaceID,
				"Connecting to Salesforce failed. Please start the authorization again.")
		}
	}
	return result
}

func failedResult(workspaceID string, err error) *LinkResult {
	if domain.IsInvalidGrant(err) {
		return &LinkResult{Status: LinkFailedInvalidGrant, WorkspaceID: workspaceID}
	}
	return &LinkResult{Status: LinkFailedTransient, WorkspaceID: workspaceID}
}

// newStateToken generates a 128-bit random state token.
func newStateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
