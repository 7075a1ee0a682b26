package ports

import (
	"context"

	"slack-salesforce-link/internal/domain"
)

// InstallationStore persists workspace installations keyed by workspace ID.
type InstallationStore interface {
	// PutInstallation creates or replaces the installation for its workspace.
	// Re-installing preserves the original CreatedAt.
	PutInstallation(ctx context.Context, inst *domain.Installation) error

	// GetInstallation returns domain.ErrNotFound when the workspace has no
	// installation.
	GetInstallation(ctx context.Context, workspaceID string) (*domain.Installation, error)

	// DeleteInstallation removes the installation. Deleting a missing key
	// returns domain.ErrNotFound.
	DeleteInstallation(ctx context.Context, workspaceID string) error
}

// CrmAuthorizationStore persists Salesforce credentials keyed by workspace ID.
// Authorizations live separately from installations so a re-install never
// touches an existing authorization.
type CrmAuthorizationStore interface {
	// PutAuthorization creates or replaces the authorization for its
	// workspace. The record must satisfy domain.CrmAuthorization.Complete.
	PutAuthorization(ctx context.Context, auth *domain.CrmAuthorization) error

	// GetAuthorization returns domain.ErrNotFound when the workspace has no
	// authorization.
	GetAuthorization(ctx context.Context, workspaceID string) (*domain.CrmAuthorization, error)

	// ClearAuthorization removes the authorization. Clearing a missing key
	// is not an error.
	ClearAuthorization(ctx context.Context, workspaceID string) error
}

// LinkRequestStore persists pending OAuth state tokens.
type LinkRequestStore interface {
	// CreateLinkRequest stores a new request under its state token.
	CreateLinkRequest(ctx context.Context, req *domain.LinkRequest) error

	// ConsumeLinkRequest atomically returns and deletes the request for the
	// given state. At most one caller ever receives a given state back;
	// concurrent calls racing on the same state see domain.ErrNotFound.
	// Requests past their expiry are never returned, even before the sweep
	// removes them.
	ConsumeLinkRequest(ctx context.Context, state string) (*domain.LinkRequest, error)

	// SweepExpiredLinkRequests removes requests past their expiry and
	// returns how many were removed. Safe to run concurrently with consume.
	SweepExpiredLinkRequests(ctx context.Context) (int64, error)
}

// CredentialStore is the full persistence surface. It exclusively owns all
// durable state; every other component stays restartable without loss.
type CredentialStore interface {
	InstallationStore
	CrmAuthorizationStore
	LinkRequestStore
}
