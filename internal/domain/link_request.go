package domain

import "time"

// LinkRequestKind distinguishes the two OAuth flows sharing the state store.
type LinkRequestKind string

const (
	// LinkKindInstall is the Slack app-install flow. WorkspaceID is empty
	// because the workspace is only known once the install code is exchanged.
	LinkKindInstall LinkRequestKind = "install"
	// LinkKindSalesforce is the Salesforce authorization flow tied to an
	// already-installed workspace.
	LinkKindSalesforce LinkRequestKind = "salesforce"
)

// LinkRequest is the ephemeral record correlating a pending OAuth callback
// back to a workspace. The state token is single-use: consuming it deletes
// the record atomically, so a replayed callback can never match twice.
type LinkRequest struct {
	State       string          `json:"state"` // Unguessable random token, primary key
	Kind        LinkRequestKind `json:"kind"`
	WorkspaceID string          `json:"workspace_id"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Expired reports whether the request is past its expiry at the given time.
func (r *LinkRequest) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
