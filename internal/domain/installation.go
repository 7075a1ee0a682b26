package domain

import "time"

// Installation represents a Slack workspace that has installed the app.
// One record exists per workspace; it is created by the install callback
// and removed only by an uninstall event or token revocation.
type Installation struct {
	WorkspaceID      string    `json:"workspace_id"`       // Slack team ID, primary key
	TeamName         string    `json:"team_name"`          // Human-readable workspace name
	InstallToken     string    `json:"-"`                  // Bot token used to act inside the workspace
	DefaultChannelID string    `json:"default_channel_id"` // Destination for notifications, chosen at install time
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// InstallPayload is the decoded result of a Slack oauth.v2.access exchange,
// the input to the install upsert.
type InstallPayload struct {
	WorkspaceID      string
	TeamName         string
	InstallToken     string
	DefaultChannelID string
}

// Validate checks that the payload carries everything an Installation needs.
func (p *InstallPayload) Validate() error {
	if p.WorkspaceID == "" {
		return ErrMissingWorkspaceID
	}
	if p.InstallToken == "" {
		return ErrMissingInstallToken
	}
	if p.DefaultChannelID == "" {
		return ErrMissingDefaultChannel
	}
	return nil
}

// CrmAuthorization holds the Salesforce credentials linked to a workspace.
// At most one exists per Installation.
type CrmAuthorization struct {
	WorkspaceID  string    `json:"workspace_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	InstanceURL  string    `json:"instance_url"` // Base endpoint for Salesforce API calls
	CrmUserID    string    `json:"crm_user_id"`
	CrmOrgID     string    `json:"crm_org_id"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Complete reports whether the authorization satisfies the persistence
// invariant: AccessToken and InstanceURL are both non-empty.
func (a *CrmAuthorization) Complete() bool {
	return a != nil && a.AccessToken != "" && a.InstanceURL != ""
}

// WorkspaceState is the durable per-workspace linking state. A pending link
// attempt is not a workspace state of its own: it is represented by
// unconsumed LinkRequests, which expire on their own.
type WorkspaceState string

const (
	StateUninstalled       WorkspaceState = "uninstalled"
	StateInstalledUnlinked WorkspaceState = "installed_unlinked"
	StateLinked            WorkspaceState = "linked"
)
