package domain

// SlackEvent is a verified Slack Events API callback routed through the
// event dispatcher.
type SlackEvent struct {
	Type        string
	WorkspaceID string
	Payload     []byte
}
