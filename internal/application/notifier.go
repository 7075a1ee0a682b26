package application

import (
	"context"
	"errors"

	"slack-salesforce-link/internal/domain"
	"slack-salesforce-link/internal/infrastructure/metrics"
	"slack-salesforce-link/internal/ports"

	"github.com/rs/zerolog"
)

// Notifier posts messages into a workspace's default channel, best effort.
// A failed notification is logged and dropped; it never unwinds the state
// change it was announcing.
type Notifier struct {
	store  ports.InstallationStore
	slack  ports.SlackClient
	logger zerolog.Logger
}

// NewNotifier creates a new notifier.
func NewNotifier(store ports.InstallationStore, slack ports.SlackClient, logger zerolog.Logger) *Notifier {
	return &Notifier{
		store:  store,
		slack:  slack,
		logger: logger,
	}
}

// Notify posts text to the workspace's default channel using its install
// token.
func (n *Notifier) Notify(ctx context.Context, workspaceID, text string) {
	inst, err := n.store.GetInstallation(ctx, workspaceID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			n.logger.Warn().Err(err).Str("workspaceId", workspaceID).Msg("Failed to load installation for notification")
		}
		metrics.NotificationFailures.Inc()
		return
	}

	if err := n.slack.PostMessage(ctx, inst.InstallToken, inst.DefaultChannelID, text); err != nil {
		n.logger.Warn().
			Err(err).
			Str("workspaceId", workspaceID).
			Str("channel", inst.DefaultChannelID).
			Msg("Failed to post notification")
		metrics.NotificationFailures.Inc()
	}
}

var _ WorkspaceNotifier = (*Notifier)(nil)
