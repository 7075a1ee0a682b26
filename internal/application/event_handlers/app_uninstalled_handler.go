package event_handlers

import (
	"context"
	"fmt"

	"slack-salesforce-link/internal/application"
	"slack-salesforce-link/internal/domain"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler tears down a workspace when Slack reports the app
// was uninstalled or its tokens were revoked. Only the workspace provider
// triggers this: Salesforce-side failures never remove an installation.
type AppUninstalledHandler struct {
	logger       zerolog.Logger
	orchestrator *application.Orchestrator
}

// NewAppUninstalledHandler creates a new uninstall event handler.
func NewAppUninstalledHandler(logger zerolog.Logger, orchestrator *application.Orchestrator) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		logger:       logger,
		orchestrator: orchestrator,
	}
}

// CanHandle returns true if this handler can process the given event type.
func (h *AppUninstalledHandler) CanHandle(eventType string) bool {
	return eventType == "app_uninstalled" || eventType == "tokens_revoked"
}

// Handle removes the workspace's installation and authorization.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.SlackEvent) error {
	if event.WorkspaceID == "" {
		return fmt.Errorf("uninstall event missing workspace id")
	}

	h.logger.Info().
		Str("type", event.Type).
		Str("workspaceId", event.WorkspaceID).
		Msg("Processing uninstall event")

	if err := h.orchestrator.Uninstall(ctx, event.WorkspaceID); err != nil {
		return fmt.Errorf("failed to uninstall workspace %s: %w", event.WorkspaceID, err)
	}
	return nil
}
