package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InstallsCompleted counts successful workspace installs, including
	// idempotent re-installs.
	InstallsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slack_installs_completed_total",
		Help: "Workspace installations completed.",
	})

	// LinkResults counts Salesforce link attempts by outcome.
	LinkResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salesforce_link_results_total",
		Help: "Salesforce link attempts by outcome.",
	}, []string{"outcome"})

	// NotificationFailures counts swallowed notification errors.
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slack_notification_failures_total",
		Help: "Workspace notifications that failed and were dropped.",
	})

	// LinkRequestsSwept counts expired link requests removed by the sweeper.
	LinkRequestsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_requests_swept_total",
		Help: "Expired link requests removed by the periodic sweep.",
	})

	// Uninstalls counts workspaces removed by uninstall or revocation events.
	Uninstalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slack_uninstalls_total",
		Help: "Workspace installations removed.",
	})
)
