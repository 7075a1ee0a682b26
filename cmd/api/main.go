package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"slack-salesforce-link/internal/application"
	"slack-salesforce-link/internal/application/event_handlers"
	"slack-salesforce-link/internal/domain"
	"slack-salesforce-link/internal/infrastructure/config"
	"slack-salesforce-link/internal/infrastructure/metrics"
	"slack-salesforce-link/internal/infrastructure/repository"
	salesforceinfra "slack-salesforce-link/internal/infrastructure/salesforce"
	slackinfra "slack-salesforce-link/internal/infrastructure/slack"
	"slack-salesforce-link/internal/ports"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to MongoDB
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDatabase)

	// Initialize the credential store; link requests optionally move to Redis
	mongoStore := repository.NewMongoCredentialStore(db)
	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := mongoStore.EnsureIndexes(indexCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to ensure indexes")
	}
	cancelIndexes()

	var store ports.CredentialStore = mongoStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store = repository.ComposeCredentialStore(mongoStore,
			repository.NewRedisLinkRequestStore(redisClient, logger))
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Link requests stored in Redis")
	}

	// Initialize provider clients
	slackClient := slackinfra.NewClient(cfg.SlackClientID, cfg.SlackClientSecret, cfg.SlackRedirectURL(), logger)
	salesforceClient := salesforceinfra.NewClient(
		cfg.SalesforceClientID,
		cfg.SalesforceClientSecret,
		cfg.SalesforceRedirectURL,
		cfg.SalesforceLoginURL,
		logger,
	)

	// Initialize application services
	notifier := application.NewNotifier(store, slackClient, logger)
	orchestrator := application.NewOrchestrator(
		store,
		salesforceClient,
		slackClient,
		logger,
		application.WithLinkRequestTTL(cfg.LinkRequestTTL),
		application.WithNotifier(notifier),
	)
	salesforceService := application.NewSalesforceService(store, salesforceClient, logger)

	// Initialize event dispatcher and register handlers
	eventDispatcher := application.NewEventDispatcher(logger)
	eventDispatcher.RegisterHandler(event_handlers.NewAppUninstalledHandler(logger, orchestrator))

	verifier := slackinfra.NewRequestVerifier(cfg.SlackSigningSecret)

	// Sweep expired link requests in the background
	go runSweeper(store, cfg.SweepInterval, cfg.RequestTimeout, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// Health check - must be public for monitoring
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// OAuth routes
	r.Get("/slack/install", installInitHandler(orchestrator, logger))
	r.Get("/slack/oauth_redirect", installCallbackHandler(orchestrator, slackClient, cfg.RequestTimeout, logger))
	r.Get("/salesforce/oauth_redirect", linkCallbackHandler(orchestrator, cfg.RequestTimeout, logger))

	// Slack entry points, signature-verified
	r.Group(func(r chi.Router) {
		r.Use(verifier.Middleware(logger))
		r.Post("/slack/commands", commandHandler(orchestrator, salesforceService, cfg.RequestTimeout, logger))
		r.Post("/slack/events", eventHandler(eventDispatcher, logger))
	})

	logger.Info().Str("port", cfg.Port).Msg("Starting API server")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

// runSweeper removes expired link requests on a timer, bounding growth from
// abandoned flows.
func runSweeper(store ports.LinkRequestStore, interval, timeout time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		swept, err := store.SweepExpiredLinkRequests(ctx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("Link request sweep failed")
			continue
		}
		if swept > 0 {
			metrics.LinkRequestsSwept.Add(float64(swept))
			logger.Debug().Int64("swept", swept).Msg("Removed expired link requests")
		}
	}
}

// installInitHandler starts the Slack install flow.
func installInitHandler(orchestrator *application.Orchestrator, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorizeURL, err := orchestrator.RequestInstall(r.Context())
		if err != nil {
			logger.Error().Err(err).Msg("Failed to start install flow")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, authorizeURL, http.StatusFound)
	}
}

// installCallbackHandler completes the Slack install and chains straight into
// the Salesforce authorize flow.
func installCallbackHandler(
	orchestrator *application.Orchestrator,
	slackClient ports.SlackClient,
	timeout time.Duration,
	logger zerolog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if code == "" || state == "" {
			http.Error(w, "Missing required parameters", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := orchestrator.ConsumeInstallState(ctx, state); err != nil {
			if errors.Is(err, domain.ErrStateExpiredOrInvalid) {
				failurePage(w, "This installation link has expired. Please start the installation again.")
				return
			}
			logger.Error().Err(err).Msg("Failed to validate install state")
			failurePage(w, "Installation failed. Please try again.")
			return
		}

		payload, err := slackClient.ExchangeInstallCode(ctx, code)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to exchange install code")
			failurePage(w, "Installation failed. Please try again.")
			return
		}

		workspaceID, err := retryTransient(ctx, func() (string, error) {
			return orchestrator.CompleteInstall(ctx, payload)
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to complete installation")
			failurePage(w, "Installation failed. Please try again.")
			return
		}

		authorizeURL, err := orchestrator.RequestLink(ctx, workspaceID)
		if err != nil {
			logger.Error().Err(err).Str("workspaceId", workspaceID).Msg("Failed to mint link request")
			failurePage(w, "Installed, but starting the Salesforce authorization failed. Run /whoami in Slack to retry.")
			return
		}

		http.Redirect(w, r, authorizeURL, http.StatusFound)
	}
}

// linkCallbackHandler handles the Salesforce OAuth callback.
func linkCallbackHandler(orchestrator *application.Orchestrator, timeout time.Duration, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if code == "" || state == "" {
			http.Error(w, "Missing required parameters", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		result, err := retryTransient(ctx, func() (*application.LinkResult, error) {
			return orchestrator.CompleteLink(ctx, state, code)
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to complete link")
			failurePage(w, "Connecting to Salesforce failed. Please try again.")
			return
		}

		switch result.Status {
		case application.LinkLinked:
			fmt.Fprintln(w, "Successfully connected Slack with your Salesforce user. You can close this window.")
		case application.LinkStateExpiredOrInvalid:
			failurePage(w, "This authorization link has expired or was already used. Run /whoami in Slack to get a new one.")
		case application.LinkFailedInvalidGrant:
			failurePage(w, "Salesforce rejected the authorization. Run /whoami in Slack to start again.")
		default:
			failurePage(w, "Connecting to Salesforce failed. Run /whoami in Slack to start again.")
		}
	}
}

// commandHandler handles Slack slash commands.
func commandHandler(
	orchestrator *application.Orchestrator,
	salesforceService *application.SalesforceService,
	timeout time.Duration,
	logger zerolog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form payload", http.StatusBadRequest)
			return
		}

		command := r.FormValue("command")
		workspaceID := r.FormValue("team_id")
		if workspaceID == "" {
			http.Error(w, "team_id is required", http.StatusBadRequest)
			return
		}

		if command != "/whoami" {
			commandReply(w, fmt.Sprintf("Unknown command %s", command))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		record, err := salesforceService.WhoAmI(ctx, workspaceID)
		if errors.Is(err, domain.ErrReauthorizationRequired) {
			authorizeURL, linkErr := orchestrator.RequestLink(ctx, workspaceID)
			if linkErr != nil {
				logger.Error().Err(linkErr).Str("workspaceId", workspaceID).Msg("Failed to mint link request")
				commandReply(w, "Salesforce is not connected and starting the authorization failed. Please try again.")
				return
			}
			commandReply(w, "Salesforce is not connected. Authorize here: "+authorizeURL)
			return
		}
		if err != nil {
			logger.Error().Err(err).Str("workspaceId", workspaceID).Msg("whoami lookup failed")
			commandReply(w, "Looking up your Salesforce user failed. Please try again.")
			return
		}

		commandReply(w, fmt.Sprintf(
			"*Name*: %s\n*Email*: %s\n*Profile*: %s\n*Phone*: %s",
			record.Name, record.Email, record.ProfileName, record.Phone,
		))
	}
}

// eventHandler handles Slack Events API callbacks.
func eventHandler(dispatcher *application.EventDispatcher, logger zerolog.Logger) http.HandlerFunc {
	type innerEvent struct {
		Type string `json:"type"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Type      string          `json:"type"`
			Challenge string          `json:"challenge"`
			TeamID    string          `json:"team_id"`
			Event     json.RawMessage `json:"event"`
		}
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			http.Error(w, "Invalid event payload", http.StatusBadRequest)
			return
		}

		switch envelope.Type {
		case "url_verification":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, envelope.Challenge)
			return
		case "event_callback":
			var inner innerEvent
			if err := json.Unmarshal(envelope.Event, &inner); err != nil {
				http.Error(w, "Invalid event payload", http.StatusBadRequest)
				return
			}

			event := &domain.SlackEvent{
				Type:        inner.Type,
				WorkspaceID: envelope.TeamID,
				Payload:     envelope.Event,
			}
			if err := dispatcher.Dispatch(r.Context(), event); err != nil {
				logger.Error().Err(err).Str("type", inner.Type).Msg("Failed to dispatch event")
				// Return 500 to trigger Slack's retry
				http.Error(w, "Failed to process event", http.StatusInternalServerError)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}

// retryTransient runs op, retrying once with a short backoff when the failure
// is a retryable store error. Everything else is permanent.
func retryTransient[T any](ctx context.Context, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		result, err := op()
		if err != nil && !errors.Is(err, domain.ErrStoreUnavailable) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(2))
}

// failurePage writes a human-readable failure response. Always HTTP 200: the
// browser user needs text, not a status code.
func failurePage(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, text)
}

// commandReply writes an ephemeral slash-command response.
func commandReply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"response_type": "ephemeral",
		"text":          text,
	})
}
