package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ramsey2004/homekraft-api/internal/di"
	"github.com/ramsey2004/homekraft-api/internal/handlers"
	"github.com/ramsey2004/homekraft-api/internal/platform/auth"
	"github.com/ramsey2004/homekraft-api/internal/platform/config"
	pfirestore "github.com/ramsey2004/homekraft-api/internal/platform/firestore"
	"github.com/ramsey2004/homekraft-api/internal/platform/idempotency"
	"github.com/ramsey2004/homekraft-api/internal/platform/jobs"
	"github.com/ramsey2004/homekraft-api/internal/platform/observability"
	"github.com/ramsey2004/homekraft-api/internal/platform/secrets"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
	firestoreRepo "github.com/ramsey2004/homekraft-api/internal/repositories/firestore"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithEnvironment(os.Getenv("APP_ENV")),
		secrets.WithDefaultProject(os.Getenv("GOOGLE_CLOUD_PROJECT")),
		secrets.WithFallbackFile(os.Getenv("SECRETS_FALLBACK_FILE")),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := services.BuildInfo{
		Version:     strings.TrimSpace(os.Getenv("APP_VERSION")),
		CommitSHA:   strings.TrimSpace(os.Getenv("COMMIT_SHA")),
		Environment: cfg.Environment,
		StartedAt:   startedAt,
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	var (
		emailPublisher     services.OrderEmailPublisher
		analyticsPublisher services.AnalyticsPublisher
		pubsubClient       *pubsub.Client
	)
	if projectID := strings.TrimSpace(cfg.Pubsub.ProjectID); projectID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, projectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		if topic := strings.TrimSpace(cfg.Pubsub.EmailTopic); topic != "" {
			emailPublisher, err = jobs.NewPubSubOrderEmailPublisher(pubsubClient.Topic(topic))
			if err != nil {
				logger.Fatal("failed to initialise email publisher", zap.Error(err))
			}
		}
		if topic := strings.TrimSpace(cfg.Pubsub.AnalyticsTopic); topic != "" {
			analyticsPublisher, err = jobs.NewPubSubAnalyticsPublisher(pubsubClient.Topic(topic))
			if err != nil {
				logger.Fatal("failed to initialise analytics publisher", zap.Error(err))
			}
		}
	}

	healthRepo, err := buildHealthRepository(firestoreClient, pubsubClient, cfg)
	if err != nil {
		logger.Warn("health: dependency probes unavailable", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, di.Deps{
		Config:   cfg,
		Registry: registry,
		Emails:   emailPublisher,
		Events:   analyticsPublisher,
		Logger:   logger,
		Build:    buildInfo,
		Clock:    time.Now,
	})
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepIdempotencyRecords(sweepCtx, idempotencyStore, logger.Named("idempotency"))

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware,
		idempotencyMiddleware,
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(authenticator, container.Services.Checkout).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(authenticator, container.Services.Orders).Routes),
		handlers.WithGuestOrderRoutes(handlers.NewGuestOrderHandlers(container.Services.GuestOrders).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminHandlers(authenticator, container.Services.Orders, container.Services.Inventory).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("homekraft api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// sweepIdempotencyRecords periodically deletes expired idempotency records so
// the collection does not grow without bound.
func sweepIdempotencyRecords(ctx context.Context, store *idempotency.FirestoreStore, logger *zap.Logger) {
	const (
		interval   = time.Hour
		batchLimit = 500
	)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Sweep(ctx, time.Now().UTC(), batchLimit)
			if err != nil {
				logger.Warn("idempotency sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("idempotency records swept", zap.Int("removed", removed))
			}
		}
	}
}

func buildHealthRepository(client *firestore.Client, pubsubClient *pubsub.Client, cfg config.Config) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := client.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if pubsubClient != nil {
		topicID := strings.TrimSpace(cfg.Pubsub.EmailTopic)
		if topicID != "" {
			checks = append(checks, repositories.DependencyCheck{
				Name:    "pubsub",
				Timeout: time.Second,
				Check: func(ctx context.Context) error {
					_, err := pubsubClient.Topic(topicID).Exists(ctx)
					if st, ok := status.FromError(err); ok && st.Code() == codes.PermissionDenied {
						// Exists needs pubsub.topics.get; a denied probe still
						// proves the service is reachable.
						return nil
					}
					return err
				},
			})
		}
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}
