package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "ghl-backend/cmd/api"
	agencyRepo "ghl-backend/internal/agency/repository"
	agencyUsecase "ghl-backend/internal/agency/usecase"
	contactRepo "ghl-backend/internal/contact/repository"
	contactUsecase "ghl-backend/internal/contact/usecase"
	installationDelivery "ghl-backend/internal/installation/delivery"
	installationUsecase "ghl-backend/internal/installation/usecase"
	locationRepo "ghl-backend/internal/location/repository"
	locationUsecase "ghl-backend/internal/location/usecase"
	tokenDelivery "ghl-backend/internal/token/delivery"
	tokendomain "ghl-backend/internal/token/domain"
	tokenRepo "ghl-backend/internal/token/repository"
	"ghl-backend/internal/token/scheduler"
	tokenUsecase "ghl-backend/internal/token/usecase"
	userRepo "ghl-backend/internal/user/repository"
	userUsecase "ghl-backend/internal/user/usecase"
	"ghl-backend/internal/webhook"
	webhookDelivery "ghl-backend/internal/webhook/delivery"
	webhookUsecase "ghl-backend/internal/webhook/usecase"
	workspaceUsecase "ghl-backend/internal/workspace/usecase"
	"ghl-backend/pkg/anythingllm"
	"ghl-backend/pkg/config"
	"ghl-backend/pkg/docstore"
	"ghl-backend/pkg/firebase"
	"ghl-backend/pkg/ghl"
	"ghl-backend/pkg/lease"
	"ghl-backend/pkg/logger"
	"ghl-backend/pkg/retry"
	"ghl-backend/pkg/tokencrypt"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logs := logger.New(logger.Config{Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize document store
	var store docstore.Store
	switch cfg.StoreDriver {
	case "memory":
		logs.Warn().Msg("using in-memory store, data is lost on restart")
		store = docstore.NewMemory()
	default:
		fsClient, err := firebase.NewFirestoreClient(ctx, cfg.GoogleProjectID, cfg.GoogleCredentials)
		if err != nil {
			logs.Fatal().Err(err).Msg("failed to connect to firestore")
		}
		defer fsClient.Close()
		store = docstore.NewFirestore(fsClient)
	}

	cipher, err := tokencrypt.New(cfg.EncryptionKey)
	if err != nil {
		logs.Fatal().Err(err).Msg("invalid ENCRYPTION_KEY")
	}

	// External clients
	platform := ghl.NewClient(ghl.Config{
		BaseURL:        cfg.GHLAPIBaseURL,
		MarketplaceURL: cfg.GHLMarketplaceURL,
		ClientID:       cfg.GHLClientID,
		ClientSecret:   cfg.GHLClientSecret,
		RedirectURI:    cfg.GHLRedirectURI,
	})
	provider := anythingllm.NewClient(cfg.AnythingLLMAPIURL, cfg.AnythingLLMAPIKey)

	// Initialize repositories (dependency injection)
	tokenRepository := tokenRepo.NewTokenRepository(store, cipher, logs.Component("token-store"))
	locationRepository := locationRepo.NewLocationRepository(store)
	companyRepository := agencyRepo.NewCompanyRepository(store)
	userRepository := userRepo.NewUserRepository(store)
	contactRepository := contactRepo.NewContactRepository(store)

	retryQueue := retry.NewQueue(logs.Component("retry"))

	// Initialize use cases (dependency injection)
	tokenUC := tokenUsecase.NewTokenUsecase(platform, tokenRepository, logs.Component("token-service"))
	locationUC := locationUsecase.NewLocationUsecase(platform, tokenUC, tokenRepository, locationRepository, retryQueue,
		locationUsecase.Options{
			Concurrency: cfg.FanoutConcurrency,
			RetryPolicy: retry.Policy{MaxAttempts: cfg.LocationTokenRetries, Delay: cfg.LocationTokenRetryDelay},
		}, logs.Component("location-service"))
	agencyUC := agencyUsecase.NewAgencyUsecase(companyRepository, locationRepository, tokenRepository,
		cfg.GHLAppID, cfg.GHLCompanyName, logs.Component("agency-service"))
	userUC := userUsecase.NewUserUsecase(platform, userRepository, logs.Component("user-service"))
	contactUC := contactUsecase.NewContactUsecase(platform, contactRepository, logs.Component("contact-service"))
	workspaceUC := workspaceUsecase.NewWorkspaceUsecase(provider, cipher, logs.Component("workspace-service"))

	// Every stored Company token enumerates its locations
	tokenUC.SetCompanyTokenCallback(func(ctx context.Context, t *tokendomain.Token) error {
		_, err := locationUC.EnumerateLocations(ctx, t.AccessToken, t.CompanyID, cfg.GHLAppID)
		return err
	})

	installationUC := installationUsecase.NewInstallationUsecase(tokenUC, tokenRepository, locationUC, agencyUC, userUC, contactUC, workspaceUC,
		installationUsecase.Options{AppID: cfg.GHLAppID, Concurrency: cfg.FanoutConcurrency},
		logs.Component("installation"))

	dispatcher := webhookUsecase.NewDispatcher(installationUC, agencyUC, userUC, locationUC, contactUC, tokenRepository, logs.Component("webhook"))

	// Token refresh scheduler
	refreshScheduler := scheduler.NewRefreshScheduler(tokenRepository, tokenUC, locationUC,
		cfg.TokenRefreshInterval, cfg.TokenRefreshWindow, logs.Component("token-refresh"))
	if cfg.RedisURL != "" {
		locker, err := lease.New(cfg.RedisURL)
		if err != nil {
			logs.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		defer locker.Close()
		refreshScheduler.SetLease(locker)
	} else {
		logs.Warn().Msg("REDIS_URL not configured, token refresh runs without a lease")
	}
	refreshScheduler.Start()

	// Webhook intake over Pub/Sub, only if configured
	if cfg.GoogleProjectID != "" && cfg.GooglePubSubWebhookTopic != "" {
		subscriber, err := webhook.NewSubscriber(ctx, cfg.GoogleProjectID, cfg.GooglePubSubWebhookTopic, cfg.GoogleCredentials,
			dispatcher, logs.Component("webhook-subscriber"))
		if err != nil {
			logs.Error().Err(err).Msg("failed to initialize webhook subscriber")
		} else {
			defer subscriber.Close()
			go func() {
				if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logs.Error().Err(err).Msg("webhook subscriber stopped")
				}
			}()
		}
	}

	// Initialize HTTP handler
	handler := api.NewHandler(
		installationDelivery.NewInstallationHandler(installationUC, tokenUC),
		webhookDelivery.NewWebhookHandler(dispatcher),
		tokenDelivery.NewAdminHandler(refreshScheduler, retryQueue),
		cfg,
		logs.Component("http"),
	)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler.Router()}
	go func() {
		logs.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logs.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logs.Error().Err(err).Msg("server shutdown")
	}
	refreshScheduler.Stop()
	retryQueue.Stop()
}
