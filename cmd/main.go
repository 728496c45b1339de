package main

import (
	"chat-sync/actors"
	"chat-sync/api"
	"chat-sync/auth"
	"chat-sync/domain"
	"chat-sync/internal"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/services"
	"chat-sync/session"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and owns the server lifecycle, so that deferred
// cleanups run before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, RecordMapper)
	}

	// 4. Entities
	records := repositories.NewRecordRepository(db, logger)
	clock := runtime.NewMonotonicClock()
	hub := func() *runtime.Hub {
		return runtime.NewHub(logger, config.ObserverExpiry, config.ObserverMaxFailures)
	}
	conversations := actors.NewConversationActor(logger,
		runtime.NewStore[domain.Conversation](logger, records, repositories.ConversationNamespace,
			config.PersistMaxRetries, config.PersistRetryInterval), hub(), clock)
	messages := actors.NewMessageActor(logger,
		runtime.NewStore[domain.Message](logger, records, repositories.MessageNamespace,
			config.PersistMaxRetries, config.PersistRetryInterval), hub(), clock)
	users := actors.NewUserActor(logger,
		runtime.NewStore[domain.User](logger, records, repositories.UserNamespace,
			config.PersistMaxRetries, config.PersistRetryInterval), hub(), clock)

	// 5. Services & Supervision
	repair := services.NewMembershipRepair(logger, conversations, users)
	media := services.NewMediaService(logger, repositories.NewMediaRepository(db, logger), services.MediaLimits{
		Image:          int64(config.MaxImageSize),
		Audio:          int64(config.MaxAudioSize),
		Video:          int64(config.MaxVideoSize),
		ProfilePicture: int64(config.MaxProfilePictureSize),
	})
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	profiles := services.NewUserService(logger, users, media)

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewRepairWorker(logger, repair, config.RepairInterval))
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	router := api.NewRouter(logger, api.Services{
		Auth:     services.NewAuthService(logger, users, auth.NewStaticVerifier(config.VerificationCode), tokens, config.RefreshTokenDuration),
		Chat:     services.NewChatService(logger, conversations, messages, users, repair, clock),
		Users:    profiles,
		Media:    media,
		Identity: tokens,
		Sessions: session.NewFactory(logger, users, conversations, messages, session.Config{
			ReconcileInterval: config.ReconcileInterval,
			DeliveryInterval:  config.DeliveryInterval,
			SendTimeout:       config.SendTimeout,
			RestartInterval:   config.RestartInterval,
			QueueLimit:        config.DeliveryQueueLimit,
			RenewEvery:        config.RenewEvery(),
		}),
	}, api.Config{
		AllowedOrigins:    config.Origins(),
		RateLimitRequests: config.RateLimitRequests,
		RateLimitWindow:   config.RateLimitWindow,
		MaxUpload:         int64(max(config.MaxImageSize, config.MaxAudioSize, config.MaxVideoSize, config.MaxProfilePictureSize)),
	})

	// 6. HTTP Server Setup
	// Sessions hijack their connection, so they follow ctx rather than Shutdown.
	address := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		code = exitRuntime
		stop()
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	sup.Stop()
	<-supDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

// RecordMapper renders chat records in the debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	row.Type, row.Detail = internal.Describe(key, val)
	return row
}
