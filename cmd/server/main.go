// SmartKissan - farmer dashboard server
package main

import (
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ashureev/smartkissan/internal/api"
	"github.com/ashureev/smartkissan/internal/assistant"
	"github.com/ashureev/smartkissan/internal/chat"
	"github.com/ashureev/smartkissan/internal/chatws"
	"github.com/ashureev/smartkissan/internal/config"
	"github.com/ashureev/smartkissan/internal/connectivity"
	"github.com/ashureev/smartkissan/internal/dispatcher"
	"github.com/ashureev/smartkissan/internal/domain"
	"github.com/ashureev/smartkissan/internal/geocode"
	"github.com/ashureev/smartkissan/internal/identity"
	"github.com/ashureev/smartkissan/internal/location"
	"github.com/ashureev/smartkissan/internal/middleware"
	"github.com/ashureev/smartkissan/internal/notification"
	"github.com/ashureev/smartkissan/internal/retention"
	"github.com/ashureev/smartkissan/internal/store"
	"github.com/ashureev/smartkissan/internal/weather"
	"github.com/ashureev/smartkissan/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Upstream integrations.
	weatherClient := weather.NewClient(weather.Config{
		BaseURL:      cfg.Weather.BaseURL,
		APIKey:       cfg.Weather.APIKey,
		ForecastDays: cfg.Weather.ForecastDays,
		Timeout:      cfg.Weather.Timeout,
	}, nil, logger)
	geocoder := geocode.NewClient(geocode.Config{
		BaseURL:   cfg.Geocode.BaseURL,
		UserAgent: cfg.Geocode.UserAgent,
		Timeout:   cfg.Geocode.Timeout,
	}, nil, logger)
	dataAPI := dispatcher.NewDataAPI(cfg.DataAPI.BaseURL, cfg.DataAPI.Timeout, nil, logger)

	// Chat backend connection (optional).
	var (
		channel   *chat.Channel
		transport chat.Transport
	)
	if cfg.Chat.URL != "" {
		chCfg := chat.DefaultChannelConfig(cfg.Chat.URL)
		chCfg.ReplyTimeout = cfg.Chat.ReplyTimeout
		channel = chat.NewChannel(chCfg, logger)
		transport = channel
		channel.StartConnect()
		slog.Info("Connecting to chat backend", "url", cfg.Chat.URL)
	} else {
		slog.Info("Chat backend not configured, assistant answers offline")
	}
	chatClient := chat.NewClient(transport, chat.DefaultResponder(), weatherClient, chat.ClientConfig{
		ConnectGrace:      cfg.Chat.ConnectGrace,
		SyntheticFallback: cfg.Chat.SyntheticFallback,
		ExpertiseLevel:    cfg.Chat.ExpertiseLevel,
	}, logger)

	// Connectivity.
	monitor := connectivity.NewMonitor(connectivity.MonitorConfig{
		URL:      cfg.Probe.URL,
		Interval: cfg.Probe.Interval,
		Timeout:  cfg.Probe.Timeout,
	}, nil, logger)
	go monitor.Run(ctx)

	healthServer := health.NewServer()
	registry := connectivity.NewRegistry([]connectivity.Check{
		{ID: "weather", Name: "Weather forecast", Category: domain.CategoryWeather, Ping: weatherClient.Ping},
		{ID: "geocoding", Name: "Reverse geocoding", Category: domain.CategoryGeocoding, Ping: geocoder.Ping},
		{ID: "data", Name: "Agronomy data", Category: domain.CategoryData, Ping: dataAPI.Ping},
		{ID: "chat", Name: "Farming assistant", Category: domain.CategoryAssistant, Ping: func(context.Context) error {
			if channel == nil {
				return errors.New("chat backend not configured")
			}
			if state := channel.State(); state != chat.StateOpen {
				return fmt.Errorf("chat channel %s", state)
			}
			return nil
		}},
	}, healthServer, cfg.Probe.Timeout, logger)
	go registry.Run(ctx, cfg.Probe.Interval)

	var grpcServer *grpc.Server
	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "port", cfg.GRPCHealthPort, "error", err)
			os.Exit(1)
		}
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		go func() {
			slog.Info("gRPC health listening", "addr", lis.Addr().String())
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Initialize services.
	disp := dispatcher.New(dispatcher.Deps{
		Data:     dataAPI,
		Weather:  weatherClient,
		Geocoder: geocoder,
		Chat:     chatClient,
		Status:   monitor,
	}, logger)

	locations := location.NewService(repo, geocoder, location.Config{
		Freshness:     cfg.Location.Freshness,
		LookupTimeout: cfg.Location.LookupTimeout,
	}, logger)

	convLog, err := assistant.NewConversationLogger(assistant.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	assistantSvc := assistant.NewService(repo, chatClient, locations, convLog, assistant.Config{
		TranscriptLimit:   cfg.Chat.TranscriptLimit,
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		WindowDuration:    cfg.RateLimit.WindowDuration,
		Network:           monitor,
	}, logger)
	defer func() {
		if closeErr := assistantSvc.Close(); closeErr != nil {
			slog.Error("Failed to close assistant", "error", closeErr)
		}
	}()

	notifications := notification.NewService(repo, logger)

	worker, err := retention.NewWorker(repo, retention.Config{
		Schedule:          cfg.Retention.Schedule,
		LocationFreshness: cfg.Location.Freshness,
		SessionTTL:        cfg.SessionTTL,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize retention worker", "error", err)
		os.Exit(1)
	}
	worker.Start(ctx)
	slog.Info("Retention worker started", "schedule", cfg.Retention.Schedule, "session_ttl", cfg.SessionTTL)

	sm := chatws.NewSessionManager()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo)
	healthHandler := api.NewHealthHandler(repo, monitor, 0)
	wsHandler := chatws.NewHandler(assistantSvc, sm, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)

	api.NewAccountHandler(baseHandler).RegisterRoutes(r)
	api.NewDashboardHandler(baseHandler, disp, locations).RegisterRoutes(r)
	api.NewNotificationHandler(notifications).RegisterRoutes(r)
	api.NewStatusHandler(monitor, registry, locations).RegisterRoutes(r)
	assistant.NewHandler(assistantSvc).RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sm.CloseAll()
	if channel != nil {
		if err := channel.Close(); err != nil {
			slog.Warn("Failed to close chat channel", "error", err)
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
