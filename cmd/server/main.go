// Pitch Tank - multi-persona pitch evaluation server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/pitch-tank/internal/api"
	"github.com/ashureev/pitch-tank/internal/config"
	"github.com/ashureev/pitch-tank/internal/convlog"
	"github.com/ashureev/pitch-tank/internal/feed"
	"github.com/ashureev/pitch-tank/internal/health"
	"github.com/ashureev/pitch-tank/internal/identity"
	"github.com/ashureev/pitch-tank/internal/llm"
	"github.com/ashureev/pitch-tank/internal/middleware"
	"github.com/ashureev/pitch-tank/internal/observability"
	"github.com/ashureev/pitch-tank/internal/persona"
	"github.com/ashureev/pitch-tank/internal/pitch"
	"github.com/ashureev/pitch-tank/internal/prompt"
	"github.com/ashureev/pitch-tank/internal/speech"
	"github.com/ashureev/pitch-tank/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	logger := observability.NewLogger(os.Stdout, slog.LevelInfo)
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	environment := "production"
	if cfg.IsDevelopment() {
		environment = "development"
	}
	tp, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "pitch-tank", version, environment)
	if err != nil {
		slog.Warn("Tracing disabled", "error", err)
	} else if tp != nil {
		slog.Info("Tracing enabled", "endpoint", cfg.OTLPEndpoint)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				slog.Error("Failed to flush traces", "error", err)
			}
		}()
	}

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

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	catalog, err := persona.NewCatalog(cfg.Pitch.Personas)
	if err != nil {
		slog.Error("Invalid persona panel", "error", err)
		os.Exit(1)
	}

	gen, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize generation backend", "error", err)
		os.Exit(1)
	}

	conversationLogger, err := convlog.New(cfg.ConversationLog, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := conversationLogger.Close(); err != nil {
			slog.Error("Failed to close conversation logger", "error", err)
		}
	}()

	settings := prompt.DefaultSettings()
	settings.MaxTurns = cfg.Pitch.MaxTurns
	settings.TurnMaxTokens = cfg.Pitch.TurnMaxTokens
	settings.TurnTemperature = cfg.Pitch.TurnTemperature
	settings.SummaryMaxTokens = cfg.Pitch.SummaryMaxTokens
	settings.MatchMaxTokens = cfg.Pitch.MatchMaxTokens

	// Initialize services.
	hub := feed.NewHub()
	svc := pitch.NewService(repo, catalog, prompt.NewBuilder(settings), gen, pitch.Options{
		GenerateTimeout: cfg.Pitch.GenerateTimeout,
		Logger:          logger,
		ConvLog:         conversationLogger,
		Publisher:       hub,
	})
	slog.Info("Persona panel ready", "personas", catalog.IDs(), "max_turns", svc.MaxTurns())

	handlerOpts := api.Options{
		Hub:            hub,
		MaxBodyBytes:   cfg.Pitch.MaxInputBytes,
		AllowedOrigins: cfg.AllowedOrigins(),
	}
	//nolint:nestif // Speech wiring stays explicit so each missing key is logged.
	if cfg.Speech.Enabled {
		if cfg.Speech.OpenAIAPIKey != "" {
			handlerOpts.Transcriber = speech.NewTranscriber(cfg.Speech.OpenAIAPIKey, cfg.Speech.TranscriptionModel, cfg.Speech.OpenAIBaseURL)
		} else {
			slog.Warn("Speech-to-text disabled: OPENAI_API_KEY not set")
		}
		if cfg.Speech.ElevenLabsAPIKey != "" {
			handlerOpts.Synthesizer = speech.NewSynthesizer(cfg.Speech.ElevenLabsAPIKey, cfg.Speech.ElevenLabsBaseURL)
		} else {
			slog.Warn("Text-to-speech disabled: ELEVENLABS_API_KEY not set")
		}
	} else {
		slog.Info("Speech features disabled (SPEECH_ENABLED not set)")
	}
	handler := api.NewHandler(svc, repo, handlerOpts)

	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	handler.RegisterRoutes(r, limiter.Limit(identity.RateLimitKey))

	// Create server.
	// WriteTimeout stays 0 for the websocket feed; generation is bounded by GENERATION_TIMEOUT.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Optional gRPC health endpoint.
	var healthSrv *health.Server
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "addr", cfg.GRPCHealthAddr, "error", err)
			os.Exit(1)
		}
		healthSrv = health.NewServer(repo)
		healthSrv.Watch(ctx, 15*time.Second)
		go func() {
			slog.Info("gRPC health listening", "addr", lis.Addr().String())
			if err := healthSrv.Serve(lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start retention worker.
	pitch.StartRetentionWorker(ctx, repo, cfg.SessionRetention, pitch.DefaultRetentionInterval, hub.CloseSession)

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

	if healthSrv != nil {
		healthSrv.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
