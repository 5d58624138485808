package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"askdb/internal/chatbot"
	"askdb/internal/config"
	HDb "askdb/internal/db"
	"askdb/internal/llm"
	"askdb/internal/observability"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"
)

func main() {
	if err := run(); err != nil {
		slog.Error("askdb stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.LoadConfig(envOr("CONFIG_PATH", "config/config.yaml"), envOr("ENV_PATH", ".env"))
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := HDb.NewHDb(cfg.Database.Driver, cfg.Database.DSN(), HDb.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		QueryTimeout:    cfg.Database.QueryTimeout,
		ValidateSQL:     cfg.Database.ValidateSQL,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("close database", slog.Any("error", err))
		}
	}()
	if err := pingDatabase(ctx, db, startupPingTimeout); err != nil {
		// The server still starts; /readyz reports the outage and queries fail per request.
		logger.Warn("database not reachable at startup", slog.Any("error", err))
	}

	schema, err := HDb.NewFileSchemaLoader(cfg.Schema.DDLPath(), cfg.Schema.DocPath()).LoadSchema()
	if err != nil {
		return err
	}

	provider, closeProvider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	// Initialize services
	chatService := chatbot.NewChatService(provider, db, schema, chatbot.ServiceConfig{
		ModelConfig: chatbot.ModelConfig{
			Model:            cfg.LLM.Model,
			Temperature:      cfg.LLM.Temperature,
			Timeout:          cfg.LLM.Timeout,
			StructuredOutput: cfg.LLM.StructuredOutput,
		},
		PreviewRows: cfg.LLM.SummaryPreviewRows,
	}, logger)
	chatController := chatbot.NewChatController(chatService)

	// Initialize router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		observability.RequestID(),
		observability.Logging(logger),
		observability.Metrics(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowOrigins,
			AllowMethods:     cfg.CORS.AllowMethods,
			AllowHeaders:     cfg.CORS.AllowHeaders,
			ExposeHeaders:    cfg.CORS.ExposeHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
		}),
	)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.StaticFile("/", filepath.Join(cfg.Server.StaticDir, "index.html"))
	router.Static("/static", cfg.Server.StaticDir)
	chatController.RegisterRoutes(router)

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr), slog.String("provider", cfg.LLM.Provider), slog.String("model", cfg.LLM.Model))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newProvider builds the configured model client. The returned func releases it.
func newProvider(ctx context.Context, cfg *config.Config) (llm.AIProvider, func(), error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAI.APIKey))
		if err != nil {
			return nil, nil, err
		}
		return llm.NewGeminiAIProvider(client), func() { _ = client.Close() }, nil
	default:
		client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		return llm.NewOpenAIProvider(client), func() {}, nil
	}
}

const startupPingTimeout = 5 * time.Second

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// pingDatabase bounds the startup check; an unreachable host must not stall boot.
func pingDatabase(ctx context.Context, db healthChecker, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.HealthCheck(ctx)
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
