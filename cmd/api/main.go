package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/clairehq/claire/internal/api"
	"github.com/clairehq/claire/internal/chat"
	"github.com/clairehq/claire/internal/config"
	"github.com/clairehq/claire/internal/database"
	"github.com/clairehq/claire/internal/embedding"
	"github.com/clairehq/claire/internal/events"
	"github.com/clairehq/claire/internal/llm"
	"github.com/clairehq/claire/internal/memory"
	"github.com/clairehq/claire/internal/middleware"
	"github.com/clairehq/claire/internal/rag"
	iredis "github.com/clairehq/claire/internal/redis"
	"github.com/clairehq/claire/internal/server"
	"github.com/clairehq/claire/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("validating config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// PostgreSQL (segments index)
	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := vectorstore.NewPostgresStore(pool, cfg.DB.SegmentsTable)
	if err != nil {
		slog.Error("creating vector store", "error", err)
		os.Exit(1)
	}

	// Conversation memory: Redis when configured, in-process otherwise.
	var memStore memory.Store
	var rateLimiter func(next http.Handler) http.Handler
	if cfg.Redis.Enabled() {
		redisClient, err := iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("connecting to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		memStore = memory.NewRedisStore(redisClient, cfg.Memory.MaxMessages, cfg.Memory.TTL)
		rateLimiter = middleware.NewRateLimiter(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowSec).Middleware
	} else {
		slog.Warn("redis not configured, conversation memory is process-local")
		memStore = memory.NewWindowStore(cfg.Memory.MaxMessages)
	}

	// NATS exchange events (optional)
	var eventsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.Enabled() {
		eventsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		publisher = events.NewPublisher(eventsClient.JetStream())
	}

	// Backends
	embedder := embedding.NewOllamaClient(cfg.Ollama.URL, cfg.Ollama.EmbedModel, cfg.Ollama.EmbedTimeout)
	generator := llm.NewOllamaClient(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Ollama.Timeout)

	// RAG pipeline
	retriever := rag.NewRetriever(embedder, store)
	transformer := rag.NewTransformer(generator)
	augmentor := rag.NewAugmentor(transformer, retriever, rag.DefaultPromptTemplate(), rag.AugmentorConfig{
		MaxResults:   cfg.Retrieval.ContextResults,
		MinScore:     cfg.Retrieval.MinScore,
		MetadataKeys: cfg.Retrieval.MetadataKeys,
	})

	// Chat
	chatSvc := chat.NewService(augmentor, retriever, generator, memStore, publisher, cfg.Retrieval.EvidenceResults)
	chatHandler := chat.NewHandler(chatSvc)

	// Router
	router := api.NewRouter(pool, eventsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		ChatRateLimiter:    rateLimiter,
	}, api.HandlerSet{
		Chat:         chatHandler.Chat,
		ChatStream:   chatHandler.ChatStream,
		ChatWS:       chatHandler.ChatWS,
		Evidence:     chatHandler.Evidence,
		ClearSession: chatHandler.ClearSession,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
