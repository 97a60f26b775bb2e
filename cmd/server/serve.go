package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/picadito/internal/auth"
	"github.com/mmynk/picadito/internal/chat"
	"github.com/mmynk/picadito/internal/clock"
	"github.com/mmynk/picadito/internal/config"
	"github.com/mmynk/picadito/internal/events"
	"github.com/mmynk/picadito/internal/matches"
	"github.com/mmynk/picadito/internal/matchmaking"
	"github.com/mmynk/picadito/internal/metrics"
	"github.com/mmynk/picadito/internal/middleware"
	"github.com/mmynk/picadito/internal/obs"
	"github.com/mmynk/picadito/internal/queue"
	"github.com/mmynk/picadito/internal/service"
	"github.com/mmynk/picadito/internal/storage/sqlite"
)

const serviceName = "picadito"

func newServeCmd(cfg *config.App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Connect RPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.App) error {
	if cfg.JWTSecret == "" {
		return errors.New("PICADITO_JWT_SECRET is required")
	}

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	broker, err := newBroker(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer broker.Close()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, m)

	channel := chat.NewChannel(store, broker)
	notifier := chat.NewNotifier(channel, m)
	q := queue.NewRepository(store, clock.Real{}, cfg.QueueStaleAfter, emitter, m)
	engine := matchmaking.NewEngine(q, store, notifier, matchmaking.Config{
		MaxAttempts: cfg.FormationAttempts,
		Events:      emitter,
		Metrics:     m,
	})
	manager := matches.NewManager(store, notifier, emitter, clock.Real{})
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	mux := http.NewServeMux()
	service.Register(mux,
		service.NewQueueService(q, engine),
		service.NewMatchService(manager),
		service.NewChatService(channel, manager),
		connect.WithInterceptors(
			middleware.RequireAuth(jwtManager),
			middleware.LoggingInterceptor(),
		),
	)
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			slog.Warn("Health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{
			"Authorization",
			"Content-Type",
			"Connect-Protocol-Version",
			"Connect-Timeout-Ms",
		},
		ExposedHeaders: []string{"Connect-Protocol-Version", "Connect-Timeout-Ms"},
	})

	// h2c serves HTTP/2 without TLS, which streaming clients need.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(loggingMiddleware(c.Handler(mux)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go runSweeper(ctx, q, cfg.QueueStaleAfter/2)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Connect server starting", "address", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

// newBroker picks Redis pub/sub when configured so several server instances
// share chat fan-out; otherwise messages fan out in-process.
func newBroker(ctx context.Context, redisURL string) (chat.Broker, error) {
	if redisURL == "" {
		slog.Info("Chat fan-out in memory")
		return chat.NewMemoryBroker(), nil
	}
	b, err := chat.NewRedisBroker(ctx, redisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	slog.Info("Chat fan-out through redis")
	return b, nil
}

func newPublisher(cfg config.App) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		slog.Info("Domain events logged only")
		return events.LogPublisher{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	slog.Info("Domain events published to rabbitmq", "exchange", cfg.AMQPExchange)
	return p, nil
}

// runSweeper deletes stale queue entries every interval until ctx is done.
func runSweeper(ctx context.Context, q *queue.Repository, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.Sweep(ctx); err != nil {
				slog.Warn("Queue sweep failed", "error", err)
			}
		}
	}
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
