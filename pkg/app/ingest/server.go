// Package ingest implements app.Runner for the gift ingestion daemon: the
// update listener, the periodic reconciler, and the inventory API in one
// process.
package ingest

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/alged/giftstream/pkg/app/http"
	"github.com/alged/giftstream/pkg/assets"
	"github.com/alged/giftstream/pkg/auth"
	"github.com/alged/giftstream/pkg/config"
	"github.com/alged/giftstream/pkg/events"
	giftservice "github.com/alged/giftstream/pkg/gift/service"
	"github.com/alged/giftstream/pkg/giftstore"
	"github.com/alged/giftstream/pkg/listener"
	"github.com/alged/giftstream/pkg/pgutil"
	"github.com/alged/giftstream/pkg/reconciler"
	"github.com/alged/giftstream/pkg/telegram"
)

const defaultHTTPMiddlewareTimeout = 60 * time.Second

// Server holds configuration for the ingestion daemon.
type Server struct {
	cfg *config.Config
}

// NewServer initializes the ingestion Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the pipeline and the HTTP server. It blocks until an OS
// shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting gift ingestion daemon")

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect gift db: %w", err)
	}
	defer func() { _ = db.Close() }()

	store := giftstore.NewStore(db,
		giftstore.WithOverwriteWithdrawn(cfg.Reconciliation.OverwriteWithdrawn))

	client, err := telegram.NewBridgeClient(&cfg.Telegram, logger)
	if err != nil {
		return fmt.Errorf("initialize bridge client: %w", err)
	}

	storage, err := s.newStorage(ctx)
	if err != nil {
		return fmt.Errorf("initialize asset storage: %w", err)
	}

	materializer := assets.NewMaterializer(storage, client, logger)
	processor := assets.NewProcessor(materializer, store, logger)

	publisher, err := events.NewPublisher(cfg.Events.NATSURL, logger)
	if err != nil {
		return fmt.Errorf("initialize event publisher: %w", err)
	}
	defer publisher.Close()

	lst := listener.New(client, store, processor, publisher, logger)
	listenerErrCh := make(chan error, 1)
	go func() {
		listenerErrCh <- lst.Run(ctx)
	}()

	rec := reconciler.New(client, store,
		cfg.Reconciliation.PageLimit, cfg.Reconciliation.PassTimeout, logger)

	// Initial pass fills gaps accumulated while the daemon was down. A
	// failure is logged, not fatal: the periodic schedule retries.
	go func() {
		initCtx, cancel := context.WithTimeout(ctx, cfg.Reconciliation.InitialTimeout)
		defer cancel()
		if err := rec.ReconcileOnce(initCtx); err != nil {
			logger.Error("initial reconciliation failed", zap.Error(err))
		}
	}()
	rec.StartPeriodic(cfg.Reconciliation.Interval)
	defer rec.Stop()

	router := s.newRouter(store, processor, logger)

	serveErr := apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	stop()
	if err := <-listenerErrCh; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("listener exited with error", zap.Error(err))
	}
	return serveErr
}

func (s *Server) newStorage(ctx context.Context) (assets.Storage, error) {
	switch s.cfg.Assets.Backend {
	case "s3":
		return assets.NewS3Storage(ctx, s.cfg.Assets.S3)
	default:
		return assets.NewFSStorage(s.cfg.Assets.Dir, s.cfg.Assets.PublicBaseURL)
	}
}

func (s *Server) newRouter(store giftstore.Store, processor *assets.Processor, logger *zap.Logger) http.Handler {
	cfg := s.cfg

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Materialized assets are served directly when the fs backend is in
	// use; with s3 the public URLs point at the bucket instead.
	if cfg.Assets.Backend == "fs" {
		prefix := "/" + strings.Trim(cfg.Assets.PublicBaseURL, "/")
		fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Assets.Dir)))
		r.Get(prefix+"/*", fileServer.ServeHTTP)
	}

	svc := giftservice.NewLog(
		giftservice.NewService(store, processor, logger),
		logger,
	)

	validator := auth.NewJWTValidator(cfg.Auth.AdminJWTSecret)
	requireAdmin := auth.RequireAdmin(validator, cfg.Auth.BotToken, logger)

	giftservice.RegisterRoutes(r, svc, requireAdmin, logger)

	return r
}
