package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/doodle-play-backend/internal/blobstore"
	"github.com/DoyleJ11/doodle-play-backend/internal/config"
	"github.com/DoyleJ11/doodle-play-backend/internal/controller"
	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
	"github.com/DoyleJ11/doodle-play-backend/internal/httpapi"
	"github.com/DoyleJ11/doodle-play-backend/internal/hub"
	"github.com/DoyleJ11/doodle-play-backend/internal/logging"
	"github.com/DoyleJ11/doodle-play-backend/internal/session"
	"github.com/DoyleJ11/doodle-play-backend/internal/ws"
)

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	strategy, err := engine.NewStrategy(engine.Mode(cfg.Mode), engine.Routing(cfg.MotionRouting))
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	transport, err := controller.New(controller.Options{
		Kind:     cfg.Transport,
		URL:      cfg.BrokerURL,
		Topic:    cfg.ResolvedTopic(),
		ClientID: clientID(cfg),
		Username: cfg.BrokerUsername,
		Password: cfg.BrokerPassword,
	}, log)
	if err != nil {
		return err
	}

	h := hub.NewHub(ctx, session.Options{
		Strategy: strategy,
		Loader:   blobstore.GalleryLoader(store),
		Status:   controller.Status{}.Wire(),
	}, log.Named("hub"))

	api := httpapi.NewAPI(httpapi.Options{
		Hub:           h,
		Store:         store,
		BaseURL:       cfg.BaseURL(),
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        log,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(api, ws.NewHandler(h, log), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting",
		zap.String("addr", srv.Addr),
		zap.String("mode", cfg.Mode),
		zap.String("transport", cfg.Transport),
		zap.String("topic", cfg.ResolvedTopic()),
		zap.String("store", cfg.Store),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Library callbacks only enqueue; the hub does the rest.
	g.Go(func() error {
		return transport.Run(gctx,
			func(p engine.Payload) { h.Send(hub.Dispatch{Payload: p}) },
			func(s controller.Status) {
				log.Info("controller status", zap.String("status", s.Describe()))
				h.Send(hub.StatusChanged{Status: s.Wire()})
			},
		)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		h.Send(hub.ShutdownHub{})
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("stopped", zap.Error(err))
	return err
}

func openStore(ctx context.Context, cfg *config.Config) (blobstore.Store, func(), error) {
	switch cfg.Store {
	case "s3":
		s, err := blobstore.NewS3(ctx, blobstore.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Endpoint:        cfg.S3Endpoint,
			PublicURL:       cfg.S3PublicURL,
		})
		return s, func() {}, err
	case "postgres":
		p, err := blobstore.NewPostgres(cfg.PostgresDSN, cfg.BaseURL())
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	default:
		return blobstore.NewMemory(cfg.BaseURL()), func() {}, nil
	}
}

func clientID(cfg *config.Config) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	host, _ := os.Hostname()
	return fmt.Sprintf("doodle-play-%s-%d", host, os.Getpid())
}
