package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/action"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/app"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/config"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/database"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/forms"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/httpx"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/log"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/metrics"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/routes"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/submission"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal("main.config:", err)
	}
	log.SetFormat(cfg.LogFormat)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()
	store := database.NewStore(db)

	if cfg.Admin.Username != "" && cfg.Admin.Password != "" {
		if err = store.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			log.Fatal("main.db.admin:", err)
		}
	}
	if cfg.Forms.SeedFile != "" {
		if err = seedForms(ctx, store, cfg.Forms.SeedFile); err != nil {
			log.Fatal("main.forms.seed:", err)
		}
	}

	executors, err := newExecutors(ctx, cfg)
	if err != nil {
		log.Fatal("main.actions:", err)
	}

	m := metrics.New("formsite")
	catalog := forms.NewCatalog(store, forms.CatalogConfig{
		Size: cfg.Forms.CacheSize,
		TTL:  cfg.Forms.CacheTTL,
	})
	runner := action.NewRunner(action.RunnerConfig{
		Executors: executors,
		Timeout:   cfg.Actions.Timeout,
		Metrics:   m,
	})

	app := app.App{
		Store:        store,
		BearerServer: httpx.NewBearerServer(store, cfg),
		Config:       cfg,
		Catalog:      catalog,
		Submissions: submission.NewService(submission.Config{
			Forms:   catalog,
			Store:   store,
			Actions: runner,
			Metrics: m,
		}),
		Limiter: httpx.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Metrics: m,
	}

	handler := routes.Wire(app)

	err = runServer(ctx, cfg, handler)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func seedForms(ctx context.Context, store *database.Store, path string) error {
	seed, err := forms.LoadFile(path)
	if err != nil {
		return err
	}
	for i := range seed {
		if err = store.UpsertFormBySlug(ctx, &seed[i]); err != nil {
			return err
		}
		log.Infof("seeded form %s (version %d)", seed[i].Slug, seed[i].Version)
	}
	return nil
}

func newExecutors(ctx context.Context, cfg config.Config) (map[model.ActionKind]action.Executor, error) {
	var sender action.Sender
	if cfg.SMTP.Enabled() {
		sender = &action.SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}
	}

	var blobs action.BlobStore
	switch cfg.Storage.Driver {
	case "s3":
		s3Store, err := action.NewS3Store(ctx, action.S3StoreConfig{
			Bucket:   cfg.Storage.S3.Bucket,
			Region:   cfg.Storage.S3.Region,
			Endpoint: cfg.Storage.S3.Endpoint,
			Prefix:   cfg.Storage.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		blobs = s3Store
	case "dir":
		blobs = action.DirStore{Root: cfg.Storage.Dir}
	}

	return map[model.ActionKind]action.Executor{
		model.ActionWebhook: action.NewWebhookExecutor(&http.Client{Timeout: cfg.Actions.Timeout}),
		model.ActionEmail:   action.NewEmailExecutor(sender),
		model.ActionStorage: action.NewStorageExecutor(blobs),
	}, nil
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Listening on " + cfg.Url())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
