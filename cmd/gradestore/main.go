package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/gradestore/internal/handler"
	"github.com/noah-isme/gradestore/internal/repository"
	"github.com/noah-isme/gradestore/internal/service"
	"github.com/noah-isme/gradestore/pkg/cache"
	"github.com/noah-isme/gradestore/pkg/config"
	"github.com/noah-isme/gradestore/pkg/database"
	"github.com/noah-isme/gradestore/pkg/logger"
	"github.com/noah-isme/gradestore/pkg/storage"
)

const usage = `usage: gradestore [command]

commands:
  serve           run the admin API (default)
  token <login>   print an access token for a TA
  reset           delete every row from the database`

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *service.MetricsService
	data    *service.DataService
	tokens  *service.TokenService
	close   func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	a, err := bootstrap(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.close()

	switch cmd {
	case "serve":
		err = a.serve(ctx)
	case "token":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = a.printToken(os.Args[2])
	case "reset":
		err = a.data.ResetDatabase(ctx)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal("command failed", zap.String("command", cmd), zap.Error(err))
	}
}

func bootstrap(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	metrics := service.NewMetricsService()
	store := repository.NewStore(db, logr.Named("store"), metrics)
	closers := []func(){func() { db.Close() }}

	var snapshotCache *service.CacheService
	if cfg.SnapshotCache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("snapshot cache disabled", zap.Error(err))
		} else {
			closers = append(closers, func() { client.Close() })
			repo := repository.NewCacheRepository(client, "gradestore:", logr)
			snapshotCache = service.NewCacheService(repo, metrics, cfg.SnapshotCache.TTL, logr, true)
		}
	}

	data := service.NewDataService(store, snapshotCache, service.NewValidator(), logr.Named("data"))
	if err := data.Load(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logr,
		metrics: metrics,
		data:    data,
		tokens: service.NewTokenService(service.TokenConfig{
			Secret: cfg.JWT.Secret,
			Expiry: cfg.JWT.Expiration,
		}),
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func (a *app) printToken(login string) error {
	ta, err := a.data.TAByLogin(login)
	if err != nil {
		return err
	}
	res, err := a.tokens.Issue(ta)
	if err != nil {
		return err
	}
	fmt.Println(res.AccessToken)
	return nil
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	exportStore, local, err := a.exportStore(ctx)
	if err != nil {
		return err
	}
	if local != nil {
		go a.cleanupExports(ctx, local)
	}

	router := handler.NewRouter(handler.RouterDeps{
		APIPrefix:      a.cfg.APIPrefix,
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
		Logger:         a.logger,
		Data:           a.data,
		Exports:        service.NewExportService(a.data, exportStore, a.logger.Named("export"), nil, nil),
		LocalExports:   local,
		Tokens:         a.tokens,
		Metrics:        a.metrics,
		Docs:           a.cfg.Env != config.EnvProduction,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Sugar().Infow("server starting", "addr", srv.Addr, "env", a.cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// exportStore picks the export backend. The local store is also returned so its download
// route can be mounted.
func (a *app) exportStore(ctx context.Context) (service.ExportStore, *service.LocalExportStore, error) {
	ex := a.cfg.Exports
	switch ex.Driver {
	case config.ExportsS3:
		objects, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:    ex.S3Bucket,
			Region:    ex.S3Region,
			Endpoint:  ex.S3Endpoint,
			PathStyle: ex.S3PathStyle,
			AccessKey: ex.S3AccessKey,
			SecretKey: ex.S3SecretKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("s3 exports: %w", err)
		}
		return service.NewS3ExportStore(objects, ex.SignedURLTTL), nil, nil
	case config.ExportsLocal, "":
		files, err := storage.NewLocalStorage(ex.StorageDir)
		if err != nil {
			return nil, nil, fmt.Errorf("local exports: %w", err)
		}
		local := service.NewLocalExportStore(files, storage.NewSignedURLSigner(ex.SignedURLSecret, ex.SignedURLTTL), a.cfg.APIPrefix)
		return local, local, nil
	default:
		return nil, nil, fmt.Errorf("unsupported exports driver %q", ex.Driver)
	}
}

func (a *app) cleanupExports(ctx context.Context, local *service.LocalExportStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := local.Cleanup()
			if err != nil {
				a.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				a.logger.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
