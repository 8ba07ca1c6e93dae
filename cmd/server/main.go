package main

import (
	"context"
	"log"
	"time"

	gcds "cloud.google.com/go/datastore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/tasksync/api/handler"
	"github.com/fastygo/tasksync/internal/config"
	"github.com/fastygo/tasksync/internal/infrastructure/buffer"
	dsInfra "github.com/fastygo/tasksync/internal/infrastructure/datastore"
	"github.com/fastygo/tasksync/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/tasksync/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/tasksync/internal/infrastructure/redis"
	"github.com/fastygo/tasksync/internal/middleware"
	"github.com/fastygo/tasksync/internal/router"
	"github.com/fastygo/tasksync/internal/security"
	"github.com/fastygo/tasksync/internal/services"
	"github.com/fastygo/tasksync/internal/services/lifecycle"
	"github.com/fastygo/tasksync/pkg/httpcontext"
	"github.com/fastygo/tasksync/pkg/logger"
	"github.com/fastygo/tasksync/repository"
	dsRepo "github.com/fastygo/tasksync/repository/datastore"
	"github.com/fastygo/tasksync/repository/postgres"
	redisRepo "github.com/fastygo/tasksync/repository/redis"
	authUC "github.com/fastygo/tasksync/usecase/auth"
	profileUC "github.com/fastygo/tasksync/usecase/profile"
	taskUC "github.com/fastygo/tasksync/usecase/task"
)

type stores struct {
	users repository.UserRepository
	tasks repository.TaskRepository
	ping  monitor.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, stop := manager.Context(context.Background())
	defer stop()

	primary := openStores(appCtx, cfg, manager, zapLogger)

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "buffer")
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	mon := monitor.New(monitor.Options{
		Driver: cfg.Storage,
		Store:  primary.ping,
		Redis: monitor.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
		Buffer:   bufferStore,
		Interval: 10 * time.Second,
	}, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.Auth.SessionTTL)
	changeFeed := redisRepo.NewChangeFeed(redisClient, cfg.Feed.ChannelPrefix, zapLogger)

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		primary.users,
		primary.tasks,
		changeFeed,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	bufferProcessor.Start()
	manager.Register("buffer_processor", bufferProcessor.Stop)

	bufferBridge := services.NewBufferBridge(bufferProcessor)
	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	authUseCase := authUC.New(primary.users, sessionRepo, tokens, authUC.Options{
		SessionTTL: cfg.Auth.SessionTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}, zapLogger)
	profileUseCase := profileUC.New(primary.users, bufferBridge, zapLogger)
	taskUseCase := taskUC.New(primary.tasks, changeFeed, bufferBridge, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task: apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger, apiHandler.StreamOptions{
			Parent:    appCtx,
			Heartbeat: cfg.Feed.HeartbeatInterval,
			Sessions:  authUseCase,
		}),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	r := router.New(handlers, middleware.JWTAuth(tokens, authUseCase, zapLogger))

	server := &fasthttp.Server{
		Handler: middleware.Chain(r.Handler,
			middleware.Recover(zapLogger),
			middleware.AccessLog(zapLogger),
		),
		// no WriteTimeout: it would cut off task streams
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxConnsPerIP:      cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		CloseOnShutdown:    true,
		MaxRequestBodySize: 1 << 20,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// openStores connects the configured primary store.
func openStores(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, log *zap.Logger) stores {
	if cfg.Storage == config.StorageDatastore {
		client, err := dsInfra.NewClient(ctx, cfg.Datastore, log)
		if err != nil {
			log.Fatal("datastore connection failed", zap.Error(err))
		}
		manager.Register("datastore", func(context.Context) error {
			return client.Close()
		})
		return datastoreStores(client)
	}

	if err := pgInfra.RunMigrations(cfg, log); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	pool, err := pgInfra.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(context.Context) error {
		pgInfra.Close(pool, log)
		return nil
	})
	return postgresStores(pool)
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		users: postgres.NewUserRepository(pool),
		tasks: postgres.NewTaskRepository(pool),
		ping:  pool,
	}
}

func datastoreStores(client *gcds.Client) stores {
	return stores{
		users: dsRepo.NewUserRepository(client),
		tasks: dsRepo.NewTaskRepository(client),
		ping:  dsInfra.Pinger{Client: client},
	}
}
