// Package app собирает приложение: конфигурация, хранилища, инфраструктура,
// use case-ы группировки и ценообразования и фоновый outbox-воркер.
// Внешнего транспортного слоя здесь нет: use case-ы — публичная точка входа
// для встраивающего сервиса, Run поднимает только фоновые процессы.
package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/cache"
	config "github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	embeddingInfra "github.com/DRSN-tech/go-similarity/internal/infrastructure/embedding"
	"github.com/DRSN-tech/go-similarity/internal/infrastructure/kafka"
	"github.com/DRSN-tech/go-similarity/internal/infrastructure/vision"
	s3Repo "github.com/DRSN-tech/go-similarity/internal/repository/minio"
	"github.com/DRSN-tech/go-similarity/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/go-similarity/internal/repository/pgdb/converter/generated"
	qdrantRepo "github.com/DRSN-tech/go-similarity/internal/repository/qdrant"
	"github.com/DRSN-tech/go-similarity/internal/repository/redis"
	redisConv "github.com/DRSN-tech/go-similarity/internal/repository/redis/converter"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/clients"
	"github.com/DRSN-tech/go-similarity/pkg/closer"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/DRSN-tech/go-similarity/pkg/postgres"
	"github.com/jimlawless/whereami"
)

// App — собранное приложение с публичными use case-ами.
type App struct {
	GroupingUC usecase.GroupingUC
	PricingUC  usecase.PricingUC

	outboxWorker *kafka.OutboxWorker
	closer       *closer.Closer
	logger       logger.Logger
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	cl := closer.NewCloser(2 * time.Second)

	db, err := initPGDB(log, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		db.Close()
		return nil
	})

	groupConv := pgdbConv.NewGroupConverterImpl()
	saleConv := pgdbConv.NewSaleConverterImpl()
	outboxConv := pgdbConv.NewOutboxEventConverterImpl()
	settingsConv := redisConv.NewSettingsConverter()

	groupRepo := pgdb.NewGroupRepo(db.Pool, groupConv)
	saleRepo := pgdb.NewSaleRepo(db.Pool, saleConv, log)
	settingsRepo := pgdb.NewSettingsRepo(db.Pool)
	outboxRepo := pgdb.NewOutboxEventRepo(db.Pool, outboxConv)

	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName)
	minioCancel()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		return qdrantClient.Client.Close()
	})

	qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = clients.EnsureCollections(qdrantCtx, qdrantClient)
	qdrantCancel()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	corpusRepo := qdrantRepo.NewCorpusRepo(qdrantClient.Client, cfg.Qdrant)

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(redisCtx)
	redisCancel()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		return redisClient.Client.Close()
	})

	settingsCacheRepo := redis.NewSettingsCacheRepo(redisClient, settingsConv, cfg.Redis, log)
	settingsService := usecase.NewSettingsService(settingsRepo, settingsCacheRepo, log)

	providers := make([]embeddingInfra.Provider, 0, len(cfg.Embedding.Providers))
	httpClient := &http.Client{Timeout: cfg.Embedding.ChunkTimeout}
	for _, pc := range cfg.Embedding.Providers {
		p, err := embeddingInfra.NewProvider(pc, httpClient, cfg.Embedding.MaxResponseBytes)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		providers = append(providers, p)
	}

	vectorCache := cache.New[domain.EmbeddingVector](cfg.Cache.BudgetBytes, cfg.Cache.DefaultTTL)
	generator, err := embeddingInfra.NewGenerator(providers, vectorCache, cfg.Embedding, log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	visionService := vision.NewService(cfg.Vision, cfg.Breaker, cfg.Cache, log)

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		return producer.Close()
	})

	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	groupingUC := usecase.NewGroupingUC(
		groupRepo,
		corpusRepo,
		imageRepo,
		outboxRepo,
		generator,
		visionService,
		settingsService,
		db.Pool,
		log,
	)

	calculator := usecase.NewPriceCalculator(cfg.Pricing.DefaultBasePrice, cfg.Pricing.BaseCurrency)
	pricingUC := usecase.NewPricingUC(
		corpusRepo,
		saleRepo,
		settingsService,
		visionService,
		calculator,
		cfg.Pricing,
		log,
	)

	worker := kafka.NewOutboxWorker(outboxRepo, log, producer, db.Dsn)

	return &App{
		GroupingUC:   groupingUC,
		PricingUC:    pricingUC,
		outboxWorker: worker,
		closer:       cl,
		logger:       log,
	}, nil
}

// Run запускает outbox-воркер и блокируется до сигнала останова.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.outboxWorker.Start(ctx)
	a.logger.Infof("Outbox worker started")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown
	a.logger.Infof("Received shutdown signal, stopping gracefully...")

	cancel()
	a.outboxWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("Shutdown finished with errors: %v", err)
		return err
	}

	a.logger.Infof("Application shutdown complete")
	return nil
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
