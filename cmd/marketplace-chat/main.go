// cmd/marketplace-chat/main.go
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

	"marketplace-chat/internal/chat"
	"marketplace-chat/internal/common/camunda"
	"marketplace-chat/internal/common/config"
	"marketplace-chat/internal/common/database"
	"marketplace-chat/internal/common/events"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/nlp"
	"marketplace-chat/internal/common/observability"
	"marketplace-chat/internal/httpapi"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
	"marketplace-chat/internal/repository"
	"marketplace-chat/internal/search"
	"marketplace-chat/pkg/registry"

	vsf "marketplace-chat/internal/workers/catalog/validate-search-filters"
	hcm "marketplace-chat/internal/workers/chat/handle-chat-message"
	pcq "marketplace-chat/internal/workers/chat/parse-chat-query"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// checkRegistry warns about started workers the activity registry does not
// describe.
func checkRegistry(path string, taskTypes []string, log *zap.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	for _, problem := range reg.Validate() {
		log.Warn("activity registry problem", zap.String("problem", problem))
	}
	for _, taskType := range taskTypes {
		if _, ok := reg.FindByTaskType(taskType); !ok {
			log.Warn("worker missing from activity registry", zap.String("taskType", taskType))
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{
		"service": cfg.App.Name,
		"env":     cfg.App.Environment,
	})

	zapLog.Info("Starting marketplace chat...", zap.String("backend", cfg.Search.Backend))

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel metrics unavailable", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()
	checks := map[string]httpapi.Checker{}

	// --- Product store ---
	var store models.ProductRepository
	switch cfg.Search.Backend {
	case "elasticsearch":
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", esClient.ProductIndex))

		store = repository.NewElasticsearchProductStore(esClient.Client, esClient.ProductIndex, log)
		checks["elasticsearch"] = esClient.Ready

	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		store = repository.NewPostgresProductStore(pg.DB, pg.QueryTimeout, log)
		checks["postgres"] = pg.Ping
	}

	// --- Redis category cache (optional) ---
	if cfg.Database.Redis.Address != "" {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, category counts are not cached", zap.Error(err))
		} else {
			defer rdb.Close()
			store = repository.NewCategoryCountCache(store, rdb.Client, rdb.CategoryCacheTTL, log)
			checks["redis"] = rdb.Ping
			zapLog.Info("Redis connected successfully")
		}
	}

	// --- NLU ---
	catalog := nlu.DefaultCatalog()

	var service nlu.NLPService
	var cache *nlu.ResultCache
	if cfg.NLP.Enabled {
		service = nlp.NewClient(&nlp.Config{
			BaseURL:    cfg.NLP.BaseURL,
			Timeout:    config.GetDuration(cfg.NLP.Timeout),
			MaxRetries: cfg.NLP.MaxRetries,
		}, log)
		if cfg.NLP.UseCache {
			cache = nlu.NewResultCache(cfg.NLP.CacheSize, config.GetDuration(cfg.NLP.CacheTTL))
		}
		zapLog.Info("NLP service enabled", zap.String("baseUrl", cfg.NLP.BaseURL))
	} else {
		zapLog.Info("NLP service disabled, using rule-based parsing only")
	}

	parser := nlu.NewParser(catalog, service, cache, nlu.ParserConfig{
		Timeout:  config.GetDuration(cfg.NLP.Timeout),
		UseCache: cfg.NLP.UseCache,
	}, log)

	// --- Search ---
	resolver := search.NewResolver(catalog, search.ResolverConfig{
		IncludeAllStatuses: cfg.Search.IncludeAllStatuses,
		StatusFilter:       cfg.Search.StatusFilter,
	})
	executor := search.NewExecutor(store, config.GetDuration(cfg.Database.Postgres.QueryTimeout), log)
	searcher := search.NewSearcher(
		resolver,
		executor,
		search.NewFallbackEngine(catalog, parser.Extractor(), executor, log),
		log,
	)

	// --- Chat message publishing (optional) ---
	var recorder chat.MessageRecorder
	if cfg.Kafka.Enabled {
		publisher := events.NewPublisher(events.NewKafkaWriter(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: config.GetDuration(cfg.Kafka.WriteTimeout),
		}), cfg.Kafka.Topic, log)
		defer publisher.Close()
		recorder = publisher
		zapLog.Info("Kafka publisher enabled", zap.String("topic", cfg.Kafka.Topic))
	}

	chatService := chat.NewService(parser, searcher, recorder, obs, chat.Config{
		DefaultLimit:        cfg.Search.DefaultLimit,
		RecommendationLimit: cfg.Search.RecommendationLimit,
		MaxLimit:            cfg.Search.MaxLimit,
		RecordTimeout:       config.GetDuration(cfg.Kafka.WriteTimeout),
	}, log)

	// --- Camunda workers (optional) ---
	var zeebe *camunda.Client
	var workers *camunda.Workers
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		checks["zeebe"] = zeebe.HealthCheck

		workers = camunda.NewWorkers(zeebe.Raw(), log)

		vsfCfg := config.GetWorkerConfig(cfg, vsf.TaskType)
		workers.Start(vsf.TaskType, vsfCfg, vsf.NewHandler(&vsf.Config{
			Timeout:      config.GetDuration(vsfCfg.Timeout),
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
		}, catalog, log).Handle)

		pcqCfg := config.GetWorkerConfig(cfg, pcq.TaskType)
		workers.Start(pcq.TaskType, pcqCfg, pcq.NewHandler(&pcq.Config{
			Timeout: config.GetDuration(pcqCfg.Timeout),
		}, parser, resolver, log).Handle)

		hcmCfg := config.GetWorkerConfig(cfg, hcm.TaskType)
		workers.Start(hcm.TaskType, hcmCfg, hcm.NewHandler(&hcm.Config{
			Timeout: config.GetDuration(hcmCfg.Timeout),
		}, chatService, log).Handle)

		zapLog.Info("Camunda workers registered", zap.Int("count", workers.Count()))
		checkRegistry(cfg.Camunda.RegistryPath, workers.TaskTypes(), zapLog)
	}

	// --- HTTP API ---
	api := httpapi.NewAPI(chatService, checks, log)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.Router(),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	if workers != nil {
		workers.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	chatService.Drain()

	zapLog.Info("Marketplace chat stopped")
}
