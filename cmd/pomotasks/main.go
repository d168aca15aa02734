package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	config "github.com/davicafu/pomotasks/internal/config"
	"github.com/davicafu/pomotasks/internal/observability"
	sharedEvents "github.com/davicafu/pomotasks/internal/shared/domain/events"
	infraEvents "github.com/davicafu/pomotasks/internal/shared/infra/events"
	sharedBus "github.com/davicafu/pomotasks/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/pomotasks/internal/shared/infra/platform/cache"
	infraRelayer "github.com/davicafu/pomotasks/internal/shared/infra/relayer"
	taskApp "github.com/davicafu/pomotasks/internal/task/application"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
	taskEvents "github.com/davicafu/pomotasks/internal/task/infra/inbound/events"
	"github.com/davicafu/pomotasks/internal/task/infra/outbound/analytics/clickhouse"
	"github.com/davicafu/pomotasks/internal/task/infra/outbound/analytics/logsink"
	userApp "github.com/davicafu/pomotasks/internal/user/application"
	userDomain "github.com/davicafu/pomotasks/internal/user/domain"
	userEvents "github.com/davicafu/pomotasks/internal/user/infra/inbound/events"
	"github.com/davicafu/pomotasks/pkg/logger"
)

// ---------------- Main ----------------
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Logger() // obtiene logger estructurado
	defer logger.Sync()    // flush buffers al salir

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// El contexto raíz se cancela con SIGINT/SIGTERM y detiene todos los workers.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	defer workers.Wait()

	// ---------------- Tracing ----------------
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
	}, log)
	if err != nil {
		log.Warn("⚠️ Tracing deshabilitado", zap.Error(err))
	}
	defer func() {
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctxShutdown)
	}()

	// ---------------- DB ----------------
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("✅ Storage listo", zap.String("driver", cfg.DBDriver))

	// ---------------- Cache ----------------
	cacheInstance := newCache(ctx, cfg, log)

	// --------------- Servicios --------------
	if cfg.JWTSecretGenerated {
		log.Warn("⚠️ JWT_SECRET no configurado: se usa un secreto efímero, los tokens caducan al reiniciar")
	}
	userService, err := userApp.NewUserService(store.users, cacheInstance, userApp.AuthConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.JWTTTL,
		CacheTTL:  cfg.CacheTTL,
	}, log)
	if err != nil {
		return err
	}
	taskService := taskApp.NewTaskService(store.tasks, cacheInstance, cfg.CacheTTL, log)

	// ---------------- Analítica ----------------
	var activityLog taskDomain.TaskActivityLog = logsink.NewActivityLogger(log)
	if cfg.ClickHouseAddr != "" {
		chDB, err := clickhouse.OpenClickHouse(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDB)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, actividad al log", zap.Error(err))
		} else {
			defer chDB.Close()
			repo := clickhouse.NewTaskActivityRepo(chDB)
			if err := repo.InitSchema(ctx); err != nil {
				log.Warn("⚠️ No se pudo crear tasks_activity, actividad al log", zap.Error(err))
			} else {
				activityLog = repo
				log.Info("✅ ClickHouse conectado, actividad habilitada")
			}
		}
	}

	taskConsumer := taskEvents.NewTaskActivityConsumer(activityLog, log)
	userConsumer := userEvents.NewUserConsumer(cacheInstance, cfg.CacheTTL, log)

	// ---------------- Events ---------------
	var publisher sharedBus.EventBus
	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.KafkaBrokers))

		// Un único writer: el topic va en cada mensaje.
		writer := infraEvents.NewKafkaWriter(cfg.KafkaBrokers)
		defer writer.Close()
		publisher = infraEvents.NewKafkaPublisher(writer, log)

		infraEvents.NewConsumerAdapter(
			infraEvents.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaGroupID+"-activity", taskDomain.TaskTopic),
			taskConsumer, log,
		).Start(ctx)
		infraEvents.NewConsumerAdapter(
			infraEvents.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaGroupID+"-users", userDomain.UserTopic),
			userConsumer, log,
		).Start(ctx)
	} else {
		log.Info("⚡️ Usando bus de eventos en memoria (canales de Go)")

		bus := infraEvents.NewInMemoryEventBus()
		publisher = bus

		log.Info("🎧 Iniciando listeners en memoria para eventos de tarea y usuario")
		infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(taskDomain.TaskTopic, 100), taskConsumer)
		infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(userDomain.UserTopic, 100), userConsumer)
	}

	// ------------ Outbox Worker ------------
	eventRegistry := sharedEvents.MergeRegistries(taskDomain.NewEventRegistry(), userDomain.NewEventRegistry())
	for _, outboxRepo := range store.outbox {
		worker := infraRelayer.NewOutboxWorker(outboxRepo, publisher, eventRegistry, cfg.OutboxPeriod, cfg.OutboxLimit, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Start(ctx)
		}()
	}

	// ---------------- HTTP ----------------
	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, userService, taskService, log)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("🛑 Señal recibida, apagando...")
	case err := <-serverErr:
		stop()
		return fmt.Errorf("failed to start server: %w", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("👋 Servidor detenido")
	return nil
}

// newCache usa Redis si responde y, si no, la caché en memoria.
func newCache(ctx context.Context, cfg *config.Config, log *zap.Logger) sharedCache.Cache {
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := rdb.Ping(ctxPing).Err()
		if err == nil {
			log.Info("✅ Redis conectado, cache habilitado")
			go func() {
				<-ctx.Done()
				rdb.Close()
			}()
			return sharedCache.NewRedisCache(rdb, cfg.CacheTTL)
		}
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		rdb.Close()
	}

	mem := sharedCache.NewInMemoryCache(cfg.CacheTTL, cfg.CacheTTL)
	go func() {
		<-ctx.Done()
		mem.Stop()
	}()
	return mem
}
