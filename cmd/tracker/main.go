package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"cafetrack/internal/acks"
	"cafetrack/internal/api"
	"cafetrack/internal/api/handlers"
	"cafetrack/internal/config"
	"cafetrack/internal/orderapi"
	"cafetrack/internal/realtime"
	"cafetrack/internal/tracking"
	"cafetrack/pkg/retry"
	"cafetrack/pkg/utils"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()
	log := logger.Logger

	// Хранилище отметок прочитанных уведомлений (опционально)
	var ackStore handlers.AckStore
	if cfg.Database.Enabled {
		db, err := initDatabase(cfg)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		log.Info("connected to database",
			zap.String("dsn", cfg.Database.DSNWithoutPassword()))

		store := acks.NewStore(db)
		ackStore = store
		go evictOldAcks(store, log)
	}

	// Клиент Order Source
	sourceCfg := orderapi.DefaultConfig(cfg.Source.BaseURL)
	sourceCfg.TotalTimeout = cfg.Source.FetchTimeout
	source := orderapi.NewClient(sourceCfg)

	// Reconciliation Controller (владеет Order Store)
	store := tracking.NewStore()
	fetchRetry := retry.NetworkConfig()
	fetchRetry.RetryIf = retry.RetryIfNotContext

	controller := tracking.NewController(tracking.Config{
		CustomerID:      cfg.Source.CustomerID,
		OrderID:         cfg.Source.OrderID,
		TickInterval:    cfg.Tracking.TickInterval,
		RecencyWindow:   cfg.Tracking.RecencyWindow,
		PendingWindow:   cfg.Tracking.PendingWindow,
		PreparingWindow: cfg.Tracking.PreparingWindow,
		StalePendingAge:      cfg.Tracking.StalePendingAge,
		DegradedPollInterval: cfg.Tracking.DegradedPollInterval,
		FetchRetry:           fetchRetry,
	}, store, source, log.With(zap.String("component", "controller")))
	controller.Start()

	// Realtime канал
	channel := realtime.NewClient(
		cfg.Channel.URL,
		realtime.Room{
			CustomerID: cfg.Source.CustomerID,
			OrderID:    cfg.Source.OrderID,
		},
		realtime.Config{
			InitialDelay:   cfg.Channel.InitialDelay,
			MaxDelay:       cfg.Channel.MaxDelay,
			MaxRetries:     cfg.Channel.MaxRetries,
			ConnectTimeout: cfg.Channel.ConnectTimeout,
			PingInterval:   cfg.Channel.PingInterval,
			PongTimeout:    cfg.Channel.PongTimeout,
		},
		log.With(zap.String("component", "channel")),
	)
	channel.SetOnDelta(controller.HandleDelta)
	channel.SetOnConnect(func() {
		// Канал снова жив: состояние больше не деградировано,
		// и сразу сверяемся с сервером на случай пропущенных событий
		controller.SetChannelDegraded(false)
		controller.Refresh()
	})
	channel.SetOnDegraded(func() {
		controller.SetChannelDegraded(true)
	})

	if err := channel.Connect(); err != nil {
		// Не фатально: периодический fetch продолжает работать
		log.Warn("initial channel connect failed, relying on re-fetch",
			zap.Error(err))
		controller.SetChannelDegraded(true)
	}

	// HTTP сервер презентационного слоя
	router := api.SetupRoutes(&api.Dependencies{
		Tracker:    controller,
		Acks:       ackStore,
		CustomerID: cfg.Source.CustomerID,
		Logger:     log.With(zap.String("component", "api")),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	// Сначала канал и контроллер: после teardown события не доставляются
	if err := channel.Close(); err != nil {
		log.Warn("error closing realtime channel", zap.Error(err))
	}
	controller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

// evictOldAcks раз в сутки удаляет отметки старше 30 суток.
// Ленивая очистка: потеря отметки ведёт максимум к повторному показу
// уведомления, поэтому ошибки здесь только логируются.
func evictOldAcks(store *acks.Store, log *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		cutoff := utils.DaysAgo(30)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := store.EvictOlderThan(ctx, cutoff)
		cancel()

		if err != nil {
			log.Warn("ack eviction failed", zap.Error(err))
		} else if n > 0 {
			log.Info("evicted old acks",
				zap.Int64("count", n),
				zap.Time("cutoff", cutoff))
		}

		<-ticker.C
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
