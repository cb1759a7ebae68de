package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/admin"
	"storefront/internal/api"
	"storefront/internal/cache"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/finalizer"
	"storefront/internal/fraud"
	"storefront/internal/gateway"
	"storefront/internal/generator"
	"storefront/internal/kafka"
	"storefront/internal/logger"
	"storefront/internal/mailer"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/tax"
	"storefront/internal/tracing"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	shutdownTracer, err := tracing.InitTracerProvider("storefront", cfg.Tracing.JaegerURL, cfg.Tracing.SampleRatio, log)
	if err != nil {
		log.Fatal("Ошибка инициализации трейсинга", zap.Error(err))
	}
	defer shutdownTracer(context.Background())
	metrics.Init(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация хранилища
	storage, err := newStorage(cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer storage.Close()

	cooldowns, closeCooldowns := newCooldowns(ctx, cfg, log)
	defer closeCooldowns()

	brokers := kafkaBrokers(cfg.Kafka.Brokers)
	var writer notify.MessageWriter
	if len(brokers) > 0 {
		writer = notify.NewKafkaWriter(brokers)
	}
	publisher := notify.NewPublisher(writer, cfg.Kafka.OrdersTopic, cfg.Kafka.AlertsTopic, log)
	defer publisher.Close()

	taxCalc := tax.NewCalculator(cfg.Tax.SellerState, log)
	engine, err := fraud.NewEngine(fraud.DefaultRules(), storage, storage, cooldowns, log, fraud.WithAlerter(publisher))
	if err != nil {
		log.Fatal("Ошибка инициализации фрод-движка", zap.Error(err))
	}

	gw := gateway.NewClient(gateway.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		BaseURL:   cfg.Razorpay.BaseURL,
	}, log)
	if cfg.Razorpay.WebhookSecret == "" {
		log.Warn("RAZORPAY_WEBHOOK_SECRET не задан, все вебхуки будут отклонены")
	}

	// Инициализация кэша
	orderCache := cache.NewLRUCache(cfg.Cache.Size)
	if err := cache.WarmUp(ctx, storage, orderCache, cfg.Cache.Size, log); err != nil {
		log.Warn("Ошибка при прогреве кэша", zap.Error(err))
	}

	server := api.NewServer(cfg.HTTP.Port, api.Deps{
		Checkout:       checkout.NewService(storage, gw, taxCalc, engine, log),
		Webhooks:       finalizer.New(storage, taxCalc, engine, publisher, cfg.Razorpay.WebhookSecret, log),
		Admin:          admin.NewService(storage, orderCache, log),
		Tax:            taxCalc,
		Health:         storage,
		AdminSecret:    []byte(cfg.Auth.AdminJWTSecret),
		WebhookTimeout: cfg.HTTP.WebhookTimeout,
	}, log)

	g, gctx := errgroup.WithContext(ctx)

	// Запуск Kafka Consumer
	if len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
		m := mailer.NewResendClient(cfg.Mail.APIKey, cfg.Mail.From, cfg.Mail.BaseURL, log)
		consumer := kafka.NewConsumer(cfg.Kafka, m, log)
		g.Go(func() error {
			consumer.Run(gctx)
			return nil
		})
	} else {
		log.Info("Kafka не настроена, консюмер уведомлений не запущен")
	}

	// Запуск HTTP-сервера
	g.Go(server.Run)

	// Ожидание сигнала для корректного завершения работы
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Сервис останавливается...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Сервис завершился с ошибкой", zap.Error(err))
		return
	}
	log.Info("Сервис успешно остановлен.")
}

func newStorage(cfg *config.Config, log *zap.Logger) (database.Storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("Используется хранилище в памяти, данные не переживут перезапуск")
		return database.NewMemory(generator.SeedProducts()), nil
	case "postgres", "":
		return database.New(cfg.Postgres.URL, cfg.Storage.MigrationsPath, log)
	}
	return nil, fmt.Errorf("неизвестный драйвер хранилища %q", cfg.Storage.Driver)
}

// newCooldowns использует Redis, если он задан и доступен, иначе кулдауны живут в памяти процесса.
func newCooldowns(ctx context.Context, cfg *config.Config, log *zap.Logger) (fraud.Cooldowns, func()) {
	memory := fraud.NewMemoryCooldowns(time.Now)
	if cfg.Redis.Addr == "" {
		return memory, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis недоступен, кулдауны фрод-правил хранятся в памяти", zap.Error(err))
		_ = client.Close()
		return memory, func() {}
	}
	return fraud.NewRedisCooldowns(client, "fraud:cooldown"), func() { _ = client.Close() }
}

func kafkaBrokers(raw []string) []string {
	var brokers []string
	for _, b := range raw {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
