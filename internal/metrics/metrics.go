package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	// HttpRequestsTotal - Счетчик HTTP-запросов
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Количество HTTP запросов",
		},
		[]string{"handler", "status"}, // Метки: хэндлер и http-статус
	)

	// HttpRequestDuration - Гистограмма длительности HTTP-запросов
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Длительность HTTP запросов",
		},
		[]string{"handler"},
	)

	// CacheHits - Счетчик попаданий в кэш заказов
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Количество попаданий в кэш",
		},
	)

	// CacheMisses - Счетчик промахов кэша
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Количество промахов кэша",
		},
	)

	// CacheSize - текущий размер кэша
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_size_items",
			Help: "Текущий размер кэша в элементах",
		},
	)

	// CacheEvictions - Счетчик вытеснений из кэша (LRU)
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Количество вытесненных из кэша элементов",
		},
	)

	// KafkaMessagesProcessed - Счетчик обработанных уведомлений из Kafka
	KafkaMessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_processed_total",
			Help: "Количество обработанных сообщений Kafka",
		},
		[]string{"status"}, // Метки: "success", "dlq_validation", "dlq_send_error", "dlq_failed_write"
	)

	// KafkaMessagesPublished - Счетчик опубликованных событий
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_published_total",
			Help: "Количество опубликованных событий",
		},
		[]string{"topic", "status"},
	)

	// DBErrors - Счетчик ошибок базы данных
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Количество ошибок при работе с БД",
		},
		[]string{"operation"},
	)

	// CheckoutSessions - результаты создания сессий оплаты
	CheckoutSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Количество попыток создания сессии оплаты",
		},
		[]string{"outcome"}, // "created", "validation", "fraud_blocked", "gateway_error"
	)

	// WebhookEvents - результаты обработки вебхуков шлюза
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Количество обработанных вебхуков",
		},
		[]string{"event", "outcome"},
	)

	// StockExceptions - заказы, оплаченные при нехватке остатка
	StockExceptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_exceptions_total",
			Help: "Количество оплаченных заказов без достаточного остатка",
		},
	)

	// FraudFlagsRaised - сработавшие фрод-правила
	FraudFlagsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraud_flags_raised_total",
			Help: "Количество созданных фрод-флагов",
		},
		[]string{"rule", "severity"},
	)

	// FraudRulesSuppressed - срабатывания, подавленные кулдауном или лимитом
	FraudRulesSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraud_rules_suppressed_total",
			Help: "Количество срабатываний, подавленных кулдауном или лимитом",
		},
		[]string{"rule", "reason"}, // "cooldown", "rate_limit"
	)

	// EmailsSent - отправленные письма
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Количество отправленных писем",
		},
		[]string{"template", "status"},
	)
)

// Init используется для регистрации метрик.
// promauto регистрирует их автоматически при создании.
func Init(logger *zap.Logger) {
	logger.Info("Prometheus метрики инициализированы.")
}
