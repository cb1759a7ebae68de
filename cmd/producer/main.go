package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/generator"
	"storefront/internal/logger"
	"storefront/internal/model"
	"storefront/internal/tax"
)

// Producer имитирует шлюз: шлет подписанные вебхуки об оплатах,
// иногда повторяет уже отправленные и присылает неуспешные платежи.
type Producer struct {
	url      string
	secret   string
	client   *http.Client
	gen      *generator.Generator
	products []model.Product
	tax      *tax.Calculator
	logger   *zap.Logger
	sent     [][]byte
}

// NewProducer создает и настраивает новый экземпляр продюсера.
func NewProducer(baseURL, secret string, calc *tax.Calculator, logger *zap.Logger) *Producer {
	return &Producer{
		url:      baseURL + "/api/webhooks/razorpay",
		secret:   secret,
		client:   &http.Client{Timeout: 10 * time.Second},
		gen:      generator.New(0),
		products: generator.SeedProducts(),
		tax:      calc,
		logger:   logger,
	}
}

// next выбирает следующее событие: в основном новые оплаты, иногда повтор или отказ.
func (p *Producer) next() ([]byte, string, error) {
	roll := rand.Intn(10)
	if roll == 0 && len(p.sent) > 0 {
		return p.sent[rand.Intn(len(p.sent))], "replay", nil
	}

	customer := p.gen.Customer("")
	if roll == 1 {
		customer = p.gen.ForeignCustomer()
	}
	req := p.gen.CheckoutRequest(p.products, customer)
	notes, err := p.gen.OrderNotes(req, p.products, p.tax)
	if err != nil {
		return nil, "", err
	}
	orderID := p.gen.GatewayOrderID()

	if roll == 2 {
		body, err := p.gen.PaymentFailedEvent(orderID, notes)
		return body, gateway.EventPaymentFailed, err
	}
	body, err := p.gen.OrderPaidEvent(orderID, notes)
	if err != nil {
		return nil, "", err
	}
	p.sent = append(p.sent, body)
	return body, gateway.EventOrderPaid, nil
}

func (p *Producer) send(ctx context.Context, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(gateway.SignatureHeader, gateway.Sign(p.secret, body))

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(respBody), nil
}

// Run запускает бесконечный цикл отправки вебхуков.
func (p *Producer) Run(ctx context.Context, interval time.Duration) {
	p.logger.Info("Продюсер запущен. Нажмите CTRL+C для остановки.", zap.String("url", p.url))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Продюсер останавливается.")
			return
		case <-ticker.C:
			body, kind, err := p.next()
			if err != nil {
				p.logger.Error("Ошибка генерации события", zap.Error(err))
				continue
			}
			status, resp, err := p.send(ctx, body)
			if err != nil {
				p.logger.Error("Ошибка отправки вебхука", zap.String("kind", kind), zap.Error(err))
				continue
			}
			p.logger.Info("Отправлен вебхук", zap.String("kind", kind), zap.Int("status", status), zap.String("response", resp))
		}
	}
}

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

	if cfg.Razorpay.WebhookSecret == "" {
		log.Fatal("RAZORPAY_WEBHOOK_SECRET не задан, сервер отклонит все вебхуки")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseURL := os.Getenv("PRODUCER_TARGET")
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.HTTP.Port
	}
	calc := tax.NewCalculator(cfg.Tax.SellerState, log)
	NewProducer(baseURL, cfg.Razorpay.WebhookSecret, calc, log).Run(ctx, 2*time.Second)
}
