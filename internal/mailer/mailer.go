package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

//go:generate mockgen -source=mailer.go -destination=./mocks/mailer_mock.go -package=mocks Mailer

// ErrNotConfigured возвращается, если ключ почтового API не задан.
var ErrNotConfigured = errors.New("почтовый API не настроен")

// Mailer отправляет письма.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// SendError - ответ почтового API с ошибкой.
type SendError struct {
	StatusCode int
	Message    string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mail api: %d: %s", e.StatusCode, e.Message)
}

// Retryable сообщает, стоит ли повторить отправку.
func (e *SendError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ResendClient - клиент HTTP API в стиле Resend (POST /emails, Bearer-ключ).
type ResendClient struct {
	apiKey  string
	from    string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewResendClient(apiKey, from, baseURL string, logger *zap.Logger) *ResendClient {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &ResendClient{
		apiKey:  apiKey,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

func (c *ResendClient) Send(ctx context.Context, email Email) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(struct {
		From string `json:"from"`
		Email
	}{From: c.from, Email: email})
	if err != nil {
		return fmt.Errorf("ошибка сериализации письма: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("почтовый API недоступен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(payload))
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return &SendError{StatusCode: resp.StatusCode, Message: msg}
	}

	c.logger.Debug("Письмо отправлено", zap.Strings("to", email.To), zap.String("subject", email.Subject))
	return nil
}
