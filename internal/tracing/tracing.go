package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// newJaegerExporter создает экспортер, который отправляет трейсы в Jaeger.
func newJaegerExporter(url string) (sdktrace.SpanExporter, error) {
	return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(url)))
}

// InitTracerProvider настраивает и регистрирует OpenTelemetry-провайдер.
// Пустой jaegerURL оставляет глобальный no-op провайдер. sampleRatio вне (0, 1] означает 1.
func InitTracerProvider(serviceName, jaegerURL string, sampleRatio float64, logger *zap.Logger) (func(context.Context), error) {
	if jaegerURL == "" {
		logger.Info("Трейсинг выключен: JAEGER_URL не задан")
		return func(context.Context) {}, nil
	}

	if sampleRatio <= 0 || sampleRatio > 1 {
		sampleRatio = 1
	}

	exporter, err := newJaegerExporter(jaegerURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Jaeger-экспортера: %w", err)
	}

	// Ресурс (описание сервиса)
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	otel.SetTracerProvider(tp)

	// W3C Trace Context в качестве глобального propagator'а
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info("OpenTelemetry (Jaeger) инициализирован", zap.String("endpoint", jaegerURL), zap.Float64("sample_ratio", sampleRatio))

	return func(ctx context.Context) {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Ошибка остановки TracerProvider", zap.Error(err))
		}
	}, nil
}
