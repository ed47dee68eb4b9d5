// Package tracing sets up OpenTelemetry export and carries span context
// across the Kafka event stream.
package tracing

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Config struct {
	ServiceName string
	Endpoint    string  // OTLP collector host:port; empty disables export
	SampleRatio float64 // 0..1
}

// Setup installs a global tracer provider that batches spans to an OTLP
// collector over gRPC. Without an endpoint the no-op provider stays in
// place and the returned shutdown does nothing.
func Setup(ctx context.Context, c Config, log *zap.Logger) (func(context.Context) error, error) {
	if c.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	conn, err := grpc.NewClient(c.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc client for %s: %w", c.Endpoint, err)
	}
	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(c.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("tracing_enabled",
		zap.String("endpoint", c.Endpoint),
		zap.String("service", c.ServiceName),
		zap.Float64("sample_ratio", c.SampleRatio),
	)

	return func(ctx context.Context) error {
		return multierr.Append(tp.Shutdown(ctx), conn.Close())
	}, nil
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer { return otel.Tracer(name) }

// RecordError marks span failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// KafkaHeaders encodes the span context of ctx as W3C trace headers.
func KafkaHeaders(ctx context.Context) []kafka.Header {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	out := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

// FromKafkaHeaders is the consumer side of KafkaHeaders.
func FromKafkaHeaders(ctx context.Context, hs []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range hs {
		carrier[h.Key] = string(h.Value)
	}
	return propagation.TraceContext{}.Extract(ctx, carrier)
}
