// Package tracing wires the OpenTelemetry tracer provider used by the CLI
// services. Export is optional: with no exporter configured, spans stay
// in-process.
package tracing

import (
	"context"
	"net/url"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/queuefab/queued-listener/internal/buildinfo"
)

type ErrorHandler struct {
	log *logr.Logger
}

func (e *ErrorHandler) Handle(err error) {
	e.log.Error(err, "OTEL ERROR")
}

var errorHandler = &ErrorHandler{}   //nolint:gochecknoglobals // otel globals
var onceSetOtel sync.Once            //nolint:gochecknoglobals // local once
var onceBodySetOtel = func() {       //nolint:gochecknoglobals // local once
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(errorHandler)
	otel.SetLogger(*errorHandler.log)
}

func SetErrorHandlerLogger(log *logr.Logger) {
	errorHandler.log = log
}

// InitTracer builds the tracer provider for one service instance. A nil
// exporter keeps spans local.
func InitTracer(exporter sdktrace.SpanExporter, sampler sdktrace.Sampler, service string, instance string, log logr.Logger) *sdktrace.TracerProvider {
	attrs := []attribute.KeyValue{
		semconv.ServiceNamespace("queued-listener"),
		semconv.ServiceName(service),
		semconv.ServiceInstanceID(instance),
		semconv.ServiceVersion(buildinfo.Version),
		attribute.Int("pid", os.Getpid()),
	}
	providerOptions := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
	}
	if exporter != nil {
		providerOptions = append(providerOptions, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(providerOptions...)

	if errorHandler.log == nil {
		errorHandler.log = &log
	}
	onceSetOtel.Do(onceBodySetOtel)

	return tp
}

// OtlpProvider builds an OTLP/HTTP span exporter. "" and "-" disable export.
func OtlpProvider(oURL string) (sdktrace.SpanExporter, error) {
	if oURL == "" || oURL == "-" {
		return nil, nil
	}

	otlpURL, err := url.ParseRequestURI(oURL)
	if err != nil {
		return nil, err
	}

	return otlptracehttp.New(context.Background(), // otlptracehttp.client.Start does nothing in a HTTP client
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(otlpURL.Host),
		otlptracehttp.WithURLPath(otlpURL.Path),
	)
}
