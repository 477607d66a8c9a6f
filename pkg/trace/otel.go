// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package trace

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
)

var tracerProvider *sdktrace.TracerProvider

// InitTracer initializes the OpenTelemetry tracer for the service. In
// error_only mode (the default) spans are exported only when they end with
// an error status. The caller treats a failure here as a warning: the
// service runs without a collector.
func InitTracer(serviceName string) error {
	endpoint := config.GetTracingOtlpEndpoint()
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	mode := config.GetTracingMode()
	samplingRatio := config.GetTracingSamplingRatio()
	klog.Infof("Starting tracer initialization for service: %s, endpoint: %s, mode: %s", serviceName, endpoint, mode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if mode == "all" {
		var sampler sdktrace.Sampler
		switch {
		case samplingRatio >= 1.0:
			sampler = sdktrace.AlwaysSample()
		case samplingRatio <= 0:
			sampler = sdktrace.NeverSample()
		default:
			sampler = sdktrace.TraceIDRatioBased(samplingRatio)
		}
		providerOpts = append(providerOpts,
			sdktrace.WithSampler(sampler),
			sdktrace.WithBatcher(exporter),
		)
	} else {
		providerOpts = append(providerOpts,
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithSpanProcessor(newErrorOnlySpanProcessor(exporter)),
		)
	}

	tracerProvider = sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	klog.Infof("Tracer initialized: service=%s, endpoint=%s, mode=%s", serviceName, endpoint, mode)
	return nil
}

// CloseTracer closes the tracer and flushes all pending spans.
func CloseTracer() error {
	if tracerProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tracerProvider.Shutdown(ctx); err != nil {
		klog.Errorf("Failed to shutdown tracer provider: %v", err)
		return err
	}
	return nil
}

// errorOnlySpanProcessor forwards only spans that ended with an error status
// to the wrapped batch processor.
type errorOnlySpanProcessor struct {
	inner sdktrace.SpanProcessor
}

func newErrorOnlySpanProcessor(exporter sdktrace.SpanExporter) sdktrace.SpanProcessor {
	return &errorOnlySpanProcessor{inner: sdktrace.NewBatchSpanProcessor(exporter)}
}

func (p *errorOnlySpanProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	p.inner.OnStart(parent, s)
}

func (p *errorOnlySpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if s.Status().Code == codes.Error {
		p.inner.OnEnd(s)
	}
}

func (p *errorOnlySpanProcessor) Shutdown(ctx context.Context) error {
	return p.inner.Shutdown(ctx)
}

func (p *errorOnlySpanProcessor) ForceFlush(ctx context.Context) error {
	return p.inner.ForceFlush(ctx)
}

// StartSpan creates a new span from context.
// If there is already a span in context, the new span will be its child span.
func StartSpan(ctx context.Context, operationName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tracer := otel.Tracer("")
	return tracer.Start(ctx, operationName, opts...)
}

// RecordError records an error to the span in context.
func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() && err != nil {
		span.RecordError(err, opts...)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetAttributes sets span attributes.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// GetTraceID gets the current trace ID.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
