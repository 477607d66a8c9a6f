/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
)

// maxResponseBodySize caps the response body captured on error spans.
const maxResponseBodySize = 4096

// responseBodyWriter wraps gin.ResponseWriter to capture the response body
// and inject the trace id header on error responses.
type responseBodyWriter struct {
	gin.ResponseWriter
	body           *bytes.Buffer
	traceId        string
	headerInjected bool
}

func (w *responseBodyWriter) WriteHeader(code int) {
	if !w.headerInjected && code >= http.StatusBadRequest && w.traceId != "" {
		w.Header().Set("X-Trace-Id", w.traceId)
		w.headerInjected = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	if w.body.Len() < maxResponseBodySize {
		remaining := maxResponseBodySize - w.body.Len()
		if len(b) <= remaining {
			w.body.Write(b)
		} else {
			w.body.Write(b[:remaining])
		}
	}
	return w.ResponseWriter.Write(b)
}

// HandleTracing records spans only for failed requests (status >= 400) to
// keep tracing overhead off the hot path.
func HandleTracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.IsTracingEnable() {
			c.Next()
			return
		}

		startTime := time.Now()
		ctx := c.Request.Context()
		propagator := otel.GetTextMapPropagator()
		ctx = propagator.Extract(ctx, &httpHeaderCarrier{header: c.Request.Header})

		operationName := c.Request.Method + " " + c.Request.URL.Path
		tracer := otel.Tracer("primus-store-apiserver")
		ctx, span := tracer.Start(ctx, operationName,
			oteltrace.WithSpanKind(oteltrace.SpanKindServer),
			oteltrace.WithTimestamp(startTime),
		)
		defer span.End()

		traceId := span.SpanContext().TraceID().String()
		bodyWriter := &responseBodyWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBufferString(""),
			traceId:        traceId,
		}
		c.Writer = bodyWriter
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		duration := time.Since(startTime)
		span.SetAttributes(
			semconv.HTTPMethod(c.Request.Method),
			semconv.HTTPURL(c.Request.URL.String()),
			semconv.HTTPRoute(c.FullPath()),
			semconv.HTTPStatusCode(statusCode),
			attribute.String("component", "gin-http"),
			attribute.Float64("http.duration_ms", float64(duration.Milliseconds())),
			attribute.String("request.id", GetRequestId(c)),
		)

		responseBody := bodyWriter.body.String()
		if responseBody != "" {
			span.SetAttributes(attribute.String("http.response.body", responseBody))
		}
		span.SetStatus(codes.Error, "HTTP error: "+responseBody)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				span.SetAttributes(attribute.String("gin.error."+strconv.Itoa(i), err.Error()))
			}
			span.RecordError(c.Errors.Last())
		}
	}
}

// httpHeaderCarrier adapts http.Header to propagation.TextMapCarrier.
type httpHeaderCarrier struct {
	header http.Header
}

func (h *httpHeaderCarrier) Get(key string) string {
	return h.header.Get(key)
}

func (h *httpHeaderCarrier) Set(key, val string) {
	h.header.Set(key, val)
}

func (h *httpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(h.header))
	for k := range h.header {
		keys = append(keys, k)
	}
	return keys
}
