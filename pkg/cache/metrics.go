// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for cache operations.
var (
	tracer = otel.Tracer("pdasync.cache")
	meter  = otel.Meter("pdasync.cache")
)

// Prometheus counters for cache behavior, scrapeable by embedding hosts.
var (
	promCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdasync_cache_hits_total",
		Help: "Reads served from a fresh cache entry without a network call",
	})

	promCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdasync_cache_misses_total",
		Help: "Reads that triggered a fetch (absent, stale, or expired entry)",
	})
)

// OTel instruments, initialized lazily.
var (
	otelCacheHits   metric.Int64Counter
	otelCacheMisses metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the otel instruments. Safe to call repeatedly.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		otelCacheHits, err = meter.Int64Counter(
			"cache_hits_total",
			metric.WithDescription("Total number of cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		otelCacheMisses, err = meter.Int64Counter(
			"cache_misses_total",
			metric.WithDescription("Total number of cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordHit records a cache hit.
func recordHit(ctx context.Context) {
	promCacheHits.Inc()
	if err := initMetrics(); err != nil {
		return
	}
	otelCacheHits.Add(ctx, 1)
}

// recordMiss records a cache miss.
func recordMiss(ctx context.Context) {
	promCacheMisses.Inc()
	if err := initMetrics(); err != nil {
		return
	}
	otelCacheMisses.Add(ctx, 1)
}

// startCacheSpan creates a span for a cache operation.
func startCacheSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Store."+operation,
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("cache.key", key),
		),
	)
}

// setCacheSpanHit sets the result attribute on a cache span.
func setCacheSpanHit(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
}
