package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/vidstash/vidstash"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Identity metrics
	AnonymousSessionsCreatedTotal metric.Int64Counter
	QuotaRejectionsTotal          metric.Int64Counter

	// Migration metrics
	MigrationsTotal      metric.Int64Counter
	MigrationErrorsTotal metric.Int64Counter
	VideosMigratedTotal  metric.Int64Counter

	// Sweeper metrics
	SessionsSweptTotal       metric.Int64Counter
	SweepItemFailuresTotal   metric.Int64Counter
	SweepDuration            metric.Float64Histogram
	VideosDeletedTotal       metric.Int64Counter
	UserSessionsExpiredTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Identity metrics
	m.AnonymousSessionsCreatedTotal, _ = meter.Int64Counter(
		"vidstash.sessions.anonymous.created.total",
		metric.WithDescription("Total number of anonymous sessions created"),
		metric.WithUnit("{session}"),
	)

	m.QuotaRejectionsTotal, _ = meter.Int64Counter(
		"vidstash.quota.rejections.total",
		metric.WithDescription("Total number of quota checks that found the session at its limit"),
		metric.WithUnit("{check}"),
	)

	// Migration metrics
	m.MigrationsTotal, _ = meter.Int64Counter(
		"vidstash.migrations.total",
		metric.WithDescription("Total number of completed session-to-user migrations"),
		metric.WithUnit("{migration}"),
	)

	m.MigrationErrorsTotal, _ = meter.Int64Counter(
		"vidstash.migrations.errors.total",
		metric.WithDescription("Total number of failed migration attempts"),
		metric.WithUnit("{error}"),
	)

	m.VideosMigratedTotal, _ = meter.Int64Counter(
		"vidstash.migrations.videos.total",
		metric.WithDescription("Total number of videos transferred to registered users"),
		metric.WithUnit("{video}"),
	)

	// Sweeper metrics
	m.SessionsSweptTotal, _ = meter.Int64Counter(
		"vidstash.sweeper.sessions.total",
		metric.WithDescription("Total number of expired anonymous sessions reclaimed"),
		metric.WithUnit("{session}"),
	)

	m.SweepItemFailuresTotal, _ = meter.Int64Counter(
		"vidstash.sweeper.item_failures.total",
		metric.WithDescription("Total number of sessions skipped during sweeps due to errors"),
		metric.WithUnit("{session}"),
	)

	m.SweepDuration, _ = meter.Float64Histogram(
		"vidstash.sweeper.duration",
		metric.WithDescription("Duration of sweep passes"),
		metric.WithUnit("ms"),
	)

	m.VideosDeletedTotal, _ = meter.Int64Counter(
		"vidstash.sweeper.videos.total",
		metric.WithDescription("Total number of videos deleted by the sweeper"),
		metric.WithUnit("{video}"),
	)

	m.UserSessionsExpiredTotal, _ = meter.Int64Counter(
		"vidstash.sessions.user.expired.total",
		metric.WithDescription("Total number of expired user sessions cleaned up"),
		metric.WithUnit("{session}"),
	)

	return m
}
