package service

import (
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	revdomain "blog-platform/backend/internal/revocation/domain"
)

type metrics struct {
	logins    metric.Int64Counter
	refreshes metric.Int64Counter
	reuse     metric.Int64Counter
	revoked   metric.Int64Counter
}

func newMetrics(meter metric.Meter, log *slog.Logger) *metrics {
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			log.Warn("metrics: counter unavailable", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}
	return &metrics{
		logins:    counter("session.logins", "Sessions opened"),
		refreshes: counter("session.refreshes", "Refresh attempts by outcome"),
		reuse:     counter("session.reuse_detected", "Refresh tokens presented after rotation or revocation"),
		revoked:   counter("session.revoked", "Sessions ended by reason"),
	}
}

func outcome(v string) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", v))
}

func reason(r revdomain.Reason) metric.AddOption {
	return metric.WithAttributes(attribute.String("reason", string(r)))
}
