package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/shrimpsizemoose/lussekatt/internal/app"
)

// pushMetrics ships the run's counters to a pushgateway, when one is
// configured. A cron bot has no long-lived process to scrape, so push is the
// only way the numbers leave the box.
func pushMetrics(config *app.Config) error {
	if config.Metrics.PushgatewayURL == "" {
		return nil
	}
	return push.New(config.Metrics.PushgatewayURL, "gitbot").
		Gatherer(prometheus.DefaultGatherer).
		Push()
}
