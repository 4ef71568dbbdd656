package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushMetrics sends the default registry's metrics to a Pushgateway. A batch
// run has no scrape window, so metrics are pushed once at the end of the run;
// a push failure is logged and returned but never fails the pipeline itself.
func PushMetrics(gatewayURL, job string, logger *slog.Logger) error {
	err := push.New(gatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		Push()
	if err != nil {
		logger.Error("metrics push failed", "gateway", gatewayURL, "error", err)
		return err
	}
	logger.Info("metrics pushed", "gateway", gatewayURL, "job", job)
	return nil
}
