// Package metrics exposes the Prometheus metrics of the Atlassian clients.
// The metrics themselves are defined with promauto in pkg/client and
// pkg/ratelimit; this package documents them and writes them out for tools
// without an HTTP endpoint.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Prefix is shared by every metric of the Atlassian clients.
const Prefix = "atlassian_"

// Registry is the registerer the clients' metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Dump writes every metric family from g whose name starts with prefix in
// the Prometheus text exposition format. An empty prefix writes all of them.
func Dump(w io.Writer, g prometheus.Gatherer, prefix string) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), prefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return fmt.Errorf("write metric %s: %w", family.GetName(), err)
		}
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - atlassian_requests_total{method, endpoint, status} (Counter): Requests by method, path and HTTP status
//   - atlassian_request_duration_seconds{method} (Histogram): Request duration by method
//   - atlassian_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - atlassian_throttle_wait_seconds (Histogram): Time spent in the client-side rate limiter
//
// Server Back-off Metrics (pkg/ratelimit):
//   - atlassian_rate_limited_total (Counter): 429 responses received
//   - atlassian_rate_limit_blocks_total (Counter): Requests refused because the back-off exceeded the maximum wait
//   - atlassian_rate_limit_wait_seconds (Histogram): Time spent waiting out a server back-off
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(atlassian_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(atlassian_request_duration_seconds_bucket[5m]))
//
//   # Pages fetched from one listing
//   sum by (endpoint) (rate(atlassian_requests_total{method="GET"}[5m]))
