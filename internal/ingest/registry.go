package ingest

import (
	"sort"

	"github.com/xiaolong-y/meridian/pkg/connector"
)

// Registry maps source tags to connectors. It is built once at startup
// and passed by reference; there is no hidden global connector cache.
type Registry struct {
	metrics map[string]connector.MetricConnector
	feeds   map[string]connector.FeedConnector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]connector.MetricConnector),
		feeds:   make(map[string]connector.FeedConnector),
	}
}

// RegisterMetric adds a metric connector under its source tag.
func (r *Registry) RegisterMetric(c connector.MetricConnector) {
	r.metrics[c.Source()] = c
}

// RegisterFeed adds a feed connector under its source tag.
func (r *Registry) RegisterFeed(c connector.FeedConnector) {
	r.feeds[c.Source()] = c
}

// Metric returns the connector for a source tag, or nil.
func (r *Registry) Metric(source string) connector.MetricConnector {
	return r.metrics[source]
}

// Feed returns the connector for a source tag, or nil.
func (r *Registry) Feed(source string) connector.FeedConnector {
	return r.feeds[source]
}

// Connectors returns every registered connector keyed by source tag,
// in sorted tag order. Used by the health command.
func (r *Registry) Connectors() []NamedConnector {
	var out []NamedConnector
	for tag, c := range r.metrics {
		out = append(out, NamedConnector{Source: tag, Kind: "metric", Connector: c})
	}
	for tag, c := range r.feeds {
		out = append(out, NamedConnector{Source: tag, Kind: "feed", Connector: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// NamedConnector pairs a connector with its registry tag.
type NamedConnector struct {
	Source    string
	Kind      string
	Connector any
}
