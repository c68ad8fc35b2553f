// Package metrics records aggregation measurements with OpenCensus and
// exposes them to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/GabrielNunesIT/go-libs/logger"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// DefaultPrefix is the Prometheus namespace used when none is configured.
const DefaultPrefix = "openapi_aggregator"

// Outcome tag values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	documentTagKey, _ = tag.NewKey("document")
	clusterTagKey, _  = tag.NewKey("cluster")
	outcomeTagKey, _  = tag.NewKey("outcome")

	aggregationMeasure = stats.Int64("aggregations", "Number of document aggregations", stats.UnitDimensionless)
	latencyMeasure     = stats.Float64("aggregation_latency", "Time taken to aggregate a document", stats.UnitMilliseconds)
	pathsMeasure       = stats.Int64("merged_paths", "Number of paths in the last aggregated document", stats.UnitDimensionless)
	fetchMeasure       = stats.Int64("fetches", "Number of source documents fetched", stats.UnitDimensionless)
	reloadMeasure      = stats.Int64("config_reloads", "Number of proxy configuration reloads", stats.UnitDimensionless)

	aggregationView = &view.View{
		Measure:     aggregationMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{documentTagKey, outcomeTagKey},
	}
	latencyView = &view.View{
		Measure:     latencyMeasure,
		Aggregation: view.Distribution(5, 25, 100, 250, 1000, 2500, 10000),
		TagKeys:     []tag.Key{documentTagKey},
	}
	pathsView = &view.View{
		Measure:     pathsMeasure,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{documentTagKey},
	}
	fetchView = &view.View{
		Measure:     fetchMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{clusterTagKey, outcomeTagKey},
	}
	reloadView = &view.View{
		Measure:     reloadMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{outcomeTagKey},
	}

	registerViewsOnce sync.Once
	errRegisterViews  error

	invalidTagChars = regexp.MustCompile(`[^[:ascii:]]|[^[:print:]]`)
)

// RegisterViews registers the aggregation views. Only the first call has any effect.
func RegisterViews() error {
	registerViewsOnce.Do(func() {
		errRegisterViews = view.Register(aggregationView, latencyView, pathsView, fetchView, reloadView)
	})
	return errRegisterViews
}

// NewPrometheusHandler registers the views and returns the scrape handler.
func NewPrometheusHandler(prefix string, log logger.ILogger) (http.Handler, error) {
	if err := RegisterViews(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	exporter, err := prometheus.NewExporter(prometheus.Options{
		Namespace: prefix,
		OnError: func(err error) {
			log.Errorf("Prometheus exporter error: %v", err)
		},
	})
	if err != nil {
		return nil, err
	}
	return exporter, nil
}

// UnknownDocument is the document tag value for names the configuration
// cannot produce.
const UnknownDocument = "_unknown"

// RecordAggregation records one aggregation of document.
func RecordAggregation(ctx context.Context, document string, err error, elapsed time.Duration, paths int) {
	ctx, tagErr := tag.New(ctx,
		tag.Upsert(documentTagKey, sanitizeTagValue(document)),
		tag.Upsert(outcomeTagKey, outcome(err)))
	if tagErr != nil {
		return
	}

	stats.Record(ctx,
		aggregationMeasure.M(1),
		latencyMeasure.M(float64(elapsed)/float64(time.Millisecond)))
	if err == nil {
		stats.Record(ctx, pathsMeasure.M(int64(paths)))
	}
}

// RecordFetch records one source document fetch for cluster.
func RecordFetch(ctx context.Context, cluster string, err error) {
	ctx, tagErr := tag.New(ctx,
		tag.Upsert(clusterTagKey, sanitizeTagValue(cluster)),
		tag.Upsert(outcomeTagKey, outcome(err)))
	if tagErr != nil {
		return
	}
	stats.Record(ctx, fetchMeasure.M(1))
}

// RecordReload records one proxy configuration reload attempt.
func RecordReload(ctx context.Context, err error) {
	ctx, tagErr := tag.New(ctx, tag.Upsert(outcomeTagKey, outcome(err)))
	if tagErr != nil {
		return
	}
	stats.Record(ctx, reloadMeasure.M(1))
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// Tag values must be printable ASCII of at most 255 characters.
func sanitizeTagValue(v string) string {
	if v == "" {
		return "_"
	}
	v = invalidTagChars.ReplaceAllString(v, "_")
	if len(v) > 255 {
		v = v[:255]
	}
	return v
}
