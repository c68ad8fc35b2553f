package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// countFor returns the count recorded in viewName for the row carrying all tags.
func countFor(viewName string, tags map[tag.Key]string) int64 {
	rows, err := view.RetrieveData(viewName)
	if err != nil {
		return -1
	}

rows:
	for _, row := range rows {
		for key, value := range tags {
			found := false
			for _, tg := range row.Tags {
				if tg.Key == key && tg.Value == value {
					found = true
					break
				}
			}
			if !found {
				continue rows
			}
		}
		if data, ok := row.Data.(*view.CountData); ok {
			return data.Value
		}
	}
	return 0
}

func TestRecordAggregation(t *testing.T) {
	require.NoError(t, RegisterViews())

	// Views are global, so each test uses its own document name.
	RecordAggregation(context.Background(), "metrics-agg", nil, 12*time.Millisecond, 3)
	RecordAggregation(context.Background(), "metrics-agg", nil, 8*time.Millisecond, 4)
	RecordAggregation(context.Background(), "metrics-agg", errors.New("boom"), time.Millisecond, 0)

	require.Eventually(t, func() bool {
		return countFor(aggregationMeasure.Name(), map[tag.Key]string{
			documentTagKey: "metrics-agg", outcomeTagKey: OutcomeSuccess,
		}) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), countFor(aggregationMeasure.Name(), map[tag.Key]string{
		documentTagKey: "metrics-agg", outcomeTagKey: OutcomeFailure,
	}))

	rows, err := view.RetrieveData(pathsMeasure.Name())
	require.NoError(t, err)
	var last float64
	for _, row := range rows {
		if len(row.Tags) == 1 && row.Tags[0].Value == "metrics-agg" {
			last = row.Data.(*view.LastValueData).Value
		}
	}
	assert.Equal(t, float64(4), last)
}

func TestRecordFetchAndReload(t *testing.T) {
	require.NoError(t, RegisterViews())

	RecordFetch(context.Background(), "metrics-fetch", nil)
	RecordFetch(context.Background(), "metrics-fetch", errors.New("unreachable"))
	RecordReload(context.Background(), nil)

	require.Eventually(t, func() bool {
		return countFor(fetchMeasure.Name(), map[tag.Key]string{
			clusterTagKey: "metrics-fetch", outcomeTagKey: OutcomeFailure,
		}) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), countFor(fetchMeasure.Name(), map[tag.Key]string{
		clusterTagKey: "metrics-fetch", outcomeTagKey: OutcomeSuccess,
	}))
	assert.GreaterOrEqual(t, countFor(reloadMeasure.Name(), map[tag.Key]string{outcomeTagKey: OutcomeSuccess}), int64(1))
}

func TestPrometheusHandler(t *testing.T) {
	handler, err := NewPrometheusHandler("test_aggregator", logger.NewConsoleLogger(io.Discard))
	require.NoError(t, err)

	RecordAggregation(context.Background(), "metrics-prom", nil, time.Millisecond, 1)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		body := rec.Body.String()
		return rec.Code == http.StatusOK &&
			strings.Contains(body, "test_aggregator_aggregations") &&
			strings.Contains(body, `document="metrics-prom"`)
	}, time.Second, 10*time.Millisecond)
}

func TestSanitizeTagValue(t *testing.T) {
	assert.Equal(t, "_", sanitizeTagValue(""))
	assert.Equal(t, "billing", sanitizeTagValue("billing"))
	assert.Equal(t, "caf_", sanitizeTagValue("café"))
}
