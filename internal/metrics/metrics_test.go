package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discuit_search/internal/domain"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) []*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestRecordBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBatch("add", 2500, nil)
	c.RecordBatch("add", 100, nil)
	c.RecordBatch("add", 2500, errors.New("task failed"))
	c.RecordBatch("delete", 3, nil)

	batches := map[string]float64{}
	for _, m := range gather(t, reg, "discuit_search_batches_total") {
		batches[labelValue(m, "operation")+"/"+labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"add/ok": 2, "add/failed": 1, "delete/ok": 1}, batches)

	applied := map[string]float64{}
	for _, m := range gather(t, reg, "discuit_search_items_applied_total") {
		applied[labelValue(m, "operation")] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"add": 2600, "delete": 3}, applied)
}

func TestRecordFlush(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEvent()
	c.RecordEvent()
	c.RecordFlush(domain.FlushStats{Drained: 10, Inserted: 7, Indexed: 7}, nil)
	c.RecordFlush(domain.FlushStats{Drained: 2, Inserted: 2}, errors.New("index down"))

	assert.Equal(t, float64(2), gather(t, reg, "discuit_search_events_received_total")[0].GetCounter().GetValue())
	assert.Equal(t, float64(3), gather(t, reg, "discuit_search_duplicates_skipped_total")[0].GetCounter().GetValue())
	assert.Equal(t, float64(7), gather(t, reg, "discuit_search_ingested_posts_indexed_total")[0].GetCounter().GetValue())

	flushes := map[string]float64{}
	for _, m := range gather(t, reg, "discuit_search_flushes_total") {
		flushes[labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"ok": 1, "failed": 1}, flushes)
}

func TestRecordFlush_FailedInsertIsNotDuplicates(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFlush(domain.FlushStats{Drained: 10}, errors.New("database is locked"))

	assert.Equal(t, float64(0), gather(t, reg, "discuit_search_duplicates_skipped_total")[0].GetCounter().GetValue())
	assert.Equal(t, "failed", labelValue(gather(t, reg, "discuit_search_flushes_total")[0], "outcome"))
}

func TestObserveReconcileAndBackfill(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveReconcile(90 * time.Second)
	c.RecordBackfill(50)

	h := gather(t, reg, "discuit_search_reconcile_duration_seconds")[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount())
	assert.Equal(t, float64(90), h.GetSampleSum())
	assert.Equal(t, float64(50), gather(t, reg, "discuit_search_backfilled_posts_total")[0].GetCounter().GetValue())
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordEvent()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "discuit_search_events_received_total 1")
}
