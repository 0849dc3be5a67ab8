package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScrapeMetrics renders the default registry in the text exposition format.
func ScrapeMetrics(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics handler returned status %d", rec.Code)
	}
	return rec.Body.String()
}

// MetricValue finds the sample of metricName whose labels include all of
// labels. A missing sample reads as zero, which is what a counter that was
// never incremented reports.
func MetricValue(metrics, metricName string, labels map[string]string) float64 {
	for _, line := range strings.Split(metrics, "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, rest, ok := cutMetricName(line)
		if !ok || name != metricName {
			continue
		}

		got := map[string]string{}
		if strings.HasPrefix(rest, "{") {
			end := strings.Index(rest, "}")
			if end < 0 {
				continue
			}
			for _, pair := range strings.Split(rest[1:end], ",") {
				if k, v, ok := strings.Cut(pair, "="); ok {
					got[strings.TrimSpace(k)] = strings.Trim(v, `"`)
				}
			}
			rest = rest[end+1:]
		}
		if !labelsMatch(got, labels) {
			continue
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			continue
		}
		return value
	}
	return 0
}

func cutMetricName(line string) (string, string, bool) {
	i := strings.IndexAny(line, "{ ")
	if i <= 0 {
		return "", "", false
	}
	return line[:i], line[i:], true
}

func labelsMatch(got, want map[string]string) bool {
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// AssertMetricExists asserts that a metric family is present in the output.
func AssertMetricExists(t *testing.T, metrics, metricName string) {
	t.Helper()
	if !strings.Contains(metrics, "# TYPE "+metricName+" ") {
		t.Fatalf("metric %q does not exist", metricName)
	}
}

// AssertMetricIncremented asserts that a sample grew between two scrapes.
func AssertMetricIncremented(t *testing.T, before, after, metricName string, labels map[string]string) {
	t.Helper()
	b := MetricValue(before, metricName, labels)
	a := MetricValue(after, metricName, labels)
	if a <= b {
		t.Errorf("metric %q%v did not increment: before=%v, after=%v", metricName, labels, b, a)
	}
}
