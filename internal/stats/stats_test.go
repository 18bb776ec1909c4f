package stats

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(t *testing.T, s *Stats, name, rule string) float64 {
	t.Helper()
	families, err := s.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := m.GetLabel()
			if rule == "" && len(labels) == 0 {
				return m.GetCounter().GetValue()
			}
			for _, l := range labels {
				if l.GetName() == "rule" && l.GetValue() == rule {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCounters(t *testing.T) {
	t.Parallel()

	s := New()
	s.FileScanned()
	s.FileScanned()
	s.ParseError()
	s.RuleDone("empty-catch-block", 10, 1, 2, 0)
	s.RuleDone("empty-catch-block", 5, 0, 1, 0)
	s.RuleDone("other", 3, 0, 0, 1)

	assert.Equal(t, 2.0, counter(t, s, "patlint_files_scanned_total", ""))
	assert.Equal(t, 1.0, counter(t, s, "patlint_parse_errors_total", ""))
	assert.Equal(t, 15.0, counter(t, s, "patlint_anchors_tried_total", "empty-catch-block"))
	assert.Equal(t, 1.0, counter(t, s, "patlint_match_timeouts_total", "empty-catch-block"))
	assert.Equal(t, 3.0, counter(t, s, "patlint_findings_total", "empty-catch-block"))
	assert.Equal(t, 1.0, counter(t, s, "patlint_rule_errors_total", "other"))
}

func TestNilStats(t *testing.T) {
	t.Parallel()

	var s *Stats
	assert.NotPanics(t, func() {
		s.FileScanned()
		s.ParseError()
		s.RuleDone("r", 1, 1, 1, 1)
	})
}

func TestWriteFileAndHandler(t *testing.T) {
	t.Parallel()

	s := New()
	s.RuleDone("r", 4, 0, 1, 0)

	path := filepath.Join(t.TempDir(), "patlint.prom")
	require.NoError(t, s.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `patlint_anchors_tried_total{rule="r"} 4`)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `patlint_findings_total{rule="r"} 1`)
}
