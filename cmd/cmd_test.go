package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/patlint/formatter"
	"github.com/gnolang/patlint/internal/types"
	"github.com/gnolang/patlint/lint"
)

const demoPath = "testdata/src/Demo.java"

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func demoConfig() lint.Config {
	config := lint.DefaultConfig()
	config.Rules = []string{"testdata/rules"}
	return config
}

func scanReport(t *testing.T, opts scanOptions) formatter.Report {
	t.Helper()
	opts.jsonOutput = true
	var out bytes.Buffer
	err := runScan(context.Background(), zap.NewNop(), &out, nil, demoConfig(), []string{"testdata/src"}, opts)
	if err != nil {
		require.ErrorIs(t, err, errFindings)
	}
	var report formatter.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	return report
}

func checkIDs(report formatter.Report) []string {
	ids := []string{}
	for _, r := range report.Results {
		ids = append(ids, r.CheckID)
	}
	return ids
}

func TestRunScanText(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	err := runScan(context.Background(), zap.NewNop(), &out, nil, demoConfig(), []string{demoPath}, scanOptions{})
	assert.ErrorIs(t, err, errFindings)

	text := out.String()
	assert.Contains(t, text, "error: n-plus-one-repository-call\n --> testdata/src/Demo.java:6:13\n")
	assert.Contains(t, text, "= orderRepository.findByUserId is called once per element of users\n")
	assert.Contains(t, text, "warning: empty-catch-block\n")
	assert.Contains(t, text, "2 findings (1 error, 1 warning, 0 info) in 1 files\n")
}

func TestRunScanJSON(t *testing.T) {
	t.Parallel()
	report := scanReport(t, scanOptions{})
	assert.Equal(t, []string{"n-plus-one-repository-call", "empty-catch-block"}, checkIDs(report))
	assert.Equal(t, 6, report.Results[0].Start.Line)
	assert.Equal(t, "orderRepository", report.Results[0].Extra.Metavars["$REPO"])
	assert.Empty(t, report.Errors)
}

func TestRunScanFilters(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		opts scanOptions
		want []string
	}{
		{"min severity", scanOptions{minSeverity: "error"}, []string{"n-plus-one-repository-call"}},
		{"ignored rule", scanOptions{ignoreRules: "n-plus-one-repository-call, other"}, []string{"empty-catch-block"}},
		{"diff", scanOptions{diffPath: "testdata/demo.diff"}, []string{"empty-catch-block"}},
		{"ignored path", scanOptions{ignorePaths: "Demo.java"}, []string{}},
		{"all mode", scanOptions{mode: "all", stepBudget: 5000}, []string{"n-plus-one-repository-call", "empty-catch-block"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, checkIDs(scanReport(t, tt.opts)))
		})
	}
}

func TestRunScanErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var out bytes.Buffer

	err := runScan(ctx, zap.NewNop(), &out, nil, lint.DefaultConfig(), []string{demoPath}, scanOptions{rules: []string{}})
	assert.ErrorContains(t, err, "no such file")

	noRules := lint.DefaultConfig()
	noRules.Rules = nil
	err = runScan(ctx, zap.NewNop(), &out, nil, noRules, []string{demoPath}, scanOptions{})
	assert.ErrorContains(t, err, "no rules")

	err = runScan(ctx, zap.NewNop(), &out, nil, demoConfig(), []string{demoPath}, scanOptions{mode: "sometimes"})
	assert.ErrorContains(t, err, "unknown match mode")

	err = runScan(ctx, zap.NewNop(), &out, nil, demoConfig(), []string{demoPath}, scanOptions{minSeverity: "LOUD"})
	assert.ErrorContains(t, err, "unknown severity")
}

func TestRunScanRejectedRules(t *testing.T) {
	t.Parallel()
	config := lint.DefaultConfig()
	config.Rules = []string{"testdata/broken.yaml"}

	var out bytes.Buffer
	err := runScan(context.Background(), zap.NewNop(), &out, nil, config, []string{demoPath}, scanOptions{jsonOutput: true})
	assert.ErrorIs(t, err, errFindings)

	var report formatter.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Empty(t, report.Results)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "ConfigurationError", report.Errors[0].Type)
}

func TestRunScanOutputAndMetrics(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	opts := scanOptions{
		jsonOutput:  true,
		outPath:     filepath.Join(dir, "results.json"),
		metricsPath: filepath.Join(dir, "metrics.prom"),
		cacheDir:    filepath.Join(dir, "cache"),
	}

	var out bytes.Buffer
	err := runScan(context.Background(), zap.NewNop(), &out, nil, demoConfig(), []string{demoPath}, opts)
	assert.ErrorIs(t, err, errFindings)
	assert.Empty(t, out.String())

	data, err := os.ReadFile(opts.outPath)
	require.NoError(t, err)
	var report formatter.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Len(t, report.Results, 2)

	metrics, err := os.ReadFile(opts.metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "patlint_files_scanned_total 1")

	assert.FileExists(t, filepath.Join(opts.cacheDir, "patlint_cache.gob"))
}

func TestRunMatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		pattern string
		regexes []string
		want    int
	}{
		{"plain", "$X.findByUserId(...)", nil, 1},
		{"regex keeps", "$X.$M(...)", []string{"$X=.*Repository"}, 1},
		{"regex rejects", "$X.findByUserId(...)", []string{"$X=.*Service"}, 0},
		{"no match", "System.exit(...)", nil, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			err := runMatch(context.Background(), zap.NewNop(), &out, nil, lint.DefaultConfig(), []string{demoPath},
				tt.pattern, "java", tt.regexes, scanOptions{jsonOutput: true})
			if tt.want > 0 {
				assert.ErrorIs(t, err, errFindings)
			} else {
				assert.NoError(t, err)
			}

			var report formatter.Report
			require.NoError(t, json.Unmarshal(out.Bytes(), &report))
			assert.Len(t, report.Results, tt.want)
			for _, r := range report.Results {
				assert.Equal(t, "INFO", r.Extra.Severity)
			}
		})
	}
}

func TestRunMatchErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var out bytes.Buffer

	err := runMatch(ctx, zap.NewNop(), &out, nil, lint.DefaultConfig(), []string{demoPath}, "foo(", "java", nil, scanOptions{})
	assert.ErrorIs(t, err, types.ErrCompile)

	err = runMatch(ctx, zap.NewNop(), &out, nil, lint.DefaultConfig(), []string{demoPath}, "foo()", "java", []string{"$X"}, scanOptions{})
	assert.ErrorContains(t, err, "want $X=regex")
}

func TestRunValidate(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	require.NoError(t, runValidate(&out, []string{"testdata/rules"}))
	assert.Equal(t, "3 rules loaded, 0 rejected\n", out.String())

	out.Reset()
	err := runValidate(&out, []string{"testdata/broken.yaml"})
	assert.ErrorIs(t, err, errFindings)
	assert.Contains(t, out.String(), `ConfigurationError: testdata/broken.yaml: rule "no-message": no message`)
	assert.Contains(t, out.String(), "1 rules loaded, 1 rejected\n")
}

func TestInitConfigurationFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "custom.yaml")

	got, err := initConfigurationFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	config, err := lint.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "patlint", config.Name)
	assert.Equal(t, "first", config.Mode)
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()
	config := demoConfig()
	config.IgnorePaths = []string{"vendor"}

	got := applyFlags(config, scanOptions{
		rules:       []string{"other"},
		stepBudget:  10,
		mode:        "all",
		workers:     3,
		ignorePaths: "build, ,gen",
	})
	assert.Equal(t, []string{"other"}, got.Rules)
	assert.Equal(t, 10, got.StepBudget)
	assert.Equal(t, "all", got.Mode)
	assert.Equal(t, 3, got.Workers)
	assert.Equal(t, []string{"vendor", "build", "gen"}, got.IgnorePaths)

	assert.Equal(t, config.Rules, applyFlags(config, scanOptions{}).Rules)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunScanWatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "W.java")
	require.NoError(t, os.WriteFile(path, []byte("class W {}\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- runScan(ctx, zap.NewNop(), out, nil, demoConfig(), []string{dir}, scanOptions{watch: true})
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "watching "+dir)
	}, 5*time.Second, 10*time.Millisecond)

	src := "class W {\n    void f() {\n        try { g(); } catch (Exception e) {}\n    }\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "warning: empty-catch-block")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
