package lint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnolang/patlint/internal/tree"
	"github.com/gnolang/patlint/internal/types"
)

type mockLintEngine struct {
	mock.Mock
}

func (m *mockLintEngine) Run(ctx context.Context, filePath string) (types.FileResult, error) {
	args := m.Called(ctx, filePath)
	return args.Get(0).(types.FileResult), args.Error(1)
}

func (m *mockLintEngine) RunSource(ctx context.Context, filePath string, source []byte) (types.FileResult, error) {
	args := m.Called(ctx, filePath, source)
	return args.Get(0).(types.FileResult), args.Error(1)
}

func (m *mockLintEngine) IgnoreRule(rule string) {
	m.Called(rule)
}

func finding(rule, path string, line int) types.Finding {
	return types.Finding{
		Rule:     rule,
		Path:     path,
		Severity: types.SeverityWarning,
		Message:  "Test issue",
		Span: tree.Span{
			Start: tree.Pos{Line: line, Column: 1, Offset: line * 100},
			End:   tree.Pos{Line: line, Column: 11, Offset: line*100 + 10},
		},
	}
}

func createTempFiles(t *testing.T, dir string, fileNames ...string) []string {
	t.Helper()
	var paths []string
	for _, fileName := range fileNames {
		path := filepath.Join(dir, fileName)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("class T {}\n"), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func TestProcessFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	expected := types.FileResult{Path: "T.java", Findings: []types.Finding{finding("test-rule", "T.java", 1)}}

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", ctx, "T.java").Return(expected, nil)

	res, err := ProcessFile(ctx, mockEngine, "T.java")

	assert.NoError(t, err)
	assert.Equal(t, expected, res)
	mockEngine.AssertExpectations(t)
}

func TestProcessPath(t *testing.T) {
	t.Parallel()
	logger, _ := zap.NewProduction()
	tempDir := t.TempDir()

	paths := createTempFiles(t, tempDir, "b/Two.java", "a/One.java", "notes.txt", "generated/Gen.java")

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", mock.Anything, paths[0]).
		Return(types.FileResult{Path: paths[0], Findings: []types.Finding{finding("rule2", paths[0], 1)}}, nil)
	mockEngine.On("Run", mock.Anything, paths[1]).
		Return(types.FileResult{Path: paths[1], Findings: []types.Finding{finding("rule1", paths[1], 1)}}, nil)

	results, err := ProcessPath(context.Background(), logger, mockEngine, tempDir, ProcessOptions{Ignore: []string{"generated"}, Workers: 2})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, paths[1], results[0].Path, "results are ordered by path")
	assert.Equal(t, paths[0], results[1].Path)
	mockEngine.AssertExpectations(t)
	mockEngine.AssertNotCalled(t, "Run", mock.Anything, paths[3])
}

func TestProcessFiles(t *testing.T) {
	t.Parallel()
	logger, _ := zap.NewProduction()
	tempDir := t.TempDir()

	paths := createTempFiles(t, tempDir, "One.java", "Two.java")

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", mock.Anything, paths[0]).
		Return(types.FileResult{Path: paths[0], Findings: []types.Finding{finding("rule1", paths[0], 1)}}, nil)
	mockEngine.On("Run", mock.Anything, paths[1]).
		Return(types.FileResult{Path: paths[1]}, errors.New("disk on fire"))

	results, err := ProcessFiles(context.Background(), logger, mockEngine, paths, ProcessOptions{})

	require.NoError(t, err, "a failing file does not stop the scan")
	require.Len(t, results, 2)
	assert.Len(t, results[0].Findings, 1)
	require.Len(t, results[1].Errors, 1)
	assert.EqualError(t, results[1].Errors[0], "disk on fire")
	mockEngine.AssertExpectations(t)
}

func TestProcessPathSkipsUnknownFiles(t *testing.T) {
	t.Parallel()
	paths := createTempFiles(t, t.TempDir(), "README.md")

	mockEngine := new(mockLintEngine)
	results, err := ProcessPath(context.Background(), nil, mockEngine, paths[0], ProcessOptions{})

	assert.NoError(t, err)
	assert.Empty(t, results)
	mockEngine.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestProcessPathMissing(t *testing.T) {
	t.Parallel()
	_, err := ProcessPath(context.Background(), nil, new(mockLintEngine), filepath.Join(t.TempDir(), "nope"), ProcessOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcessPathContextCancellation(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	createTempFiles(t, tempDir, "A.java", "B.java", "C.java")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", mock.Anything, mock.Anything).Return(types.FileResult{}, context.Canceled)

	_, err := ProcessPath(ctx, nil, mockEngine, tempDir, ProcessOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollect(t *testing.T) {
	t.Parallel()
	parseErr := &types.ParseError{Path: "c.java", Err: errors.New("bad")}
	results := []types.FileResult{
		{Path: "b.java", Findings: []types.Finding{finding("r", "b.java", 4)}},
		{
			Path:     "a.java",
			Findings: []types.Finding{finding("r", "a.java", 9), finding("q", "a.java", 2)},
			Timeouts: []types.Timeout{{Rule: "r", Path: "a.java", Span: tree.Span{Start: tree.Pos{Line: 5}}}},
		},
		{Path: "c.java", Errors: []error{parseErr}},
	}

	findings, timeouts, errs := Collect(results)

	require.Len(t, findings, 3)
	assert.Equal(t, "a.java", findings[0].Path)
	assert.Equal(t, 2, findings[0].Span.Start.Line)
	assert.Equal(t, 9, findings[1].Span.Start.Line)
	assert.Equal(t, "b.java", findings[2].Path)
	assert.Len(t, timeouts, 1)
	assert.Equal(t, []error{parseErr}, errs)
}

func TestFilterSeverity(t *testing.T) {
	t.Parallel()
	info := finding("i", "a.java", 1)
	info.Severity = types.SeverityInfo
	warn := finding("w", "a.java", 2)
	errFinding := finding("e", "a.java", 3)
	errFinding.Severity = types.SeverityError

	all := []types.Finding{info, warn, errFinding}
	assert.Equal(t, []types.Finding{warn, errFinding}, FilterSeverity(all, types.SeverityWarning))
	assert.Equal(t, all, FilterSeverity(all, types.SeverityInfo))
}
