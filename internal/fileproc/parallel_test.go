package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/panbanda/augur/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFiles(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	files := make([]string, n)
	for i := range files {
		files[i] = filepath.Join(dir, fmt.Sprintf("file%02d.py", i))
		require.NoError(t, os.WriteFile(files[i], []byte(fmt.Sprintf("def f%d():\n    return %d\n", i, i)), 0o644))
	}
	return files
}

func TestMapFilesPreservesInputOrder(t *testing.T) {
	files := createTestFiles(t, 20)

	var progress atomic.Int32
	results, errs := MapFiles(context.Background(), files, Options{Workers: 4, OnProgress: func() { progress.Add(1) }},
		func(p *parser.Parser, path string) (string, error) {
			f, err := p.LowerFile(path)
			if err != nil {
				return "", err
			}
			if len(f.Definitions) != 1 {
				return "", fmt.Errorf("%s: %d definitions", path, len(f.Definitions))
			}
			return f.Definitions[0].Name, nil
		})

	assert.Nil(t, errs)
	require.Len(t, results, 20)
	for i, name := range results {
		assert.Equal(t, fmt.Sprintf("f%d", i), name)
	}
	assert.Equal(t, int32(20), progress.Load())
}

func TestMapFilesCollectsErrors(t *testing.T) {
	files := createTestFiles(t, 6)
	boom := errors.New("boom")

	results, errs := MapFiles(context.Background(), files, Options{}, func(_ *parser.Parser, path string) (string, error) {
		if strings.HasSuffix(path, "1.py") || strings.HasSuffix(path, "4.py") {
			return "", boom
		}
		return filepath.Base(path), nil
	})

	assert.Equal(t, []string{"file00.py", "file02.py", "file03.py", "file05.py"}, results)
	require.True(t, errs.HasErrors())
	require.Equal(t, 2, errs.Len())
	assert.Equal(t, files[1], errs.Errors[0].Path)
	assert.Equal(t, files[4], errs.Errors[1].Path)
	assert.ErrorIs(t, errs.Errors[0], boom)
	assert.Contains(t, errs.Error(), "2 files failed")
}

func TestMapFilesCancelled(t *testing.T) {
	files := createTestFiles(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results, errs := MapFiles(ctx, files, Options{Workers: 1}, func(*parser.Parser, string) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	assert.Empty(t, results)
	assert.Equal(t, int32(0), calls.Load())
	require.Equal(t, 5, errs.Len())
	assert.ErrorIs(t, errs.Errors[0], context.Canceled)
}

func TestMapFilesEmpty(t *testing.T) {
	results, errs := MapFiles(context.Background(), nil, Options{}, func(*parser.Parser, string) (int, error) {
		t.Fatal("fn called for empty input")
		return 0, nil
	})
	assert.Nil(t, results)
	assert.Nil(t, errs)
	assert.False(t, errs.HasErrors())
}

func TestProcessingErrorsSingle(t *testing.T) {
	errs := &ProcessingErrors{}
	assert.Equal(t, "no errors", errs.Error())
	errs.Add("a.py", errors.New("bad"))
	assert.Equal(t, "a.py: bad", errs.Error())
}
