package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func rels(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestScanFindsSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":              "package main\n",
		"pkg/util.py":          "def f(): pass\n",
		"web/app.ts":           "export {}\n",
		"README.md":            "# readme\n",
		"node_modules/x/a.js":  "module.exports = 1\n",
		"vendor/lib/lib.go":    "package lib\n",
		"assets/site.min.js":   "var a=1\n",
		"__pycache__/util.pyc": "",
	})

	files, err := New(config.DefaultConfig()).Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "pkg/util.py", "web/app.ts"}, rels(t, root, files))
}

func TestScanHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	writeTree(t, root, map[string]string{
		".gitignore":         "generated/\n*_pb.py\n",
		"src/a.py":           "x = 1\n",
		"src/a_pb.py":        "x = 2\n",
		"generated/gen.go":   "package gen\n",
		"src/sub/.gitignore": "local.py\n",
		"src/sub/local.py":   "x = 3\n",
		"src/sub/kept.py":    "x = 4\n",
	})

	files, err := New(config.DefaultConfig()).Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.py", "src/sub/kept.py"}, rels(t, root, files))

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = false
	files, err = New(cfg).Scan(root)
	require.NoError(t, err)
	assert.Len(t, files, 5)
}

func TestScanSubdirectoryUsesRepositoryIgnores(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	writeTree(t, root, map[string]string{
		".gitignore":  "src/skip.py\n",
		"src/keep.py": "x = 1\n",
		"src/skip.py": "x = 2\n",
	})

	files, err := New(config.DefaultConfig()).Scan(filepath.Join(root, "src"))
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.py"}, rels(t, filepath.Join(root, "src"), files))
}

func TestScanMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"small.py": "x = 1\n",
		"big.py":   string(make([]byte, 2048)),
	})
	cfg := config.DefaultConfig()
	cfg.MaxFileSize = 1024

	s := New(cfg)
	files, err := s.Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"small.py"}, rels(t, root, files))
	assert.Equal(t, 1, s.Skipped())
}

func TestScanExplicitFilesAndDedup(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py":      "x = 1\n",
		"notes.txt": "hello\n",
	})
	a := filepath.Join(root, "a.py")

	files, err := New(nil).Scan(a, root, filepath.Join(root, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{a}, files)

	_, err = New(nil).Scan(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestScanSkipsEscapingSymlinks(t *testing.T) {
	outside := t.TempDir()
	writeTree(t, outside, map[string]string{"secret.py": "x = 1\n"})
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "x = 1\n"})
	if err := os.Symlink(filepath.Join(outside, "secret.py"), filepath.Join(root, "link.py")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	files, err := New(nil).Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, rels(t, root, files))
}

func TestGroupByLanguage(t *testing.T) {
	groups := GroupByLanguage([]string{"a.go", "b.go", "c.py", "d.txt"})
	assert.Len(t, groups[parser.LangGo], 2)
	assert.Len(t, groups[parser.LangPython], 1)
	assert.NotContains(t, groups, parser.LangUnknown)
}
