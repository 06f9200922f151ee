// Package scanner discovers the source files an analysis run reads.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/parser"
)

// Scanner finds parseable source files under a set of roots.
type Scanner struct {
	config  *config.Config
	matcher gitignore.Matcher
	base    string // directory the matcher's patterns are relative to
	skipped int
}

// New creates a scanner. A nil cfg uses the defaults.
func New(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// Skipped returns how many candidate files the last Scan dropped for size.
func (s *Scanner) Skipped() int { return s.skipped }

// Scan walks every root (file or directory) and returns the sorted, deduplicated
// list of source files in a supported language.
func (s *Scanner) Scan(roots ...string) ([]string, error) {
	s.skipped = 0
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
		if !info.IsDir() {
			if s.accept(root, "", info.Size()) {
				add(root)
			}
			continue
		}
		found, err := s.scanDir(root)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *Scanner) scanDir(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}
	s.loadPatterns(absRoot)

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)

		// symlinks that leave the root are skipped
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			if rel != "." && (s.excluded(filepath.Join(absRoot, rel), true) || s.excludedDir(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		if s.accept(path, filepath.Join(absRoot, rel), size) {
			files = append(files, path)
		}
		return nil
	})
	return files, walkErr
}

// accept applies language, exclusion and size filters. abs is the absolute
// path used for pattern matching; empty means the file was named directly.
func (s *Scanner) accept(path, abs string, size int64) bool {
	if parser.DetectLanguage(path) == parser.LangUnknown {
		return false
	}
	if abs != "" && s.excluded(abs, false) {
		return false
	}
	if s.config.ShouldExclude(path) {
		return false
	}
	if s.config.MaxFileSize > 0 && size > s.config.MaxFileSize {
		s.skipped++
		return false
	}
	return true
}

// loadPatterns combines the configured patterns with every .gitignore of the
// enclosing repository.
func (s *Scanner) loadPatterns(root string) {
	var patterns []gitignore.Pattern
	for _, p := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	s.base = root
	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			s.base = gitRoot
			if found, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil {
				patterns = append(patterns, found...)
			}
		}
	}
	if len(patterns) > 0 {
		s.matcher = gitignore.NewMatcher(patterns)
	}
}

func (s *Scanner) excluded(abs string, isDir bool) bool {
	if s.matcher == nil {
		return false
	}
	rel, err := filepath.Rel(s.base, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return s.matcher.Match(strings.Split(filepath.ToSlash(rel), "/"), isDir)
}

func (s *Scanner) excludedDir(name string) bool {
	for _, dir := range s.config.Exclude.Dirs {
		if name == dir {
			return true
		}
	}
	return false
}

// findGitRoot returns the closest ancestor holding a .git directory, or "".
func findGitRoot(start string) string {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func isWithinRoot(path, root string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	abs, root = filepath.Clean(abs), filepath.Clean(root)
	return abs == root || strings.HasPrefix(abs, root+string(filepath.Separator))
}

// GroupByLanguage groups files by detected language.
func GroupByLanguage(files []string) map[parser.Language][]string {
	groups := make(map[parser.Language][]string)
	for _, f := range files {
		if lang := parser.DetectLanguage(f); lang != parser.LangUnknown {
			groups[lang] = append(groups[lang], f)
		}
	}
	return groups
}
