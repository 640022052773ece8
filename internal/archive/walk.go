package archive

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// IgnoreFile lists extra exclude patterns, one doublestar glob per line,
// relative to the package root. Blank lines and '#' comments are skipped.
const IgnoreFile = ".chainpkgignore"

// DefaultExcludes are never copied or archived. Patterns are matched against
// slash-separated paths relative to the package root.
var DefaultExcludes = []string{
	"**/.git",
	"build",
	"**/node_modules",
	"**/.DS_Store",
}

// entry is one file or directory found under a root.
type entry struct {
	rel  string // slash-separated, relative to the root
	dir  bool
	mode fs.FileMode
	size int64
}

// matcher decides whether a relative path is excluded.
type matcher struct {
	patterns []string
}

func newMatcher(root string, extra []string) (*matcher, error) {
	patterns := append([]string{}, DefaultExcludes...)
	patterns = append(patterns, extra...)

	fromFile, err := readIgnoreFile(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, fromFile...)

	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &fs.PathError{Op: "exclude", Path: p, Err: doublestar.ErrBadPattern}
		}
	}
	return &matcher{patterns: patterns}, nil
}

func readIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.TrimSuffix(line, "/"))
	}
	return out, sc.Err()
}

func (m *matcher) excluded(rel string) bool {
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// collect walks root and returns every kept entry sorted by path. Symlinks
// and other special files are skipped. Excluded directories are pruned.
func collect(ctx context.Context, root string, m *matcher) ([]entry, error) {
	var (
		mu      sync.Mutex
		entries []entry
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if m.excluded(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		e := entry{rel: rel, dir: d.IsDir(), mode: info.Mode()}
		if !e.dir {
			e.size = info.Size()
		}
		mu.Lock()
		entries = append(entries, e)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })
	return entries, nil
}
