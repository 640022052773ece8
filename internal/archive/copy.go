package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/chainpkg/chainpkg/internal/errs"
)

// CopyTree copies src into dst, which must not exist yet, skipping
// DefaultExcludes, patterns from src/.chainpkgignore and any extra exclude
// patterns. It returns the number of files copied.
func CopyTree(ctx context.Context, src, dst string, exclude ...string) (int, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return 0, errs.Wrap(errs.KindValidation, err, "reading %s", src)
	}
	if !srcInfo.IsDir() {
		return 0, errs.New(errs.KindValidation, "%s is not a directory", src)
	}

	m, err := newMatcher(src, exclude)
	if err != nil {
		return 0, errs.Wrap(errs.KindValidation, err, "reading exclude patterns")
	}
	entries, err := collect(ctx, src, m)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "walking %s", src)
	}

	if err := os.Mkdir(dst, srcInfo.Mode().Perm()); err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "creating %s", dst)
	}

	files := 0
	for _, e := range entries {
		from := filepath.Join(src, filepath.FromSlash(e.rel))
		to := filepath.Join(dst, filepath.FromSlash(e.rel))
		if e.dir {
			if err := os.MkdirAll(to, e.mode.Perm()); err != nil {
				return files, errs.Wrap(errs.KindStorage, err, "creating %s", to)
			}
			continue
		}
		if err := copyFile(from, to, e.mode.Perm()); err != nil {
			return files, errs.Wrap(errs.KindStorage, err, "copying %s", e.rel)
		}
		files++
	}
	return files, nil
}

// copyFile copies a single file from src to dst with the given permissions.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
