package archive

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"

	"github.com/chainpkg/chainpkg/internal/errs"
)

// ZipMIME is the detected type every bundle must have.
const ZipMIME = "application/zip"

// Uncompressed size limits for Extract. A bundle over either limit is an
// InvalidPackage error whatever its headers claim.
var (
	MaxEntrySize uint64 = 256 << 20
	MaxTotalSize uint64 = 1 << 30
)

// IsZip reports whether the file at p is a zip archive (or a zip-based format).
func IsZip(p string) (bool, string, error) {
	mt, err := mimetype.DetectFile(p)
	if err != nil {
		return false, "", err
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(ZipMIME) {
			return true, mt.String(), nil
		}
	}
	return false, mt.String(), nil
}

// Extract unpacks the bundle at archivePath into dst, creating dst if
// needed. Content that is not a zip archive, and entries that would land
// outside dst, are InvalidPackage errors. Extract does not clean up a
// partially written dst; callers extract into a staging directory.
func Extract(ctx context.Context, archivePath, dst string) (int, error) {
	ok, detected, err := IsZip(archivePath)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "reading %s", archivePath)
	}
	if !ok {
		return 0, errs.New(errs.KindInvalidPackage, "downloaded content is %s, not a zip archive", detected).
			With("mime", detected)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, errs.Wrap(errs.KindInvalidPackage, err, "opening archive")
	}
	defer zr.Close()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "creating %s", dst)
	}
	root := filepath.Clean(dst)

	var files int
	var written uint64
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return files, errs.Wrap(errs.KindStorage, err, "extraction cancelled")
		}
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return files, err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, errs.Wrap(errs.KindStorage, err, "creating %s", target)
			}
			continue
		case !mode.IsRegular():
			// Symlinks and devices are never produced by Zip.
			continue
		}

		budget := min(MaxEntrySize, MaxTotalSize-written)
		if f.UncompressedSize64 > budget {
			return files, tooLarge(f.Name, f.UncompressedSize64, written)
		}
		n, err := extractFile(f, target, normalizeMode(mode), budget)
		written += n
		switch {
		case errors.Is(err, errOverLimit):
			return files, tooLarge(f.Name, n, written-n)
		case err != nil:
			return files, errs.Wrap(errs.KindStorage, err, "extracting %s", f.Name)
		}
		files++
	}
	return files, nil
}

// safeJoin resolves an entry name under root, rejecting absolute names and
// any name that escapes root.
func safeJoin(root, name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") || filepath.VolumeName(clean) != "" {
		return "", errs.New(errs.KindInvalidPackage, "archive entry %q escapes the target directory", name).
			With("entry", name)
	}
	target := filepath.Join(root, filepath.FromSlash(clean))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", errs.New(errs.KindInvalidPackage, "archive entry %q escapes the target directory", name).
			With("entry", name)
	}
	return target, nil
}

var errOverLimit = errors.New("entry over size limit")

func tooLarge(name string, size, written uint64) error {
	if size > MaxEntrySize {
		return errs.New(errs.KindInvalidPackage, "archive entry %q is larger than %d bytes", name, MaxEntrySize).
			With("entry", name)
	}
	return errs.New(errs.KindInvalidPackage, "archive expands past %d bytes at entry %q", MaxTotalSize, name).
		With("entry", name).
		With("extracted", written)
}

// extractFile writes at most limit bytes of f to target. It reads one byte
// past limit so an entry whose header understates its size still fails.
func extractFile(f *zip.File, target string, perm os.FileMode, limit uint64) (uint64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(rc, int64(min(limit, math.MaxInt64-1))+1))
	if err != nil {
		out.Close()
		return uint64(n), err
	}
	if err := out.Close(); err != nil {
		return uint64(n), err
	}
	if uint64(n) > limit {
		return uint64(n), errOverLimit
	}
	return uint64(n), nil
}
