package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/chainpkg/chainpkg/internal/errs"
)

// epoch is the earliest time a zip header can express. Every entry carries it.
var epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Summary describes a written bundle.
type Summary struct {
	Path    string
	Files   int
	Size    int64  // bytes on disk
	SHA256  string // hex digest of the bundle bytes
	Entries []string
}

// Zip writes a deterministic bundle of src to dst. Files keep only their
// executable bit (0755 or 0644); directories are stored as 0755 entries so
// empty directories survive a round trip.
func Zip(ctx context.Context, src, dst string, exclude ...string) (*Summary, error) {
	m, err := newMatcher(src, exclude)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "reading exclude patterns")
	}
	entries, err := collect(ctx, src, m)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "walking %s", src)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "creating %s", dst)
	}
	sum := &Summary{Path: dst}
	if err := writeZip(ctx, out, src, entries, sum); err != nil {
		out.Close()
		os.Remove(dst)
		return nil, err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return nil, errs.Wrap(errs.KindStorage, err, "closing %s", dst)
	}

	if err := digest(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

func writeZip(ctx context.Context, w io.Writer, src string, entries []entry, sum *Summary) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.KindStorage, err, "archiving cancelled")
		}
		hdr := &zip.FileHeader{Name: e.rel, Modified: epoch}
		if e.dir {
			hdr.Name += "/"
			hdr.Method = zip.Store
			hdr.SetMode(fs.ModeDir | 0o755)
			if _, err := zw.CreateHeader(hdr); err != nil {
				return errs.Wrap(errs.KindStorage, err, "adding %s", e.rel)
			}
			sum.Entries = append(sum.Entries, hdr.Name)
			continue
		}

		hdr.Method = zip.Deflate
		hdr.SetMode(normalizeMode(e.mode))
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "adding %s", e.rel)
		}
		if err := appendFile(fw, filepath.Join(src, filepath.FromSlash(e.rel))); err != nil {
			return errs.Wrap(errs.KindStorage, err, "adding %s", e.rel)
		}
		sum.Entries = append(sum.Entries, e.rel)
		sum.Files++
	}
	if err := zw.Close(); err != nil {
		return errs.Wrap(errs.KindStorage, err, "finishing archive")
	}
	return nil
}

func appendFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func normalizeMode(m fs.FileMode) fs.FileMode {
	if m.Perm()&0o111 != 0 {
		return 0o755
	}
	return 0o644
}

func digest(sum *Summary) error {
	f, err := os.Open(sum.Path)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "reading %s", sum.Path)
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "hashing %s", sum.Path)
	}
	sum.Size = n
	sum.SHA256 = hex.EncodeToString(h.Sum(nil))
	return nil
}
