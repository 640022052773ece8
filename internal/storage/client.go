package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/archive"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/logging"
)

// Client wraps a Provider with the bundle lifecycle.
type Client struct {
	provider Provider
	log      *zap.Logger
	tempDir  string
	now      func() time.Time
}

// New returns a client over p. Temporary archives go to os.TempDir().
func New(p Provider, log *zap.Logger) *Client {
	return &Client{provider: p, log: logging.OrNop(log), now: time.Now}
}

// Provider returns the backend name.
func (c *Client) Provider() string { return c.provider.Name() }

// UploadDirectory archives dir into a temporary bundle and uploads it. The
// bundle is removed whether or not the upload succeeds.
func (c *Client) UploadDirectory(ctx context.Context, dir string, meta PinMetadata) (*UploadResult, error) {
	tmp, err := os.MkdirTemp(c.tempDir, "chainpkg-upload-")
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "creating temporary directory")
	}
	defer c.remove(tmp)

	bundle := filepath.Join(tmp, uuid.NewString()+".zip")
	sum, err := archive.Zip(ctx, dir, bundle)
	if err != nil {
		return nil, err
	}
	c.log.Debug("bundle built",
		zap.String("dir", dir),
		zap.Int("files", sum.Files),
		zap.Int64("size", sum.Size),
		zap.String("sha256", sum.SHA256))

	return c.upload(ctx, bundle, meta)
}

// UploadFile uploads a single file as is.
func (c *Client) UploadFile(ctx context.Context, path string) (*UploadResult, error) {
	return c.upload(ctx, path, PinMetadata{Name: filepath.Base(path)})
}

func (c *Client) upload(ctx context.Context, path string, meta PinMetadata) (*UploadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "reading %s", path)
	}
	if info.IsDir() {
		return nil, errs.New(errs.KindValidation, "%s is a directory", path)
	}

	pin, err := c.provider.Put(ctx, path, meta)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "uploading to %s", c.provider.Name()).
			With("provider", c.provider.Name())
	}
	res := &UploadResult{ContentAddress: pin.ContentAddress, Size: pin.Size, Timestamp: pin.Timestamp}
	if res.Size == 0 {
		res.Size = info.Size()
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = c.now().UTC()
	}
	c.log.Info("uploaded",
		zap.String("provider", c.provider.Name()),
		zap.String("cid", res.ContentAddress),
		zap.Int64("size", res.Size))
	return res, nil
}

// DownloadFile writes the object at addr to outPath. The file appears only
// once the download completed.
func (c *Client) DownloadFile(ctx context.Context, addr, outPath string) (int64, error) {
	if addr == "" {
		return 0, errs.New(errs.KindValidation, "content address is required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "creating %s", filepath.Dir(outPath))
	}
	part, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".part-")
	if err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "creating %s", outPath)
	}
	defer c.remove(part.Name())

	n, err := c.provider.Get(ctx, addr, part)
	if cerr := part.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		kind := errs.KindStorage
		if errors.Is(err, ErrNotFound) {
			kind = errs.KindPackageNotFound
		}
		return 0, errs.Wrap(kind, err, "downloading %s", addr).With("cid", addr)
	}
	if err := os.Rename(part.Name(), outPath); err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "writing %s", outPath)
	}
	return n, nil
}

// DownloadPackage fetches the bundle at addr and unpacks it into
// extractPath. Extraction happens in a sibling staging directory that is
// renamed into place only on success, so a failed install never leaves a
// half-written extractPath behind. extractPath must not exist or be empty.
func (c *Client) DownloadPackage(ctx context.Context, addr, extractPath string) (int, error) {
	if err := ensureVacant(extractPath); err != nil {
		return 0, err
	}
	parent := filepath.Dir(extractPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "creating %s", parent)
	}

	tmp, err := os.MkdirTemp(c.tempDir, "chainpkg-download-")
	if err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "creating temporary directory")
	}
	defer c.remove(tmp)

	bundle := filepath.Join(tmp, "bundle.zip")
	if _, err := c.DownloadFile(ctx, addr, bundle); err != nil {
		return 0, err
	}

	staging := filepath.Join(parent, fmt.Sprintf(".%s.staging-%s", filepath.Base(extractPath), uuid.NewString()[:8]))
	defer c.remove(staging)
	files, err := archive.Extract(ctx, bundle, staging)
	if err != nil {
		return 0, err
	}

	// An empty target left by ensureVacant is replaced.
	_ = os.Remove(extractPath)
	if err := os.Rename(staging, extractPath); err != nil {
		return 0, errs.Wrap(errs.KindStorage, err, "moving package into %s", extractPath)
	}
	c.log.Info("package extracted",
		zap.String("cid", addr),
		zap.String("path", extractPath),
		zap.Int("files", files))
	return files, nil
}

// TestConnection reports whether the backend answers. It never fails.
func (c *Client) TestConnection(ctx context.Context) bool {
	if err := c.provider.Ping(ctx); err != nil {
		c.log.Warn("storage connection test failed",
			zap.String("provider", c.provider.Name()),
			zap.Error(err))
		return false
	}
	return true
}

func (c *Client) remove(path string) {
	if err := os.RemoveAll(path); err != nil {
		c.log.Warn("removing temporary file", zap.String("path", path), zap.Error(err))
	}
}

func ensureVacant(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "reading %s", path)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "reading %s", path)
	}
	if !info.IsDir() {
		return errs.New(errs.KindValidation, "%s exists and is not a directory", path).With("path", path)
	}
	if _, err := f.Readdirnames(1); !errors.Is(err, io.EOF) {
		return errs.New(errs.KindValidation, "%s already exists and is not empty", path).With("path", path)
	}
	return nil
}
