// Package install resolves a package on the registry and unpacks its bundle.
package install

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/logging"
	"github.com/chainpkg/chainpkg/internal/manifest"
	"github.com/chainpkg/chainpkg/internal/registry"
)

// Status is how an install ended.
type Status string

const (
	Installed      Status = "installed"
	NotFound       Status = "not_found"
	DownloadFailed Status = "download_failed"
)

// Registry resolves packages.
type Registry interface {
	PackageMetadata(ctx context.Context, name, version string) (*registry.PackageMetadata, error)
}

// Storage fetches and unpacks bundles.
type Storage interface {
	DownloadPackage(ctx context.Context, addr, extractPath string) (int, error)
}

// Result reports an install. Metadata is set whenever resolution succeeded.
type Result struct {
	Status   Status                    `json:"status"`
	Package  string                    `json:"package"`
	Version  string                    `json:"version,omitempty"`
	Metadata *registry.PackageMetadata `json:"metadata,omitempty"`
	Path     string                    `json:"path,omitempty"`
	Files    int                       `json:"files,omitempty"`
	Message  string                    `json:"message,omitempty"`
}

// Options for one install.
type Options struct {
	Version   string // "" resolves the latest registered version
	OutputDir string // parent of the package directory; "." when empty
	Force     bool   // replace an existing non-empty target
}

// Installer runs installs.
type Installer struct {
	registry Registry
	storage  Storage
	log      *zap.Logger
}

// New returns an installer.
func New(reg Registry, store Storage, log *zap.Logger) *Installer {
	return &Installer{registry: reg, storage: store, log: logging.OrNop(log).With(zap.String("pipeline", "install"))}
}

// Install resolves name (at opts.Version, or latest) and extracts it into
// <OutputDir>/<name>.
//
// An unknown package is a NotFound result with a nil error. A download or
// extraction failure is a DownloadFailed result returned with the error, so
// callers can tell that metadata was found. Only resolution failures and
// invalid input return a nil result.
func (i *Installer) Install(ctx context.Context, name string, opts Options) (*Result, error) {
	if err := manifest.ValidateName(name); err != nil {
		return nil, err
	}
	if opts.Version != "" {
		if err := manifest.ValidateVersion(opts.Version); err != nil {
			return nil, err
		}
	}

	log := i.log.With(zap.String("package", name), zap.String("version", opts.Version))
	meta, err := i.registry.PackageMetadata(ctx, name, opts.Version)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		res := &Result{Status: NotFound, Package: name, Version: opts.Version, Message: notFoundMessage(name, opts.Version)}
		log.Info("package not found")
		return res, nil
	}

	res := &Result{Package: name, Version: meta.Version, Metadata: meta}
	out := opts.OutputDir
	if out == "" {
		out = "."
	}
	target, err := filepath.Abs(filepath.Join(out, name))
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "resolving output directory")
	}
	res.Path = target

	var restore func(ok bool)
	if opts.Force {
		if restore, err = moveAside(target); err != nil {
			return nil, err
		}
	}

	log = log.With(zap.String("cid", meta.ContentAddress), zap.String("path", target))
	files, err := i.storage.DownloadPackage(ctx, meta.ContentAddress, target)
	if restore != nil {
		restore(err == nil)
	}
	if err != nil {
		if errs.IsKind(err, errs.KindValidation) {
			// Target exists and is not empty: the caller's mistake, not a download failure.
			return nil, err
		}
		res.Status = DownloadFailed
		res.Message = err.Error()
		log.Warn("download failed", zap.Error(err))
		return res, err
	}

	res.Status = Installed
	res.Files = files
	res.Message = "installed " + name + "@" + meta.Version + " to " + target
	log.Info("package installed", zap.Int("files", files))
	return res, nil
}

// moveAside renames an existing target out of the way. The returned func
// deletes it after a successful install or puts it back otherwise.
func moveAside(target string) (func(ok bool), error) {
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return nil, nil
	}
	backup := target + ".previous"
	if err := os.RemoveAll(backup); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "removing %s", backup)
	}
	if err := os.Rename(target, backup); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "moving %s aside", target)
	}
	return func(ok bool) {
		if ok {
			_ = os.RemoveAll(backup)
			return
		}
		_ = os.RemoveAll(target)
		_ = os.Rename(backup, target)
	}, nil
}

func notFoundMessage(name, version string) string {
	if version == "" {
		return "package " + name + " not found"
	}
	return "package " + name + "@" + version + " not found"
}
