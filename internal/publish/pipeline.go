package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/archive"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/logging"
	"github.com/chainpkg/chainpkg/internal/manifest"
	"github.com/chainpkg/chainpkg/internal/registry"
	"github.com/chainpkg/chainpkg/internal/storage"
)

// PipelineName labels logs and transitions.
const PipelineName = "publish"

// DefaultKind is registered when chainpkg.yaml names no kind.
const DefaultKind = registry.KindLibrary

// Registry is the registry surface the pipeline uses.
type Registry interface {
	Balance(ctx context.Context, addr string) (uint64, error)
	PackageMetadata(ctx context.Context, name, version string) (*registry.PackageMetadata, error)
	PublishPackage(ctx context.Context, signer ledger.Signer, p registry.PublishParams) (*registry.TransactionResult, error)
}

// Storage uploads package bundles.
type Storage interface {
	UploadDirectory(ctx context.Context, dir string, meta storage.PinMetadata) (*storage.UploadResult, error)
}

// Deps wires a Pipeline. Registry, Storage and Confirm are required.
type Deps struct {
	Registry Registry
	Storage  Storage
	Confirm  Confirmer
	Observer Observer
	Logger   *zap.Logger

	Fee     uint64 // flat publish fee in base units
	Network string // shown in the confirmation quote
	TempDir string // parent of the isolated copy; os.TempDir() when empty
}

// Options are the caller's inputs for one run.
type Options struct {
	Dir     string
	Version string   // overrides Move.toml; "" falls back to it, then 1.0.0
	Tags    []string // overrides chainpkg.yaml tags when non-nil
}

// Outcome reports how a run ended. It is returned for every terminal state.
type Outcome struct {
	State          State                       `json:"state"`
	Package        string                      `json:"package,omitempty"`
	Version        string                      `json:"version,omitempty"`
	ContentAddress string                      `json:"contentAddress,omitempty"`
	Size           int64                       `json:"size,omitempty"`
	Fee            uint64                      `json:"fee"`
	Balance        uint64                      `json:"balance,omitempty"`
	Transaction    *registry.TransactionResult `json:"transaction,omitempty"`
	Warnings       []string                    `json:"warnings,omitempty"`
	Message        string                      `json:"message"`
}

// Pipeline publishes packages. A Pipeline holds no per-run state and may be
// reused; each Run owns its temporary directory.
type Pipeline struct {
	deps Deps
	log  *zap.Logger
	now  func() time.Time
}

// New returns a pipeline over deps.
func New(deps Deps) *Pipeline {
	if deps.Confirm == nil {
		deps.Confirm = Decline
	}
	return &Pipeline{
		deps: deps,
		log:  logging.OrNop(deps.Logger).With(zap.String("pipeline", PipelineName)),
		now:  time.Now,
	}
}

// run is the per-invocation state.
type run struct {
	p     *Pipeline
	state State
	out   *Outcome
	log   *zap.Logger
}

func (r *run) enter(to State, msg string, err error) {
	from := r.state
	r.state = to
	r.out.State = to
	if msg != "" {
		r.out.Message = msg
	}

	fields := []zap.Field{
		zap.String("from", string(from)),
		zap.String("state", string(to)),
		zap.String("package", r.out.Package),
		zap.String("version", r.out.Version),
	}
	if r.out.ContentAddress != "" {
		fields = append(fields, zap.String("cid", r.out.ContentAddress))
	}
	if r.out.Transaction != nil {
		fields = append(fields, zap.String("tx", r.out.Transaction.TransactionID))
	}
	switch {
	case err != nil:
		r.log.Warn("publish failed", append(fields, zap.Error(err))...)
	case to.Terminal():
		r.log.Info("publish finished", append(fields, zap.String("message", msg))...)
	default:
		r.log.Debug("publish state", fields...)
	}

	if obs := r.p.deps.Observer; obs != nil {
		obs(Transition{Pipeline: PipelineName, From: from, To: to, At: r.p.now(), Message: msg, Err: err})
	}
}

func (r *run) advance() { r.enter(next(r.state), "", nil) }

func (r *run) fail(err error) (*Outcome, error) {
	r.enter(Failed, err.Error(), err)
	return r.out, err
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.out.Warnings = append(r.out.Warnings, msg)
	r.log.Warn(msg, zap.String("package", r.out.Package), zap.String("version", r.out.Version))
}

// Run publishes the package in opts.Dir, signed by signer.
//
// Errors are returned together with a Failed outcome. A declined
// confirmation ends Cancelled, a reverted transaction ends Failed and an
// unconfirmed one ends ConfirmationPending; none of those return an error.
// The isolated copy and the bundle are removed on every path.
func (p *Pipeline) Run(ctx context.Context, signer ledger.Signer, opts Options) (*Outcome, error) {
	r := &run{p: p, out: &Outcome{Fee: p.deps.Fee}, log: p.log}
	r.enter(Validating, "", nil)

	pkg, params, err := p.validate(ctx, r, opts)
	if err != nil {
		return r.fail(err)
	}

	r.advance() // Archiving
	tmp, err := os.MkdirTemp(p.deps.TempDir, "chainpkg-publish-")
	if err != nil {
		return r.fail(errs.Wrap(errs.KindStorage, err, "creating temporary directory"))
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			r.log.Warn("removing temporary directory", zap.String("path", tmp), zap.Error(err))
		}
	}()
	isolated := filepath.Join(tmp, params.Name)
	if _, err := archive.CopyTree(ctx, pkg.Dir, isolated); err != nil {
		return r.fail(err)
	}

	r.advance() // Uploading
	up, err := p.deps.Storage.UploadDirectory(ctx, isolated, storage.PinMetadata{
		Name:      params.Name + "@" + params.Version,
		KeyValues: map[string]string{"package": params.Name, "version": params.Version, "kind": params.Kind},
	})
	if err != nil {
		return r.fail(err)
	}
	params.ContentAddress = up.ContentAddress
	r.out.ContentAddress = up.ContentAddress
	r.out.Size = up.Size

	r.advance() // FeeCheck
	balance, err := p.deps.Registry.Balance(ctx, signer.Address())
	if err != nil {
		return r.fail(err)
	}
	r.out.Balance = balance
	quote := Quote{
		Action:         "publish",
		Package:        params.Name,
		Version:        params.Version,
		ContentAddress: params.ContentAddress,
		Network:        p.deps.Network,
		Signer:         signer.Address(),
		Fee:            p.deps.Fee,
		Balance:        balance,
	}
	if err := CheckFunds(quote); err != nil {
		return r.fail(err)
	}

	r.advance() // AwaitingUserConfirmation
	ok, err := p.deps.Confirm.Confirm(ctx, quote)
	if err != nil {
		return r.fail(errs.Wrap(errs.KindValidation, err, "confirmation"))
	}
	if !ok {
		r.enter(Cancelled, "publish cancelled", nil)
		return r.out, nil
	}

	r.advance() // Submitting
	res, err := p.deps.Registry.PublishPackage(ctx, signer, params)
	if err != nil {
		return r.fail(err)
	}
	r.out.Transaction = res

	r.advance() // AwaitingLedgerConfirmation
	switch {
	case res.Pending:
		r.enter(ConfirmationPending, res.StatusMessage, nil)
		return r.out, nil
	case !res.Success:
		r.enter(Failed, "transaction reverted: "+res.StatusMessage, nil)
		return r.out, nil
	}

	r.advance() // Verifying
	p.verify(ctx, r, params)

	r.enter(Done, fmt.Sprintf("published %s@%s", params.Name, params.Version), nil)
	return r.out, nil
}

func (p *Pipeline) validate(ctx context.Context, r *run, opts Options) (*manifest.Package, registry.PublishParams, error) {
	var params registry.PublishParams
	if opts.Dir == "" {
		return nil, params, errs.New(errs.KindValidation, "package path is required")
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, params, errs.Wrap(errs.KindValidation, err, "resolving %s", opts.Dir)
	}
	pkg, err := manifest.Load(dir)
	if err != nil {
		return nil, params, err
	}
	r.out.Package = pkg.Name()

	version, err := manifest.ResolveVersion(opts.Version, pkg.Move.Package.Version)
	if err != nil {
		return nil, params, err
	}
	r.out.Version = version

	for _, issue := range pkg.Warnings {
		r.warn("%s: %s", manifest.MetadataFile, issue)
	}

	params = registry.PublishParams{
		Name:    pkg.Name(),
		Version: version,
		Kind:    DefaultKind,
		License: pkg.License(),
	}
	if md := pkg.Metadata; md != nil {
		if md.Kind != "" {
			params.Kind = md.Kind
		}
		params.Description = md.Description
		params.Tags = md.Tags
		params.Homepage = md.Homepage
		params.Repository = md.Repository
	}
	if opts.Tags != nil {
		params.Tags = opts.Tags
	}

	existing, err := p.deps.Registry.PackageMetadata(ctx, params.Name, params.Version)
	if err != nil {
		return nil, params, err
	}
	if existing != nil {
		return nil, params, errs.New(errs.KindValidation, "%s@%s is already published", params.Name, params.Version).
			With("package", params.Name).
			With("version", params.Version)
	}
	return pkg, params, nil
}

// verify re-reads the registration. Problems are warnings: the write has
// already succeeded on chain.
func (p *Pipeline) verify(ctx context.Context, r *run, params registry.PublishParams) {
	meta, err := p.deps.Registry.PackageMetadata(ctx, params.Name, params.Version)
	switch {
	case err != nil:
		var e *errs.Error
		if errors.As(err, &e) {
			r.warn("could not verify registration: %s", e.Message)
			return
		}
		r.warn("could not verify registration: %v", err)
	case meta == nil:
		r.warn("registration of %s@%s is not visible yet", params.Name, params.Version)
	case meta.ContentAddress != params.ContentAddress:
		r.warn("registered content address %s does not match uploaded %s", meta.ContentAddress, params.ContentAddress)
	}
}
