// Package endorse runs the paid registry actions other than publishing:
// endorsing a package, registering as an endorser and tipping a publisher.
//
// Every action goes through the same preflight as a publish. The signer's
// balance is read, a quote is checked against it and then shown to the
// confirmation gate. Nothing is submitted unless both pass.
package endorse

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/logging"
	"github.com/chainpkg/chainpkg/internal/manifest"
	"github.com/chainpkg/chainpkg/internal/publish"
	"github.com/chainpkg/chainpkg/internal/registry"
	"github.com/chainpkg/chainpkg/internal/units"
)

// Action names, as shown in quotes and logs.
const (
	ActionEndorse  = "endorse"
	ActionRegister = "register-endorser"
	ActionTip      = "tip"
)

// Registry is the registry surface the actions use.
type Registry interface {
	Balance(ctx context.Context, addr string) (uint64, error)
	PackageMetadata(ctx context.Context, name, version string) (*registry.PackageMetadata, error)
	EndorserInfo(ctx context.Context, addr string) (*registry.EndorserRecord, error)
	EndorsePackage(ctx context.Context, signer ledger.Signer, name, version string) (*registry.TransactionResult, error)
	TipPackage(ctx context.Context, signer ledger.Signer, name, version string, amount uint64) (*registry.TransactionResult, error)
	RegisterEndorser(ctx context.Context, signer ledger.Signer, stake uint64) (*registry.TransactionResult, error)
}

// Outcome reports one action. State is Done, Cancelled, Failed (reverted)
// or ConfirmationPending.
type Outcome struct {
	State       publish.State               `json:"state"`
	Quote       publish.Quote               `json:"quote"`
	Transaction *registry.TransactionResult `json:"transaction,omitempty"`
	Message     string                      `json:"message"`
}

// Service runs endorsement and tipping actions.
type Service struct {
	registry Registry
	confirm  publish.Confirmer
	fees     config.Fees
	network  string
	log      *zap.Logger
}

// New returns a service. A nil confirm declines every quote.
func New(reg Registry, confirm publish.Confirmer, fees config.Fees, network string, log *zap.Logger) *Service {
	if confirm == nil {
		confirm = publish.Decline
	}
	return &Service{registry: reg, confirm: confirm, fees: fees, network: network, log: logging.OrNop(log)}
}

// Endorse records signer's endorsement of name@version. An empty version
// endorses the latest one. The signer must be an active endorser and must
// not have endorsed the same version before.
func (s *Service) Endorse(ctx context.Context, signer ledger.Signer, name, version string) (*Outcome, error) {
	meta, err := s.resolve(ctx, name, version)
	if err != nil {
		return nil, err
	}
	info, err := s.registry.EndorserInfo(ctx, signer.Address())
	if err != nil {
		return nil, err
	}
	if info == nil || !info.IsActive {
		return nil, errs.New(errs.KindValidation, "%s is not a registered endorser", signer.Address()).
			With("signer", signer.Address())
	}
	if slices.ContainsFunc(meta.Endorsements, func(a string) bool { return strings.EqualFold(a, signer.Address()) }) {
		return nil, errs.New(errs.KindValidation, "%s@%s is already endorsed by %s", meta.Name, meta.Version, signer.Address())
	}

	q := publish.Quote{
		Action:         ActionEndorse,
		Package:        meta.Name,
		Version:        meta.Version,
		ContentAddress: meta.ContentAddress,
		Fee:            s.fees.Endorse,
	}
	return s.execute(ctx, signer, q, func() (*registry.TransactionResult, error) {
		return s.registry.EndorsePackage(ctx, signer, meta.Name, meta.Version)
	})
}

// RegisterEndorser stakes stake base units to make signer an endorser.
func (s *Service) RegisterEndorser(ctx context.Context, signer ledger.Signer, stake uint64) (*Outcome, error) {
	if stake < s.fees.MinEndorserStake {
		return nil, errs.New(errs.KindValidation, "stake %s is below the minimum of %s",
			units.Display(stake), units.Display(s.fees.MinEndorserStake)).
			With("stake", stake)
	}
	info, err := s.registry.EndorserInfo(ctx, signer.Address())
	if err != nil {
		return nil, err
	}
	if info != nil && info.IsActive {
		return nil, errs.New(errs.KindValidation, "%s is already a registered endorser", signer.Address())
	}

	q := publish.Quote{Action: ActionRegister, Fee: s.fees.RegisterEndorser, Extra: stake}
	return s.execute(ctx, signer, q, func() (*registry.TransactionResult, error) {
		return s.registry.RegisterEndorser(ctx, signer, stake)
	})
}

// Tip sends amount base units to the publisher of name@version. An empty
// version tips the latest one.
func (s *Service) Tip(ctx context.Context, signer ledger.Signer, name, version string, amount uint64) (*Outcome, error) {
	if amount == 0 {
		return nil, errs.New(errs.KindValidation, "tip amount must be positive")
	}
	meta, err := s.resolve(ctx, name, version)
	if err != nil {
		return nil, err
	}

	q := publish.Quote{
		Action:         ActionTip,
		Package:        meta.Name,
		Version:        meta.Version,
		ContentAddress: meta.ContentAddress,
		Extra:          amount,
	}
	return s.execute(ctx, signer, q, func() (*registry.TransactionResult, error) {
		return s.registry.TipPackage(ctx, signer, meta.Name, meta.Version, amount)
	})
}

func (s *Service) resolve(ctx context.Context, name, version string) (*registry.PackageMetadata, error) {
	if err := manifest.ValidateName(name); err != nil {
		return nil, err
	}
	if version != "" {
		if err := manifest.ValidateVersion(version); err != nil {
			return nil, err
		}
	}
	meta, err := s.registry.PackageMetadata(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		ref := name
		if version != "" {
			ref += "@" + version
		}
		return nil, errs.New(errs.KindPackageNotFound, "package %s not found", ref).
			With("package", name)
	}
	return meta, nil
}

// execute is the shared preflight and submission.
func (s *Service) execute(ctx context.Context, signer ledger.Signer, q publish.Quote, submit func() (*registry.TransactionResult, error)) (*Outcome, error) {
	log := s.log.With(zap.String("action", q.Action), zap.String("signer", signer.Address()))
	if q.Package != "" {
		log = log.With(zap.String("package", q.Package), zap.String("version", q.Version))
	}

	balance, err := s.registry.Balance(ctx, signer.Address())
	if err != nil {
		return nil, err
	}
	q.Network = s.network
	q.Signer = signer.Address()
	q.Balance = balance
	if err := publish.CheckFunds(q); err != nil {
		return nil, err
	}

	out := &Outcome{Quote: q}
	ok, err := s.confirm.Confirm(ctx, q)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "confirmation")
	}
	if !ok {
		out.State = publish.Cancelled
		out.Message = q.Action + " cancelled"
		log.Info("action cancelled")
		return out, nil
	}

	res, err := submit()
	if err != nil {
		return nil, err
	}
	out.Transaction = res
	switch {
	case res.Pending:
		out.State = publish.ConfirmationPending
		out.Message = res.StatusMessage
	case !res.Success:
		out.State = publish.Failed
		out.Message = "transaction reverted: " + res.StatusMessage
	default:
		out.State = publish.Done
		out.Message = done(q)
	}
	log.Info("action finished", zap.String("state", string(out.State)), zap.String("tx", res.TransactionID))
	return out, nil
}

func done(q publish.Quote) string {
	switch q.Action {
	case ActionEndorse:
		return fmt.Sprintf("endorsed %s@%s", q.Package, q.Version)
	case ActionTip:
		return fmt.Sprintf("tipped %s to %s@%s", units.Display(q.Extra), q.Package, q.Version)
	default:
		return fmt.Sprintf("registered as endorser with stake %s", units.Display(q.Extra))
	}
}
