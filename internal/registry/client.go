package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/logging"
)

// Module is the registry's module name on chain.
const Module = "package_registry"

// Chain is the ledger surface the registry wrapper uses.
type Chain interface {
	View(ctx context.Context, req ledger.ViewRequest) ([]json.RawMessage, error)
	Balance(ctx context.Context, addr string) (uint64, error)
	Submit(ctx context.Context, signer ledger.Signer, call ledger.EntryFunction) (string, error)
	WaitForTransaction(ctx context.Context, hash string) (*ledger.TxStatus, error)
}

// Client reads and writes one registry deployment.
type Client struct {
	chain   Chain
	address string
	log     *zap.Logger
}

// New returns a client for the registry deployed at address.
func New(chain Chain, address string, log *zap.Logger) *Client {
	return &Client{chain: chain, address: strings.ToLower(address), log: logging.OrNop(log)}
}

// Address returns the registry deployment address.
func (c *Client) Address() string { return c.address }

func (c *Client) function(name string) string {
	return c.address + "::" + Module + "::" + name
}

func (c *Client) view(ctx context.Context, fn string, args ...any) ([]json.RawMessage, error) {
	out, err := c.chain.View(ctx, ledger.ViewRequest{Function: c.function(fn), Arguments: args})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errs.New(errs.KindBlockchain, "%s returned no values", fn).WithOp("registry." + fn)
	}
	return out, nil
}

// PackageMetadata returns name@version, or nil when it is not registered.
// An empty version resolves to the latest version (see LatestVersion).
func (c *Client) PackageMetadata(ctx context.Context, name, version string) (*PackageMetadata, error) {
	if version == "" {
		latest, err := c.LatestVersion(ctx, name)
		if err != nil || latest == "" {
			return nil, err
		}
		version = latest
	}
	out, err := c.view(ctx, "get_package_metadata", name, version)
	if err != nil {
		return nil, err
	}
	raw, ok, err := parseOption(out[0])
	if err != nil || !ok {
		return nil, err
	}
	return parsePackage(raw)
}

// PackageVersions lists the registered versions of name in registry order.
func (c *Client) PackageVersions(ctx context.Context, name string) ([]string, error) {
	out, err := c.view(ctx, "get_package_versions", name)
	if err != nil {
		return nil, err
	}
	return parseStrings(out[0])
}

// LatestVersion returns the last element of PackageVersions, or "" when
// none exist. The registry's order is trusted; when the last element is not
// the highest semantic version a warning is logged and the last element is
// still returned.
func (c *Client) LatestVersion(ctx context.Context, name string) (string, error) {
	versions, err := c.PackageVersions(ctx, name)
	if err != nil || len(versions) == 0 {
		return "", err
	}
	latest := versions[len(versions)-1]
	if highest := highestVersion(versions); highest != "" && highest != latest {
		c.log.Warn("registry order disagrees with semantic version order",
			zap.String("package", name),
			zap.String("latest", latest),
			zap.String("highest", highest))
	}
	return latest, nil
}

// highestVersion returns the semver-highest entry, ignoring unparsable ones.
func highestVersion(versions []string) string {
	var best *semver.Version
	var bestRaw string
	for _, v := range versions {
		sv, err := semver.StrictNewVersion(v)
		if err != nil {
			continue
		}
		if best == nil || sv.GreaterThan(best) {
			best, bestRaw = sv, v
		}
	}
	return bestRaw
}

// AllPackages returns every registered version of every package.
func (c *Client) AllPackages(ctx context.Context) ([]PackageMetadata, error) {
	out, err := c.view(ctx, "get_all_packages")
	if err != nil {
		return nil, err
	}
	return parsePackageList(out[0])
}

// Stats returns the registry-wide aggregate.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	out, err := c.chain.View(ctx, ledger.ViewRequest{Function: c.function("get_registry_stats")})
	if err != nil {
		return nil, err
	}
	return parseStats(out)
}

// EndorserInfo returns the endorser record for addr, or nil.
func (c *Client) EndorserInfo(ctx context.Context, addr string) (*EndorserRecord, error) {
	out, err := c.view(ctx, "get_endorser_info", addr)
	if err != nil {
		return nil, err
	}
	raw, ok, err := parseOption(out[0])
	if err != nil || !ok {
		return nil, err
	}
	return parseEndorser(raw)
}

// Balance returns the native balance of addr.
func (c *Client) Balance(ctx context.Context, addr string) (uint64, error) {
	return c.chain.Balance(ctx, addr)
}

// PublishPackage registers a new (name, version).
func (c *Client) PublishPackage(ctx context.Context, signer ledger.Signer, p PublishParams) (*TransactionResult, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return c.write(ctx, signer, "publish_package",
		p.Name,
		p.Version,
		encodeHexString(p.ContentAddress),
		strings.ToLower(p.Kind),
		p.Description,
		tags,
		p.Homepage,
		p.Repository,
		p.License,
	)
}

// EndorsePackage records signer's endorsement of name@version.
func (c *Client) EndorsePackage(ctx context.Context, signer ledger.Signer, name, version string) (*TransactionResult, error) {
	return c.write(ctx, signer, "endorse_package", name, version)
}

// TipPackage transfers amount base units to the publisher of name@version.
func (c *Client) TipPackage(ctx context.Context, signer ledger.Signer, name, version string, amount uint64) (*TransactionResult, error) {
	return c.write(ctx, signer, "tip_package", name, version, strconv.FormatUint(amount, 10))
}

// RegisterEndorser stakes amount base units to become an endorser.
func (c *Client) RegisterEndorser(ctx context.Context, signer ledger.Signer, stake uint64) (*TransactionResult, error) {
	return c.write(ctx, signer, "register_endorser", strconv.FormatUint(stake, 10))
}

// Initialize sets up registry storage under the deployment account.
func (c *Client) Initialize(ctx context.Context, signer ledger.Signer) (*TransactionResult, error) {
	return c.write(ctx, signer, "initialize")
}

// write runs the submission protocol. Errors are returned only when no
// result could be obtained.
func (c *Client) write(ctx context.Context, signer ledger.Signer, fn string, args ...any) (*TransactionResult, error) {
	call := ledger.EntryFunction{Function: c.function(fn), Arguments: args}
	hash, err := c.chain.Submit(ctx, signer, call)
	if err != nil {
		return nil, err
	}

	// Once submitted the transaction may still land, so giving up on the wait
	// reports it as pending rather than failed.
	status, err := c.chain.WaitForTransaction(ctx, hash)
	switch {
	case err != nil && ctx.Err() != nil:
		c.log.Warn("stopped waiting for registry call",
			zap.String("function", fn),
			zap.String("tx", hash),
			zap.Error(ctx.Err()))
		fallthrough
	case errors.Is(err, ledger.ErrConfirmationPending):
		return &TransactionResult{
			TransactionID: hash,
			Pending:       true,
			StatusMessage: fmt.Sprintf("confirmation pending: check transaction %s later", hash),
		}, nil
	case err != nil:
		return nil, errs.Wrap(errs.KindOf(err), err, "waiting for %s", fn).With("tx", hash)
	}

	res := &TransactionResult{
		TransactionID: hash,
		Success:       status.Success,
		StatusMessage: status.VMStatus,
	}
	if !res.Success {
		c.log.Warn("registry call reverted",
			zap.String("function", fn),
			zap.String("tx", hash),
			zap.String("vm_status", status.VMStatus))
	}
	return res, nil
}
