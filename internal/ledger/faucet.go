package ledger

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/errs"
)

// HasFaucet reports whether a faucet URL is configured.
func (c *Client) HasFaucet() bool { return c.faucetURL != "" }

// Fund asks the faucet to mint amount base units to addr.
func (c *Client) Fund(ctx context.Context, addr string, amount uint64) error {
	const op = "ledger.fund"
	if c.faucetURL == "" {
		return errs.New(errs.KindConfig, "network has no faucet").WithOp(op)
	}
	req := c.http.R().SetContext(ctx).SetQueryParams(map[string]string{
		"address": addr,
		"amount":  strconv.FormatUint(amount, 10),
	})
	if _, err := c.do(ctx, op, req, http.MethodPost, c.faucetURL+"/mint"); err != nil {
		return err
	}
	c.log.Info("faucet grant requested", zap.String("address", addr), zap.Uint64("amount", amount))
	return nil
}
