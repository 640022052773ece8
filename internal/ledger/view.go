package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/chainpkg/chainpkg/internal/errs"
)

// Native coin identifiers used for balance lookups.
const (
	CoinBalanceFunction = "0x1::coin::balance"
	NativeCoinType      = "0x1::aptos_coin::AptosCoin"
)

// ViewRequest calls a read-only function.
type ViewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// View executes a view function and returns its raw return values.
func (c *Client) View(ctx context.Context, req ViewRequest) ([]json.RawMessage, error) {
	const op = "ledger.view"
	if req.TypeArguments == nil {
		req.TypeArguments = []string{}
	}
	if req.Arguments == nil {
		req.Arguments = []any{}
	}
	resp, err := c.do(ctx, op, c.http.R().SetContext(ctx).SetBody(req), http.MethodPost, "/v1/view")
	if err != nil {
		return nil, errs.Wrap(errs.KindOf(err), err, "view %s", req.Function).With("function", req.Function)
	}
	var out []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, decodeError(op, err, "view")
	}
	return out, nil
}

// SequenceNumber returns the next sequence number for addr.
func (c *Client) SequenceNumber(ctx context.Context, addr string) (uint64, error) {
	const op = "ledger.account"
	var acct struct {
		SequenceNumber string `json:"sequence_number"`
	}
	resp, err := c.do(ctx, op, c.http.R().SetContext(ctx), http.MethodGet, "/v1/accounts/"+addr)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(resp.Body(), &acct); err != nil {
		return 0, decodeError(op, err, "account")
	}
	n, err := strconv.ParseUint(acct.SequenceNumber, 10, 64)
	if err != nil {
		return 0, decodeError(op, err, "account sequence number")
	}
	return n, nil
}

// Balance returns the native coin balance of addr in base units. Accounts
// the node does not know yet hold zero.
func (c *Client) Balance(ctx context.Context, addr string) (uint64, error) {
	out, err := c.View(ctx, ViewRequest{
		Function:      CoinBalanceFunction,
		TypeArguments: []string{NativeCoinType},
		Arguments:     []any{addr},
	})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return 0, nil
		}
		return 0, err
	}
	if len(out) == 0 {
		return 0, decodeError("ledger.balance", errs.New(errs.KindBlockchain, "empty result"), "balance")
	}
	return ParseU64(out[0])
}

// ParseU64 decodes a u64 value, which nodes encode as a decimal string.
// Bare JSON numbers are accepted too.
func ParseU64(raw json.RawMessage) (uint64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errs.Wrap(errs.KindBlockchain, err, "invalid u64 %q", s)
	}
	return n, nil
}
