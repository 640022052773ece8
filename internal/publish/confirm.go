package publish

import (
	"context"
	"math/bits"
)

// Quote is what the user is asked to approve before funds are spent.
type Quote struct {
	Action         string `json:"action"` // "publish", "endorse", "register-endorser", "tip"
	Package        string `json:"package,omitempty"`
	Version        string `json:"version,omitempty"`
	ContentAddress string `json:"contentAddress,omitempty"`
	Network        string `json:"network"`
	Signer         string `json:"signer"`
	Fee            uint64 `json:"fee"`
	Extra          uint64 `json:"extra,omitempty"` // stake or tip on top of the fee
	Balance        uint64 `json:"balance"`
}

// Total is the amount that leaves the signer's account. ok is false when the
// fee and the extra amount do not fit in a uint64 together.
func (q Quote) Total() (total uint64, ok bool) {
	sum, carry := bits.Add64(q.Fee, q.Extra, 0)
	return sum, carry == 0
}

// Confirmer is the yes/no gate before a paid write.
type Confirmer interface {
	Confirm(ctx context.Context, q Quote) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, q Quote) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, q Quote) (bool, error) { return f(ctx, q) }

// AutoConfirm approves every quote. It backs --yes and API calls that set
// "confirm": true.
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, Quote) (bool, error) { return true, nil })

// Decline rejects every quote.
var Decline Confirmer = ConfirmFunc(func(context.Context, Quote) (bool, error) { return false, nil })
