package publish

import (
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/units"
)

// CheckFunds returns a ValidationError with the shortfall when the quote's
// balance does not cover its total. A total that overflows is never covered.
func CheckFunds(q Quote) error {
	need, ok := q.Total()
	if !ok {
		return errs.New(errs.KindValidation, "insufficient balance: fee %s plus amount %s exceeds any possible balance",
			units.Display(q.Fee), units.Display(q.Extra)).
			With("balance", q.Balance).
			With("signer", q.Signer)
	}
	if q.Balance >= need {
		return nil
	}
	return errs.New(errs.KindValidation, "insufficient balance: have %s, need %s (short %s)",
		units.Display(q.Balance), units.Display(need), units.Display(need-q.Balance)).
		With("balance", q.Balance).
		With("required", need).
		With("signer", q.Signer)
}
