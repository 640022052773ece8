package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/publish"
)

// printer writes styled status lines. Results go to out; progress,
// warnings and errors go to err so that stdout stays pipeable.
type printer struct {
	out io.Writer
	err io.Writer
}

func newPrinter(cmd *cobra.Command) printer {
	return printer{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}
}

func (p printer) success(format string, a ...any) {
	pterm.Success.WithWriter(p.out).Printfln(format, a...)
}

func (p printer) info(format string, a ...any) {
	pterm.Info.WithWriter(p.err).Printfln(format, a...)
}

func (p printer) warn(format string, a ...any) {
	pterm.Warning.WithWriter(p.err).Printfln(format, a...)
}

func (p printer) fail(msg string) {
	pterm.Error.WithWriter(p.err).Println(msg)
}

// table renders rows with a header line.
func (p printer) table(header []string, rows [][]string) error {
	data := append(pterm.TableData{header}, rows...)
	return pterm.DefaultTable.WithHasHeader().WithWriter(p.out).WithData(data).Render()
}

func (p printer) json(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

// progress reports pipeline transitions on stderr.
func (p printer) progress() publish.Observer {
	return func(t publish.Transition) {
		if t.To.Terminal() {
			return
		}
		p.info("%s", stateLabels[t.To])
	}
}

var stateLabels = map[publish.State]string{
	publish.Validating:                 "Validating package",
	publish.Archiving:                  "Building archive",
	publish.Uploading:                  "Uploading to content storage",
	publish.FeeCheck:                   "Checking balance",
	publish.AwaitingUserConfirmation:   "Waiting for confirmation",
	publish.Submitting:                 "Submitting transaction",
	publish.AwaitingLedgerConfirmation: "Waiting for ledger confirmation",
	publish.Verifying:                  "Verifying registry entry",
}

// outcome renders the terminal state of a paid action. A declined
// confirmation and an unconfirmed transaction are reported, not failed; a
// reverted transaction is an error so that the exit code reflects it.
func (p printer) outcome(state publish.State, msg string) error {
	switch state {
	case publish.Done:
		p.success("%s", msg)
	case publish.Cancelled, publish.ConfirmationPending:
		p.warn("%s", msg)
	default:
		return errs.New(errs.KindBlockchain, "%s", msg)
	}
	return nil
}
