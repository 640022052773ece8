package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/term"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/publish"
	"github.com/chainpkg/chainpkg/internal/units"
)

// confirmer returns the gate for paid writes: AutoConfirm for --yes, an
// interactive prompt on a terminal and a y/N line read otherwise.
func confirmer(in io.Reader, p printer, yes bool) publish.Confirmer {
	if yes {
		return publish.AutoConfirm
	}
	return publish.ConfirmFunc(func(ctx context.Context, q publish.Quote) (bool, error) {
		describeQuote(p, q)
		total, _ := q.Total()
		question := fmt.Sprintf("Pay %s to %s?", units.Display(total), q.Action)
		if isTerminal(in) {
			return pterm.DefaultInteractiveConfirm.WithDefaultValue(false).Show(question)
		}
		fmt.Fprintf(p.err, "%s [y/N]: ", question)
		line, err := readLine(in)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	})
}

func describeQuote(p printer, q publish.Quote) {
	target := q.Package
	if q.Version != "" {
		target += "@" + q.Version
	}
	lines := []string{fmt.Sprintf("Action:   %s", q.Action)}
	if target != "" {
		lines = append(lines, fmt.Sprintf("Package:  %s", target))
	}
	if q.ContentAddress != "" {
		lines = append(lines, fmt.Sprintf("Content:  %s", q.ContentAddress))
	}
	lines = append(lines,
		fmt.Sprintf("Network:  %s", q.Network),
		fmt.Sprintf("Signer:   %s", q.Signer),
		fmt.Sprintf("Fee:      %s", units.Display(q.Fee)),
	)
	if q.Extra > 0 {
		lines = append(lines, fmt.Sprintf("Amount:   %s", units.Display(q.Extra)))
	}
	lines = append(lines, fmt.Sprintf("Balance:  %s", units.Display(q.Balance)))
	for _, l := range lines {
		fmt.Fprintln(p.err, l)
	}
}

// readSecret reads one line without echo from a terminal, or a plain line
// from any other reader.
func readSecret(in io.Reader, p printer, prompt string) (string, error) {
	if isTerminal(in) {
		fmt.Fprint(p.err, prompt+": ")
		b, err := term.ReadPassword(int(in.(*os.File).Fd()))
		fmt.Fprintln(p.err)
		if err != nil {
			return "", errs.Wrap(errs.KindValidation, err, "reading %s", prompt)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", errs.New(errs.KindValidation, "no input")
		}
		return "", errs.Wrap(errs.KindValidation, err, "reading input")
	}
	return strings.TrimSpace(line), nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
