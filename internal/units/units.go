// Package units converts between human coin amounts ("1.5") and the
// ledger's integer base units. One coin is 10^8 base units.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// Decimals is the number of fractional digits of one coin.
	Decimals = 8

	// PerCoin is the number of base units in one coin.
	PerCoin uint64 = 100_000_000
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrOverflow      = errors.New("amount overflows uint64")
)

var printer = message.NewPrinter(language.English)

// Parse converts a decimal coin string into base units. Up to Decimals
// fractional digits are accepted; negative values and exponents are not.
func Parse(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Decimals {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, Decimals)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	if w > math.MaxUint64/PerCoin {
		return 0, fmt.Errorf("%w: %q", ErrOverflow, s)
	}

	var f uint64
	if frac != "" {
		padded := frac + strings.Repeat("0", Decimals-len(frac))
		f, err = strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}

	total := w*PerCoin + f
	if total < w*PerCoin {
		return 0, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return total, nil
}

// Format renders base units as a decimal coin string without trailing zeros.
func Format(v uint64) string {
	whole := v / PerCoin
	frac := v % PerCoin
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fs := fmt.Sprintf("%0*d", Decimals, frac)
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(fs, "0")
}

// Display renders base units with thousands separators, e.g. "12,000.5".
func Display(v uint64) string {
	s := Format(v)
	whole, frac, hasDot := strings.Cut(s, ".")
	n, _ := strconv.ParseUint(whole, 10, 64)
	out := printer.Sprintf("%d", n)
	if hasDot {
		out += "." + frac
	}
	return out
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
