package ledgertest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/chainpkg/chainpkg/internal/ledger"
)

// Abort codes reported in vm_status for reverted registry calls.
const (
	AbortInsufficientBalance = "Move abort: EINSUFFICIENT_BALANCE"
	AbortPackageExists       = "Move abort: EPACKAGE_ALREADY_EXISTS"
	AbortPackageNotFound     = "Move abort: EPACKAGE_NOT_FOUND"
	AbortNotEndorser         = "Move abort: ENOT_ENDORSER"
	AbortAlreadyEndorsed     = "Move abort: EALREADY_ENDORSED"
	AbortStakeTooLow         = "Move abort: ESTAKE_TOO_LOW"
	AbortAlreadyRegistered   = "Move abort: EALREADY_REGISTERED"
	AbortAlreadyInitialized  = "Move abort: EALREADY_INITIALIZED"
	AbortBadArguments        = "Move abort: EINVALID_ARGUMENTS"
)

// execLocked applies one entry function and returns an empty string on
// success or the abort status.
func (n *Node) execLocked(sender string, p ledger.SignedTransaction) string {
	args := p.Payload.Arguments
	str := func(i int) string {
		if i >= len(args) {
			return ""
		}
		s, _ := args[i].(string)
		return s
	}

	switch shortName(p.Payload.Function) {
	case "initialize":
		if n.initialized {
			return AbortAlreadyInitialized
		}
		n.initialized = true
		return ""

	case "publish_package":
		if len(args) != 9 {
			return AbortBadArguments
		}
		name, version := str(0), str(1)
		if n.findLocked(name, version) != nil {
			return AbortPackageExists
		}
		if n.balances[sender] < n.PublishFee {
			return AbortInsufficientBalance
		}
		contentAddr, err := hex.DecodeString(strings.TrimPrefix(str(2), "0x"))
		if err != nil {
			return AbortBadArguments
		}
		n.balances[sender] -= n.PublishFee
		n.addLocked(&Package{
			Name:           name,
			Version:        version,
			Publisher:      sender,
			ContentAddress: string(contentAddr),
			Timestamp:      n.tick(),
			Kind:           str(3),
			Description:    str(4),
			Tags:           stringList(args[5]),
			Homepage:       str(6),
			Repository:     str(7),
			License:        str(8),
		})
		return ""

	case "endorse_package":
		e, ok := n.endorsers[sender]
		if !ok || !e.Active {
			return AbortNotEndorser
		}
		pkg := n.findLocked(str(0), str(1))
		if pkg == nil {
			return AbortPackageNotFound
		}
		for _, a := range pkg.Endorsements {
			if a == sender {
				return AbortAlreadyEndorsed
			}
		}
		if n.balances[sender] < n.EndorseFee {
			return AbortInsufficientBalance
		}
		n.balances[sender] -= n.EndorseFee
		pkg.Endorsements = append(pkg.Endorsements, sender)
		e.PackagesEndorsed++
		e.Reputation++
		return ""

	case "tip_package":
		pkg := n.findLocked(str(0), str(1))
		if pkg == nil {
			return AbortPackageNotFound
		}
		amount, err := strconv.ParseUint(str(2), 10, 64)
		if err != nil || amount == 0 {
			return AbortBadArguments
		}
		if n.balances[sender] < amount {
			return AbortInsufficientBalance
		}
		n.balances[sender] -= amount
		n.balances[pkg.Publisher] += amount
		pkg.Tips += amount
		return ""

	case "register_endorser":
		stake, err := strconv.ParseUint(str(0), 10, 64)
		if err != nil {
			return AbortBadArguments
		}
		if e, ok := n.endorsers[sender]; ok && e.Active {
			return AbortAlreadyRegistered
		}
		if stake < n.MinStake {
			return AbortStakeTooLow
		}
		if n.balances[sender] < stake+n.RegisterFee {
			return AbortInsufficientBalance
		}
		n.balances[sender] -= stake + n.RegisterFee
		n.endorsers[sender] = &Endorser{Address: sender, Stake: stake, Active: true, RegisteredAt: n.tick()}
		return ""
	}
	return fmt.Sprintf("Move abort: EFUNCTION_NOT_FOUND %s", p.Payload.Function)
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (n *Node) handleView(w http.ResponseWriter, r *http.Request) {
	var req ledger.ViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "%v", err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	fn := shortName(req.Function)
	n.views[fn]++
	if c, ok := n.canned[fn]; ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(c.status)
		_, _ = w.Write([]byte(c.body))
		return
	}
	arg := func(i int) string {
		if i >= len(req.Arguments) {
			return ""
		}
		s, _ := req.Arguments[i].(string)
		return s
	}

	if req.Function == ledger.CoinBalanceFunction {
		addr := norm(arg(0))
		bal, ok := n.balances[addr]
		if !ok {
			writeError(w, http.StatusNotFound, "resource_not_found", "account %s has no coin store", addr)
			return
		}
		writeJSON(w, http.StatusOK, []string{strconv.FormatUint(bal, 10)})
		return
	}
	if !strings.Contains(req.Function, "::"+Module+"::") {
		writeError(w, http.StatusBadRequest, "invalid_input", "unknown function %s", req.Function)
		return
	}

	switch fn {
	case "get_package_metadata":
		if p := n.findLocked(arg(0), arg(1)); p != nil {
			writeJSON(w, http.StatusOK, []any{option(encodePackage(p))})
			return
		}
		writeJSON(w, http.StatusOK, []any{option(nil)})
	case "get_package_versions":
		versions := []string{}
		for _, p := range n.packages[arg(0)] {
			versions = append(versions, p.Version)
		}
		writeJSON(w, http.StatusOK, []any{versions})
	case "get_all_packages":
		all := []any{}
		for _, name := range n.order {
			for _, p := range n.packages[name] {
				all = append(all, encodePackage(p))
			}
		}
		writeJSON(w, http.StatusOK, []any{all})
	case "get_registry_stats":
		var total, downloads, tips uint64
		for _, versions := range n.packages {
			for _, p := range versions {
				total++
				downloads += p.Downloads
				tips += p.Tips
			}
		}
		writeJSON(w, http.StatusOK, []string{
			u64(total), u64(uint64(len(n.endorsers))), u64(downloads), u64(tips),
		})
	case "get_endorser_info":
		if e, ok := n.endorsers[norm(arg(0))]; ok {
			writeJSON(w, http.StatusOK, []any{option(map[string]any{
				"endorser_address":  e.Address,
				"stake_amount":      u64(e.Stake),
				"is_active":         e.Active,
				"reputation_score":  u64(e.Reputation),
				"packages_endorsed": u64(e.PackagesEndorsed),
				"registered_at":     u64(e.RegisteredAt),
			})})
			return
		}
		writeJSON(w, http.StatusOK, []any{option(nil)})
	default:
		writeError(w, http.StatusBadRequest, "invalid_input", "unknown function %s", req.Function)
	}
}

func encodePackage(p *Package) map[string]any {
	endorsements := append([]string{}, p.Endorsements...)
	tags := append([]string{}, p.Tags...)
	return map[string]any{
		"name":           p.Name,
		"version":        p.Version,
		"publisher":      p.Publisher,
		"ipfs_hash":      "0x" + hex.EncodeToString([]byte(p.ContentAddress)),
		"endorsements":   endorsements,
		"timestamp":      u64(p.Timestamp),
		"package_type":   p.Kind,
		"download_count": u64(p.Downloads),
		"total_tips":     u64(p.Tips),
		"tags":           tags,
		"description":    p.Description,
		"homepage":       optionalString(p.Homepage),
		"repository":     optionalString(p.Repository),
		"license":        optionalString(p.License),
	}
}

func option(v any) map[string]any {
	if v == nil {
		return map[string]any{"vec": []any{}}
	}
	return map[string]any{"vec": []any{v}}
}

func optionalString(s string) map[string]any {
	if s == "" {
		return option(nil)
	}
	return option(s)
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
