// Package ledgertest runs an in-process node that speaks the ledger REST
// dialect and implements the package registry, so pipelines can be tested
// end to end without a chain.
package ledgertest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainpkg/chainpkg/internal/ledger"
)

// Registry module name on chain.
const Module = "package_registry"

const signingPrefix = "CHAINPKG::RawTransaction::"

// Package is the node's record of one published version.
type Package struct {
	Name           string
	Version        string
	Publisher      string
	ContentAddress string
	Endorsements   []string
	Timestamp      uint64
	Kind           string
	Downloads      uint64
	Tips           uint64
	Tags           []string
	Description    string
	Homepage       string
	Repository     string
	License        string
}

// Endorser is the node's record of a registered endorser.
type Endorser struct {
	Address          string
	Stake            uint64
	Active           bool
	Reputation       uint64
	PackagesEndorsed uint64
	RegisteredAt     uint64
}

type tx struct {
	status    ledger.TxStatus
	pollsLeft int
}

type cannedResponse struct {
	status int
	body   string
}

// Node is a fake chain node. Fees are charged by the registry functions the
// same way the deployed contract does: publish fee to publish, endorse fee
// to endorse, registration fee plus stake to register.
type Node struct {
	Server *httptest.Server

	// Fees in base units.
	PublishFee  uint64
	EndorseFee  uint64
	RegisterFee uint64
	MinStake    uint64

	// PendingPolls is how many status polls report pending before commit.
	PendingPolls int
	// Stall keeps every transaction pending forever.
	Stall bool

	mu          sync.Mutex
	balances    map[string]uint64
	sequence    map[string]uint64
	packages    map[string][]*Package
	order       []string
	endorsers   map[string]*Endorser
	txs         map[string]*tx
	initialized bool
	clock       uint64

	submissions int
	calls       map[string]int
	views       map[string]int
	canned      map[string]cannedResponse
	faucetCalls int
}

// New starts a node and closes it when the test ends.
func New(t testing.TB) *Node {
	t.Helper()
	n := &Node{
		PublishFee:  100_000_000,
		EndorseFee:  1_000_000,
		RegisterFee: 10_000_000,
		MinStake:    100_000_000,
		balances:    make(map[string]uint64),
		sequence:    make(map[string]uint64),
		packages:    make(map[string][]*Package),
		endorsers:   make(map[string]*Endorser),
		txs:         make(map[string]*tx),
		calls:       make(map[string]int),
		views:       make(map[string]int),
		canned:      make(map[string]cannedResponse),
		clock:       uint64(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1", n.handleIndex)
	mux.HandleFunc("POST /v1/view", n.handleView)
	mux.HandleFunc("GET /v1/accounts/{addr}", n.handleAccount)
	mux.HandleFunc("POST /v1/transactions/encode_submission", n.handleEncode)
	mux.HandleFunc("POST /v1/transactions", n.handleSubmit)
	mux.HandleFunc("GET /v1/transactions/by_hash/{hash}", n.handleTransaction)
	mux.HandleFunc("POST /faucet/mint", n.handleMint)
	n.Server = httptest.NewServer(mux)
	t.Cleanup(n.Server.Close)
	return n
}

// URL is the node base URL.
func (n *Node) URL() string { return n.Server.URL }

// FaucetURL is the faucet base URL.
func (n *Node) FaucetURL() string { return n.Server.URL + "/faucet" }

// SetBalance sets the native balance of addr.
func (n *Node) SetBalance(addr string, v uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[norm(addr)] = v
}

// BalanceOf returns the native balance of addr.
func (n *Node) BalanceOf(addr string) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.balances[norm(addr)]
}

// Submissions counts POST /v1/transactions calls, accepted or not.
func (n *Node) Submissions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.submissions
}

// Calls counts submitted calls to a registry function by short name.
func (n *Node) Calls(fn string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[fn]
}

// Views counts view calls by short function name.
func (n *Node) Views(fn string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.views[fn]
}

// FaucetCalls counts mint requests.
func (n *Node) FaucetCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.faucetCalls
}

// AddPackage seeds a published version directly.
func (n *Node) AddPackage(p Package) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p.Publisher = norm(p.Publisher)
	if p.Timestamp == 0 {
		p.Timestamp = n.tick()
	}
	n.addLocked(&p)
}

// Package returns the stored record for name@version.
func (n *Node) Package(name, version string) (Package, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p := n.findLocked(name, version); p != nil {
		return *p, true
	}
	return Package{}, false
}

// AddEndorser registers addr directly.
func (n *Node) AddEndorser(addr string, stake uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.endorsers[norm(addr)] = &Endorser{Address: norm(addr), Stake: stake, Active: true, RegisteredAt: n.tick()}
}

// RespondView makes the next and all later calls to the view function fn
// (short name) return status and body verbatim.
func (n *Node) RespondView(fn string, status int, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.canned[fn] = cannedResponse{status: status, body: body}
}

func (n *Node) addLocked(p *Package) {
	if _, ok := n.packages[p.Name]; !ok {
		n.order = append(n.order, p.Name)
	}
	n.packages[p.Name] = append(n.packages[p.Name], p)
}

func (n *Node) findLocked(name, version string) *Package {
	for _, p := range n.packages[name] {
		if p.Version == version {
			return p
		}
	}
	return nil
}

func (n *Node) tick() uint64 {
	n.clock++
	return n.clock
}

func norm(addr string) string { return strings.ToLower(addr) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, format string, args ...any) {
	writeJSON(w, status, map[string]string{"message": fmt.Sprintf(format, args...), "error_code": code})
}

func (n *Node) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"chain_id": "4", "node_role": "full_node"})
}

func (n *Node) handleAccount(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	addr := norm(r.PathValue("addr"))
	writeJSON(w, http.StatusOK, map[string]string{
		"sequence_number": strconv.FormatUint(n.sequence[addr], 10),
	})
}

func (n *Node) handleMint(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.faucetCalls++
	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", "invalid amount")
		return
	}
	n.balances[norm(r.URL.Query().Get("address"))] += amount
	writeJSON(w, http.StatusOK, []string{fmt.Sprintf("0x%064x", n.tick())})
}

func (n *Node) handleEncode(w http.ResponseWriter, r *http.Request) {
	var unsigned ledger.UnsignedTransaction
	if err := json.NewDecoder(r.Body).Decode(&unsigned); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "%v", err)
		return
	}
	msg, err := signingMessage(unsigned)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, "0x"+hex.EncodeToString(msg))
}

func signingMessage(u ledger.UnsignedTransaction) ([]byte, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	return append([]byte(signingPrefix), body...), nil
}

func (n *Node) handleSubmit(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	n.submissions++
	n.mu.Unlock()

	var signed ledger.SignedTransaction
	if err := json.NewDecoder(r.Body).Decode(&signed); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "%v", err)
		return
	}
	if err := verify(signed); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_signature", "%v", err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	sender := norm(signed.Sender)
	if signed.SequenceNumber != strconv.FormatUint(n.sequence[sender], 10) {
		writeError(w, http.StatusBadRequest, "sequence_number_too_old", "sequence number %s is stale", signed.SequenceNumber)
		return
	}
	n.sequence[sender]++

	fn := shortName(signed.Payload.Function)
	n.calls[fn]++
	vmStatus := n.execLocked(sender, signed)

	hash := fmt.Sprintf("0x%064x", n.tick())
	t := &tx{status: ledger.TxStatus{
		Hash:     hash,
		Type:     "user_transaction",
		Success:  vmStatus == "",
		VMStatus: "Executed successfully",
		Version:  strconv.FormatUint(n.clock, 10),
	}, pollsLeft: n.PendingPolls}
	if vmStatus != "" {
		t.status.VMStatus = vmStatus
	}
	n.txs[hash] = t
	writeJSON(w, http.StatusAccepted, ledger.TxStatus{Hash: hash, Type: "pending_transaction"})
}

func verify(s ledger.SignedTransaction) error {
	if s.Signature.Type != ledger.SignatureType {
		return fmt.Errorf("unsupported signature type %q", s.Signature.Type)
	}
	msg, err := signingMessage(s.UnsignedTransaction)
	if err != nil {
		return err
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(s.Signature.Signature, "0x"))
	if err != nil {
		return fmt.Errorf("signature encoding: %w", err)
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(msg), sig)
	if err != nil {
		return fmt.Errorf("recovering signer: %w", err)
	}
	if got := norm(crypto.PubkeyToAddress(*pub).Hex()); got != norm(s.Sender) {
		return fmt.Errorf("signature by %s does not match sender %s", got, s.Sender)
	}
	return nil
}

func (n *Node) handleTransaction(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.txs[r.PathValue("hash")]
	if !ok {
		writeError(w, http.StatusNotFound, "transaction_not_found", "transaction not found")
		return
	}
	if n.Stall || t.pollsLeft > 0 {
		t.pollsLeft--
		writeJSON(w, http.StatusOK, ledger.TxStatus{Hash: t.status.Hash, Type: "pending_transaction"})
		return
	}
	writeJSON(w, http.StatusOK, t.status)
}

func shortName(function string) string {
	if i := strings.LastIndex(function, "::"); i >= 0 {
		return function[i+2:]
	}
	return function
}
