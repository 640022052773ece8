package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/errs"
)

// SignatureType identifies the signature scheme in submissions.
const SignatureType = "secp256k1_ecdsa_signature"

// Gas settings sent with every submission.
const (
	maxGasAmount   = 200000
	gasUnitPrice   = 100
	expirationSecs = 600
)

// ErrConfirmationPending is returned by WaitForTransaction when the
// confirmation bound elapses before the node reports a terminal state. The
// transaction may still commit later.
var ErrConfirmationPending = errors.New("transaction confirmation pending")

// Signer signs submissions on behalf of one account.
type Signer interface {
	Address() string
	PublicKeyHex() string
	Sign(message []byte) ([]byte, error)
}

// EntryFunction is a state-changing call.
type EntryFunction struct {
	Function      string
	TypeArguments []string
	Arguments     []any
}

type entryPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// UnsignedTransaction is the body sent to encode_submission.
type UnsignedTransaction struct {
	Sender                  string       `json:"sender"`
	SequenceNumber          string       `json:"sequence_number"`
	MaxGasAmount            string       `json:"max_gas_amount"`
	GasUnitPrice            string       `json:"gas_unit_price"`
	ExpirationTimestampSecs string       `json:"expiration_timestamp_secs"`
	Payload                 entryPayload `json:"payload"`
}

// Signature accompanies a signed submission.
type Signature struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// SignedTransaction is the body sent to /v1/transactions.
type SignedTransaction struct {
	UnsignedTransaction
	Signature Signature `json:"signature"`
}

// TxStatus is the node's view of one transaction.
type TxStatus struct {
	Hash     string `json:"hash"`
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status"`
	Version  string `json:"version,omitempty"`
}

// Committed reports whether the transaction reached a terminal state.
func (s *TxStatus) Committed() bool {
	return s != nil && s.Type != "" && s.Type != "pending_transaction"
}

// Submit builds, signs and submits call from signer's account and returns
// the pending transaction hash.
func (c *Client) Submit(ctx context.Context, signer Signer, call EntryFunction) (string, error) {
	const op = "ledger.submit"
	seq, err := c.SequenceNumber(ctx, signer.Address())
	if err != nil {
		return "", err
	}

	if call.TypeArguments == nil {
		call.TypeArguments = []string{}
	}
	if call.Arguments == nil {
		call.Arguments = []any{}
	}
	unsigned := UnsignedTransaction{
		Sender:                  signer.Address(),
		SequenceNumber:          strconv.FormatUint(seq, 10),
		MaxGasAmount:            strconv.Itoa(maxGasAmount),
		GasUnitPrice:            strconv.Itoa(gasUnitPrice),
		ExpirationTimestampSecs: strconv.FormatInt(time.Now().Add(expirationSecs*time.Second).Unix(), 10),
		Payload: entryPayload{
			Type:          "entry_function_payload",
			Function:      call.Function,
			TypeArguments: call.TypeArguments,
			Arguments:     call.Arguments,
		},
	}

	resp, err := c.do(ctx, op, c.http.R().SetContext(ctx).SetBody(unsigned), http.MethodPost, "/v1/transactions/encode_submission")
	if err != nil {
		return "", err
	}
	var encoded string
	if err := json.Unmarshal(resp.Body(), &encoded); err != nil {
		return "", decodeError(op, err, "encode_submission")
	}
	message, err := hex.DecodeString(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		return "", decodeError(op, err, "signing message")
	}

	sig, err := signer.Sign(message)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "signing transaction").WithOp(op)
	}
	signed := SignedTransaction{
		UnsignedTransaction: unsigned,
		Signature: Signature{
			Type:      SignatureType,
			PublicKey: signer.PublicKeyHex(),
			Signature: "0x" + hex.EncodeToString(sig),
		},
	}

	resp, err = c.do(ctx, op, c.http.R().SetContext(ctx).SetBody(signed), http.MethodPost, "/v1/transactions")
	if err != nil {
		return "", errs.Wrap(errs.KindOf(err), err, "submitting %s", call.Function).With("function", call.Function)
	}
	var pending TxStatus
	if err := json.Unmarshal(resp.Body(), &pending); err != nil || pending.Hash == "" {
		if err == nil {
			err = errors.New("missing hash")
		}
		return "", decodeError(op, err, "submission")
	}
	c.log.Info("transaction submitted",
		zap.String("tx", pending.Hash),
		zap.String("function", call.Function),
		zap.String("sender", signer.Address()))
	return pending.Hash, nil
}

// Transaction fetches the status of hash. A hash the node has not indexed
// yet is reported as pending.
func (c *Client) Transaction(ctx context.Context, hash string) (*TxStatus, error) {
	const op = "ledger.transaction"
	resp, err := c.do(ctx, op, c.http.R().SetContext(ctx), http.MethodGet, "/v1/transactions/by_hash/"+hash)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return &TxStatus{Hash: hash, Type: "pending_transaction"}, nil
		}
		return nil, err
	}
	var st TxStatus
	if err := json.Unmarshal(resp.Body(), &st); err != nil {
		return nil, decodeError(op, err, "transaction")
	}
	if st.Hash == "" {
		st.Hash = hash
	}
	return &st, nil
}

// WaitForTransaction polls until hash is committed, backing off from the
// poll interval up to the max poll interval. When the confirmation timeout
// elapses first it returns the last status with ErrConfirmationPending.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) (*TxStatus, error) {
	deadline := time.Now().Add(c.confirmTimeout)
	delay := c.pollInterval
	last := &TxStatus{Hash: hash, Type: "pending_transaction"}

	for {
		st, err := c.Transaction(ctx, hash)
		switch {
		case err != nil && !errs.IsKind(err, errs.KindNetwork):
			return nil, err
		case err != nil:
			c.log.Debug("transaction poll failed, retrying", zap.String("tx", hash), zap.Error(err))
		case st.Committed():
			return st, nil
		default:
			last = st
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.log.Warn("confirmation wait elapsed",
				zap.String("tx", hash),
				zap.Duration("timeout", c.confirmTimeout))
			return last, ErrConfirmationPending
		}
		if delay > remaining {
			delay = remaining
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, errs.Wrap(errs.KindNetwork, ctx.Err(), "waiting for transaction %s", hash).With("tx", hash)
		case <-timer.C:
		}
		delay *= 2
		if delay > c.maxPoll {
			delay = c.maxPoll
		}
	}
}
