// Package ledger is the REST transport to a chain node. It covers the calls
// the registry wrapper needs: view functions, account sequence numbers,
// signed entry-function submission, transaction polling and the faucet.
//
// Failures to reach the node are NetworkErrors; error responses and
// undecodable payloads are BlockchainErrors. A transaction that executes and
// reverts is reported through TxStatus, not as an error.
package ledger
