// Package registry wraps the on-chain package registry. Reads are view calls
// that return parsed domain objects, or nil and empty collections when
// nothing is found. Writes follow one protocol: build the call with
// positional arguments in registry order, sign, submit, wait for the ledger
// and report a TransactionResult. A reverted write is a result with
// Success=false, never an error.
package registry
