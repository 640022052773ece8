// Package cli defines the Cobra command tree for the chainpkg CLI. Each file
// in this package builds one top-level command (publish, install, wallet,
// etc.) and adds it to the root command. Commands delegate to internal
// packages through an app.App and only handle flag parsing, output
// formatting and the confirmation prompt. Every failure reaches the user
// through the errs.Handler boundary in Execute.
package cli
