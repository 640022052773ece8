// Package logging builds the zap logger used across chainpkg. Console output
// goes to stderr at warn level (debug with --verbose); a JSON copy of every
// entry is written to a rotating file under the chainpkg home directory.
package logging
