// Package archive builds and unpacks package bundles.
//
// A bundle is a zip file whose bytes depend only on the relative paths,
// contents and executable bits of the files it holds: entries are sorted,
// timestamps are pinned to DOS epoch and modes are normalized. Publishing
// the same tree twice therefore yields the same content address.
package archive
