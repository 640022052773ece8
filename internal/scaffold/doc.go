// Package scaffold generates new Move packages from embedded templates. It
// powers "chainpkg init", producing Move.toml, chainpkg.yaml, a starter
// module under sources/ and a README for the basic, token and defi
// templates.
package scaffold
