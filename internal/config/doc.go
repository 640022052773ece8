// Package config owns the single JSON configuration document stored at
// ~/.chainpkg/config.json: the selected network, known networks, stored
// wallets, the default-wallet pointer and storage-provider credentials.
//
// Store is the only writer of the document. Every mutator persists the
// document atomically (temp file + rename). There is no inter-process lock:
// two processes mutating the same file race, and the last writer wins.
// Callers should serialize config-mutating commands.
package config
