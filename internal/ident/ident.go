// Package ident derives the opaque tokens under which bank account
// identifiers are stored. Identifiers never hit the database in
// plaintext; bindings and transactions carry the token instead. The
// matcher only ever compares tokens for equality, so raw identifiers
// (e.g. from legacy data) work as tokens too.
package ident

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 1000
	keyLen     = 6
)

// Token derives the storage token for a bank account identifier. The
// account holder name goes in as the key material and the identifier as
// the salt, so the same identifier under a different holder name yields
// a different token.
func Token(identifier, holder string) string {
	key := pbkdf2.Key([]byte(holder), []byte(identifier), iterations, keyLen, sha256.New)
	return hex.EncodeToString(key)
}
