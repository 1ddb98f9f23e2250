package ident

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	tok := Token("DE12345678901234567890", "Ada Lovelace")
	assert.Len(t, tok, 12)
	_, err := hex.DecodeString(tok)
	require.NoError(t, err)

	// Deterministic.
	assert.Equal(t, tok, Token("DE12345678901234567890", "Ada Lovelace"))

	// Holder and identifier both feed the derivation.
	assert.NotEqual(t, tok, Token("DE12345678901234567890", "Someone Else"))
	assert.NotEqual(t, tok, Token("DE00000000000000000000", "Ada Lovelace"))
}
