package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte("payload")
	a := HashWithDomain(DomainIntent, data)
	b := HashWithDomain(DomainCode, data)

	assert.NotEqual(t, a, b)
	assert.Len(t, a.String(), 64)
	assert.Equal(t, a, HashWithDomain(DomainIntent, data))
}

func TestIntentHashStableAcrossKeyOrder(t *testing.T) {
	first := IRObject{"nonce": IRInt(1), "signer": IRString("k")}
	second := IRObject{"signer": IRString("k"), "nonce": IRInt(1)}

	h1, err := IntentHash(first)
	require.NoError(t, err)
	h2, err := IntentHash(second)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3 := MustIntentHash(IRObject{"nonce": IRInt(2), "signer": IRString("k")})
	assert.NotEqual(t, h1, h3)
}

func TestCodeHash(t *testing.T) {
	assert.Equal(t, CodeHash([]byte("a")), CodeHash([]byte("a")))
	assert.NotEqual(t, CodeHash([]byte("a")), CodeHash([]byte("b")))
}
