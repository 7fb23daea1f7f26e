package attest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignerRoundTrip(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)

	rec, err := FromReport(sampleReport())
	require.NoError(t, err)
	digest, err := Hash(rec)
	require.NoError(t, err)

	sig, err := signer.Sign(digest)
	require.NoError(t, err)
	assert.Len(t, sig, 2+65*2)
	assert.Contains(t, []string{"1b", "1c"}, sig[len(sig)-2:])

	addr, err := Recover(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), addr)
}

func TestRecoverRejectsTamperedDigest(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)
	rec, err := FromReport(sampleReport())
	require.NoError(t, err)
	digest, err := Hash(rec)
	require.NoError(t, err)
	sig, err := signer.Sign(digest)
	require.NoError(t, err)

	rec.ConfidenceMilli++
	other, err := Hash(rec)
	require.NoError(t, err)
	addr, err := Recover(other, sig)
	if err == nil {
		assert.NotEqual(t, signer.Address(), addr)
	}
}

func TestNewSignerRejectsBadKeys(t *testing.T) {
	_, err := NewSigner("")
	assert.Error(t, err)
	_, err = NewSigner("0xnothex")
	assert.Error(t, err)
}

func TestRecoverRejectsShortSignature(t *testing.T) {
	_, err := Recover([32]byte{}, "0x1234")
	assert.Error(t, err)
}
