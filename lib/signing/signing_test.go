package signing

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HORNET-Storage/hornet-gatekeeper/testing/helpers"
)

func TestNormalizePublicKey(t *testing.T) {
	kp := helpers.MustKeyPair()

	raw, err := hex.DecodeString(kp.PublicKey)
	require.NoError(t, err)
	bits, err := bech32.ConvertBits(raw, 8, 5, true)
	require.NoError(t, err)
	npub, err := bech32.Encode("npub", bits)
	require.NoError(t, err)

	got, err := NormalizePublicKey(npub)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, got)

	got, err = NormalizePublicKey("  " + kp.PublicKey + " ")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, got)

	got, err = NormalizePublicKey("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NormalizePublicKey("abcd")
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	kp := helpers.MustKeyPair()
	ev, err := helpers.CreateTextNote(kp, "signed")
	require.NoError(t, err)

	assert.NoError(t, VerifySignature(ev.Sig, ev.ID, ev.PubKey))

	other := helpers.MustKeyPair()
	assert.Error(t, VerifySignature(ev.Sig, ev.ID, other.PublicKey))
	assert.Error(t, VerifySignature("zz", ev.ID, ev.PubKey))
}
