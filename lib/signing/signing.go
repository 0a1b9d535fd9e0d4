package signing

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// DecodeKey decodes a bech32 key (npub/nsec) into its raw bytes.
func DecodeKey(serializedKey string) (string, []byte, error) {
	hrp, bytesToBits, err := bech32.Decode(serializedKey)
	if err != nil {
		return "", nil, err
	}

	keyBytes, err := bech32.ConvertBits(bytesToBits, 5, 8, false)
	if err != nil {
		return "", nil, err
	}

	return hrp, keyBytes, nil
}

// NormalizePublicKey accepts a 64 character hex key or an npub and returns
// the lower case hex form.
func NormalizePublicKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil
	}

	if strings.HasPrefix(key, "npub1") {
		hrp, raw, err := DecodeKey(key)
		if err != nil {
			return "", fmt.Errorf("invalid npub: %w", err)
		}
		if hrp != "npub" || len(raw) != 32 {
			return "", fmt.Errorf("invalid npub: unexpected payload")
		}
		return hex.EncodeToString(raw), nil
	}

	key = strings.ToLower(key)
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("public key must be 64 hex characters or an npub")
	}
	return key, nil
}

// VerifySignature checks a BIP-340 signature over a 32 byte hash.
// All three arguments are hex encoded.
func VerifySignature(signatureHex, hashHex, publicKeyHex string) error {
	pubBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return fmt.Errorf("public key is not hex: %w", err)
	}
	publicKey, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("signature is not hex: %w", err)
	}
	signature, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}

	hash, err := hex.DecodeString(hashHex)
	if err != nil {
		return fmt.Errorf("hash is not hex: %w", err)
	}

	if !signature.Verify(hash, publicKey) {
		return fmt.Errorf("data failed to verify")
	}
	return nil
}
