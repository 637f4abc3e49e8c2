package keys

import (
	"github.com/btcsuite/btcd/btcec"
)

// Sign signs a digest with the private key and returns the DER encoded
// signature.
func Sign(priv *btcec.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := priv.Sign(digest)
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// Verify reports whether sig is a valid signature of digest by the owner of
// the public key pub, given in compressed or uncompressed form. Malformed keys
// or signatures simply fail verification.
func Verify(pub []byte, digest []byte, sig []byte) bool {
	pubKey, err := ParsePublicKey(pub)
	if err != nil {
		return false
	}

	signature, err := btcec.ParseDERSignature(sig, Curve())
	if err != nil {
		return false
	}

	return signature.Verify(digest, pubKey)
}
