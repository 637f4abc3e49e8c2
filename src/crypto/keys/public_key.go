package keys

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec"
)

// NodeID returns the compressed form of the public key. It is the identity
// under which a node signs envelopes.
func NodeID(pub *btcec.PublicKey) []byte {
	if pub == nil {
		return nil
	}
	return pub.SerializeCompressed()
}

// ParsePublicKey parses a compressed or uncompressed secp256k1 public key.
func ParsePublicKey(pub []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(pub, Curve())
}

// PublicKeyHex returns the NodeID as 0X-prefixed upper-case hex, the form
// shown in logs, stats and the keygen output.
func PublicKeyHex(pub *btcec.PublicKey) string {
	return fmt.Sprintf("0X%X", NodeID(pub))
}
