package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// ErrInvalidPrivateKey is returned for scalars outside [1, N-1].
var ErrInvalidPrivateKey = errors.New("invalid private key")

// Curve returns secp256k1, the curve of every node and account key.
func Curve() *btcec.KoblitzCurve {
	return btcec.S256()
}

// GenerateKey creates a new node key.
func GenerateKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey(Curve())
}

// DumpPrivateKey returns the 32-byte big-endian scalar of priv.
func DumpPrivateKey(priv *btcec.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return priv.Serialize()
}

// ParsePrivateKey is the inverse of DumpPrivateKey.
func ParsePrivateKey(d []byte) (*btcec.PrivateKey, error) {
	curve := Curve()

	if len(d) != curve.BitSize/8 {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidPrivateKey, len(d), curve.BitSize/8)
	}

	if n := new(big.Int).SetBytes(d); n.Sign() == 0 || n.Cmp(curve.N) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidPrivateKey)
	}

	priv, _ := btcec.PrivKeyFromBytes(curve, d)
	return priv, nil
}

// PrivateKeyHex is the keyfile encoding of priv.
func PrivateKeyHex(priv *btcec.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(priv))
}
