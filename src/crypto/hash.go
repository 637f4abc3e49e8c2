package crypto

import (
	"crypto/sha512"
)

// SHA512_256 returns the SHA-512/256 digest of data. It is the content hash
// used for every artifact exchanged on the overlay.
func SHA512_256(data []byte) [32]byte {
	return sha512.Sum512_256(data)
}
