package protocol

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the size in bytes of a content hash.
const HashSize = 32

// Hash is a 256-bit content digest.
type Hash [HashSize]byte

// ParseHash decodes the hexadecimal form of a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hexadecimal form of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 4 bytes of the hash in hexadecimal, for logs.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:4])
}

// MarshalBinary implements encoding.BinaryMarshaler so that the codec writes
// a Hash as a single byte string.
func (h Hash) MarshalBinary() ([]byte, error) {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Anything other than
// exactly HashSize bytes is rejected.
func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(data))
	}
	copy(h[:], data)
	return nil
}
