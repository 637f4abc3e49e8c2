package crypto

import (
	"encoding/hex"
	"testing"
)

func TestSHA512_256(t *testing.T) {
	// FIPS 180-4 test vector for "abc".
	want := "53048e2681941ef99b2e29b76b4c7dabe4c2d0c634fc6d46e0e2f13107e7af23"

	got := SHA512_256([]byte("abc"))
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("got %x, want %s", got, want)
	}
}
