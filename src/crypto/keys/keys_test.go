package keys

import (
	"bytes"
	"errors"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/mosaicnetworks/overlay/src/crypto"
)

func TestSimpleKeyfile(t *testing.T) {
	dir, err := ioutil.TempDir("", "overlay")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	simpleKeyfile := NewSimpleKeyfile(path.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, err = GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !bytes.Equal(DumpPrivateKey(nKey), DumpPrivateKey(key)) {
		t.Fatalf("Keys do not match")
	}

	if !simpleKeyfile.Exists() {
		t.Fatalf("keyfile should exist")
	}

	other, _ := GenerateKey()
	if err := simpleKeyfile.WriteKey(other); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("WriteKey should refuse to overwrite, got %v", err)
	}

	nKey, err = simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !bytes.Equal(DumpPrivateKey(nKey), DumpPrivateKey(key)) {
		t.Fatalf("original key was replaced")
	}
}

func TestFilePermissions(t *testing.T) {
	dir, err := ioutil.TempDir("", "overlay")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	keyfile := path.Join(dir, "priv_key")
	key, _ := GenerateKey()

	if err := NewSimpleKeyfile(keyfile).WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := os.Chmod(keyfile, 0644); err != nil {
		t.Fatalf("err: %v", err)
	}

	if _, err := NewSimpleKeyfile(keyfile).ReadKey(); !errors.Is(err, ErrKeyPermissions) {
		t.Fatalf("ReadKey should fail on a group-readable keyfile")
	}
}

func TestParsePrivateKey(t *testing.T) {
	cases := []struct {
		name string
		d    []byte
	}{
		{"short", []byte{1, 2, 3}},
		{"zero", make([]byte, 32)},
		{"overflow", bytes.Repeat([]byte{0xff}, 32)},
	}

	for _, c := range cases {
		if _, err := ParsePrivateKey(c.d); !errors.Is(err, ErrInvalidPrivateKey) {
			t.Fatalf("%s: expected error", c.name)
		}
	}
}

func TestSignVerify(t *testing.T) {
	key, _ := GenerateKey()
	other, _ := GenerateKey()

	digest := crypto.SHA512_256([]byte("statement"))

	sig, err := Sign(key, digest[:])
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !Verify(NodeID(key.PubKey()), digest[:], sig) {
		t.Fatalf("signature should verify")
	}

	if Verify(NodeID(other.PubKey()), digest[:], sig) {
		t.Fatalf("signature should not verify against another key")
	}

	tampered := crypto.SHA512_256([]byte("statement!"))
	if Verify(NodeID(key.PubKey()), tampered[:], sig) {
		t.Fatalf("signature should not verify against another digest")
	}

	if Verify([]byte{0x02, 0x01}, digest[:], sig) {
		t.Fatalf("malformed public key should fail verification")
	}

	if Verify(NodeID(key.PubKey()), digest[:], []byte{0x30, 0x00}) {
		t.Fatalf("malformed signature should fail verification")
	}
}

func TestPublicKeyHex(t *testing.T) {
	key, _ := GenerateKey()

	s := PublicKeyHex(key.PubKey())
	if !strings.HasPrefix(s, "0X") || len(s) != 2+2*33 {
		t.Fatalf("unexpected public key hex %s", s)
	}
	if s != strings.ToUpper(s) {
		t.Fatalf("public key hex should be upper case, got %s", s)
	}
}
