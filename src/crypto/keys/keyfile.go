package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec"
)

var (
	// ErrKeyExists is returned by WriteKey when the keyfile is already there.
	ErrKeyExists = errors.New("key file already exists")

	// ErrKeyPermissions is returned by ReadKey when the keyfile can be read by
	// anyone but its owner.
	ErrKeyPermissions = errors.New("key file must only be accessible by its owner")
)

// SimpleKeyfile keeps a node key in a single file, as the hex encoding of its
// scalar. The file is created with mode 0600 and never overwritten.
type SimpleKeyfile struct {
	mu   sync.Mutex
	path string
}

// NewSimpleKeyfile returns a SimpleKeyfile at path. Nothing is touched on disk.
func NewSimpleKeyfile(path string) *SimpleKeyfile {
	return &SimpleKeyfile{path: path}
}

// Path returns the location of the keyfile.
func (k *SimpleKeyfile) Path() string {
	return k.path
}

// Exists reports whether something already occupies the keyfile path.
func (k *SimpleKeyfile) Exists() bool {
	_, err := os.Lstat(k.path)
	return err == nil
}

// ReadKey loads the key. The file must exist, be private to its owner, and
// hold a valid scalar.
func (k *SimpleKeyfile) ReadKey() (*btcec.PrivateKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	info, err := os.Stat(k.path)
	if err != nil {
		return nil, err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %o", ErrKeyPermissions, k.path, perm)
	}

	raw, err := ioutil.ReadFile(k.path)
	if err != nil {
		return nil, err
	}

	d, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k.path, err)
	}

	return ParsePrivateKey(d)
}

// WriteKey stores key, creating the parent directory if needed. It fails with
// ErrKeyExists rather than replace an existing file.
func (k *SimpleKeyfile) WriteKey(key *btcec.PrivateKey) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(k.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrKeyExists, k.path)
		}
		return err
	}

	if _, err := f.WriteString(PrivateKeyHex(key)); err != nil {
		f.Close()
		os.Remove(k.path)
		return err
	}
	return f.Close()
}
