package herder

import (
	"github.com/btcsuite/btcd/btcec"
	"github.com/mosaicnetworks/overlay/src/crypto/keys"
	"github.com/mosaicnetworks/overlay/src/protocol"
)

// SignTx sets the source of tx to the public key of key and signs it.
func SignTx(key *btcec.PrivateKey, tx protocol.Tx) (protocol.Tx, error) {
	tx.Source = keys.NodeID(key.PubKey())
	tx.Signature = nil

	digest, err := tx.SigningHash()
	if err != nil {
		return protocol.Tx{}, err
	}
	tx.Signature, err = keys.Sign(key, digest[:])
	if err != nil {
		return protocol.Tx{}, err
	}
	return tx, nil
}

// NewSignedTxFrame signs tx with key and returns its frame.
func NewSignedTxFrame(key *btcec.PrivateKey, tx protocol.Tx) (*protocol.TxFrame, error) {
	signed, err := SignTx(key, tx)
	if err != nil {
		return nil, err
	}
	blob, err := protocol.EncodeTx(signed)
	if err != nil {
		return nil, err
	}
	return protocol.NewTxFrame(blob)
}
