package protocol

import (
	"errors"
	"fmt"
)

// MaxQuorumDepth is the deepest nesting of inner sets a quorum configuration
// may have.
const MaxQuorumDepth = 4

var (
	// ErrMalformedTx is returned for a transaction missing its source or
	// signature.
	ErrMalformedTx = errors.New("malformed transaction")

	// ErrInsaneQuorum is returned for a quorum configuration that can never be
	// satisfied or that nests too deeply.
	ErrInsaneQuorum = errors.New("insane quorum configuration")
)

/*******************************************************************************
Transactions
*******************************************************************************/

// Tx is a signed transaction. Source is the compressed public key of the
// account that signed it.
type Tx struct {
	Source    []byte
	SeqNum    uint64
	Fee       uint32
	Payload   []byte
	Signature []byte
}

// SigningHash is the digest covered by the transaction signature: the content
// hash of the transaction with its signature removed.
func (tx Tx) SigningHash() (Hash, error) {
	unsigned := tx
	unsigned.Signature = nil
	return HashOf(unsigned)
}

// EncodeTx serializes a transaction into the blob carried by a Transaction
// message.
func EncodeTx(tx Tx) ([]byte, error) {
	return Marshal(tx)
}

// DecodeTx parses a transaction blob.
func DecodeTx(blob []byte) (Tx, error) {
	var tx Tx
	if err := Unmarshal(blob, &tx); err != nil {
		return Tx{}, err
	}
	if len(tx.Source) == 0 || len(tx.Signature) == 0 {
		return Tx{}, ErrMalformedTx
	}
	return tx, nil
}

// TxFrame is a decoded transaction together with its content hash.
type TxFrame struct {
	tx   Tx
	blob []byte
	hash Hash
}

// NewTxFrame decodes blob and computes the hash of the transaction.
func NewTxFrame(blob []byte) (*TxFrame, error) {
	tx, err := DecodeTx(blob)
	if err != nil {
		return nil, err
	}
	hash, err := HashOf(tx)
	if err != nil {
		return nil, err
	}
	return &TxFrame{
		tx:   tx,
		blob: append([]byte(nil), blob...),
		hash: hash,
	}, nil
}

func (f *TxFrame) Tx() Tx {
	return f.tx
}

func (f *TxFrame) Hash() Hash {
	return f.hash
}

// Message returns the Transaction message carrying this transaction.
func (f *TxFrame) Message() Transaction {
	return Transaction{Blob: f.blob}
}

/*******************************************************************************
Transaction sets
*******************************************************************************/

// TransactionSet is a batch of serialized transactions proposed on top of a
// previous ledger.
type TransactionSet struct {
	PreviousLedgerHash Hash
	Txs                [][]byte
}

// TxSetFrame is a transaction set whose transactions have all been decoded.
type TxSetFrame struct {
	set  TransactionSet
	txs  []*TxFrame
	hash Hash
}

// NewTxSetFrame decodes every transaction of set. It fails if any of them is
// malformed.
func NewTxSetFrame(set TransactionSet) (*TxSetFrame, error) {
	txs := make([]*TxFrame, 0, len(set.Txs))
	for i, blob := range set.Txs {
		tx, err := NewTxFrame(blob)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		txs = append(txs, tx)
	}

	hash, err := HashOf(set)
	if err != nil {
		return nil, err
	}

	return &TxSetFrame{
		set:  set,
		txs:  txs,
		hash: hash,
	}, nil
}

func (f *TxSetFrame) Hash() Hash {
	return f.hash
}

func (f *TxSetFrame) Set() TransactionSet {
	return f.set
}

func (f *TxSetFrame) Txs() []*TxFrame {
	return f.txs
}

// Message returns the TxSet message carrying this set.
func (f *TxSetFrame) Message() TxSet {
	return TxSet{Set: f.set}
}

/*******************************************************************************
Quorum sets
*******************************************************************************/

// QuorumConfig is a node's quorum slice definition: Threshold of the
// Validators and InnerSets entries must agree.
type QuorumConfig struct {
	Threshold  uint32
	Validators [][]byte
	InnerSets  []QuorumConfig
}

// Sane reports whether the configuration can ever be satisfied and is not
// nested deeper than MaxQuorumDepth.
func (q QuorumConfig) Sane() error {
	return q.check(1)
}

func (q QuorumConfig) check(depth int) error {
	if depth > MaxQuorumDepth {
		return fmt.Errorf("%w: nested deeper than %d", ErrInsaneQuorum, MaxQuorumDepth)
	}
	entries := len(q.Validators) + len(q.InnerSets)
	if q.Threshold == 0 || int(q.Threshold) > entries {
		return fmt.Errorf("%w: threshold %d of %d", ErrInsaneQuorum, q.Threshold, entries)
	}
	for _, inner := range q.InnerSets {
		if err := inner.check(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

// QuorumSetFrame is a quorum configuration and its content hash.
type QuorumSetFrame struct {
	config QuorumConfig
	hash   Hash
}

// NewQuorumSetFrame hashes config. It does not check the configuration; see
// Sane.
func NewQuorumSetFrame(config QuorumConfig) (*QuorumSetFrame, error) {
	hash, err := HashOf(config)
	if err != nil {
		return nil, err
	}
	return &QuorumSetFrame{
		config: config,
		hash:   hash,
	}, nil
}

func (f *QuorumSetFrame) Hash() Hash {
	return f.hash
}

func (f *QuorumSetFrame) Config() QuorumConfig {
	return f.config
}

// Message returns the QuorumSet message carrying this configuration.
func (f *QuorumSetFrame) Message() QuorumSet {
	return QuorumSet{Config: f.config}
}

/*******************************************************************************
Envelopes
*******************************************************************************/

// Statement is the part of a consensus envelope the agreement engine acts on.
// Pledges is opaque at this layer.
type Statement struct {
	SlotIndex     uint64
	QuorumSetHash Hash
	Pledges       []byte
}

// Envelope is a statement signed by the node identified by NodeID.
type Envelope struct {
	NodeID    []byte
	Statement Statement
	Signature []byte
}

// Hash is the content hash of the full envelope, signature included. It is
// the key under which envelopes are de-duplicated when flooded.
func (e Envelope) Hash() (Hash, error) {
	return HashOf(e)
}

// SigningHash is the digest covered by the envelope signature.
func (e Envelope) SigningHash() (Hash, error) {
	unsigned := e
	unsigned.Signature = nil
	return HashOf(unsigned)
}
