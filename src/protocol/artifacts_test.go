package protocol

import (
	"errors"
	"testing"
)

func testTxBlob(t *testing.T, seq uint64) []byte {
	blob, err := EncodeTx(Tx{
		Source:    []byte("source"),
		SeqNum:    seq,
		Fee:       100,
		Payload:   []byte("payload"),
		Signature: []byte("signature"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return blob
}

func TestTxFrame(t *testing.T) {
	blob := testTxBlob(t, 1)

	frame, err := NewTxFrame(blob)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Tx().SeqNum != 1 {
		t.Fatalf("SeqNum should be 1, not %d", frame.Tx().SeqNum)
	}

	other, err := NewTxFrame(testTxBlob(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	if frame.Hash() == other.Hash() {
		t.Fatalf("different transactions should have different hashes")
	}

	signing, err := frame.Tx().SigningHash()
	if err != nil {
		t.Fatal(err)
	}
	if signing == frame.Hash() {
		t.Fatalf("signing hash should not cover the signature")
	}
}

func TestDecodeTxMalformed(t *testing.T) {
	unsigned, err := EncodeTx(Tx{Source: []byte("source"), SeqNum: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeTx(unsigned); err != ErrMalformedTx {
		t.Fatalf("unsigned tx should be ErrMalformedTx, not %v", err)
	}

	if _, err := DecodeTx([]byte{0xc1}); err == nil {
		t.Fatalf("garbage should not decode")
	}
}

func TestTxSetFrame(t *testing.T) {
	set := TransactionSet{
		PreviousLedgerHash: testHash(9),
		Txs:                [][]byte{testTxBlob(t, 1), testTxBlob(t, 2)},
	}

	frame, err := NewTxSetFrame(set)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame.Txs()) != 2 {
		t.Fatalf("frame should have 2 txs, not %d", len(frame.Txs()))
	}

	expected, err := HashOf(set)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Hash() != expected {
		t.Fatalf("frame hash should be the content hash of the set")
	}

	set.Txs = append(set.Txs, []byte("junk"))
	if _, err := NewTxSetFrame(set); err == nil {
		t.Fatalf("a set with a malformed tx should be rejected")
	}
}

func TestQuorumConfigSane(t *testing.T) {
	leaf := QuorumConfig{Threshold: 1, Validators: [][]byte{[]byte("v")}}

	if err := leaf.Sane(); err != nil {
		t.Fatalf("leaf config should be sane: %v", err)
	}

	deep := leaf
	for i := 0; i < MaxQuorumDepth-1; i++ {
		deep = QuorumConfig{Threshold: 1, InnerSets: []QuorumConfig{deep}}
	}
	if err := deep.Sane(); err != nil {
		t.Fatalf("config nested %d deep should be sane: %v", MaxQuorumDepth, err)
	}

	tooDeep := QuorumConfig{Threshold: 1, InnerSets: []QuorumConfig{deep}}
	if err := tooDeep.Sane(); !errors.Is(err, ErrInsaneQuorum) {
		t.Fatalf("config nested %d deep should be insane, got %v", MaxQuorumDepth+1, err)
	}

	cases := []QuorumConfig{
		{Threshold: 0, Validators: [][]byte{[]byte("v")}},
		{Threshold: 3, Validators: [][]byte{[]byte("v"), []byte("w")}},
	}
	for _, c := range cases {
		if err := c.Sane(); !errors.Is(err, ErrInsaneQuorum) {
			t.Fatalf("threshold %d should be insane, got %v", c.Threshold, err)
		}
	}

	// frames are built regardless of sanity
	frame, err := NewQuorumSetFrame(tooDeep)
	if err != nil {
		t.Fatal(err)
	}
	expected, err := HashOf(tooDeep)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Hash() != expected {
		t.Fatalf("frame hash should be the content hash of the config")
	}
}
