package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func testHash(b byte) Hash {
	var h Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestEncodeDecode(t *testing.T) {
	messages := []Message{
		Error{Code: 3, Msg: "bad request"},
		Hello{ProtocolVersion: 1, VersionStr: "overlay-0.1.0", ListeningPort: 11625},
		DontHave{Kind: MsgTxSet, ReqHash: testHash(1)},
		GetPeers{},
		Peers{Peers: []PeerAddress{
			{IP: []byte{10, 0, 0, 1}, Port: 11625},
			{IP: []byte{192, 168, 1, 7}, Port: 1337},
		}},
		GetTxSet{Hash: testHash(2)},
		TxSet{Set: TransactionSet{
			PreviousLedgerHash: testHash(3),
			Txs:                [][]byte{[]byte("tx1"), []byte("tx2")},
		}},
		GetValidations{},
		Validations{},
		Transaction{Blob: []byte("blob")},
		GetQuorumSet{Hash: testHash(4)},
		QuorumSet{Config: QuorumConfig{
			Threshold:  2,
			Validators: [][]byte{[]byte("a"), []byte("b")},
			InnerSets: []QuorumConfig{
				{Threshold: 1, Validators: [][]byte{[]byte("c")}},
			},
		}},
		ConsensusEnvelope{Envelope: Envelope{
			NodeID: []byte("node"),
			Statement: Statement{
				SlotIndex:     42,
				QuorumSetHash: testHash(5),
				Pledges:       []byte("pledges"),
			},
			Signature: []byte("sig"),
		}},
	}

	for _, msg := range messages {
		frame, err := Encode(msg)
		if err != nil {
			t.Fatalf("%s: encode: %v", msg.Type(), err)
		}

		if frame[0] != byte(msg.Type()) {
			t.Fatalf("%s: tag byte should be %d, not %d", msg.Type(), msg.Type(), frame[0])
		}

		decoded, err := Decode(frame)
		if err != nil {
			t.Fatalf("%s: decode: %v", msg.Type(), err)
		}

		if !reflect.DeepEqual(msg, decoded) {
			t.Fatalf("%s: decoded message should be %#v, not %#v", msg.Type(), msg, decoded)
		}
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	frame := []byte{200, 1, 2, 3}

	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("unknown tag should not be an error: %v", err)
	}

	unknown, ok := msg.(Unknown)
	if !ok {
		t.Fatalf("message should be Unknown, not %T", msg)
	}
	if unknown.Type() != MessageType(200) {
		t.Fatalf("tag should be 200, not %d", unknown.Type())
	}
	if !reflect.DeepEqual(unknown.Body, []byte{1, 2, 3}) {
		t.Fatalf("body should be preserved, got %v", unknown.Body)
	}

	frame[1] = 9
	if unknown.Body[0] != 1 {
		t.Fatalf("body should not alias the frame")
	}
}

func TestEncodeUnknown(t *testing.T) {
	_, err := Encode(Unknown{Tag: 99})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err should be ErrUnknownType, not %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode(nil); err != ErrEmptyFrame {
		t.Fatalf("err should be ErrEmptyFrame, not %v", err)
	}

	frame, err := Encode(Hello{ProtocolVersion: 1, VersionStr: "overlay", ListeningPort: 1})
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string][]byte{
		"empty body": frame[:1],
		"truncated":  frame[:len(frame)-3],
	}

	shortHash, err := Marshal(struct{ Hash []byte }{Hash: []byte{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	cases["short hash"] = append([]byte{byte(MsgGetTxSet)}, shortHash...)

	for name, c := range cases {
		_, err := Decode(c)
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("%s: err should be a DecodeError, not %v", name, err)
		}
	}
}

func TestHashOfDeterministic(t *testing.T) {
	env := Envelope{
		NodeID:    []byte("node"),
		Statement: Statement{SlotIndex: 7, Pledges: []byte("p")},
		Signature: []byte("sig"),
	}

	h1, err := env.Hash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := env.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hashing the same envelope twice should give the same hash")
	}

	env.Statement.SlotIndex = 8
	h3, err := env.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h3 {
		t.Fatalf("different envelopes should have different hashes")
	}

	signing, err := env.SigningHash()
	if err != nil {
		t.Fatal(err)
	}
	if signing == h3 {
		t.Fatalf("signing hash should not cover the signature")
	}
}

func TestDecodeOversizedLengths(t *testing.T) {
	withTag := func(tag MessageType, body ...byte) []byte {
		return append([]byte{byte(tag)}, body...)
	}
	reqHash := []byte{0xa7, 'R', 'e', 'q', 'H', 'a', 's', 'h'}

	nested := []byte{byte(MsgPeers)}
	for i := 0; i < 64; i++ {
		nested = append(nested, 0x91)
	}
	nested = append(nested, 0xc0)

	cases := map[string][]byte{
		"bin32 of 4GB": withTag(MsgDontHave, append(append([]byte{0x81}, reqHash...),
			0xc6, 0xfe, 0xb0, 0x5d, 0xde, 0xad, 0xbe, 0xef)...),
		"bin16 past end": withTag(MsgGetTxSet, 0x81, 0xa4, 'H', 'a', 's', 'h', 0xc5, 0x01, 0x00, 1, 2),
		"str32 of 4GB":   withTag(MsgHello, 0x81, 0xdb, 0xff, 0xff, 0xff, 0xf0, 'a'),
		"array32 of 2G":  withTag(MsgPeers, 0x81, 0xa5, 'P', 'e', 'e', 'r', 's', 0xdd, 0x7f, 0xff, 0xff, 0xff, 0xc0),
		"map32 of 1G":    withTag(MsgTxSet, 0xdf, 0x40, 0x00, 0x00, 0x00, 0xc0, 0xc0),
		"ext32 of 4GB":   withTag(MsgTransaction, 0xc9, 0xff, 0xff, 0xff, 0xff, 0x01),
		"length cut off": withTag(MsgTransaction, 0xc6, 0x00, 0x00),
		"reserved byte":  withTag(MsgGetPeers, 0xc1),
		"deep nesting":   nested,
	}

	for name, frame := range cases {
		_, err := Decode(frame)
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("%s: err should be a DecodeError, not %v", name, err)
		}
		if !errors.Is(err, ErrMalformedBody) {
			t.Fatalf("%s: err should wrap ErrMalformedBody, not %v", name, err)
		}
	}
}

func TestCheckBoundsAcceptsEncodedMessages(t *testing.T) {
	body, err := Marshal(TxSet{Set: TransactionSet{
		PreviousLedgerHash: testHash(1),
		Txs:                [][]byte{make([]byte, 300), make([]byte, 70000)},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := checkBounds(body); err != nil {
		t.Fatalf("a well-formed body should pass: %v", err)
	}
}
