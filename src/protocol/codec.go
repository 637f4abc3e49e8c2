package protocol

import (
	"errors"
	"fmt"

	"github.com/mosaicnetworks/overlay/src/crypto"
	"github.com/ugorji/go/codec"
)

var (
	// ErrEmptyFrame is returned when decoding a frame with no tag byte.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrUnknownType is returned when encoding an Unknown message.
	ErrUnknownType = errors.New("unknown message type")
)

// DecodeError reports a frame whose tag is known but whose body could not be
// decoded into the matching variant.
type DecodeError struct {
	Type MessageType
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// handle is shared by all encoders and decoders; it must not be modified
// after init. Canonical mode makes the encoding of a value deterministic, which
// content hashes depend on.
var handle = newHandle()

func newHandle() *codec.MsgpackHandle {
	h := new(codec.MsgpackHandle)
	h.WriteExt = true
	h.Canonical = true
	return h
}

// Marshal returns the canonical msgpack encoding of v.
func Marshal(v interface{}) ([]byte, error) {
	var b []byte
	enc := codec.NewEncoderBytes(&b, handle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b, nil
}

// Unmarshal decodes msgpack data into v, which must be a pointer. Data whose
// declared lengths overrun the input is rejected before the codec sees it.
func Unmarshal(data []byte, v interface{}) error {
	if err := checkBounds(data); err != nil {
		return err
	}
	dec := codec.NewDecoderBytes(data, handle)
	return dec.Decode(v)
}

// HashOf returns the content hash of v: the SHA-512/256 digest of its
// canonical encoding.
func HashOf(v interface{}) (Hash, error) {
	b, err := Marshal(v)
	if err != nil {
		return Hash{}, err
	}
	return Hash(crypto.SHA512_256(b)), nil
}

// Encode returns the wire form of msg: its tag byte followed by the msgpack
// encoding of the variant.
func Encode(msg Message) ([]byte, error) {
	if !msg.Type().Known() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, msg.Type())
	}

	body, err := Marshal(msg)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(body)+1)
	frame = append(frame, byte(msg.Type()))
	return append(frame, body...), nil
}

var decoders = map[MessageType]func([]byte) (Message, error){
	MsgError:          decodeAs[Error],
	MsgHello:          decodeAs[Hello],
	MsgDontHave:       decodeAs[DontHave],
	MsgGetPeers:       decodeAs[GetPeers],
	MsgPeers:          decodeAs[Peers],
	MsgGetTxSet:       decodeAs[GetTxSet],
	MsgTxSet:          decodeAs[TxSet],
	MsgGetValidations: decodeAs[GetValidations],
	MsgValidations:    decodeAs[Validations],
	MsgTransaction:    decodeAs[Transaction],
	MsgGetQuorumSet:   decodeAs[GetQuorumSet],
	MsgQuorumSet:      decodeAs[QuorumSet],
	MsgEnvelope:       decodeAs[ConsensusEnvelope],
}

func decodeAs[T Message](body []byte) (Message, error) {
	var m T
	if err := Unmarshal(body, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode parses a frame produced by Encode. A frame with an unrecognised tag
// decodes to Unknown without error; a recognised tag with an undecodable body
// yields a *DecodeError.
func Decode(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}

	t := MessageType(frame[0])
	body := frame[1:]

	decode, ok := decoders[t]
	if !ok {
		return Unknown{Tag: t, Body: append([]byte(nil), body...)}, nil
	}

	msg, err := decode(body)
	if err != nil {
		return nil, &DecodeError{Type: t, Err: err}
	}
	return msg, nil
}
