package protocol

import "fmt"

// MaxPeersPerMessage bounds the number of addresses carried by a Peers
// message.
const MaxPeersPerMessage = 50

// MessageType is the tag identifying a Message variant on the wire.
type MessageType uint8

const (
	MsgError MessageType = iota
	MsgHello
	MsgDontHave
	MsgGetPeers
	MsgPeers
	MsgGetTxSet
	MsgTxSet
	MsgGetValidations
	MsgValidations
	MsgTransaction
	MsgGetQuorumSet
	MsgQuorumSet
	MsgEnvelope
)

var messageTypeNames = map[MessageType]string{
	MsgError:          "Error",
	MsgHello:          "Hello",
	MsgDontHave:       "DontHave",
	MsgGetPeers:       "GetPeers",
	MsgPeers:          "Peers",
	MsgGetTxSet:       "GetTxSet",
	MsgTxSet:          "TxSet",
	MsgGetValidations: "GetValidations",
	MsgValidations:    "Validations",
	MsgTransaction:    "Transaction",
	MsgGetQuorumSet:   "GetQuorumSet",
	MsgQuorumSet:      "QuorumSet",
	MsgEnvelope:       "ConsensusEnvelope",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// Known reports whether t is one of the declared message tags.
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok
}

// Message is one of the variants declared in this file. The set is closed:
// only types in this package implement it.
type Message interface {
	Type() MessageType
	isMessage()
}

// Error carries a remote error report. It is informational only.
type Error struct {
	Code int32
	Msg  string
}

// Hello opens a connection. Nothing but Hello may be received before it.
type Hello struct {
	ProtocolVersion int32
	VersionStr      string
	ListeningPort   int32
}

// DontHave is the negative answer to GetTxSet or GetQuorumSet. Kind is the
// tag of the artifact that was requested (MsgTxSet or MsgQuorumSet).
type DontHave struct {
	Kind    MessageType
	ReqHash Hash
}

// GetPeers asks for a sample of the addresses known to the remote.
type GetPeers struct{}

// PeerAddress is an IPv4 address and port as carried on the wire. IP is kept
// as opaque bytes so that malformed entries can be detected and rejected one
// by one.
type PeerAddress struct {
	IP   []byte
	Port uint32
}

// Peers carries at most MaxPeersPerMessage addresses.
type Peers struct {
	Peers []PeerAddress
}

// GetTxSet requests the transaction set with the given content hash.
type GetTxSet struct {
	Hash Hash
}

// TxSet carries a full transaction set.
type TxSet struct {
	Set TransactionSet
}

// GetValidations is reserved.
type GetValidations struct{}

// Validations is reserved.
type Validations struct{}

// Transaction carries a single serialized transaction (see EncodeTx).
type Transaction struct {
	Blob []byte
}

// GetQuorumSet requests the quorum configuration with the given content hash.
type GetQuorumSet struct {
	Hash Hash
}

// QuorumSet carries a full quorum configuration.
type QuorumSet struct {
	Config QuorumConfig
}

// ConsensusEnvelope carries one signed consensus statement.
type ConsensusEnvelope struct {
	Envelope Envelope
}

// Unknown is what Decode returns for a tag outside the declared set. It is
// never produced locally.
type Unknown struct {
	Tag  MessageType
	Body []byte
}

func (Error) Type() MessageType             { return MsgError }
func (Hello) Type() MessageType             { return MsgHello }
func (DontHave) Type() MessageType          { return MsgDontHave }
func (GetPeers) Type() MessageType          { return MsgGetPeers }
func (Peers) Type() MessageType             { return MsgPeers }
func (GetTxSet) Type() MessageType          { return MsgGetTxSet }
func (TxSet) Type() MessageType             { return MsgTxSet }
func (GetValidations) Type() MessageType    { return MsgGetValidations }
func (Validations) Type() MessageType       { return MsgValidations }
func (Transaction) Type() MessageType       { return MsgTransaction }
func (GetQuorumSet) Type() MessageType      { return MsgGetQuorumSet }
func (QuorumSet) Type() MessageType         { return MsgQuorumSet }
func (ConsensusEnvelope) Type() MessageType { return MsgEnvelope }
func (u Unknown) Type() MessageType         { return u.Tag }

func (Error) isMessage()             {}
func (Hello) isMessage()             {}
func (DontHave) isMessage()          {}
func (GetPeers) isMessage()          {}
func (Peers) isMessage()             {}
func (GetTxSet) isMessage()          {}
func (TxSet) isMessage()             {}
func (GetValidations) isMessage()    {}
func (Validations) isMessage()       {}
func (Transaction) isMessage()       {}
func (GetQuorumSet) isMessage()      {}
func (QuorumSet) isMessage()         {}
func (ConsensusEnvelope) isMessage() {}
func (Unknown) isMessage()           {}
