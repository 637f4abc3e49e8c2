package overlay

import (
	"errors"
	"sync"
	"testing"

	"github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/protocol"
)

var testConfig = Config{
	ProtocolVersion: 7,
	VersionString:   "overlay-test",
	ListeningPort:   11625,
}

/*******************************************************************************
Connection
*******************************************************************************/

type fakeConn struct {
	sync.Mutex
	addr     string
	frames   [][]byte
	closed   bool
	writeErr error
	onFrame  func([]byte)
	onClose  func(error)
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr}
}

func (c *fakeConn) Start(onFrame func([]byte), onClose func(error)) {
	c.Lock()
	defer c.Unlock()
	c.onFrame = onFrame
	c.onClose = onClose
}

func (c *fakeConn) Write(frame []byte) error {
	c.Lock()
	defer c.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *fakeConn) RemoteAddr() string {
	return c.addr
}

func (c *fakeConn) Close() error {
	c.Lock()
	defer c.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.Lock()
	defer c.Unlock()
	return c.closed
}

// receive feeds msg to the peer as if it came from the wire.
func (c *fakeConn) receive(t *testing.T, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	c.receiveFrame(frame)
}

func (c *fakeConn) receiveFrame(frame []byte) {
	c.Lock()
	onFrame := c.onFrame
	c.Unlock()
	onFrame(frame)
}

// sent decodes everything written so far.
func (c *fakeConn) sent(t *testing.T) []protocol.Message {
	c.Lock()
	defer c.Unlock()
	res := []protocol.Message{}
	for _, f := range c.frames {
		msg, err := protocol.Decode(f)
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, msg)
	}
	return res
}

// reset forgets the frames written so far.
func (c *fakeConn) reset() {
	c.Lock()
	defer c.Unlock()
	c.frames = nil
}

/*******************************************************************************
Dialer
*******************************************************************************/

type dialCall struct {
	addr peers.Address
	done func(Connection, error)
}

type fakeDialer struct {
	sync.Mutex
	calls []dialCall
}

func (d *fakeDialer) Dial(addr peers.Address, done func(Connection, error)) {
	d.Lock()
	defer d.Unlock()
	d.calls = append(d.calls, dialCall{addr: addr, done: done})
}

func (d *fakeDialer) dialed() []peers.Address {
	d.Lock()
	defer d.Unlock()
	res := []peers.Address{}
	for _, c := range d.calls {
		res = append(res, c.addr)
	}
	return res
}

func (d *fakeDialer) complete(i int, conn Connection, err error) {
	d.Lock()
	done := d.calls[i].done
	d.Unlock()
	done(conn, err)
}

/*******************************************************************************
Consensus gateway
*******************************************************************************/

type dontHaveCall struct {
	hash protocol.Hash
	from PeerID
}

type fakeConsensus struct {
	txSets     map[protocol.Hash]*protocol.TxSetFrame
	quorumSets map[protocol.Hash]*protocol.QuorumSetFrame
	acceptTx   bool

	recvTxSets        []*protocol.TxSetFrame
	recvQuorumSets    []*protocol.QuorumSetFrame
	recvEnvelopes     []protocol.Envelope
	recvTransactions  []*protocol.TxFrame
	dontHaveTxSet     []dontHaveCall
	dontHaveQuorumSet []dontHaveCall
}

func newFakeConsensus() *fakeConsensus {
	return &fakeConsensus{
		txSets:     make(map[protocol.Hash]*protocol.TxSetFrame),
		quorumSets: make(map[protocol.Hash]*protocol.QuorumSetFrame),
	}
}

func (c *fakeConsensus) FetchTxSet(h protocol.Hash) *protocol.TxSetFrame {
	return c.txSets[h]
}

func (c *fakeConsensus) RecvTxSet(ts *protocol.TxSetFrame) {
	c.recvTxSets = append(c.recvTxSets, ts)
}

func (c *fakeConsensus) FetchQuorumSet(h protocol.Hash) *protocol.QuorumSetFrame {
	return c.quorumSets[h]
}

func (c *fakeConsensus) RecvQuorumSet(qs *protocol.QuorumSetFrame) {
	c.recvQuorumSets = append(c.recvQuorumSets, qs)
}

func (c *fakeConsensus) RecvEnvelope(env protocol.Envelope) {
	c.recvEnvelopes = append(c.recvEnvelopes, env)
}

func (c *fakeConsensus) RecvTransaction(tx *protocol.TxFrame) bool {
	c.recvTransactions = append(c.recvTransactions, tx)
	return c.acceptTx
}

func (c *fakeConsensus) NoteDontHaveTxSet(h protocol.Hash, from PeerID) {
	c.dontHaveTxSet = append(c.dontHaveTxSet, dontHaveCall{h, from})
}

func (c *fakeConsensus) NoteDontHaveQuorumSet(h protocol.Hash, from PeerID) {
	c.dontHaveQuorumSet = append(c.dontHaveQuorumSet, dontHaveCall{h, from})
}

func (c *fakeConsensus) calls() int {
	return len(c.recvTxSets) + len(c.recvQuorumSets) + len(c.recvEnvelopes) +
		len(c.recvTransactions) + len(c.dontHaveTxSet) + len(c.dontHaveQuorumSet)
}

/*******************************************************************************
Overlay gateway
*******************************************************************************/

type broadcastCall struct {
	msg     protocol.Message
	exclude PeerID
}

type floodCall struct {
	hash protocol.Hash
	msg  protocol.Message
	slot uint64
	from PeerID
}

type fakeFlood struct {
	broadcasts []broadcastCall
	flooded    []floodCall
}

func (f *fakeFlood) Broadcast(msg protocol.Message, exclude PeerID) {
	f.broadcasts = append(f.broadcasts, broadcastCall{msg, exclude})
}

func (f *fakeFlood) RecvFloodedMessage(h protocol.Hash, msg protocol.Message, slot uint64, from PeerID) {
	f.flooded = append(f.flooded, floodCall{h, msg, slot, from})
}

/*******************************************************************************
Directory
*******************************************************************************/

var errDirectory = errors.New("directory unavailable")

type failingDirectory struct{}

func (failingDirectory) TopPeers(limit int) ([]peers.Address, error) { return nil, errDirectory }
func (failingDirectory) AddPeer(addr peers.Address) error            { return errDirectory }

/*******************************************************************************
Helpers
*******************************************************************************/

type testNet struct {
	ov        *Overlay
	consensus *fakeConsensus
	flood     *fakeFlood
	directory *peers.InmemDirectory
	dialer    *fakeDialer
}

// newTestNet creates an Overlay whose collaborators are all fakes. Set
// useFloodgate to keep the real Floodgate.
func newTestNet(t *testing.T, useFloodgate bool) *testNet {
	tn := &testNet{
		consensus: newFakeConsensus(),
		flood:     &fakeFlood{},
		directory: peers.NewInmemDirectory(),
		dialer:    &fakeDialer{},
	}
	tn.ov = NewOverlay(testConfig,
		tn.consensus,
		tn.directory,
		tn.dialer,
		nil,
		common.NewTestEntry(t, common.TestLogLevel))
	if !useFloodgate {
		tn.ov.flood = tn.flood
	}
	return tn
}

// step runs the loop until it is idle.
func (tn *testNet) step() {
	for tn.ov.loop.Step() > 0 {
	}
}

// accept registers an acceptor and completes its handshake. The Hello it
// sent is cleared from conn.
func (tn *testNet) accept(t *testing.T, addr string) (*Peer, *fakeConn) {
	conn := newFakeConn(addr)
	p := tn.ov.registry.Accept(conn)
	tn.step()

	conn.receive(t, protocol.Hello{ProtocolVersion: 7, VersionStr: "remote", ListeningPort: 11625})
	tn.step()

	if p.State() != HandshakeDone {
		t.Fatalf("peer should be HandshakeDone, not %s", p.State())
	}
	conn.reset()
	return p, conn
}

func testHash(b byte) protocol.Hash {
	var h protocol.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func testTxBlob(t *testing.T, seq uint64) []byte {
	blob, err := protocol.EncodeTx(protocol.Tx{
		Source:    []byte("source"),
		SeqNum:    seq,
		Payload:   []byte("payload"),
		Signature: []byte("signature"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return blob
}

func testEnvelope(slot uint64) protocol.ConsensusEnvelope {
	return protocol.ConsensusEnvelope{Envelope: protocol.Envelope{
		NodeID: []byte("node"),
		Statement: protocol.Statement{
			SlotIndex:     slot,
			QuorumSetHash: testHash(1),
			Pledges:       []byte("pledges"),
		},
		Signature: []byte("sig"),
	}}
}
