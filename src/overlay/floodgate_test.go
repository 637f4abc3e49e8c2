package overlay

import (
	"reflect"
	"testing"

	"github.com/mosaicnetworks/overlay/src/common"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type sendCall struct {
	to  PeerID
	msg protocol.Message
}

type fakeSender struct {
	authenticated []PeerID
	sends         []sendCall
}

func (s *fakeSender) AuthenticatedPeers() []PeerID {
	return s.authenticated
}

func (s *fakeSender) SendTo(id PeerID, msg protocol.Message) error {
	s.sends = append(s.sends, sendCall{id, msg})
	return nil
}

func (s *fakeSender) recipients() []PeerID {
	res := []PeerID{}
	for _, c := range s.sends {
		res = append(res, c.to)
	}
	return res
}

func newTestFloodgate(t *testing.T, authenticated ...PeerID) (*Floodgate, *fakeSender, *Metrics) {
	sender := &fakeSender{authenticated: authenticated}
	metrics := NewMetrics("test")
	return NewFloodgate(sender, metrics, common.NewTestEntry(t, common.TestLogLevel)), sender, metrics
}

func TestFloodgateSendsOncePerPeer(t *testing.T) {
	fg, sender, metrics := newTestFloodgate(t, 1, 2, 3, 4)

	msg := testEnvelope(10)
	h := testHash(1)

	fg.RecvFloodedMessage(h, msg, 10, 2)

	if !reflect.DeepEqual(sender.recipients(), []PeerID{1, 3, 4}) {
		t.Fatalf("first receipt should go to 1, 3, 4, not %v", sender.recipients())
	}

	fg.RecvFloodedMessage(h, msg, 10, 3)
	fg.RecvFloodedMessage(h, msg, 10, 2)

	if len(sender.sends) != 3 {
		t.Fatalf("duplicates should not be sent, got %d sends", len(sender.sends))
	}
	if v := testutil.ToFloat64(metrics.FloodDuplicates); v != 2 {
		t.Fatalf("FloodDuplicates should be 2, not %v", v)
	}
	if fg.Len() != 1 {
		t.Fatalf("there should be 1 record, not %d", fg.Len())
	}
}

func TestFloodgateLocal(t *testing.T) {
	fg, sender, _ := newTestFloodgate(t, 1, 2)

	fg.Flood(testHash(1), testEnvelope(3), 3)

	if !reflect.DeepEqual(sender.recipients(), []PeerID{1, 2}) {
		t.Fatalf("local flood should reach every peer, not %v", sender.recipients())
	}
}

func TestFloodgateLatePeer(t *testing.T) {
	fg, sender, _ := newTestFloodgate(t, 1)

	h := testHash(1)
	fg.RecvFloodedMessage(h, testEnvelope(3), 3, 1)
	if len(sender.sends) != 0 {
		t.Fatalf("nothing should be sent back to the only peer")
	}

	// a peer authenticated later is not sent old records on duplicates
	sender.authenticated = []PeerID{1, 2}
	fg.RecvFloodedMessage(h, testEnvelope(3), 3, 1)
	if len(sender.sends) != 0 {
		t.Fatalf("duplicates should not be sent, got %d sends", len(sender.sends))
	}
}

func TestFloodgateBroadcast(t *testing.T) {
	fg, sender, _ := newTestFloodgate(t, 1, 2, 3)

	fg.Broadcast(protocol.Transaction{Blob: []byte("tx")}, 2)
	if !reflect.DeepEqual(sender.recipients(), []PeerID{1, 3}) {
		t.Fatalf("broadcast should skip the excluded peer, sent to %v", sender.recipients())
	}

	sender.sends = nil
	fg.Broadcast(protocol.Transaction{Blob: []byte("tx")}, NoPeer)
	if !reflect.DeepEqual(sender.recipients(), []PeerID{1, 2, 3}) {
		t.Fatalf("broadcast should reach every peer, sent to %v", sender.recipients())
	}
}

func TestFloodgateClearBelow(t *testing.T) {
	fg, sender, metrics := newTestFloodgate(t, 1)

	for slot := uint64(1); slot <= 5; slot++ {
		fg.RecvFloodedMessage(testHash(byte(slot)), testEnvelope(slot), slot, 1)
	}
	if fg.HighestSlot() != 5 {
		t.Fatalf("highest slot should be 5, not %d", fg.HighestSlot())
	}

	fg.ClearBelow(4)

	if fg.Len() != 2 {
		t.Fatalf("2 records should remain, not %d", fg.Len())
	}
	if v := testutil.ToFloat64(metrics.FloodRecords); v != 2 {
		t.Fatalf("FloodRecords should be 2, not %v", v)
	}

	// a cleared message floods again
	sender.authenticated = []PeerID{1, 2}
	fg.RecvFloodedMessage(testHash(1), testEnvelope(1), 1, 1)
	if !reflect.DeepEqual(sender.recipients(), []PeerID{2}) {
		t.Fatalf("cleared message should be flooded again, sent to %v", sender.recipients())
	}
}
