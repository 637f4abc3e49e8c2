package overlay

import (
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/sirupsen/logrus"
)

// peerSender is the part of the Overlay the Floodgate sends through.
type peerSender interface {
	AuthenticatedPeers() []PeerID
	SendTo(id PeerID, msg protocol.Message) error
}

type floodRecord struct {
	slot uint64
	told map[PeerID]struct{}
}

// Floodgate is the overlay-wide flood tracker. It remembers, per content hash,
// which peers already have a message so that each is sent at most once to
// each peer. It runs on the event loop and is not locked.
type Floodgate struct {
	sender  peerSender
	records map[protocol.Hash]*floodRecord

	highestSlot uint64

	metrics *Metrics
	logger  *logrus.Entry
}

// NewFloodgate creates a Floodgate sending through sender.
func NewFloodgate(sender peerSender, metrics *Metrics, logger *logrus.Entry) *Floodgate {
	return &Floodgate{
		sender:  sender,
		records: make(map[protocol.Hash]*floodRecord),
		metrics: metrics,
		logger:  logger.WithField("component", "floodgate"),
	}
}

// RecvFloodedMessage implements the OverlayGateway interface. The first
// receipt of h is sent on to every authenticated peer that is not known to
// have it; later receipts only record the sender.
func (f *Floodgate) RecvFloodedMessage(h protocol.Hash, msg protocol.Message, slot uint64, from PeerID) {
	if slot > f.highestSlot {
		f.highestSlot = slot
	}

	rec, ok := f.records[h]
	if ok {
		rec.told[from] = struct{}{}
		f.metrics.FloodDuplicates.Inc()
		return
	}

	rec = &floodRecord{
		slot: slot,
		told: map[PeerID]struct{}{from: {}},
	}
	f.records[h] = rec
	f.metrics.FloodRecords.Set(float64(len(f.records)))

	sent := f.sendToUntold(rec, msg)

	f.logger.WithFields(logrus.Fields{
		"hash": h.Short(),
		"slot": slot,
		"sent": sent,
	}).Debug("Flooding")
}

// Broadcast implements the OverlayGateway interface.
func (f *Floodgate) Broadcast(msg protocol.Message, exclude PeerID) {
	for _, id := range f.sender.AuthenticatedPeers() {
		if id == exclude {
			continue
		}
		if err := f.sender.SendTo(id, msg); err != nil {
			f.logger.WithError(err).WithField("peer", id).Debug("Broadcast")
		}
	}
}

// Flood records a locally produced message and sends it to every
// authenticated peer.
func (f *Floodgate) Flood(h protocol.Hash, msg protocol.Message, slot uint64) {
	f.RecvFloodedMessage(h, msg, slot, NoPeer)
}

func (f *Floodgate) sendToUntold(rec *floodRecord, msg protocol.Message) int {
	sent := 0
	for _, id := range f.sender.AuthenticatedPeers() {
		if _, ok := rec.told[id]; ok {
			continue
		}
		rec.told[id] = struct{}{}
		if err := f.sender.SendTo(id, msg); err != nil {
			f.logger.WithError(err).WithField("peer", id).Debug("Flood")
			continue
		}
		sent++
	}
	return sent
}

// ClearBelow forgets the records of slots lower than slot.
func (f *Floodgate) ClearBelow(slot uint64) {
	for h, rec := range f.records {
		if rec.slot < slot {
			delete(f.records, h)
		}
	}
	f.metrics.FloodRecords.Set(float64(len(f.records)))
}

// HighestSlot returns the highest slot seen in a flooded message.
func (f *Floodgate) HighestSlot() uint64 {
	return f.highestSlot
}

// Len returns the number of tracked messages.
func (f *Floodgate) Len() int {
	return len(f.records)
}
