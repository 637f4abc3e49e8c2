package herder

import (
	"errors"
	"time"

	"github.com/mosaicnetworks/overlay/src/overlay"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoOverlay is returned when fetching before SetOverlay.
	ErrNoOverlay = errors.New("herder is not attached to an overlay")
	// ErrUnfetchable is returned when fetching a kind of artifact that cannot
	// be requested.
	ErrUnfetchable = errors.New("artifact kind cannot be fetched")
)

type fetchKey struct {
	kind protocol.MessageType
	hash protocol.Hash
}

// fetch tracks the retrieval of one artifact.
type fetch struct {
	key     fetchKey
	tried   map[overlay.PeerID]struct{}
	asking  overlay.PeerID
	askedAt time.Time
}

func request(key fetchKey) (protocol.Message, error) {
	switch key.kind {
	case protocol.MsgTxSet:
		return protocol.GetTxSet{Hash: key.hash}, nil
	case protocol.MsgQuorumSet:
		return protocol.GetQuorumSet{Hash: key.hash}, nil
	default:
		return nil, ErrUnfetchable
	}
}

// Fetch starts retrieving the artifact of the given kind (protocol.MsgTxSet or
// protocol.MsgQuorumSet) and hash, unless it is already known or being
// fetched.
func (h *Herder) Fetch(kind protocol.MessageType, hash protocol.Hash) error {
	key := fetchKey{kind, hash}
	if _, err := request(key); err != nil {
		return err
	}
	if h.network == nil {
		return ErrNoOverlay
	}
	if h.have(key) {
		return nil
	}
	if _, ok := h.fetches[key]; ok {
		return nil
	}

	f := &fetch{
		key:   key,
		tried: make(map[overlay.PeerID]struct{}),
	}
	h.fetches[key] = f
	h.askNext(f)
	return nil
}

// Fetching reports whether the artifact is being fetched, and from whom.
func (h *Herder) Fetching(kind protocol.MessageType, hash protocol.Hash) (overlay.PeerID, bool) {
	f, ok := h.fetches[fetchKey{kind, hash}]
	if !ok {
		return overlay.NoPeer, false
	}
	return f.asking, true
}

func (h *Herder) have(key fetchKey) bool {
	switch key.kind {
	case protocol.MsgTxSet:
		return h.FetchTxSet(key.hash) != nil
	case protocol.MsgQuorumSet:
		return h.FetchQuorumSet(key.hash) != nil
	}
	return false
}

// askNext sends the request to the first authenticated peer not yet tried. The
// fetch is abandoned when there is none.
func (h *Herder) askNext(f *fetch) {
	msg, _ := request(f.key)

	for _, id := range h.network.AuthenticatedPeers() {
		if _, ok := f.tried[id]; ok {
			continue
		}
		f.tried[id] = struct{}{}

		if err := h.network.SendTo(id, msg); err != nil {
			h.logger.WithError(err).WithField("peer", id).Debug("Sending fetch request")
			continue
		}

		f.asking = id
		f.askedAt = h.now()
		h.logger.WithFields(logrus.Fields{
			"kind": f.key.kind,
			"hash": f.key.hash.Short(),
			"peer": id,
		}).Debug("Fetching")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"kind":  f.key.kind,
		"hash":  f.key.hash.Short(),
		"tried": len(f.tried),
	}).Warn("Giving up fetch")
	h.abandon(f.key)
}

// noteDontHave moves the fetch on if the peer that answered is the one being
// asked.
func (h *Herder) noteDontHave(key fetchKey, from overlay.PeerID) {
	f, ok := h.fetches[key]
	if !ok || f.asking != from {
		return
	}
	h.askNext(f)
}

// retarget moves on every fetch matching stale.
func (h *Herder) retarget(stale func(f *fetch) bool) {
	var moving []*fetch
	for _, f := range h.fetches {
		if stale(f) {
			moving = append(moving, f)
		}
	}
	for _, f := range moving {
		h.askNext(f)
	}
}

// expireFetches moves on the fetches whose peer has not answered within
// FetchTimeout.
func (h *Herder) expireFetches(now time.Time) {
	h.retarget(func(f *fetch) bool {
		if now.Sub(f.askedAt) < h.conf.FetchTimeout {
			return false
		}
		h.logger.WithFields(logrus.Fields{
			"kind": f.key.kind,
			"hash": f.key.hash.Short(),
			"peer": f.asking,
		}).Debug("Fetch timed out")
		return true
	})
}

// PeerAuthenticated implements the overlay.PeerListener interface.
func (h *Herder) PeerAuthenticated(info overlay.PeerInfo) {}

// PeerDropped implements the overlay.PeerListener interface. The fetches that
// were waiting on the dropped peer move on to the next one.
func (h *Herder) PeerDropped(info overlay.PeerInfo, reason overlay.DropReason) {
	h.retarget(func(f *fetch) bool {
		return f.asking == info.ID
	})
}

// solicited reports whether an artifact with key is being fetched.
func (h *Herder) solicited(key fetchKey) bool {
	_, ok := h.fetches[key]
	return ok
}

func (h *Herder) fetched(key fetchKey) {
	if _, ok := h.fetches[key]; ok {
		delete(h.fetches, key)
		h.stats.FetchesCompleted++
	}
}

func (h *Herder) abandon(key fetchKey) {
	if _, ok := h.fetches[key]; ok {
		delete(h.fetches, key)
		h.stats.FetchesAbandoned++
	}
}
