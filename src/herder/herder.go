package herder

import (
	"errors"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/mosaicnetworks/overlay/src/crypto/keys"
	"github.com/mosaicnetworks/overlay/src/overlay"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/sirupsen/logrus"
)

// Default limits.
const (
	// DefaultMaxPendingTxs is the capacity of the pending transaction pool.
	DefaultMaxPendingTxs = 10000
	// DefaultMaxArtifacts is the number of fetched tx sets and quorum sets
	// kept.
	DefaultMaxArtifacts = 1000
	// DefaultMaxEnvelopes is the number of envelopes kept across all slots.
	DefaultMaxEnvelopes = 10000
	// DefaultFetchTimeout is how long a peer has to answer a fetch request.
	DefaultFetchTimeout = 10 * time.Second
)

var (
	// ErrBadSignature is returned for a transaction or envelope whose
	// signature does not verify.
	ErrBadSignature = errors.New("bad signature")
	// ErrNoKey is returned when signing without a private key.
	ErrNoKey = errors.New("herder has no private key")
	// ErrEnvelopeLogFull is returned when the envelope log holds MaxEnvelopes.
	ErrEnvelopeLogFull = errors.New("envelope log full")
)

// Network is the part of the overlay the Herder sends through.
type Network interface {
	AuthenticatedPeers() []overlay.PeerID
	SendTo(id overlay.PeerID, msg protocol.Message) error
}

// Flooder spreads locally produced messages.
type Flooder interface {
	Flood(h protocol.Hash, msg protocol.Message, slot uint64)
	Broadcast(msg protocol.Message, exclude overlay.PeerID)
}

// Config configures a Herder.
type Config struct {
	// Key signs the envelopes emitted by this node. It may be nil for a node
	// that only relays.
	Key *btcec.PrivateKey
	// Quorum is the local quorum configuration.
	Quorum protocol.QuorumConfig
	// MaxPendingTxs caps the pending transaction pool.
	MaxPendingTxs int
	// MaxArtifacts caps the fetched tx sets and quorum sets kept. The least
	// recently used are evicted first.
	MaxArtifacts int
	// MaxEnvelopes caps the envelopes logged across all slots.
	MaxEnvelopes int
	// FetchTimeout is how long a peer has to answer before the next one is
	// asked.
	FetchTimeout time.Duration
}

// Stats counts what the Herder has seen.
type Stats struct {
	TxSets             int `json:"tx_sets"`
	QuorumSets         int `json:"quorum_sets"`
	PendingTxs         int `json:"pending_txs"`
	Envelopes          int `json:"envelopes"`
	Fetching           int `json:"fetching"`
	FetchesCompleted   int `json:"fetches_completed"`
	FetchesAbandoned   int `json:"fetches_abandoned"`
	RejectedTxs        int `json:"rejected_txs"`
	RejectedEnvelopes  int `json:"rejected_envelopes"`
	RejectedQuorumSets int `json:"rejected_quorum_sets"`
	RejectedTxSets     int `json:"rejected_tx_sets"`
	Unsolicited        int `json:"unsolicited"`
}

// Herder implements the overlay.ConsensusGateway, overlay.PeerListener and
// overlay.Maintainer interfaces.
type Herder struct {
	conf   Config
	nodeID []byte
	quorum *protocol.QuorumSetFrame

	// local artifacts: proposed tx sets and the local quorum set
	txSets     map[protocol.Hash]*protocol.TxSetFrame
	quorumSets map[protocol.Hash]*protocol.QuorumSetFrame

	// fetchKey => *protocol.TxSetFrame or *protocol.QuorumSetFrame
	artifacts *simplelru.LRU

	pending map[protocol.Hash]*protocol.TxFrame

	envelopes    map[uint64][]protocol.Envelope
	envelopeSeen map[protocol.Hash]struct{}
	numEnvelopes int

	fetches map[fetchKey]*fetch
	now     func() time.Time

	network Network
	flooder Flooder

	stats Stats

	logger *logrus.Entry
}

// NewHerder creates a Herder. The local quorum configuration must be sane.
func NewHerder(conf Config, logger *logrus.Entry) (*Herder, error) {
	if err := conf.Quorum.Sane(); err != nil {
		return nil, err
	}
	quorum, err := protocol.NewQuorumSetFrame(conf.Quorum)
	if err != nil {
		return nil, err
	}
	if conf.MaxPendingTxs <= 0 {
		conf.MaxPendingTxs = DefaultMaxPendingTxs
	}
	if conf.MaxArtifacts <= 0 {
		conf.MaxArtifacts = DefaultMaxArtifacts
	}
	if conf.MaxEnvelopes <= 0 {
		conf.MaxEnvelopes = DefaultMaxEnvelopes
	}
	if conf.FetchTimeout <= 0 {
		conf.FetchTimeout = DefaultFetchTimeout
	}

	artifacts, err := simplelru.NewLRU(conf.MaxArtifacts, nil)
	if err != nil {
		return nil, err
	}

	h := &Herder{
		conf:         conf,
		quorum:       quorum,
		txSets:       make(map[protocol.Hash]*protocol.TxSetFrame),
		quorumSets:   make(map[protocol.Hash]*protocol.QuorumSetFrame),
		artifacts:    artifacts,
		pending:      make(map[protocol.Hash]*protocol.TxFrame),
		envelopes:    make(map[uint64][]protocol.Envelope),
		envelopeSeen: make(map[protocol.Hash]struct{}),
		fetches:      make(map[fetchKey]*fetch),
		now:          time.Now,
		logger:       logger.WithField("component", "herder"),
	}
	if conf.Key != nil {
		h.nodeID = keys.NodeID(conf.Key.PubKey())
	}
	h.quorumSets[quorum.Hash()] = quorum

	return h, nil
}

// SetOverlay attaches the Herder to the network it fetches and floods through.
func (h *Herder) SetOverlay(network Network, flooder Flooder) {
	h.network = network
	h.flooder = flooder
}

// QuorumSetHash returns the hash of the local quorum configuration.
func (h *Herder) QuorumSetHash() protocol.Hash {
	return h.quorum.Hash()
}

/*******************************************************************************
ConsensusGateway
*******************************************************************************/

// FetchTxSet implements the overlay.ConsensusGateway interface.
func (h *Herder) FetchTxSet(hash protocol.Hash) *protocol.TxSetFrame {
	if ts, ok := h.txSets[hash]; ok {
		return ts
	}
	if v, ok := h.artifacts.Get(fetchKey{protocol.MsgTxSet, hash}); ok {
		return v.(*protocol.TxSetFrame)
	}
	return nil
}

// RecvTxSet implements the overlay.ConsensusGateway interface. Only a tx set
// that is being fetched is kept, and only if every transaction in it is
// properly signed.
func (h *Herder) RecvTxSet(ts *protocol.TxSetFrame) {
	key := fetchKey{protocol.MsgTxSet, ts.Hash()}
	if !h.solicited(key) {
		h.logger.WithField("hash", ts.Hash().Short()).Debug("Ignoring unsolicited tx set")
		h.stats.Unsolicited++
		return
	}

	for _, tx := range ts.Txs() {
		if err := verifyTx(tx); err != nil {
			h.logger.WithError(err).WithField("hash", ts.Hash().Short()).Warn("Rejecting tx set")
			h.stats.RejectedTxSets++
			h.abandon(key)
			return
		}
	}

	h.artifacts.Add(key, ts)
	h.fetched(key)

	h.logger.WithFields(logrus.Fields{
		"hash": ts.Hash().Short(),
		"txs":  len(ts.Txs()),
	}).Debug("Received tx set")
}

// FetchQuorumSet implements the overlay.ConsensusGateway interface.
func (h *Herder) FetchQuorumSet(hash protocol.Hash) *protocol.QuorumSetFrame {
	if qs, ok := h.quorumSets[hash]; ok {
		return qs
	}
	if v, ok := h.artifacts.Get(fetchKey{protocol.MsgQuorumSet, hash}); ok {
		return v.(*protocol.QuorumSetFrame)
	}
	return nil
}

// RecvQuorumSet implements the overlay.ConsensusGateway interface. Only a
// quorum set that is being fetched is kept, and only if it can be satisfied.
func (h *Herder) RecvQuorumSet(qs *protocol.QuorumSetFrame) {
	key := fetchKey{protocol.MsgQuorumSet, qs.Hash()}
	if !h.solicited(key) {
		h.logger.WithField("hash", qs.Hash().Short()).Debug("Ignoring unsolicited quorum set")
		h.stats.Unsolicited++
		return
	}

	if err := qs.Config().Sane(); err != nil {
		h.logger.WithError(err).WithField("hash", qs.Hash().Short()).Warn("Rejecting quorum set")
		h.stats.RejectedQuorumSets++
		h.abandon(key)
		return
	}

	h.artifacts.Add(key, qs)
	h.fetched(key)

	h.logger.WithField("hash", qs.Hash().Short()).Debug("Received quorum set")
}

// RecvEnvelope implements the overlay.ConsensusGateway interface. Envelopes
// with a valid signature are logged under their slot, once, while the log has
// room; the quorum set they refer to is fetched if unknown.
func (h *Herder) RecvEnvelope(env protocol.Envelope) {
	err := verifyEnvelope(env)
	if err == nil {
		_, err = h.record(env)
	}
	if err != nil {
		h.logger.WithError(err).WithField("slot", env.Statement.SlotIndex).Debug("Rejecting envelope")
		h.stats.RejectedEnvelopes++
	}
}

// RecvTransaction implements the overlay.ConsensusGateway interface. It
// accepts a transaction if its signature verifies, it is not already pending,
// and the pool has room.
func (h *Herder) RecvTransaction(tx *protocol.TxFrame) bool {
	if err := verifyTx(tx); err != nil {
		h.logger.WithError(err).WithField("hash", tx.Hash().Short()).Debug("Rejecting transaction")
		h.stats.RejectedTxs++
		return false
	}
	if _, ok := h.pending[tx.Hash()]; ok {
		return false
	}
	if len(h.pending) >= h.conf.MaxPendingTxs {
		h.logger.WithField("hash", tx.Hash().Short()).Warn("Pending pool full")
		h.stats.RejectedTxs++
		return false
	}

	h.pending[tx.Hash()] = tx
	return true
}

// NoteDontHaveTxSet implements the overlay.ConsensusGateway interface.
func (h *Herder) NoteDontHaveTxSet(hash protocol.Hash, from overlay.PeerID) {
	h.noteDontHave(fetchKey{protocol.MsgTxSet, hash}, from)
}

// NoteDontHaveQuorumSet implements the overlay.ConsensusGateway interface.
func (h *Herder) NoteDontHaveQuorumSet(hash protocol.Hash, from overlay.PeerID) {
	h.noteDontHave(fetchKey{protocol.MsgQuorumSet, hash}, from)
}

/*******************************************************************************
Local operations
*******************************************************************************/

// SubmitTransaction adds a locally submitted transaction to the pool and
// broadcasts it.
func (h *Herder) SubmitTransaction(tx *protocol.TxFrame) bool {
	if !h.RecvTransaction(tx) {
		return false
	}
	if h.flooder != nil {
		h.flooder.Broadcast(tx.Message(), overlay.NoPeer)
	}
	return true
}

// ProposeTxSet builds a transaction set from the pending pool, in hash order,
// and keeps it so that peers can fetch it.
func (h *Herder) ProposeTxSet(previous protocol.Hash) (*protocol.TxSetFrame, error) {
	txs := h.PendingTransactions()
	set := protocol.TransactionSet{
		PreviousLedgerHash: previous,
		Txs:                make([][]byte, 0, len(txs)),
	}
	for _, tx := range txs {
		set.Txs = append(set.Txs, tx.Message().Blob)
	}

	ts, err := protocol.NewTxSetFrame(set)
	if err != nil {
		return nil, err
	}
	h.txSets[ts.Hash()] = ts
	return ts, nil
}

// Externalize drops from the pool the transactions of an applied set.
func (h *Herder) Externalize(ts *protocol.TxSetFrame) {
	for _, tx := range ts.Txs() {
		delete(h.pending, tx.Hash())
	}
}

// EmitEnvelope signs a statement about slot with the node key, logs it and
// floods it.
func (h *Herder) EmitEnvelope(slot uint64, pledges []byte) (protocol.Envelope, error) {
	if h.conf.Key == nil {
		return protocol.Envelope{}, ErrNoKey
	}

	env := protocol.Envelope{
		NodeID: h.nodeID,
		Statement: protocol.Statement{
			SlotIndex:     slot,
			QuorumSetHash: h.quorum.Hash(),
			Pledges:       pledges,
		},
	}
	digest, err := env.SigningHash()
	if err != nil {
		return protocol.Envelope{}, err
	}
	env.Signature, err = keys.Sign(h.conf.Key, digest[:])
	if err != nil {
		return protocol.Envelope{}, err
	}

	hash, err := h.record(env)
	if err != nil {
		return protocol.Envelope{}, err
	}
	if h.flooder != nil {
		h.flooder.Flood(hash, protocol.ConsensusEnvelope{Envelope: env}, slot)
	}
	return env, nil
}

// PendingTransactions returns the pending pool in hash order.
func (h *Herder) PendingTransactions() []*protocol.TxFrame {
	res := make([]*protocol.TxFrame, 0, len(h.pending))
	for _, tx := range h.pending {
		res = append(res, tx)
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i].Hash(), res[j].Hash()
		return string(a[:]) < string(b[:])
	})
	return res
}

// Envelopes returns the envelopes logged for slot, in arrival order.
func (h *Herder) Envelopes(slot uint64) []protocol.Envelope {
	return h.envelopes[slot]
}

// PurgeSlotsBelow forgets the envelopes of slots lower than slot.
func (h *Herder) PurgeSlotsBelow(slot uint64) {
	for s, envs := range h.envelopes {
		if s >= slot {
			continue
		}
		for _, env := range envs {
			if hash, err := env.Hash(); err == nil {
				delete(h.envelopeSeen, hash)
			}
		}
		h.numEnvelopes -= len(envs)
		delete(h.envelopes, s)
	}
}

// Maintain implements the overlay.Maintainer interface. Fetches that timed out
// move on to the next peer, and envelopes of slots below keepSlot are
// forgotten.
func (h *Herder) Maintain(now time.Time, keepSlot uint64) {
	h.expireFetches(now)
	if keepSlot > 0 {
		h.PurgeSlotsBelow(keepSlot)
	}
}

// Stats returns the current counters.
func (h *Herder) Stats() Stats {
	s := h.stats
	s.TxSets = len(h.txSets)
	s.QuorumSets = len(h.quorumSets)
	for _, k := range h.artifacts.Keys() {
		if k.(fetchKey).kind == protocol.MsgTxSet {
			s.TxSets++
		} else {
			s.QuorumSets++
		}
	}
	s.PendingTxs = len(h.pending)
	s.Fetching = len(h.fetches)
	s.Envelopes = h.numEnvelopes
	return s
}

func (h *Herder) record(env protocol.Envelope) (protocol.Hash, error) {
	hash, err := env.Hash()
	if err != nil {
		return protocol.Hash{}, err
	}
	if _, ok := h.envelopeSeen[hash]; ok {
		return hash, nil
	}
	if h.numEnvelopes >= h.conf.MaxEnvelopes {
		return hash, ErrEnvelopeLogFull
	}
	h.envelopeSeen[hash] = struct{}{}

	slot := env.Statement.SlotIndex
	h.envelopes[slot] = append(h.envelopes[slot], env)
	h.numEnvelopes++

	qsHash := env.Statement.QuorumSetHash
	if h.FetchQuorumSet(qsHash) == nil && h.network != nil {
		if err := h.Fetch(protocol.MsgQuorumSet, qsHash); err != nil {
			h.logger.WithError(err).Debug("Fetching quorum set")
		}
	}
	return hash, nil
}

func verifyTx(tx *protocol.TxFrame) error {
	digest, err := tx.Tx().SigningHash()
	if err != nil {
		return err
	}
	if !keys.Verify(tx.Tx().Source, digest[:], tx.Tx().Signature) {
		return ErrBadSignature
	}
	return nil
}

func verifyEnvelope(env protocol.Envelope) error {
	digest, err := env.SigningHash()
	if err != nil {
		return err
	}
	if !keys.Verify(env.NodeID, digest[:], env.Signature) {
		return ErrBadSignature
	}
	return nil
}
