package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mosaicnetworks/overlay/src/config"
	"github.com/mosaicnetworks/overlay/src/crypto/keys"
	"github.com/mosaicnetworks/overlay/src/herder"
	"github.com/mosaicnetworks/overlay/src/net"
	"github.com/mosaicnetworks/overlay/src/overlay"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/mosaicnetworks/overlay/src/version"
	"github.com/sirupsen/logrus"
)

// Node is a complete overlay node: transport, overlay, connection manager and
// herder, built from a Config.
type Node struct {
	// state holds the lifecycle of the Node and tracks its goroutines
	state

	conf *config.Config

	directory peers.Directory
	seeds     []peers.Address
	self      peers.Address

	trans   *net.Transport
	herder  *herder.Herder
	overlay *overlay.Overlay
	manager *overlay.Manager

	start   time.Time
	runLock sync.Mutex

	logger *logrus.Entry
}

// NewNode creates a Node. Nothing is opened before Init.
func NewNode(conf *config.Config) *Node {
	return &Node{
		conf:   conf,
		logger: conf.Logger(),
	}
}

// Init builds every component of the Node. On error, whatever was opened is
// closed again.
func (n *Node) Init() error {
	steps := []func() error{
		n.initKey,
		n.initDirectory,
		n.initSeeds,
		n.initTransport,
		n.initHerder,
		n.initOverlay,
	}

	for _, step := range steps {
		if err := step(); err != nil {
			n.closeResources()
			return err
		}
	}

	n.setState(Initialized)

	n.logger.WithFields(logrus.Fields{
		"self":    n.self.String(),
		"node_id": keys.PublicKeyHex(n.conf.Key.PubKey()),
		"seeds":   len(n.seeds),
		"store":   n.conf.Store,
	}).Debug("Node initialized")

	return nil
}

func (n *Node) initKey() error {
	if n.conf.Key != nil {
		return nil
	}

	keyfile := keys.NewSimpleKeyfile(n.conf.Keyfile())

	if keyfile.Exists() {
		privKey, err := keyfile.ReadKey()
		if err != nil {
			n.logger.WithError(err).Error("Cannot read private key from file")
			return err
		}
		n.conf.Key = privKey
		return nil
	}

	privKey, err := Keygen(keyfile.Path())
	if err != nil {
		n.logger.WithError(err).Error("Cannot generate a new private key")
		return err
	}
	n.logger.WithField("public_key", keys.PublicKeyHex(privKey.PubKey())).Info("Created a new key")

	n.conf.Key = privKey
	return nil
}

func (n *Node) initDirectory() error {
	if !n.conf.Store {
		n.directory = peers.NewInmemDirectory()
		n.logger.Debug("Created new in-mem peer directory")
		return nil
	}

	n.logger.WithField("path", n.conf.DatabaseDir).Debug("Attempting to load or create database")

	dir, err := peers.NewBadgerDirectory(n.conf.DatabaseDir, n.logger)
	if err != nil {
		return err
	}
	n.directory = dir
	return nil
}

func (n *Node) initSeeds() error {
	fileSeeds, err := peers.NewJSONSeeds(n.conf.DataDir).Seeds()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	n.seeds = append(n.seeds, fileSeeds...)

	for _, s := range n.conf.Seeds {
		addr, err := peers.ParseAddressString(s)
		if err != nil {
			return fmt.Errorf("seed %q: %w", s, err)
		}
		n.seeds = append(n.seeds, addr)
	}
	return nil
}

func (n *Node) initTransport() error {
	conf := net.TransportConfig{
		DialTimeout: n.conf.DialTimeout,
		AcceptRate:  n.conf.AcceptRate,
		AcceptBurst: n.conf.AcceptBurst,
		Conn: net.ConnConfig{
			MaxFrameSize: n.conf.MaxFrameSize,
			QueueSize:    n.conf.WriteQueue,
			WriteTimeout: n.conf.WriteTimeout,
		},
	}

	trans, err := net.NewTCPTransport(n.conf.BindAddr, n.conf.AdvertiseAddr, conf, n.logger)
	if err != nil {
		return err
	}
	n.trans = trans

	self, err := peers.ParseAddressString(trans.AdvertiseAddr())
	if err != nil {
		return fmt.Errorf("advertise address: %w", err)
	}
	n.self = self

	return nil
}

func (n *Node) initHerder() error {
	h, err := herder.NewHerder(herder.Config{
		Key: n.conf.Key,
		Quorum: protocol.QuorumConfig{
			Threshold:  1,
			Validators: [][]byte{keys.NodeID(n.conf.Key.PubKey())},
		},
		MaxPendingTxs: n.conf.MaxPendingTxs,
	}, n.logger)
	if err != nil {
		return err
	}
	n.herder = h
	return nil
}

func (n *Node) initOverlay() error {
	n.overlay = overlay.NewOverlay(
		overlay.Config{
			ProtocolVersion: version.ProtocolVersion,
			VersionString:   version.String(),
			ListeningPort:   int32(n.self.Port),
		},
		n.herder,
		n.directory,
		n.trans,
		nil,
		n.logger,
	)

	n.herder.SetOverlay(n.overlay, n.overlay.Floodgate())

	n.manager = overlay.NewManager(
		n.overlay,
		n.directory,
		overlay.ManagerConfig{
			Seeds:          n.seeds,
			Self:           n.self,
			TargetPeers:    n.conf.TargetPeers,
			Interval:       n.conf.MaintenanceInterval,
			FloodKeepSlots: n.conf.FloodKeepSlots,
		},
		overlay.NewRandomControlTimer(),
		n.logger,
	)

	n.overlay.AddListener(n.herder)
	n.manager.AddMaintainer(n.herder)

	return nil
}

// RunAsync starts the Node and returns. The event loop runs in the
// background.
func (n *Node) RunAsync() {
	n.logger.Debug("RunAsync")
	if n.startRunning() {
		n.goFunc(n.overlay.Loop().Run)
	}
}

// Run starts the Node and blocks until Shutdown.
func (n *Node) Run() {
	if n.startRunning() {
		n.overlay.Loop().Run()
	}
}

func (n *Node) startRunning() bool {
	n.runLock.Lock()
	defer n.runLock.Unlock()

	if n.overlay == nil || n.getState() != Initialized {
		return false
	}
	n.setState(Running)
	n.start = time.Now()

	n.goFunc(func() { n.trans.Listen(n.overlay) })
	n.manager.Start()

	n.logger.WithField("listen", n.trans.LocalAddr()).Info("Node running")
	return true
}

// Shutdown drops every peer, then stops the loop, the manager and the
// transport, and closes the directory. It is idempotent.
func (n *Node) Shutdown() {
	n.runLock.Lock()
	prev := n.getState()
	n.setState(Shutdown)
	n.runLock.Unlock()

	if prev == Shutdown || n.overlay == nil {
		return
	}
	n.logger.Debug("Shutdown")

	if prev == Running {
		n.manager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.conf.WriteTimeout)
	defer cancel()
	if prev == Running {
		if err := n.overlay.Shutdown(ctx); err != nil {
			n.logger.WithError(err).Warn("Dropping peers")
		}
	} else {
		n.overlay.Loop().Shutdown()
	}

	n.closeResources()
	n.waitRoutines()
}

func (n *Node) closeResources() {
	if n.trans != nil {
		n.trans.Close()
	}
	if n.directory != nil {
		if err := n.directory.Close(); err != nil {
			n.logger.WithError(err).Error("Closing peer directory")
		}
	}
}

// SubmitTransaction adds a signed transaction to the pending pool and
// broadcasts it to every authenticated peer. It returns false if the
// transaction was rejected.
func (n *Node) SubmitTransaction(ctx context.Context, tx *protocol.TxFrame) (bool, error) {
	return overlay.Query(ctx, n.overlay.Loop(), func() bool {
		return n.herder.SubmitTransaction(tx)
	})
}

// GetPeers returns the peers that completed the handshake.
func (n *Node) GetPeers(ctx context.Context) ([]overlay.PeerInfo, error) {
	return overlay.Query(ctx, n.overlay.Loop(), func() []overlay.PeerInfo {
		res := []overlay.PeerInfo{}
		for _, p := range n.overlay.Registry().Authenticated() {
			res = append(res, p.Info())
		}
		return res
	})
}

// loopStats is read on the event loop by GetStats.
type loopStats struct {
	numPeers     int
	numAuthPeers int
	herder       herder.Stats
}

// GetStats returns stats
func (n *Node) GetStats(ctx context.Context) (map[string]string, error) {
	ls, err := overlay.Query(ctx, n.overlay.Loop(), func() loopStats {
		return loopStats{
			numPeers:     n.overlay.Registry().Len(),
			numAuthPeers: len(n.overlay.Registry().Authenticated()),
			herder:       n.herder.Stats(),
		}
	})
	if err != nil {
		return nil, err
	}

	s := map[string]string{
		"state":          n.getState().String(),
		"moniker":        n.conf.Moniker,
		"address":        n.self.String(),
		"version":        version.String(),
		"num_peers":      strconv.Itoa(ls.numPeers),
		"num_auth_peers": strconv.Itoa(ls.numAuthPeers),
		"pending_txs":    strconv.Itoa(ls.herder.PendingTxs),
		"tx_sets":        strconv.Itoa(ls.herder.TxSets),
		"quorum_sets":    strconv.Itoa(ls.herder.QuorumSets),
		"envelopes":      strconv.Itoa(ls.herder.Envelopes),
		"fetching":       strconv.Itoa(ls.herder.Fetching),
		"rejected_txs":   strconv.Itoa(ls.herder.RejectedTxs),
		"uptime_seconds": strconv.FormatFloat(n.uptime().Seconds(), 'f', 0, 64),
	}
	return s, nil
}

func (n *Node) uptime() time.Duration {
	if n.start.IsZero() {
		return 0
	}
	return time.Since(n.start)
}

// State returns the lifecycle state of the Node.
func (n *Node) State() State {
	return n.getState()
}

// Addr returns the address announced to other nodes.
func (n *Node) Addr() peers.Address {
	return n.self
}

// Key returns the private key of the Node.
func (n *Node) Key() *btcec.PrivateKey {
	return n.conf.Key
}

// Overlay returns the overlay. Its loop-only methods must be called through
// Overlay().Loop().Sync.
func (n *Node) Overlay() *overlay.Overlay {
	return n.overlay
}

// Herder returns the herder. It must only be used from the event loop.
func (n *Node) Herder() *herder.Herder {
	return n.herder
}

// Metrics returns the overlay metrics.
func (n *Node) Metrics() *overlay.Metrics {
	return n.overlay.Metrics()
}

// Keygen generates a new key and writes it to keyfile. It fails with
// keys.ErrKeyExists if the file is already there.
func Keygen(keyfile string) (*btcec.PrivateKey, error) {
	privKey, err := keys.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := keys.NewSimpleKeyfile(keyfile).WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
