package overlay

import (
	"sync"
	"time"

	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/sirupsen/logrus"
)

// ManagedDirectory is a PeerDirectory that also tracks connection failures.
type ManagedDirectory interface {
	PeerDirectory
	MarkFailure(addr peers.Address) error
	MarkSuccess(addr peers.Address) error
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Seeds are dialed on Start and added to the directory.
	Seeds []peers.Address
	// Self is never dialed.
	Self peers.Address
	// TargetPeers is the number of live peers the Manager dials towards.
	TargetPeers int
	// Interval is the period of maintenance ticks.
	Interval time.Duration
	// FloodKeepSlots is how many slots below the highest seen flood records
	// are kept for.
	FloodKeepSlots uint64
}

// Manager is the outer connection manager. It dials seeds and directory
// peers to keep TargetPeers connections, records connection outcomes in the
// directory, and expires old flood records. Every mutation it makes runs on
// the event loop.
type Manager struct {
	ov    *Overlay
	dir   ManagedDirectory
	conf  ManagerConfig
	timer *ControlTimer

	maintainers []Maintainer

	shutdownCh chan struct{}
	wg         sync.WaitGroup

	logger *logrus.Entry
}

// NewManager creates a Manager and registers it as a listener of ov. If timer
// is nil, a plain periodic timer is used.
func NewManager(ov *Overlay,
	dir ManagedDirectory,
	conf ManagerConfig,
	timer *ControlTimer,
	logger *logrus.Entry) *Manager {

	if timer == nil {
		timer = NewControlTimer(func(d time.Duration) <-chan time.Time {
			if d == 0 {
				return nil
			}
			return time.After(d)
		})
	}

	m := &Manager{
		ov:         ov,
		dir:        dir,
		conf:       conf,
		timer:      timer,
		shutdownCh: make(chan struct{}),
		logger:     logger.WithField("component", "manager"),
	}
	ov.AddListener(m)
	return m
}

// AddMaintainer registers mt to run at every maintenance tick. It must be
// called before Start.
func (m *Manager) AddMaintainer(mt Maintainer) {
	m.maintainers = append(m.maintainers, mt)
}

// Start dials the seeds and starts the maintenance timer.
func (m *Manager) Start() {
	m.ov.loop.Post(m.connectSeeds)

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.timer.Run(m.conf.Interval)
	}()
	go func() {
		defer m.wg.Done()
		m.run()
	}()
}

// Stop halts the maintenance timer.
func (m *Manager) Stop() {
	close(m.shutdownCh)
	m.timer.Shutdown()
	m.wg.Wait()
}

func (m *Manager) run() {
	for {
		select {
		case <-m.timer.Ticks():
			m.ov.loop.Post(m.tick)
			m.timer.Reset(m.conf.Interval)
		case <-m.shutdownCh:
			return
		}
	}
}

func (m *Manager) connectSeeds() {
	for _, seed := range m.conf.Seeds {
		if err := m.dir.AddPeer(seed); err != nil {
			m.logger.WithError(err).WithField("addr", seed).Error("Adding seed")
		}
		if seed == m.conf.Self || m.ov.registry.ConnectedTo(seed) {
			continue
		}
		m.ov.registry.Connect(seed)
	}
}

// tick runs one maintenance round.
func (m *Manager) tick() {
	m.fillConnections()
	keepSlot := m.expireFloodRecords()

	now := time.Now()
	for _, mt := range m.maintainers {
		mt.Maintain(now, keepSlot)
	}
}

func (m *Manager) fillConnections() {
	needed := m.conf.TargetPeers - m.ov.registry.Len()
	if needed <= 0 {
		return
	}

	candidates, err := m.dir.TopPeers(needed + protocol.MaxPeersPerMessage)
	if err != nil {
		m.logger.WithError(err).Error("Reading peer directory")
		return
	}

	dialed := 0
	for _, addr := range candidates {
		if dialed == needed {
			break
		}
		if addr == m.conf.Self || m.ov.registry.ConnectedTo(addr) {
			continue
		}
		m.ov.registry.Connect(addr)
		dialed++
	}

	if dialed > 0 {
		m.logger.WithFields(logrus.Fields{
			"live":   m.ov.registry.Len(),
			"dialed": dialed,
		}).Debug("Filling connections")
	}
}

// expireFloodRecords returns the lowest slot kept, or 0 if nothing expired.
func (m *Manager) expireFloodRecords() uint64 {
	fg := m.ov.floodgate
	if fg.HighestSlot() <= m.conf.FloodKeepSlots {
		return 0
	}
	keepSlot := fg.HighestSlot() - m.conf.FloodKeepSlots
	fg.ClearBelow(keepSlot)
	return keepSlot
}

// PeerAuthenticated implements the PeerListener interface. A successful
// outbound handshake resets the failure count of the address; an inbound one
// teaches us the address the remote listens on.
func (m *Manager) PeerAuthenticated(info PeerInfo) {
	if info.Role == Initiator.String() {
		if addr, err := peers.ParseAddressString(info.Address); err == nil {
			if err := m.dir.MarkSuccess(addr); err != nil {
				m.logger.WithError(err).Error("Marking success")
			}
		}
		return
	}

	if addr, ok := listeningAddress(info.Address, info.RemoteListeningPort); ok {
		if err := m.dir.AddPeer(addr); err != nil {
			m.logger.WithError(err).Error("Adding peer address")
		}
	}
}

// PeerDropped implements the PeerListener interface. A failed outbound
// connection counts against the address.
func (m *Manager) PeerDropped(info PeerInfo, reason DropReason) {
	if info.Role != Initiator.String() || reason != ReasonTransportFailure {
		return
	}
	addr, err := peers.ParseAddressString(info.Address)
	if err != nil {
		return
	}
	if err := m.dir.MarkFailure(addr); err != nil {
		m.logger.WithError(err).Error("Marking failure")
	}
}
