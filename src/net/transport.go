package net

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/mosaicnetworks/overlay/src/overlay"
	"github.com/mosaicnetworks/overlay/src/peers"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrTransportShutdown is returned when operations on a transport are invoked
// after it's been terminated.
var ErrTransportShutdown = errors.New("transport shutdown")

// StreamLayer provides the raw streams a Transport frames messages over.
// Accept and Close come from net.Listener.
type StreamLayer interface {
	net.Listener
	Dial(address string, timeout time.Duration) (net.Conn, error)
	// AdvertiseAddr is the host:port other nodes reach this layer on.
	AdvertiseAddr() string
}

// InboundHandler receives accepted connections.
type InboundHandler interface {
	HandleInbound(conn overlay.Connection)
}

// TransportConfig configures a Transport.
type TransportConfig struct {
	// DialTimeout bounds outbound connection attempts.
	DialTimeout time.Duration
	// AcceptRate is the sustained number of inbound connections accepted per
	// second; AcceptBurst is the bucket size. A zero AcceptRate disables
	// throttling.
	AcceptRate  float64
	AcceptBurst int
	Conn        ConnConfig
}

// DefaultTransportConfig returns the default configuration.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout: 5 * time.Second,
		AcceptRate:  20,
		AcceptBurst: 40,
		Conn:        DefaultConnConfig(),
	}
}

// Transport connects the overlay to a StreamLayer. It implements the
// overlay.Dialer interface.
type Transport struct {
	stream  StreamLayer
	conf    TransportConfig
	limiter *rate.Limiter

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
	wg           sync.WaitGroup

	logger *logrus.Entry
}

// NewTransport creates a Transport over stream.
func NewTransport(stream StreamLayer, conf TransportConfig, logger *logrus.Entry) *Transport {
	limit := rate.Inf
	if conf.AcceptRate > 0 {
		limit = rate.Limit(conf.AcceptRate)
	}
	burst := conf.AcceptBurst
	if burst <= 0 {
		burst = 1
	}

	return &Transport{
		stream:     stream,
		conf:       conf,
		limiter:    rate.NewLimiter(limit, burst),
		shutdownCh: make(chan struct{}),
		logger:     logger.WithField("component", "transport"),
	}
}

// NewTCPTransport returns a Transport built on top of a TCP stream layer bound
// to bindAddr.
func NewTCPTransport(bindAddr string,
	advertise string,
	conf TransportConfig,
	logger *logrus.Entry) (*Transport, error) {

	stream, err := NewTCPStreamLayer(bindAddr, advertise)
	if err != nil {
		return nil, err
	}
	return NewTransport(stream, conf, logger), nil
}

// LocalAddr returns the address the stream listens on.
func (t *Transport) LocalAddr() string {
	if addr := t.stream.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// AdvertiseAddr returns the address advertised to other nodes.
func (t *Transport) AdvertiseAddr() string {
	return t.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (t *Transport) IsShutdown() bool {
	select {
	case <-t.shutdownCh:
		return true
	default:
		return false
	}
}

// Dial implements the overlay.Dialer interface. The attempt runs on its own
// goroutine; done is called exactly once with its outcome.
func (t *Transport) Dial(addr peers.Address, done func(overlay.Connection, error)) {
	t.shutdownLock.Lock()
	if t.shutdown {
		t.shutdownLock.Unlock()
		done(nil, ErrTransportShutdown)
		return
	}
	t.wg.Add(1)
	t.shutdownLock.Unlock()

	go func() {
		defer t.wg.Done()

		conn, err := t.stream.Dial(addr.String(), t.conf.DialTimeout)
		if err != nil {
			done(nil, err)
			return
		}
		if t.IsShutdown() {
			conn.Close()
			done(nil, ErrTransportShutdown)
			return
		}
		done(NewConn(conn, t.conf.Conn, t.logger), nil)
	}()
}

// Listen accepts inbound connections and hands them to h until Close.
// Connections above the accept rate are closed straight away.
func (t *Transport) Listen(h InboundHandler) {
	for {
		conn, err := t.stream.Accept()
		if err != nil {
			if t.IsShutdown() {
				return
			}
			t.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}

		if !t.limiter.Allow() {
			t.logger.WithField("from", conn.RemoteAddr()).Warn("Accept rate exceeded, closing connection")
			conn.Close()
			continue
		}

		t.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("Accepted connection")

		h.HandleInbound(NewConn(conn, t.conf.Conn, t.logger))
	}
}

// Close stops Listen and waits for dials in flight.
func (t *Transport) Close() error {
	t.shutdownLock.Lock()
	if !t.shutdown {
		close(t.shutdownCh)
		t.stream.Close()
		t.shutdown = true
	}
	t.shutdownLock.Unlock()

	t.wg.Wait()
	return nil
}
