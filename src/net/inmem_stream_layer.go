package net

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

var (
	errListenerClosed = errors.New("listener closed")
	errAddrInUse      = errors.New("address already in use")
)

type inmemAddr string

func (a inmemAddr) Network() string { return "inmem" }
func (a inmemAddr) String() string  { return string(a) }

// inmemConn is one end of a net.Pipe, with the addresses of the layers it
// joins.
type inmemConn struct {
	net.Conn
	local  net.Addr
	remote net.Addr
}

func (c *inmemConn) LocalAddr() net.Addr  { return c.local }
func (c *inmemConn) RemoteAddr() net.Addr { return c.remote }

// InmemNetwork routes dials between the InmemStreamLayers created on it.
type InmemNetwork struct {
	sync.Mutex
	layers map[string]*InmemStreamLayer
	port   int
}

// NewInmemNetwork creates an empty InmemNetwork.
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{
		layers: make(map[string]*InmemStreamLayer),
		port:   40000,
	}
}

func (n *InmemNetwork) lookup(addr string) (*InmemStreamLayer, bool) {
	n.Lock()
	defer n.Unlock()
	l, ok := n.layers[addr]
	return l, ok
}

// ephemeral returns the source address of an outbound connection from host.
func (n *InmemNetwork) ephemeral(host string) string {
	n.Lock()
	defer n.Unlock()
	n.port++
	return net.JoinHostPort(host, fmt.Sprint(n.port))
}

// InmemStreamLayer implements the StreamLayer interface with in-memory pipes.
// Its address is a plain IP:PORT string so that the overlay can treat it like
// a TCP address.
type InmemStreamLayer struct {
	network *InmemNetwork
	addr    inmemAddr

	acceptCh   chan net.Conn
	closeOnce  sync.Once
	shutdownCh chan struct{}
}

// NewInmemStreamLayer registers a layer listening on addr.
func NewInmemStreamLayer(network *InmemNetwork, addr string) (*InmemStreamLayer, error) {
	network.Lock()
	defer network.Unlock()

	if _, ok := network.layers[addr]; ok {
		return nil, fmt.Errorf("%s: %w", addr, errAddrInUse)
	}

	l := &InmemStreamLayer{
		network:    network,
		addr:       inmemAddr(addr),
		acceptCh:   make(chan net.Conn),
		shutdownCh: make(chan struct{}),
	}
	network.layers[addr] = l
	return l, nil
}

// Dial implements the StreamLayer interface.
func (i *InmemStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	target, ok := i.network.lookup(address)
	if !ok {
		return nil, fmt.Errorf("dial %s: connection refused", address)
	}

	host, _, err := net.SplitHostPort(string(i.addr))
	if err != nil {
		return nil, err
	}
	source := inmemAddr(i.network.ephemeral(host))

	local, remote := net.Pipe()
	client := &inmemConn{Conn: local, local: source, remote: target.addr}
	server := &inmemConn{Conn: remote, local: target.addr, remote: source}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timeoutCh = time.After(timeout)
	}

	select {
	case target.acceptCh <- server:
		return client, nil
	case <-target.shutdownCh:
	case <-timeoutCh:
	}
	local.Close()
	remote.Close()
	return nil, fmt.Errorf("dial %s: connection refused", address)
}

// Accept implements the net.Listener interface.
func (i *InmemStreamLayer) Accept() (net.Conn, error) {
	select {
	case conn := <-i.acceptCh:
		return conn, nil
	case <-i.shutdownCh:
		return nil, errListenerClosed
	}
}

// Close implements the net.Listener interface.
func (i *InmemStreamLayer) Close() error {
	i.closeOnce.Do(func() {
		close(i.shutdownCh)

		i.network.Lock()
		delete(i.network.layers, string(i.addr))
		i.network.Unlock()
	})
	return nil
}

// Addr implements the net.Listener interface.
func (i *InmemStreamLayer) Addr() net.Addr {
	return i.addr
}

// AdvertiseAddr implements the StreamLayer interface.
func (i *InmemStreamLayer) AdvertiseAddr() string {
	return string(i.addr)
}
