package peers

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/mosaicnetworks/overlay/src/protocol"
)

// ErrMalformedAddress is returned for an address that is not a routable IPv4
// endpoint.
var ErrMalformedAddress = errors.New("malformed peer address")

// Address is an IPv4 endpoint.
type Address struct {
	IP   [4]byte
	Port uint16
}

// ParseAddress validates a wire address. The IP must be exactly 4 bytes and
// neither unspecified, broadcast nor multicast. The port must be in 1..65535.
func ParseAddress(ip []byte, port uint32) (Address, error) {
	if len(ip) != net.IPv4len {
		return Address{}, fmt.Errorf("%w: ip has %d bytes", ErrMalformedAddress, len(ip))
	}
	if port == 0 || port > 65535 {
		return Address{}, fmt.Errorf("%w: port %d", ErrMalformedAddress, port)
	}

	nip := net.IP(ip)
	switch {
	case nip.IsUnspecified():
		return Address{}, fmt.Errorf("%w: unspecified ip", ErrMalformedAddress)
	case nip.Equal(net.IPv4bcast):
		return Address{}, fmt.Errorf("%w: broadcast ip", ErrMalformedAddress)
	case nip.IsMulticast():
		return Address{}, fmt.Errorf("%w: multicast ip %s", ErrMalformedAddress, nip)
	}

	var a Address
	copy(a.IP[:], ip)
	a.Port = uint16(port)
	return a, nil
}

// ParseAddressString parses an "ip:port" string. Host names are not resolved.
func ParseAddressString(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}

	ip := net.ParseIP(host).To4()
	if ip == nil {
		return Address{}, fmt.Errorf("%w: %q is not an IPv4 address", ErrMalformedAddress, host)
	}

	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}

	return ParseAddress(ip, uint32(port))
}

// FromWire validates a protocol.PeerAddress.
func FromWire(pa protocol.PeerAddress) (Address, error) {
	return ParseAddress(pa.IP, pa.Port)
}

// Wire converts the address to its protocol form.
func (a Address) Wire() protocol.PeerAddress {
	ip := make([]byte, net.IPv4len)
	copy(ip, a.IP[:])
	return protocol.PeerAddress{IP: ip, Port: uint32(a.Port)}
}

func (a Address) String() string {
	return net.JoinHostPort(net.IP(a.IP[:]).String(), strconv.Itoa(int(a.Port)))
}

// Less orders addresses by IP bytes, then port.
func (a Address) Less(b Address) bool {
	if c := bytes.Compare(a.IP[:], b.IP[:]); c != 0 {
		return c < 0
	}
	return a.Port < b.Port
}
