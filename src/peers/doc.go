// Package peers implements the address book of an overlay node.
//
// An Address is a routable IPv4 address and port at which another node accepts
// connections. Addresses learned from the network arrive as opaque
// protocol.PeerAddress entries and must go through ParseAddress, which rejects
// anything that is not a well-formed, routable IPv4 endpoint.
//
// A Directory stores known addresses together with the number of consecutive
// failed connection attempts to each of them. TopPeers returns the most
// promising addresses first: those with the fewest failures, ties broken by
// address order. Two implementations are provided: InmemDirectory, and
// BadgerDirectory which persists the records in a Badger database so that a
// restarted node remembers the network.
//
// Upon starting up, a node may also find a peers.json file in its data
// directory, listing seed addresses in "ip:port" form. JSONSeeds reads and
// writes that file.
package peers
