// Package net carries overlay frames between nodes.
//
// A StreamLayer provides raw streams: TCPStreamLayer over plain TCP, and
// InmemStreamLayer over net.Pipe for tests. A Conn wraps one stream and turns
// it into a sequence of frames, each preceded by its length as a 4-byte
// big-endian integer. Frames larger than MaxFrameSize are refused in both
// directions.
//
// Writes never block the caller: frames are queued and drained by a single
// writer goroutine. When the queue is full, Write returns ErrQueueFull and the
// overlay drops the peer. Reads happen on a reader goroutine which hands each
// frame to a callback; the overlay posts it to its event loop.
//
// Transport ties a StreamLayer to the overlay. It implements the overlay
// Dialer, and its Listen loop hands accepted connections to the overlay,
// throttled by a token bucket so that a burst of inbound connections cannot
// starve the event loop.
//
// To run a node over TCP, set the following options in the Config object (cf
// config package):
//
// - BindAddr: the IP:PORT of the TCP socket that the node binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes.
// If BindAddr is a local address not reachable by other peers, it is useful to
// set AdvertiseAddr to the reachable public address.
package net
