// Package node assembles a complete overlay node from a config.Config.
//
// Init builds, in order: the private key (read from the data directory or
// generated), the peer directory (in memory, or Badger with --store), the
// seed list (peers.json plus --seeds), the TCP transport, the Herder, the
// Overlay, and the connection Manager. Run starts the event loop, the
// listener and the Manager, and blocks until Shutdown.
//
// Every call into the Overlay or the Herder made from outside the event loop
// goes through EventLoop.Sync, so the HTTP service and the command line can
// use a Node from any goroutine.
package node
