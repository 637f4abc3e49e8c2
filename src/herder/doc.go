// Package herder implements the consensus side of the overlay.
//
// The Herder keeps the artifacts that consensus refers to by hash (transaction
// sets and quorum sets), a pool of pending transactions, and the log of the
// consensus envelopes received for each slot. It implements the
// overlay.ConsensusGateway interface, so the overlay can answer fetch requests
// from its caches and hand it everything it receives.
//
// When an envelope refers to a quorum set the Herder does not have, it fetches
// it: it asks one authenticated peer at a time, and moves on to the next one
// when a peer answers DontHave, disconnects, or stays silent for FetchTimeout.
// It gives up when every peer was tried. Artifacts that arrive without a fetch
// in progress are ignored; fetched ones are kept in an LRU cache of
// MaxArtifacts entries.
//
// The envelope log holds at most MaxEnvelopes. On every maintenance tick the
// Herder forgets the slots whose flood records expired.
//
// The Herder is not locked. Like the overlay, it must only be called from the
// event loop.
package herder
