// Package protocol defines the messages exchanged between overlay peers and
// their encoding.
//
// Every message is one variant of the Message sum type. On the wire a message
// is a single tag byte, identifying the variant, followed by the msgpack
// encoding of the variant's struct. Decoding never fails on an unrecognised
// tag: it yields an Unknown message, and it is up to the receiver to treat it
// as a protocol violation on the connection it arrived on.
//
// The package also defines the consensus artifacts that travel inside
// messages (transaction sets, quorum configurations, transactions and
// consensus envelopes) together with their content hashes. A content hash is
// the SHA-512/256 digest of the canonical msgpack encoding of a value, so
// equal hashes imply equal content.
package protocol
