// Package keys implements the public key cryptography used by overlay nodes.
//
// Every node owns a secp256k1 key-pair. The compressed form of the public key
// is the node's identity on the network; it appears as the NodeID of the
// consensus envelopes a node signs, and as the Source of the transactions an
// account submits. Signatures are deterministic (RFC6979) and DER encoded.
package keys
