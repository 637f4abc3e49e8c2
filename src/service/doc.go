// Package service exposes a node over HTTP.
//
//  GET  /stats    node and herder counters
//  GET  /peers    authenticated peers
//  GET  /metrics  Prometheus metrics of the overlay
//  POST /tx       submit a signed, encoded transaction
package service
