// Package devtools serves a read-only HTTP view of a registry.
//
// Routes:
//
//	GET /stores         every constructed store (name, type, version, subscribers, value)
//	GET /stores/{name}  one store
//	GET /ws             WebSocket stream: a snapshot frame, then change frames
//	GET /metrics        Prometheus exposition of the configured gatherer
//
// Change frames are rate limited per client. When a client falls behind,
// only the latest change of each store is kept, so a slow client sees fewer
// intermediate versions but always converges on the current values.
package devtools
