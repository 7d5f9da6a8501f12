// Package ipfs exposes a thin client for a content-addressed storage
// daemon's HTTP API (the Kubo /api/v0 RPC surface). It covers add, cat,
// pin management, pin listing, bandwidth statistics and a liveness probe,
// translating node results into Go-native forms and every transport
// failure into the three-kind error taxonomy (ErrOperation, ErrConnection,
// ErrTimeout). The daemon is assumed to be externally running and
// reachable; this package manages nothing beyond one connection handle.
package ipfs
