package ipfs

import "context"

// BandwidthStats mirrors the node's stats/bw response verbatim.
type BandwidthStats struct {
	TotalIn  int64   `json:"TotalIn"`
	TotalOut int64   `json:"TotalOut"`
	RateIn   float64 `json:"RateIn"`
	RateOut  float64 `json:"RateOut"`
}

// NodeIdentity mirrors the node's id response.
type NodeIdentity struct {
	ID              string   `json:"ID"`
	PublicKey       string   `json:"PublicKey"`
	Addresses       []string `json:"Addresses"`
	AgentVersion    string   `json:"AgentVersion"`
	ProtocolVersion string   `json:"ProtocolVersion"`
}

// AddOptions controls how content is added.
type AddOptions struct {
	// Pin controls whether the node pins the added content. Nil means true.
	Pin *bool
}

func (o *AddOptions) pin() bool {
	if o == nil || o.Pin == nil {
		return true
	}
	return *o.Pin
}

// Backend is the narrow transport capability set the Client depends on.
// The HTTP backend talks to a live node; mocks substitute an in-memory one.
type Backend interface {
	Add(ctx context.Context, data []byte, pin bool) (string, error)
	Cat(ctx context.Context, cid string) ([]byte, error)
	PinAdd(ctx context.Context, cid string) error
	PinRm(ctx context.Context, cid string) error
	PinLs(ctx context.Context) ([]string, error)
	StatsBW(ctx context.Context) (*BandwidthStats, error)
	ID(ctx context.Context) (*NodeIdentity, error)
}
