// Package mock provides an in-memory node backend for tests and local
// development. Content identifiers are derived from the content itself, so
// adding identical bytes twice yields the same identifier, matching the
// deterministic addressing of a real node.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/KovaSystems/ipfs_sdk_go/pkg/ipfs"
)

// Node implements ipfs.Backend in memory.
type Node struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	pins     map[string]struct{}
	stats    ipfs.BandwidthStats
	identity ipfs.NodeIdentity
	failErr  error
}

// New returns an empty Node.
func New() *Node {
	return &Node{
		objects: make(map[string][]byte),
		pins:    make(map[string]struct{}),
		identity: ipfs.NodeIdentity{
			ID:              "mock-node",
			AgentVersion:    "mock/0.1.0",
			ProtocolVersion: "ipfs/0.1.0",
		},
	}
}

// CIDFor returns the identifier the mock assigns to the given bytes.
func CIDFor(data []byte) string {
	sum := sha256.Sum256(data)
	return "bafm" + hex.EncodeToString(sum[:])
}

// FailWith makes every subsequent backend call fail with err until called
// again with nil. Used to exercise error propagation.
func (n *Node) FailWith(err error) {
	n.mu.Lock()
	n.failErr = err
	n.mu.Unlock()
}

// SeedEntry describes one fixture object.
type SeedEntry struct {
	Base64 string `json:"base64"`
	Pin    bool   `json:"pin"`
}

// Seed loads fixture objects and returns their identifiers in entry order.
func (n *Node) Seed(entries []SeedEntry) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	cids := make([]string, 0, len(entries))
	for i, e := range entries {
		data, err := base64.StdEncoding.DecodeString(e.Base64)
		if err != nil {
			return nil, errors.Wrapf(err, "mock ipfs: seed entry %d: decode base64", i)
		}
		cid := CIDFor(data)
		n.objects[cid] = append([]byte(nil), data...)
		if e.Pin {
			n.pins[cid] = struct{}{}
		}
		cids = append(cids, cid)
	}
	return cids, nil
}

func (n *Node) gate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.failErr
}

// Add stores data under its content-derived identifier.
func (n *Node) Add(ctx context.Context, data []byte, pin bool) (string, error) {
	if err := n.gate(ctx); err != nil {
		return "", err
	}
	cid := CIDFor(data)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.objects[cid] = append([]byte(nil), data...)
	if pin {
		n.pins[cid] = struct{}{}
	}
	n.stats.TotalIn += int64(len(data))
	return cid, nil
}

// Cat returns the stored bytes for cid.
func (n *Node) Cat(ctx context.Context, cid string) ([]byte, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	data, ok := n.objects[cid]
	if !ok {
		return nil, errors.Errorf("mock ipfs: %s: not found", cid)
	}
	n.stats.TotalOut += int64(len(data))
	return append([]byte(nil), data...), nil
}

// PinAdd pins a known identifier.
func (n *Node) PinAdd(ctx context.Context, cid string) error {
	if err := n.gate(ctx); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.objects[cid]; !ok {
		return errors.Errorf("mock ipfs: pin: %s: not found", cid)
	}
	n.pins[cid] = struct{}{}
	return nil
}

// PinRm unpins cid. Unpinning an identifier that is not pinned fails the
// way the daemon does.
func (n *Node) PinRm(ctx context.Context, cid string) error {
	if err := n.gate(ctx); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.pins[cid]; !ok {
		return errors.Errorf("mock ipfs: %s is not pinned", cid)
	}
	delete(n.pins, cid)
	return nil
}

// PinLs lists the recursively pinned identifiers, sorted.
func (n *Node) PinLs(ctx context.Context) ([]string, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	cids := make([]string, 0, len(n.pins))
	for cid := range n.pins {
		cids = append(cids, cid)
	}
	sort.Strings(cids)
	return cids, nil
}

// StatsBW reports the accumulated transfer counters.
func (n *Node) StatsBW(ctx context.Context) (*ipfs.BandwidthStats, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	stats := n.stats
	return &stats, nil
}

// ID reports the mock node identity.
func (n *Node) ID(ctx context.Context) (*ipfs.NodeIdentity, error) {
	if err := n.gate(ctx); err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	identity := n.identity
	identity.Addresses = append([]string(nil), n.identity.Addresses...)
	return &identity, nil
}
