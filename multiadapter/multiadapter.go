// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package multiadapter fans one logical transport out over several
// adapters per destination chain. Outbound, every adapter relays the
// batch and the total cost is the sum of the per-adapter estimates.
// Inbound, each adapter's delivery counts as one attested vote; the
// batch reaches the gateway once the configured threshold of distinct
// adapters has voted for the same content.
package multiadapter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"

	"github.com/luxfi/gateway"
	"github.com/luxfi/gateway/cache"
)

const estimateTTL = 15 * time.Second

var (
	// ErrInvalidThreshold is returned when a chain's quorum threshold is
	// not in [1, len(adapters)].
	ErrInvalidThreshold = errors.New("invalid quorum threshold")

	// ErrUnknownAdapter is returned for a vote from an unregistered
	// adapter identity.
	ErrUnknownAdapter = errors.New("unknown adapter")

	// ErrInvalidAttestation is returned when a vote's BLS attestation
	// does not verify against the adapter's registered key.
	ErrInvalidAttestation = errors.New("invalid attestation")
)

var _ gateway.Adapter = (*MultiAdapter)(nil)

// RegisteredAdapter couples a transport with the identity and key it
// uses to attest inbound deliveries.
type RegisteredAdapter struct {
	ID        ids.ID
	PubKey    *bls.PublicKey
	Transport gateway.Adapter
}

type chainSet struct {
	adapters  []RegisteredAdapter
	threshold int
}

type batchKey struct {
	chain gateway.ChainID
	hash  common.Hash
}

func (k batchKey) String() string {
	return k.chain.String() + "/" + k.hash.Hex()
}

type estimateKey struct {
	chain    gateway.ChainID
	hash     common.Hash
	gasLimit uint64
}

func (k estimateKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.chain, k.hash.Hex(), k.gasLimit)
}

// MultiAdapter is the quorum fan-out filed into a gateway as its
// adapter.
type MultiAdapter struct {
	log  log.Logger
	addr common.Address

	mu     sync.Mutex
	gw     *gateway.Gateway
	chains map[gateway.ChainID]*chainSet
	votes  map[batchKey]map[ids.ID]uint64

	estimates *cache.TTL[estimateKey, *uint256.Int]
}

// New creates a MultiAdapter with the given component identity.
func New(logger log.Logger, addr common.Address) *MultiAdapter {
	return &MultiAdapter{
		log:       logger,
		addr:      addr,
		chains:    make(map[gateway.ChainID]*chainSet),
		votes:     make(map[batchKey]map[ids.ID]uint64),
		estimates: cache.NewTTL[estimateKey, *uint256.Int](estimateTTL),
	}
}

// Addr returns the component identity used as the authorized caller of
// Gateway.Handle.
func (m *MultiAdapter) Addr() common.Address {
	return m.addr
}

// SetGateway binds the gateway that receives quorum-complete batches.
func (m *MultiAdapter) SetGateway(gw *gateway.Gateway) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gw = gw
}

// Register installs the adapter set and quorum threshold for chain,
// replacing any previous set.
func (m *MultiAdapter) Register(chain gateway.ChainID, threshold int, adapters []RegisteredAdapter) error {
	if threshold < 1 || threshold > len(adapters) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, threshold, len(adapters))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chains[chain] = &chainSet{adapters: adapters, threshold: threshold}
	return nil
}

func (m *MultiAdapter) chainSetFor(chain gateway.ChainID) (*chainSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.chains[chain]
	if !ok || len(cs.adapters) == 0 {
		return nil, gateway.ErrEmptyAdapterSet
	}
	return cs, nil
}

// Estimate returns the summed cost of relaying payload through every
// adapter configured for chain. Results are cached briefly since the
// gateway estimates immediately before sending.
func (m *MultiAdapter) Estimate(ctx context.Context, chain gateway.ChainID, payload []byte, gasLimit uint64) (*uint256.Int, error) {
	cs, err := m.chainSetFor(chain)
	if err != nil {
		return nil, err
	}
	key := estimateKey{chain: chain, hash: gateway.BatchHash(payload), gasLimit: gasLimit}
	return m.estimates.Get(key, func(estimateKey) (*uint256.Int, error) {
		total := uint256.NewInt(0)
		for _, a := range cs.adapters {
			cost, err := a.Transport.Estimate(ctx, chain, payload, gasLimit)
			if err != nil {
				return nil, err
			}
			total.Add(total, cost)
		}
		return total, nil
	})
}

// Send relays payload through every adapter for chain, forwarding each
// adapter its own estimate. value must cover the summed estimates.
func (m *MultiAdapter) Send(ctx context.Context, chain gateway.ChainID, payload []byte, gasLimit uint64, refund common.Address, value *uint256.Int) error {
	cs, err := m.chainSetFor(chain)
	if err != nil {
		return err
	}

	costs := make([]*uint256.Int, len(cs.adapters))
	total := uint256.NewInt(0)
	for i, a := range cs.adapters {
		cost, err := a.Transport.Estimate(ctx, chain, payload, gasLimit)
		if err != nil {
			return err
		}
		costs[i] = cost
		total.Add(total, cost)
	}
	if value == nil || value.Lt(total) {
		return gateway.ErrNotEnoughGas
	}

	for i, a := range cs.adapters {
		if err := a.Transport.Send(ctx, chain, payload, gasLimit, refund, costs[i]); err != nil {
			return fmt.Errorf("adapter %s: %w", a.ID, err)
		}
	}
	m.estimates.Invalidate(estimateKey{chain: chain, hash: gateway.BatchHash(payload), gasLimit: gasLimit})
	return nil
}

// AttestationDigest is the content an adapter signs to attest delivery
// of payload originating from chain.
func AttestationDigest(chain gateway.ChainID, payload []byte) []byte {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(chain))
	return crypto.Keccak256(prefix[:], payload)
}

// Vote records one adapter's attested delivery of payload from the
// source chain. When the threshold of distinct adapters has outstanding
// votes for the same content, the batch is handed to the gateway; only
// a successful handoff consumes one vote from each quorum member, so a
// rejected delivery (for example while the gateway is paused) keeps the
// quorum intact for the next attempt.
func (m *MultiAdapter) Vote(ctx context.Context, source gateway.ChainID, payload []byte, adapterID ids.ID, sig *bls.Signature) error {
	cs, err := m.chainSetFor(source)
	if err != nil {
		return err
	}

	var registered *RegisteredAdapter
	for i := range cs.adapters {
		if cs.adapters[i].ID == adapterID {
			registered = &cs.adapters[i]
			break
		}
	}
	if registered == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAdapter, adapterID)
	}
	if sig == nil || !bls.Verify(registered.PubKey, sig, AttestationDigest(source, payload)) {
		return ErrInvalidAttestation
	}

	key := batchKey{chain: source, hash: gateway.BatchHash(payload)}

	m.mu.Lock()
	tally, ok := m.votes[key]
	if !ok {
		tally = make(map[ids.ID]uint64)
		m.votes[key] = tally
	}
	tally[adapterID]++

	voters := make([]ids.ID, 0, len(tally))
	for id, n := range tally {
		if n > 0 {
			voters = append(voters, id)
		}
	}
	quorum := len(voters) >= cs.threshold
	gw := m.gw
	m.mu.Unlock()

	if !quorum {
		m.log.Debug("vote recorded",
			log.Stringer("chain", source),
			log.Stringer("adapter", adapterID),
			log.Stringer("batchHash", key.hash),
		)
		return nil
	}
	if gw == nil {
		return errors.New("multiadapter: gateway not set")
	}

	m.log.Debug("quorum reached",
		log.Stringer("chain", source),
		log.Stringer("batchHash", key.hash),
	)
	if err := gw.Handle(ctx, m.addr, source, payload); err != nil {
		// Leave the tally alone: the quorum stands and delivery can be
		// reattempted by the next vote.
		return err
	}
	m.consumeQuorum(key, voters)
	return nil
}

// consumeQuorum burns one outstanding vote from each quorum member after
// a successful delivery.
func (m *MultiAdapter) consumeQuorum(key batchKey, voters []ids.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tally, ok := m.votes[key]
	if !ok {
		return
	}
	for _, id := range voters {
		switch n := tally[id]; {
		case n <= 1:
			delete(tally, id)
		default:
			tally[id] = n - 1
		}
	}
	if len(tally) == 0 {
		delete(m.votes, key)
	}
}
