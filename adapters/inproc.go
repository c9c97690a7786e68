// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package adapters provides concrete transports that a MultiAdapter
// fans out over. InProc links two processes in the same binary: each
// Send serializes the batch into an envelope, signs an attestation
// with the adapter's BLS key, and votes on the remote MultiAdapter.
package adapters

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"

	"github.com/luxfi/gateway"
	"github.com/luxfi/gateway/multiadapter"
)

// Envelope is the wire form of one relayed batch.
type Envelope struct {
	Source   uint32
	GasLimit uint64
	Payload  []byte
}

// InProc is an adapter whose far end is a MultiAdapter in the same
// process. It prices relays at BaseFee + GasLimit*WeiPerGas.
type InProc struct {
	log    log.Logger
	id     ids.ID
	key    *bls.SecretKey
	source gateway.ChainID
	remote *multiadapter.MultiAdapter

	BaseFee   uint64
	WeiPerGas uint64
}

var _ gateway.Adapter = (*InProc)(nil)

// NewInProc creates an adapter originating on the source chain with a
// fresh BLS key. The remote MultiAdapter receives its votes.
func NewInProc(logger log.Logger, source gateway.ChainID, remote *multiadapter.MultiAdapter) (*InProc, error) {
	key, err := bls.NewSecretKey()
	if err != nil {
		return nil, fmt.Errorf("generating adapter key: %w", err)
	}
	return &InProc{
		log:       logger,
		id:        ids.GenerateTestID(),
		key:       key,
		source:    source,
		remote:    remote,
		BaseFee:   1_000_000,
		WeiPerGas: 10,
	}, nil
}

// NewLink creates the two directional endpoints of one relay operator
// running between chainA and chainB. Both endpoints share the
// operator's key and vote identity, so a batch sent through aToB is
// attested at remoteB under the same identity that remoteA knows the
// operator by.
func NewLink(
	logger log.Logger,
	chainA, chainB gateway.ChainID,
	remoteA, remoteB *multiadapter.MultiAdapter,
) (aToB, bToA *InProc, err error) {
	seed, err := NewInProc(logger, chainA, remoteB)
	if err != nil {
		return nil, nil, err
	}
	reverse := *seed
	reverse.source = chainB
	reverse.remote = remoteA
	return seed, &reverse, nil
}

// ID returns the adapter's vote identity.
func (a *InProc) ID() ids.ID {
	return a.id
}

// PubKey returns the key the remote MultiAdapter verifies attestations
// against.
func (a *InProc) PubKey() *bls.PublicKey {
	return a.key.PublicKey()
}

// Registered packages the adapter for MultiAdapter.Register on the
// receiving side.
func (a *InProc) Registered() multiadapter.RegisteredAdapter {
	return multiadapter.RegisteredAdapter{
		ID:        a.id,
		PubKey:    a.PubKey(),
		Transport: a,
	}
}

// Estimate prices the relay from the flat fee schedule.
func (a *InProc) Estimate(_ context.Context, _ gateway.ChainID, _ []byte, gasLimit uint64) (*uint256.Int, error) {
	cost := uint256.NewInt(gasLimit)
	cost.Mul(cost, uint256.NewInt(a.WeiPerGas))
	return cost.Add(cost, uint256.NewInt(a.BaseFee)), nil
}

// Send envelopes the batch and delivers it as one attested vote on the
// remote MultiAdapter.
func (a *InProc) Send(ctx context.Context, chain gateway.ChainID, payload []byte, gasLimit uint64, _ common.Address, value *uint256.Int) error {
	cost, err := a.Estimate(ctx, chain, payload, gasLimit)
	if err != nil {
		return err
	}
	if value == nil || value.Lt(cost) {
		return gateway.ErrNotEnoughGas
	}

	raw, err := rlp.EncodeToBytes(&Envelope{
		Source:   uint32(a.source),
		GasLimit: gasLimit,
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	a.log.Debug("relaying batch",
		log.Stringer("adapter", a.id),
		log.Stringer("to", chain),
	)
	return a.deliver(ctx, raw)
}

func (a *InProc) deliver(ctx context.Context, raw []byte) error {
	var env Envelope
	if err := rlp.DecodeBytes(raw, &env); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}
	source := gateway.ChainID(env.Source)
	sig, err := a.key.Sign(multiadapter.AttestationDigest(source, env.Payload))
	if err != nil {
		return fmt.Errorf("signing attestation: %w", err)
	}
	return a.remote.Vote(ctx, source, env.Payload, a.id, sig)
}
