// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package adapters_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/luxfi/log/level"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/gateway"
	"github.com/luxfi/gateway/adapters"
	"github.com/luxfi/gateway/gas"
	"github.com/luxfi/gateway/messages"
	"github.com/luxfi/gateway/multiadapter"
)

const (
	chainA = gateway.ChainID(1)
	chainB = gateway.ChainID(2)
)

type unpaused struct{}

func (unpaused) Paused() bool { return false }

type recordingProcessor struct {
	handled []gateway.Message
}

func (p *recordingProcessor) Handle(_ context.Context, _ gateway.ChainID, m gateway.Message) error {
	p.handled = append(p.handled, append(gateway.Message(nil), m...))
	return nil
}

type walletRefund struct {
	addr common.Address
	paid *uint256.Int
}

func (r *walletRefund) Addr() common.Address { return r.addr }

func (r *walletRefund) Pay(amount *uint256.Int) error {
	r.paid.Add(r.paid, amount)
	return nil
}

type node struct {
	gw        *gateway.Gateway
	multi     *multiadapter.MultiAdapter
	processor *recordingProcessor
}

func newNode(t *testing.T, logger log.Logger, chain gateway.ChainID, props gateway.MessageProperties) *node {
	t.Helper()
	admin := common.BytesToAddress([]byte("admin"))
	gw := gateway.New(logger, common.BytesToAddress([]byte{byte(chain)}), unpaused{}, nil, admin)
	multi := multiadapter.New(logger, common.BytesToAddress([]byte{0xff, byte(chain)}))
	multi.SetGateway(gw)

	processor := &recordingProcessor{}
	require.NoError(t, gw.Rely(admin, multi.Addr()))
	require.NoError(t, gw.File(admin, gateway.FileAdapter, multi))
	require.NoError(t, gw.File(admin, gateway.FileProcessor, processor))
	require.NoError(t, gw.File(admin, gateway.FileMessageProperties, props))

	return &node{gw: gw, multi: multi, processor: processor}
}

// newLinkedPair wires two gateways with `links` shared-identity adapter
// links and a full quorum requirement in both directions.
func newLinkedPair(t *testing.T, links int) (*node, *node) {
	t.Helper()
	logger := log.NewTestLogger(level.Info)
	props := gas.NewProperties(gas.NewService())

	a := newNode(t, logger, chainA, props)
	b := newNode(t, logger, chainB, props)

	var toB, toA []multiadapter.RegisteredAdapter
	for i := 0; i < links; i++ {
		aToB, bToA, err := adapters.NewLink(logger, chainA, chainB, a.multi, b.multi)
		require.NoError(t, err)
		toB = append(toB, aToB.Registered())
		toA = append(toA, bToA.Registered())
	}
	require.NoError(t, a.multi.Register(chainB, links, toB))
	require.NoError(t, b.multi.Register(chainA, links, toA))
	return a, b
}

func TestEndToEndDelivery(t *testing.T) {
	a, b := newLinkedPair(t, 2)
	ctx := context.Background()
	refund := &walletRefund{addr: common.BytesToAddress([]byte("wallet")), paid: uint256.NewInt(0)}

	msg := messages.NotifyPool{Pool: 5}.Encode()

	// NotifyPool carries 150k overall gas: each link prices it at
	// 1M base + 1.5M, so the 2-link fan-out costs 5M.
	cost, err := a.multi.Estimate(ctx, chainB, msg, 150_000)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(5_000_000), cost)

	tx := a.gw.NewTransaction()
	require.NoError(t, a.gw.Send(ctx, tx, chainB, msg, uint256.NewInt(6_000_000), false, refund))

	// Both links delivered and attested, so the remote quorum completed
	// and the message reached the remote processor exactly once.
	require.Len(t, b.processor.handled, 1)
	require.Equal(t, gateway.Message(msg), b.processor.handled[0])
	require.Empty(t, a.processor.handled)

	require.Equal(t, uint256.NewInt(1_000_000), refund.paid)
}

func TestEndToEndBatch(t *testing.T) {
	a, b := newLinkedPair(t, 1)
	ctx := context.Background()
	refund := &walletRefund{addr: common.BytesToAddress([]byte("wallet")), paid: uint256.NewInt(0)}

	m1 := messages.NotifyPool{Pool: 5}.Encode()
	m2, err := messages.UntrustedContractUpdate{
		Pool:    5,
		Target:  common.BytesToAddress([]byte("target")),
		Payload: []byte("rebalance"),
	}.Encode()
	require.NoError(t, err)

	tx := a.gw.NewTransaction()
	require.NoError(t, a.gw.StartBatching(tx))
	require.NoError(t, a.gw.Send(ctx, tx, chainB, m1, nil, false, nil))
	require.NoError(t, a.gw.Send(ctx, tx, chainB, m2, nil, false, nil))
	require.Empty(t, b.processor.handled)

	require.NoError(t, a.gw.EndBatching(ctx, tx, uint256.NewInt(100_000_000), refund))

	// The remote gateway split the batch back into its two messages.
	require.Len(t, b.processor.handled, 2)
	require.Equal(t, gateway.Message(m1), b.processor.handled[0])
	require.Equal(t, gateway.Message(m2), b.processor.handled[1])
}

func TestEndToEndUnderpaidThenRepay(t *testing.T) {
	a, b := newLinkedPair(t, 1)
	ctx := context.Background()
	refund := &walletRefund{addr: common.BytesToAddress([]byte("wallet")), paid: uint256.NewInt(0)}

	msg := messages.NotifyPool{Pool: 5}.Encode()

	// A send with no funding parks the batch instead of relaying it.
	require.NoError(t, a.gw.Send(ctx, a.gw.NewTransaction(), chainB, msg, nil, false, refund))
	require.Empty(t, b.processor.handled)
	_, counter := a.gw.Underpaid(chainB, gateway.BatchHash(msg))
	require.Equal(t, uint64(1), counter)

	require.NoError(t, a.gw.Repay(ctx, chainB, msg, uint256.NewInt(3_000_000), refund))
	require.Len(t, b.processor.handled, 1)
	_, counter = a.gw.Underpaid(chainB, gateway.BatchHash(msg))
	require.Zero(t, counter)
}

func TestInProcEnvelopeRoundTrip(t *testing.T) {
	logger := log.NewTestLogger(level.Info)
	remote := multiadapter.New(logger, common.BytesToAddress([]byte("remote")))

	adapter, err := adapters.NewInProc(logger, chainA, remote)
	require.NoError(t, err)

	// Sending without the remote knowing the adapter fails at the vote,
	// proving the envelope made it through encode and decode.
	err = adapter.Send(context.Background(), chainB, []byte{0x01}, 100, common.Address{}, uint256.NewInt(10_000_000))
	require.ErrorIs(t, err, gateway.ErrEmptyAdapterSet)
}
