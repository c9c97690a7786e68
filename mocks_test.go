// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/luxfi/log/level"
)

// Test messages are fixed-size: one tag byte, one pool byte, two bytes
// of body.
const stubMessageLength = 4

func stubMessage(pool byte, body byte) Message {
	return Message{0x01, pool, body, body}
}

type staticPauser struct {
	paused bool
}

func (p *staticPauser) Paused() bool { return p.paused }

type stubProps struct {
	gasLimit    uint64
	overall     uint64
	maxBatch    uint64
	lengthErr   error
	gasLimitErr error

	// gasByBody overrides the processing gas limit per message body
	// byte, for batches mixing cheap and expensive messages.
	gasByBody map[byte]uint64
}

func (p *stubProps) MessageLength(buf []byte) (int, error) {
	if p.lengthErr != nil {
		return 0, p.lengthErr
	}
	if len(buf) < stubMessageLength {
		return 0, errors.New("short message")
	}
	return stubMessageLength, nil
}

func (p *stubProps) MessagePoolID(message Message) (PoolID, error) {
	if len(message) < 2 {
		return 0, errors.New("short message")
	}
	return PoolID(message[1]), nil
}

func (p *stubProps) MessageProcessingGasLimit(_ ChainID, message Message) (uint64, error) {
	if p.gasLimitErr != nil {
		return 0, p.gasLimitErr
	}
	if len(message) > 2 {
		if limit, ok := p.gasByBody[message[2]]; ok {
			return limit, nil
		}
	}
	return p.gasLimit, nil
}

func (p *stubProps) MessageOverallGasLimit(ChainID, Message) (uint64, error) {
	if p.gasLimitErr != nil {
		return 0, p.gasLimitErr
	}
	return p.overall, nil
}

func (p *stubProps) MaxBatchGasLimit(ChainID) uint64 { return p.maxBatch }

type sentBatch struct {
	chain    ChainID
	payload  []byte
	gasLimit uint64
	refund   common.Address
	value    *uint256.Int
}

type stubAdapter struct {
	cost        *uint256.Int
	estimateErr error
	sendErr     error

	estimates int
	sent      []sentBatch
}

func (a *stubAdapter) Estimate(_ context.Context, _ ChainID, _ []byte, _ uint64) (*uint256.Int, error) {
	a.estimates++
	if a.estimateErr != nil {
		return nil, a.estimateErr
	}
	return new(uint256.Int).Set(a.cost), nil
}

func (a *stubAdapter) Send(_ context.Context, chain ChainID, payload []byte, gasLimit uint64, refund common.Address, value *uint256.Int) error {
	if a.sendErr != nil {
		return a.sendErr
	}
	a.sent = append(a.sent, sentBatch{
		chain:    chain,
		payload:  append([]byte(nil), payload...),
		gasLimit: gasLimit,
		refund:   refund,
		value:    new(uint256.Int).Set(value),
	})
	return nil
}

type stubRefund struct {
	addr common.Address
	err  error
	paid *uint256.Int
}

func newStubRefund() *stubRefund {
	return &stubRefund{
		addr: common.BytesToAddress([]byte("refund")),
		paid: uint256.NewInt(0),
	}
}

func (r *stubRefund) Addr() common.Address { return r.addr }

func (r *stubRefund) Pay(amount *uint256.Int) error {
	if r.err != nil {
		return r.err
	}
	r.paid.Add(r.paid, amount)
	return nil
}

type stubProcessor struct {
	failWith map[common.Hash]error
	panicOn  map[common.Hash]bool
	handled  []Message
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{
		failWith: make(map[common.Hash]error),
		panicOn:  make(map[common.Hash]bool),
	}
}

func (p *stubProcessor) Handle(_ context.Context, _ ChainID, message Message) error {
	if p.panicOn[message.Hash()] {
		panic("processor blew up")
	}
	if err := p.failWith[message.Hash()]; err != nil {
		return err
	}
	p.handled = append(p.handled, append(Message(nil), message...))
	return nil
}

type gatewayFixture struct {
	gw      *Gateway
	adapter *stubAdapter
	props   *stubProps
	pauser  *staticPauser
	sink    *MemorySink
	admin   common.Address
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	f := &gatewayFixture{
		adapter: &stubAdapter{cost: uint256.NewInt(100)},
		props: &stubProps{
			gasLimit: 200_000,
			overall:  250_000,
			maxBatch: 1_000_000,
		},
		pauser: &staticPauser{},
		sink:   &MemorySink{},
		admin:  common.BytesToAddress([]byte("admin")),
	}
	f.gw = New(
		log.NewTestLogger(level.Info),
		common.BytesToAddress([]byte("gateway")),
		f.pauser,
		f.sink,
		f.admin,
	)
	if err := f.gw.File(f.admin, FileAdapter, f.adapter); err != nil {
		t.Fatal(err)
	}
	if err := f.gw.File(f.admin, FileMessageProperties, f.props); err != nil {
		t.Fatal(err)
	}
	f.sink.Reset()
	return f
}

func (f *gatewayFixture) withProcessor(t *testing.T) *stubProcessor {
	t.Helper()
	p := newStubProcessor()
	if err := f.gw.File(f.admin, FileProcessor, p); err != nil {
		t.Fatal(err)
	}
	f.sink.Reset()
	return p
}
