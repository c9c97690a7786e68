// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway implements the cross-chain messaging core: per-chain
// outbound batching with gas accounting, underpayment bookkeeping with
// later repayment, and inbound batch splitting with per-message fault
// isolation and retry.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/luxfi/math/set"
)

// Recognized File keys.
const (
	FileAdapter           = "adapter"
	FileProcessor         = "processor"
	FileMessageProperties = "messageProperties"
)

type ledgerKey struct {
	chain ChainID
	hash  common.Hash
}

// UnderpaidRecord tracks an outstanding underfunded dispatch for one exact
// batch content. Counter is the number of independent underpaid attempts.
type UnderpaidRecord struct {
	GasLimit uint64
	Counter  uint64
}

// Gateway routes outbound protocol messages to per-chain adapters and
// interprets inbound batches. All cross-transaction state (configuration,
// permissions, underpaid and failed-message ledgers) lives here; all
// batching-window state lives in a Transaction.
type Gateway struct {
	log    log.Logger
	addr   common.Address
	pauser Pauser
	sink   EventSink

	mu        sync.Mutex
	adapter   Adapter
	processor Processor
	props     MessageProperties

	wards     set.Set[common.Address]
	managers  map[PoolID]set.Set[common.Address]
	blocked   set.Set[Locator]
	underpaid map[ledgerKey]*UnderpaidRecord
	failed    map[ledgerKey]uint64
}

// New creates a Gateway. addr is the gateway's own component identity and
// ward is the initial administrator.
func New(logger log.Logger, addr common.Address, pauser Pauser, sink EventSink, ward common.Address) *Gateway {
	if sink == nil {
		sink = NopSink{}
	}
	g := &Gateway{
		log:       logger,
		addr:      addr,
		pauser:    pauser,
		sink:      sink,
		wards:     set.NewSet[common.Address](1),
		managers:  make(map[PoolID]set.Set[common.Address]),
		blocked:   set.NewSet[Locator](0),
		underpaid: make(map[ledgerKey]*UnderpaidRecord),
		failed:    make(map[ledgerKey]uint64),
	}
	g.wards.Add(ward)
	return g
}

// Addr returns the gateway's component identity.
func (g *Gateway) Addr() common.Address {
	return g.addr
}

func (g *Gateway) isWard(who common.Address) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wards.Contains(who)
}

func (g *Gateway) isManager(pool PoolID, who common.Address) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.managers[pool]
	return ok && m.Contains(who)
}

// Rely grants ward permission to usr.
func (g *Gateway) Rely(caller, usr common.Address) error {
	if !g.isWard(caller) {
		return ErrNotAuthorized
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wards.Add(usr)
	return nil
}

// Deny revokes ward permission from usr.
func (g *Gateway) Deny(caller, usr common.Address) error {
	if !g.isWard(caller) {
		return ErrNotAuthorized
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wards.Remove(usr)
	return nil
}

// UpdateManager grants or revokes pool-scoped management permission.
func (g *Gateway) UpdateManager(caller common.Address, pool PoolID, who common.Address, canManage bool) error {
	if !g.isWard(caller) {
		return ErrNotAuthorized
	}
	g.mu.Lock()
	m, ok := g.managers[pool]
	if !ok {
		m = set.NewSet[common.Address](1)
		g.managers[pool] = m
	}
	if canManage {
		m.Add(who)
	} else {
		m.Remove(who)
	}
	g.mu.Unlock()

	g.sink.Emit(UpdateManager{Pool: pool, Manager: who, CanManage: canManage})
	return nil
}

// BlockOutgoing toggles the outbound block for a (chain, pool) pair.
// Callable by a ward or by a manager of the pool.
func (g *Gateway) BlockOutgoing(caller common.Address, chain ChainID, pool PoolID, blocked bool) error {
	if !g.isWard(caller) && !g.isManager(pool, caller) {
		return ErrNotAuthorized
	}
	loc := Locator{Chain: chain, Pool: pool}
	g.mu.Lock()
	if blocked {
		g.blocked.Add(loc)
	} else {
		g.blocked.Remove(loc)
	}
	g.mu.Unlock()

	g.sink.Emit(BlockOutgoing{Chain: chain, Pool: pool, Blocked: blocked})
	return nil
}

func (g *Gateway) isBlocked(loc Locator) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked.Contains(loc)
}

// File updates one configuration dependency. Recognized keys are exactly
// FileAdapter, FileProcessor and FileMessageProperties.
func (g *Gateway) File(caller common.Address, what string, value any) error {
	if !g.isWard(caller) {
		return ErrNotAuthorized
	}

	g.mu.Lock()
	switch what {
	case FileAdapter:
		a, ok := value.(Adapter)
		if !ok {
			g.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrFileInvalidValue, what)
		}
		g.adapter = a
	case FileProcessor:
		p, ok := value.(Processor)
		if !ok {
			g.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrFileInvalidValue, what)
		}
		g.processor = p
	case FileMessageProperties:
		p, ok := value.(MessageProperties)
		if !ok {
			g.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrFileInvalidValue, what)
		}
		g.props = p
	default:
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFileUnrecognizedParam, what)
	}
	g.mu.Unlock()

	g.sink.Emit(File{What: what, Who: caller})
	g.log.Info("filed gateway param", log.String("what", what))
	return nil
}

func (g *Gateway) deps() (Adapter, Processor, MessageProperties) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.adapter, g.processor, g.props
}

// StartBatching opens the batching window on the transaction. Subsequent
// sends are buffered per (chain, pool) until EndBatching.
func (g *Gateway) StartBatching(tx *Transaction) error {
	if g.pauser.Paused() {
		return ErrPaused
	}
	if tx.dispatching {
		return ErrReentrantBatchCreation
	}
	if tx.batching {
		return ErrAlreadyBatching
	}
	tx.batching = true
	return nil
}

// Send routes a message to chain. Inside a batching window the message is
// appended to the (chain, pool) buffer; outside, it is dispatched
// immediately as a single-message batch paid for by value.
func (g *Gateway) Send(ctx context.Context, tx *Transaction, chain ChainID, message Message, value *uint256.Int, alwaysPaid bool, refund Refund) error {
	if g.pauser.Paused() {
		return ErrPaused
	}
	if len(message) == 0 {
		return ErrEmptyMessage
	}
	if len(message) > MessageMaxLength {
		return ErrTooLongMessage
	}
	if tx.dispatching {
		return ErrReentrantBatchCreation
	}
	_, _, props := g.deps()
	if props == nil {
		return ErrNotInitialized
	}

	pool, err := props.MessagePoolID(message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	loc := Locator{Chain: chain, Pool: pool}
	if g.isBlocked(loc) {
		return ErrOutgoingBlocked
	}

	gasLimit, err := props.MessageOverallGasLimit(chain, message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	maxGas := props.MaxBatchGasLimit(chain)

	if tx.batching {
		if value != nil && !value.IsZero() {
			return ErrNotPayable
		}
		total := gasLimit
		if b, ok := tx.outbound[loc]; ok {
			total += b.gasLimit
		}
		if total > maxGas {
			return ErrBatchTooExpensive
		}
		tx.append(loc, message, gasLimit)
		g.sink.Emit(PrepareMessage{Chain: chain, Pool: pool, Message: message})
		return nil
	}

	if gasLimit > maxGas {
		return ErrBatchTooExpensive
	}

	avail := uint256.NewInt(0)
	if value != nil {
		avail.Set(value)
	}
	spent, underpaid, err := g.dispatch(ctx, tx, chain, message, gasLimit, avail, alwaysPaid, refund)
	if err != nil {
		return err
	}
	if underpaid {
		// The attached value must be returnable before any record is
		// written: a failed refund leaves the ledger untouched.
		if err := g.refundExcess(avail, refund); err != nil {
			return err
		}
		g.parkUnderpaid(chain, message, gasLimit)
		return nil
	}
	return g.refundExcess(avail.Sub(avail, spent), refund)
}

// EndBatching flushes every locator prepared during the batching window,
// funding each batch from the remaining value. Underpaid batches are
// recorded, not fatal. The window is dismantled unconditionally.
func (g *Gateway) EndBatching(ctx context.Context, tx *Transaction, value *uint256.Int, refund Refund) error {
	if g.pauser.Paused() {
		return ErrPaused
	}
	if tx.dispatching {
		return ErrReentrantBatchCreation
	}
	if !tx.batching || len(tx.locators) == 0 {
		tx.clear()
		return ErrNoBatched
	}
	defer tx.clear()

	remaining := uint256.NewInt(0)
	if value != nil {
		remaining.Set(value)
	}
	for _, loc := range tx.locators {
		b := tx.outbound[loc]
		spent, underpaid, err := g.dispatch(ctx, tx, loc.Chain, b.buf, b.gasLimit, remaining, false, refund)
		if err != nil {
			return err
		}
		if underpaid {
			// The remaining value keeps funding later batches, so the
			// parked batch is recorded in place.
			g.parkUnderpaid(loc.Chain, b.buf, b.gasLimit)
			continue
		}
		remaining.Sub(remaining, spent)
	}
	return g.refundExcess(remaining, refund)
}

// Repay funds and dispatches a previously underpaid batch. Anyone may
// call it; insufficient value fails without touching the record.
func (g *Gateway) Repay(ctx context.Context, chain ChainID, batch []byte, value *uint256.Int, refund Refund) error {
	if g.pauser.Paused() {
		return ErrPaused
	}
	_, _, props := g.deps()
	if props == nil {
		return ErrNotInitialized
	}

	hash := BatchHash(batch)
	key := ledgerKey{chain: chain, hash: hash}
	g.mu.Lock()
	rec, ok := g.underpaid[key]
	g.mu.Unlock()
	if !ok {
		return ErrNotUnderpaidBatch
	}

	// A batch holds messages for a single pool, so the first message
	// determines the block scope.
	pool, err := props.MessagePoolID(batch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if g.isBlocked(Locator{Chain: chain, Pool: pool}) {
		return ErrOutgoingBlocked
	}

	avail := uint256.NewInt(0)
	if value != nil {
		avail.Set(value)
	}
	tx := g.NewTransaction()
	spent, _, err := g.dispatch(ctx, tx, chain, batch, rec.GasLimit, avail, true, refund)
	if err != nil {
		return err
	}

	g.mu.Lock()
	delete(g.underpaid, key)
	g.mu.Unlock()

	g.sink.Emit(RepayBatch{Chain: chain, Batch: batch})
	g.log.Info("repaid batch",
		log.Stringer("chain", chain),
		log.Stringer("batchHash", hash),
	)
	return g.refundExcess(avail.Sub(avail, spent), refund)
}

// Underpaid returns the underpaid record for (chain, batchHash), or
// (0, 0) when none exists.
func (g *Gateway) Underpaid(chain ChainID, batchHash common.Hash) (gasLimit, counter uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rec, ok := g.underpaid[ledgerKey{chain: chain, hash: batchHash}]; ok {
		return rec.GasLimit, rec.Counter
	}
	return 0, 0
}

// Failed returns the outstanding failure count for (chain, messageHash).
func (g *Gateway) Failed(chain ChainID, messageHash common.Hash) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failed[ledgerKey{chain: chain, hash: messageHash}]
}

// dispatch relays one prepared batch through the configured adapter and
// returns the amount actually spent. Underpayment on a tolerant path
// spends nothing and is reported to the caller, who decides when to park
// the batch. The transaction is marked as dispatching for the duration,
// so any outside re-entry into Send or StartBatching fails with
// ErrReentrantBatchCreation.
func (g *Gateway) dispatch(ctx context.Context, tx *Transaction, chain ChainID, batch []byte, gasLimit uint64, avail *uint256.Int, alwaysPaid bool, refund Refund) (spent *uint256.Int, underpaid bool, err error) {
	adapter, _, _ := g.deps()
	if adapter == nil {
		return nil, false, ErrEmptyAdapterSet
	}

	tx.dispatching = true
	defer func() { tx.dispatching = false }()

	cost, err := adapter.Estimate(ctx, chain, batch, gasLimit)
	if err != nil {
		return nil, false, fmt.Errorf("adapter estimate failed: %w", err)
	}

	if avail.Lt(cost) {
		if alwaysPaid {
			return nil, false, ErrNotEnoughGas
		}
		return uint256.NewInt(0), true, nil
	}

	var refundAddr common.Address
	if refund != nil {
		refundAddr = refund.Addr()
	}
	if err := adapter.Send(ctx, chain, batch, gasLimit, refundAddr, cost); err != nil {
		return nil, false, fmt.Errorf("adapter send failed: %w", err)
	}
	return cost, false, nil
}

// parkUnderpaid records an underpaid batch so it can be funded later by
// Repay.
func (g *Gateway) parkUnderpaid(chain ChainID, batch []byte, gasLimit uint64) {
	hash := BatchHash(batch)
	g.mu.Lock()
	key := ledgerKey{chain: chain, hash: hash}
	rec, ok := g.underpaid[key]
	if !ok {
		rec = &UnderpaidRecord{GasLimit: gasLimit}
		g.underpaid[key] = rec
	}
	rec.Counter++
	g.mu.Unlock()

	g.sink.Emit(UnderpaidBatch{Chain: chain, Message: batch, BatchHash: hash})
	g.log.Debug("recorded underpaid batch",
		log.Stringer("chain", chain),
		log.Stringer("batchHash", hash),
	)
}

func (g *Gateway) refundExcess(excess *uint256.Int, refund Refund) error {
	if excess == nil || excess.IsZero() {
		return nil
	}
	if refund == nil {
		return ErrCannotRefund
	}
	if err := refund.Pay(excess); err != nil {
		return fmt.Errorf("%w: %v", ErrCannotRefund, err)
	}
	return nil
}
