// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Transaction is the arena for one logical unit of work. Everything the
// on-chain protocol kept in transient storage lives here: the batching
// flag, the outbound buffers, the locator set, the dispatch flag and the
// callback locks. A Transaction must not be reused once its top-level
// call tree returns; discarding it is what guarantees that no batching
// state leaks into unrelated later work.
//
// A Transaction is single-threaded. It models one synchronous call tree,
// so no internal locking is done.
type Transaction struct {
	gw *Gateway

	batching    bool
	dispatching bool

	// locators preserves first-seen order so flushing is deterministic.
	locators []Locator
	outbound map[Locator]*outboundBatch

	// locks is the callback lock stack maintained by CrosschainBatcher.
	// Each entry records the component that initiated a WithBatch and the
	// value reserved for its callback.
	locks []callbackLock

	// frames is the multicall sender/value stack.
	frames []callFrame
}

type outboundBatch struct {
	buf      []byte
	gasLimit uint64
}

type callbackLock struct {
	holder common.Address
	value  *uint256.Int
}

type callFrame struct {
	sender common.Address
	value  *uint256.Int
}

// NewTransaction opens a fresh arena against the gateway.
func (g *Gateway) NewTransaction() *Transaction {
	return &Transaction{
		gw:       g,
		outbound: make(map[Locator]*outboundBatch),
	}
}

// Batching reports whether a batching window is open.
func (t *Transaction) Batching() bool {
	return t.batching
}

// Locators returns the locators touched in the current batching window,
// in first-seen order.
func (t *Transaction) Locators() []Locator {
	out := make([]Locator, len(t.locators))
	copy(out, t.locators)
	return out
}

// append adds a message to the locator's buffer, registering the locator
// on first touch.
func (t *Transaction) append(loc Locator, message Message, gasLimit uint64) {
	b, ok := t.outbound[loc]
	if !ok {
		b = &outboundBatch{}
		t.outbound[loc] = b
		t.locators = append(t.locators, loc)
	}
	b.buf = append(b.buf, message...)
	b.gasLimit += gasLimit
}

// clear drops all batching-window state. Called unconditionally when the
// window closes, on every exit path.
func (t *Transaction) clear() {
	t.batching = false
	t.locators = nil
	t.outbound = make(map[Locator]*outboundBatch)
}

func (t *Transaction) pushLock(holder common.Address, value *uint256.Int) {
	t.locks = append(t.locks, callbackLock{holder: holder, value: value})
}

func (t *Transaction) peekLock() (callbackLock, bool) {
	if len(t.locks) == 0 {
		return callbackLock{}, false
	}
	return t.locks[len(t.locks)-1], true
}

func (t *Transaction) popLock() {
	t.locks = t.locks[:len(t.locks)-1]
}

func (t *Transaction) pushFrame(sender common.Address, value *uint256.Int) {
	t.frames = append(t.frames, callFrame{sender: sender, value: value})
}

func (t *Transaction) popFrame() {
	t.frames = t.frames[:len(t.frames)-1]
}

func (t *Transaction) inMulticall() bool {
	return len(t.frames) > 0
}

func (t *Transaction) currentFrame() (callFrame, bool) {
	if len(t.frames) == 0 {
		return callFrame{}, false
	}
	return t.frames[len(t.frames)-1], true
}
