// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"sync"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// Event is a wire-visible gateway event. The concrete types and their
// field order are part of the protocol surface and must not change.
type Event interface {
	event()
}

// PrepareMessage is emitted when a message is appended to an outbound
// batch buffer during a batching window.
type PrepareMessage struct {
	Chain   ChainID
	Pool    PoolID
	Message Message
}

// UnderpaidBatch is emitted when a dispatch attempt was underfunded and
// the batch was recorded for later Repay.
type UnderpaidBatch struct {
	Chain     ChainID
	Message   []byte
	BatchHash common.Hash
}

// ExecuteMessage is emitted when an individual inbound message was
// processed successfully.
type ExecuteMessage struct {
	Chain       ChainID
	MessageHash common.Hash
}

// FailMessage is emitted when processing an individual inbound message
// failed. Error carries the truncated failure reason.
type FailMessage struct {
	Chain       ChainID
	MessageHash common.Hash
	Error       []byte
}

// RepayBatch is emitted when a previously underpaid batch was funded and
// dispatched.
type RepayBatch struct {
	Chain ChainID
	Batch []byte
}

// UpdateManager is emitted when a pool manager is granted or revoked.
type UpdateManager struct {
	Pool      PoolID
	Manager   common.Address
	CanManage bool
}

// BlockOutgoing is emitted when outbound traffic for a (chain, pool) pair
// is blocked or unblocked.
type BlockOutgoing struct {
	Chain   ChainID
	Pool    PoolID
	Blocked bool
}

// File is emitted on every successful configuration update.
type File struct {
	What string
	Who  common.Address
}

func (PrepareMessage) event() {}
func (UnderpaidBatch) event() {}
func (ExecuteMessage) event() {}
func (FailMessage) event()    {}
func (RepayBatch) event()     {}
func (UpdateManager) event()  {}
func (BlockOutgoing) event()  {}
func (File) event()           {}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MemorySink records events in order. Used by tests and the daemon's
// diagnostics endpoint.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a snapshot of the recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Reset drops all recorded events.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// LogSink writes events to a structured logger.
type LogSink struct {
	Log log.Logger
}

func (s LogSink) Emit(ev Event) {
	switch e := ev.(type) {
	case PrepareMessage:
		s.Log.Debug("prepare message",
			log.Stringer("chain", e.Chain),
			log.Stringer("pool", e.Pool),
		)
	case UnderpaidBatch:
		s.Log.Info("underpaid batch",
			log.Stringer("chain", e.Chain),
			log.Stringer("batchHash", e.BatchHash),
		)
	case ExecuteMessage:
		s.Log.Debug("execute message",
			log.Stringer("chain", e.Chain),
			log.Stringer("messageHash", e.MessageHash),
		)
	case FailMessage:
		s.Log.Warn("fail message",
			log.Stringer("chain", e.Chain),
			log.Stringer("messageHash", e.MessageHash),
		)
	case RepayBatch:
		s.Log.Info("repay batch", log.Stringer("chain", e.Chain))
	case UpdateManager:
		s.Log.Info("update manager",
			log.Stringer("pool", e.Pool),
			log.Stringer("manager", e.Manager),
		)
	case BlockOutgoing:
		s.Log.Info("block outgoing",
			log.Stringer("chain", e.Chain),
			log.Stringer("pool", e.Pool),
		)
	case File:
		s.Log.Info("file", log.String("what", e.What))
	}
}
