// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

const (
	// MaxErrLength bounds the failure reason captured for a failed
	// inbound message.
	MaxErrLength = 256

	// gasTimeUnit converts a logical processing gas limit into the
	// wall-clock budget granted to the processor.
	gasTimeUnit = 50 * time.Nanosecond

	// processFailBudget is the headroom reserved so that the failure
	// path (capturing and truncating the reason) always completes even
	// when the processor exhausted its own budget.
	processFailBudget = 5 * time.Millisecond
)

func gasBudget(gasLimit uint64) time.Duration {
	return time.Duration(gasLimit) * gasTimeUnit
}

// Handle interprets an inbound batch from chain. The batch is split into
// individual messages purely via MessageProperties.MessageLength; each
// message is processed in order under its own bounded budget. A failing
// message is recorded and does not prevent its siblings from being
// processed. The caller's deadline must cover the worst case for the
// whole batch up front, so processing never stops partway through. Only
// an authorized caller (the configured adapter authority) may deliver
// batches.
func (g *Gateway) Handle(ctx context.Context, caller common.Address, chain ChainID, batch []byte) error {
	if g.pauser.Paused() {
		return ErrPaused
	}
	if !g.isWard(caller) {
		return ErrNotAuthorized
	}
	_, processor, props := g.deps()
	if processor == nil || props == nil {
		return ErrNotInitialized
	}

	msgs, err := splitBatch(props, batch)
	if err != nil {
		return err
	}
	if err := checkBatchBudget(ctx, chain, msgs, props); err != nil {
		return err
	}

	for _, m := range msgs {
		g.processInbound(ctx, chain, m, props, processor)
	}
	return nil
}

// checkBatchBudget rejects the whole batch when the caller's deadline
// cannot cover every message's processing budget plus the failure-path
// headroom. Messages whose gas limit cannot be resolved take the soft
// failure path and only need the headroom.
func checkBatchBudget(ctx context.Context, chain ChainID, msgs []Message, props MessageProperties) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	var total time.Duration
	for _, m := range msgs {
		gasLimit, err := props.MessageProcessingGasLimit(chain, m)
		if err != nil {
			continue
		}
		total += gasBudget(gasLimit)
	}
	if time.Until(deadline) < total+processFailBudget {
		return ErrNotEnoughGas
	}
	return nil
}

// Retry reprocesses a single previously failed message. A successful run
// decrements the outstanding failure count; another failure leaves the
// count untouched and is reported to the caller.
func (g *Gateway) Retry(ctx context.Context, chain ChainID, message Message) error {
	if g.pauser.Paused() {
		return ErrPaused
	}
	_, processor, props := g.deps()
	if processor == nil || props == nil {
		return ErrNotInitialized
	}

	key := ledgerKey{chain: chain, hash: message.Hash()}
	g.mu.Lock()
	count := g.failed[key]
	g.mu.Unlock()
	if count == 0 {
		return ErrNotFailedMessage
	}

	gasLimit, err := props.MessageProcessingGasLimit(chain, message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if err := g.protectedProcess(ctx, chain, message, gasBudget(gasLimit), processor); err != nil {
		return err
	}

	g.mu.Lock()
	if g.failed[key] <= 1 {
		delete(g.failed, key)
	} else {
		g.failed[key]--
	}
	g.mu.Unlock()

	g.sink.Emit(ExecuteMessage{Chain: chain, MessageHash: message.Hash()})
	return nil
}

// splitBatch recovers the individual messages of a batch. The batch
// carries no framing of its own; boundaries come from each message's
// self-describing length. Any misalignment poisons the whole batch.
func splitBatch(props MessageProperties, batch []byte) ([]Message, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyMessage
	}
	var msgs []Message
	off := 0
	for off < len(batch) {
		n, err := props.MessageLength(batch[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
		}
		if n <= 0 || off+n > len(batch) {
			return nil, ErrMalformedBatch
		}
		msgs = append(msgs, Message(batch[off:off+n]))
		off += n
	}
	return msgs, nil
}

// processInbound runs one message under its processing budget. Failures
// are soft: they are recorded in the failed-message ledger and surfaced
// as a FailMessage event without disturbing the rest of the batch.
func (g *Gateway) processInbound(ctx context.Context, chain ChainID, m Message, props MessageProperties, processor Processor) {
	gasLimit, limitErr := props.MessageProcessingGasLimit(chain, m)
	if limitErr != nil {
		g.recordFailure(chain, m, limitErr)
		return
	}

	if err := g.protectedProcess(ctx, chain, m, gasBudget(gasLimit), processor); err != nil {
		g.recordFailure(chain, m, err)
		return
	}

	g.sink.Emit(ExecuteMessage{Chain: chain, MessageHash: m.Hash()})
}

// protectedProcess invokes the processor under a hard deadline and with
// panic recovery, so a misbehaving processor can neither hang the batch
// nor crash the gateway.
func (g *Gateway) protectedProcess(ctx context.Context, chain ChainID, m Message, budget time.Duration, processor Processor) (err error) {
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return processor.Handle(cctx, chain, m)
}

func (g *Gateway) recordFailure(chain ChainID, m Message, cause error) {
	reason := []byte(cause.Error())
	if len(reason) > MaxErrLength {
		reason = reason[:MaxErrLength]
	}
	hash := m.Hash()

	g.mu.Lock()
	g.failed[ledgerKey{chain: chain, hash: hash}]++
	g.mu.Unlock()

	g.sink.Emit(FailMessage{Chain: chain, MessageHash: hash, Error: reason})
	g.log.Debug("inbound message failed",
		log.Stringer("chain", chain),
		log.Stringer("messageHash", hash),
		log.Err(cause),
	)
}
