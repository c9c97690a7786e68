// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import "errors"

var (
	// ErrPaused is returned when the global circuit breaker is active.
	ErrPaused = errors.New("gateway is paused")

	// ErrNotAuthorized is returned when the caller lacks the required ward
	// or manager permission.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrEmptyMessage is returned when a zero-length message is sent.
	ErrEmptyMessage = errors.New("empty message")

	// ErrTooLongMessage is returned when a message exceeds MessageMaxLength.
	ErrTooLongMessage = errors.New("message too long")

	// ErrOutgoingBlocked is returned when outbound traffic for the
	// (chain, pool) pair has been administratively blocked.
	ErrOutgoingBlocked = errors.New("outgoing blocked")

	// ErrBatchTooExpensive is returned when a message's overall gas limit
	// exceeds the destination chain's max batch gas limit.
	ErrBatchTooExpensive = errors.New("batch too expensive")

	// ErrNotPayable is returned when value is attached to a send inside an
	// active batching window. Payment happens at EndBatching.
	ErrNotPayable = errors.New("not payable while batching")

	// ErrNotEnoughGas is returned when the supplied value cannot cover the
	// required dispatch cost on a path that does not tolerate underpayment,
	// or when an inbound call does not carry enough execution budget for
	// the worst-case processing of a message.
	ErrNotEnoughGas = errors.New("not enough gas")

	// ErrCannotRefund is returned when the refund recipient rejects the
	// excess payment transfer.
	ErrCannotRefund = errors.New("cannot refund")

	// ErrNoBatched is returned by EndBatching when no message was prepared
	// during the batching window.
	ErrNoBatched = errors.New("no batched messages")

	// ErrNotUnderpaidBatch is returned by Repay when no underpaid record
	// exists for the batch.
	ErrNotUnderpaidBatch = errors.New("not an underpaid batch")

	// ErrNotFailedMessage is returned by Retry when the message has no
	// outstanding failures.
	ErrNotFailedMessage = errors.New("not a failed message")

	// ErrMalformedBatch is returned when message boundaries do not exactly
	// consume an inbound batch.
	ErrMalformedBatch = errors.New("malformed batch")

	// ErrEmptyAdapterSet is returned when no adapter is configured for the
	// destination chain.
	ErrEmptyAdapterSet = errors.New("empty adapter set")

	// ErrFileUnrecognizedParam is returned by File for an unknown key.
	ErrFileUnrecognizedParam = errors.New("file: unrecognized param")

	// ErrFileInvalidValue is returned by File when the value's type does
	// not match the key.
	ErrFileInvalidValue = errors.New("file: invalid value")

	// ErrReentrantBatchCreation is returned when an outside caller attempts
	// to open a batch or send while a dispatch loop is running.
	ErrReentrantBatchCreation = errors.New("reentrant batch creation")

	// ErrAlreadyBatching is returned on a nested StartBatching or Multicall
	// that was not issued by the gateway itself.
	ErrAlreadyBatching = errors.New("already batching")

	// ErrCallbackWasNotLocked is returned by LockCallback when no callback
	// lock is held.
	ErrCallbackWasNotLocked = errors.New("callback was not locked")

	// ErrCallbackNotFromSender is returned by LockCallback when the caller
	// is not the holder of the current lock.
	ErrCallbackNotFromSender = errors.New("callback not from sender")

	// ErrCallbackIsLocked is returned when a WithBatch callback returns
	// without consuming its lock.
	ErrCallbackIsLocked = errors.New("callback is locked")

	// ErrNotEnoughValueForCallback is returned when more value is requested
	// for the callback than was attached to the outer call.
	ErrNotEnoughValueForCallback = errors.New("not enough value for callback")

	// ErrCallFailedWithEmptyRevert is returned when an inner call fails
	// without an error message.
	ErrCallFailedWithEmptyRevert = errors.New("call failed with empty revert")

	// ErrNotInitialized is returned when a messaging operation runs before
	// the adapter, processor and message properties have been filed.
	ErrNotInitialized = errors.New("gateway not initialized")
)
