// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"strconv"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

const (
	// MessageMaxLength bounds a single encoded message. Batches may carry
	// several messages but no individual message may exceed this.
	MessageMaxLength = 2048
)

// ChainID identifies a remote chain in the network.
type ChainID uint32

func (c ChainID) String() string {
	return "chain-" + strconv.FormatUint(uint64(c), 10)
}

// PoolID identifies a pool. Pool 0 is the global scope used by messages
// that are not bound to any pool.
type PoolID uint64

func (p PoolID) String() string {
	return "pool-" + strconv.FormatUint(uint64(p), 10)
}

// Message is a single encoded protocol message. The encoding is
// self-describing: its length is derivable from its leading kind tag and,
// for variable kinds, from embedded fields (see the messages package).
type Message []byte

// Hash returns the keccak identity of the message. Failure and underpaid
// ledgers are keyed by this hash, so identical bytes share one record.
func (m Message) Hash() common.Hash {
	return common.BytesToHash(crypto.Keccak256(m))
}

// BatchHash returns the keccak identity of a raw batch.
func BatchHash(batch []byte) common.Hash {
	return common.BytesToHash(crypto.Keccak256(batch))
}

// Locator identifies one outbound batch buffer during a batching window.
type Locator struct {
	Chain ChainID
	Pool  PoolID
}

func (l Locator) String() string {
	return l.Chain.String() + "/" + l.Pool.String()
}
