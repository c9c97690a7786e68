// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gas

import (
	"sync"

	"github.com/luxfi/gateway"
	"github.com/luxfi/gateway/messages"
)

// DefaultMaxBatchGasLimit applies to chains without an explicit limit.
const DefaultMaxBatchGasLimit uint64 = 25_000_000

var _ gateway.MessageProperties = (*Properties)(nil)

// Properties wires the protocol message codec and the gas service into
// the envelope attributes the gateway consumes.
type Properties struct {
	svc *Service

	mu       sync.RWMutex
	maxBatch map[gateway.ChainID]uint64
}

// NewProperties creates Properties backed by svc.
func NewProperties(svc *Service) *Properties {
	return &Properties{
		svc:      svc,
		maxBatch: make(map[gateway.ChainID]uint64),
	}
}

// SetMaxBatchGasLimit overrides the per-batch gas ceiling for chain.
func (p *Properties) SetMaxBatchGasLimit(chain gateway.ChainID, limit uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxBatch[chain] = limit
}

func (p *Properties) MessageLength(buf []byte) (int, error) {
	return messages.Length(buf)
}

func (p *Properties) MessagePoolID(message gateway.Message) (gateway.PoolID, error) {
	pool, err := messages.PoolOf(message)
	return gateway.PoolID(pool), err
}

func (p *Properties) MessageProcessingGasLimit(chain gateway.ChainID, message gateway.Message) (uint64, error) {
	return p.svc.ProcessingGasLimit(message)
}

func (p *Properties) MessageOverallGasLimit(chain gateway.ChainID, message gateway.Message) (uint64, error) {
	return p.svc.MessageGasLimit(message)
}

func (p *Properties) MaxBatchGasLimit(chain gateway.ChainID) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if limit, ok := p.maxBatch[chain]; ok {
		return limit
	}
	return DefaultMaxBatchGasLimit
}
