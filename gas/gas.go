// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gas prices protocol messages. The service is pure: costs are
// fixed per message kind, with a kind-dependent delta for vault updates
// and a per-byte component for contract update payloads.
package gas

import (
	"fmt"

	"github.com/luxfi/gateway/messages"
)

const (
	// BaseCost is the dispatch overhead added to every message.
	BaseCost uint64 = 50_000

	// MaxMessageCost is the protocol-wide ceiling for a single message's
	// overall gas limit.
	MaxMessageCost uint64 = 5_000_000

	// payloadByteCost prices each byte of a contract update payload.
	payloadByteCost uint64 = 16

	// minUntrustedUpdateLength is the smallest acceptable encoding of an
	// untrusted contract update: the header plus one payload byte.
	minUntrustedUpdateLength = 32
)

var processingCost = map[messages.Kind]uint64{
	messages.KindScheduleUpgrade:         60_000,
	messages.KindCancelUpgrade:           40_000,
	messages.KindRecoverTokens:           150_000,
	messages.KindNotifyPool:              100_000,
	messages.KindNotifyShareClass:        250_000,
	messages.KindNotifyPricePoolPerShare: 120_000,
	messages.KindDepositRequest:          200_000,
	messages.KindRedeemRequest:           200_000,
	messages.KindFulfilledDepositRequest: 300_000,
	messages.KindFulfilledRedeemRequest:  300_000,
	messages.KindUpdateVault:             400_000,
	messages.KindUpdateContract:          250_000,
	messages.KindUntrustedContractUpdate: 250_000,
}

var vaultKindDelta = map[messages.VaultKind]uint64{
	messages.VaultDeployAndLink: 1_200_000,
	messages.VaultLink:          300_000,
	messages.VaultUnlink:        100_000,
}

// Service estimates safe gas limits for protocol messages.
type Service struct{}

// NewService returns the gas service.
func NewService() *Service {
	return &Service{}
}

// ProcessingGasLimit returns the execution budget for processing one
// message, excluding dispatch overhead. It rejects messages it can
// statically tell are malformed for their declared kind.
func (s *Service) ProcessingGasLimit(msg []byte) (uint64, error) {
	kind, err := messages.KindOf(msg)
	if err != nil {
		return 0, err
	}
	cost := processingCost[kind]

	switch kind {
	case messages.KindUpdateVault:
		v, err := messages.ParseUpdateVault(msg)
		if err != nil {
			return 0, err
		}
		delta, ok := vaultKindDelta[v.Kind]
		if !ok {
			return 0, fmt.Errorf("%w: vault kind %d", messages.ErrInvalidMessage, uint8(v.Kind))
		}
		cost += delta
	case messages.KindUpdateContract, messages.KindUntrustedContractUpdate:
		n, err := messages.Length(msg)
		if err != nil {
			return 0, err
		}
		if kind == messages.KindUntrustedContractUpdate && n < minUntrustedUpdateLength {
			return 0, fmt.Errorf("%w: untrusted update too short (%d bytes)", messages.ErrInvalidMessage, n)
		}
		cost += uint64(n) * payloadByteCost
	}
	return cost, nil
}

// MessageGasLimit returns the overall gas limit for relaying and
// processing one message: processing cost plus BaseCost, clamped to
// MaxMessageCost. The result always strictly exceeds BaseCost.
func (s *Service) MessageGasLimit(msg []byte) (uint64, error) {
	cost, err := s.ProcessingGasLimit(msg)
	if err != nil {
		return 0, err
	}
	limit := cost + BaseCost
	if limit > MaxMessageCost {
		limit = MaxMessageCost
	}
	return limit, nil
}
