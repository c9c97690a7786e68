// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package messages defines the protocol message kinds and their wire
// encoding. Every message starts with a one-byte kind tag; its total
// length is statically derivable from that tag and, for the variable
// kinds, from an embedded length field. Batches are plain concatenations
// of messages, so this self-describing property is what makes batch
// splitting possible.
package messages

import (
	"errors"
	"fmt"
)

// Kind tags. Values below 16 are globally scoped; pool-scoped kinds
// embed their pool id as a big-endian u64 immediately after the tag.
type Kind uint8

const (
	KindInvalid                 Kind = 0
	KindScheduleUpgrade         Kind = 1
	KindCancelUpgrade           Kind = 2
	KindRecoverTokens           Kind = 3
	KindNotifyPool              Kind = 16
	KindNotifyShareClass        Kind = 17
	KindNotifyPricePoolPerShare Kind = 18
	KindDepositRequest          Kind = 32
	KindRedeemRequest           Kind = 33
	KindFulfilledDepositRequest Kind = 34
	KindFulfilledRedeemRequest  Kind = 35
	KindUpdateVault             Kind = 48
	KindUpdateContract          Kind = 49
	KindUntrustedContractUpdate Kind = 50
)

var (
	// ErrInvalidMessage is returned when a message cannot be decoded.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnknownKind is returned for an unrecognized kind tag.
	ErrUnknownKind = errors.New("unknown message kind")
)

func (k Kind) String() string {
	switch k {
	case KindScheduleUpgrade:
		return "schedule_upgrade"
	case KindCancelUpgrade:
		return "cancel_upgrade"
	case KindRecoverTokens:
		return "recover_tokens"
	case KindNotifyPool:
		return "notify_pool"
	case KindNotifyShareClass:
		return "notify_share_class"
	case KindNotifyPricePoolPerShare:
		return "notify_price_pool_per_share"
	case KindDepositRequest:
		return "deposit_request"
	case KindRedeemRequest:
		return "redeem_request"
	case KindFulfilledDepositRequest:
		return "fulfilled_deposit_request"
	case KindFulfilledRedeemRequest:
		return "fulfilled_redeem_request"
	case KindUpdateVault:
		return "update_vault"
	case KindUpdateContract:
		return "update_contract"
	case KindUntrustedContractUpdate:
		return "untrusted_contract_update"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// PoolScoped reports whether messages of this kind are bound to a pool.
func (k Kind) PoolScoped() bool {
	return k >= KindNotifyPool
}

// Kinds returns every defined kind, in tag order.
func Kinds() []Kind {
	return []Kind{
		KindScheduleUpgrade,
		KindCancelUpgrade,
		KindRecoverTokens,
		KindNotifyPool,
		KindNotifyShareClass,
		KindNotifyPricePoolPerShare,
		KindDepositRequest,
		KindRedeemRequest,
		KindFulfilledDepositRequest,
		KindFulfilledRedeemRequest,
		KindUpdateVault,
		KindUpdateContract,
		KindUntrustedContractUpdate,
	}
}
