// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messages

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// Fixed encoded sizes per kind. Variable kinds are listed with their
// header size; the embedded u16 length field completes the total.
const (
	sizeScheduleUpgrade         = 1 + 20
	sizeCancelUpgrade           = 1 + 20
	sizeRecoverTokens           = 1 + 20 + 20 + 20 + 16
	sizeNotifyPool              = 1 + 8
	sizeNotifyShareClass        = 1 + 8 + 16 + 32 + 8 + 1 + 20
	sizeNotifyPricePoolPerShare = 1 + 8 + 16 + 16 + 8
	sizeDepositRequest          = 1 + 8 + 16 + 32 + 16 + 16
	sizeRedeemRequest           = sizeDepositRequest
	sizeFulfilledDeposit        = 1 + 8 + 16 + 32 + 16 + 16 + 16 + 16
	sizeFulfilledRedeem         = sizeFulfilledDeposit
	sizeUpdateVault             = 1 + 8 + 16 + 16 + 20 + 1
	sizeContractUpdateHeader    = 1 + 8 + 20 + 2

	// MaxContractUpdatePayload bounds the variable payload of contract
	// update messages.
	MaxContractUpdatePayload = 1024
)

// KindOf returns the kind tag of an encoded message.
func KindOf(buf []byte) (Kind, error) {
	if len(buf) == 0 {
		return KindInvalid, fmt.Errorf("%w: empty", ErrInvalidMessage)
	}
	k := Kind(buf[0])
	switch k {
	case KindScheduleUpgrade, KindCancelUpgrade, KindRecoverTokens,
		KindNotifyPool, KindNotifyShareClass, KindNotifyPricePoolPerShare,
		KindDepositRequest, KindRedeemRequest,
		KindFulfilledDepositRequest, KindFulfilledRedeemRequest,
		KindUpdateVault, KindUpdateContract, KindUntrustedContractUpdate:
		return k, nil
	default:
		return KindInvalid, fmt.Errorf("%w: tag %d", ErrUnknownKind, buf[0])
	}
}

// Length returns the encoded length of the message at the start of buf.
// buf may extend past the message (batch splitting reads message after
// message from one buffer).
func Length(buf []byte) (int, error) {
	k, err := KindOf(buf)
	if err != nil {
		return 0, err
	}
	switch k {
	case KindScheduleUpgrade:
		return sizeScheduleUpgrade, nil
	case KindCancelUpgrade:
		return sizeCancelUpgrade, nil
	case KindRecoverTokens:
		return sizeRecoverTokens, nil
	case KindNotifyPool:
		return sizeNotifyPool, nil
	case KindNotifyShareClass:
		return sizeNotifyShareClass, nil
	case KindNotifyPricePoolPerShare:
		return sizeNotifyPricePoolPerShare, nil
	case KindDepositRequest:
		return sizeDepositRequest, nil
	case KindRedeemRequest:
		return sizeRedeemRequest, nil
	case KindFulfilledDepositRequest:
		return sizeFulfilledDeposit, nil
	case KindFulfilledRedeemRequest:
		return sizeFulfilledRedeem, nil
	case KindUpdateVault:
		return sizeUpdateVault, nil
	case KindUpdateContract, KindUntrustedContractUpdate:
		if len(buf) < sizeContractUpdateHeader {
			return 0, fmt.Errorf("%w: truncated %s header", ErrInvalidMessage, k)
		}
		n := int(binary.BigEndian.Uint16(buf[sizeContractUpdateHeader-2 : sizeContractUpdateHeader]))
		if n > MaxContractUpdatePayload {
			return 0, fmt.Errorf("%w: %s payload %d exceeds maximum %d", ErrInvalidMessage, k, n, MaxContractUpdatePayload)
		}
		return sizeContractUpdateHeader + n, nil
	default:
		return 0, fmt.Errorf("%w: tag %d", ErrUnknownKind, buf[0])
	}
}

// PoolOf returns the pool id a message is scoped to, or 0 for globally
// scoped kinds.
func PoolOf(buf []byte) (uint64, error) {
	k, err := KindOf(buf)
	if err != nil {
		return 0, err
	}
	if !k.PoolScoped() {
		return 0, nil
	}
	if len(buf) < 1+8 {
		return 0, fmt.Errorf("%w: truncated pool id", ErrInvalidMessage)
	}
	return binary.BigEndian.Uint64(buf[1:9]), nil
}

// putUint128 appends a 16-byte big-endian amount. Amounts above 2^128-1
// cannot be encoded.
func putUint128(dst []byte, v *uint256.Int) ([]byte, error) {
	if v == nil {
		v = uint256.NewInt(0)
	}
	if v.BitLen() > 128 {
		return nil, fmt.Errorf("%w: amount exceeds 128 bits", ErrInvalidMessage)
	}
	b := v.Bytes32()
	return append(dst, b[16:]...), nil
}

func readUint128(src []byte) *uint256.Int {
	var b [32]byte
	copy(b[16:], src[:16])
	return new(uint256.Int).SetBytes32(b[:])
}
