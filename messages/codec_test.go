// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messages

import (
	"encoding/binary"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestLength(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want int
	}{
		{name: "schedule upgrade", buf: []byte{byte(KindScheduleUpgrade)}, want: 21},
		{name: "cancel upgrade", buf: []byte{byte(KindCancelUpgrade)}, want: 21},
		{name: "recover tokens", buf: []byte{byte(KindRecoverTokens)}, want: 77},
		{name: "notify pool", buf: []byte{byte(KindNotifyPool)}, want: 9},
		{name: "notify share class", buf: []byte{byte(KindNotifyShareClass)}, want: 86},
		{name: "notify price", buf: []byte{byte(KindNotifyPricePoolPerShare)}, want: 49},
		{name: "deposit request", buf: []byte{byte(KindDepositRequest)}, want: 89},
		{name: "redeem request", buf: []byte{byte(KindRedeemRequest)}, want: 89},
		{name: "fulfilled deposit", buf: []byte{byte(KindFulfilledDepositRequest)}, want: 121},
		{name: "fulfilled redeem", buf: []byte{byte(KindFulfilledRedeemRequest)}, want: 121},
		{name: "update vault", buf: []byte{byte(KindUpdateVault)}, want: 62},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Fixed-size kinds report their length from the tag alone.
			got, err := Length(tt.buf)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLengthContractUpdate(t *testing.T) {
	header := func(kind Kind, payloadLen uint16) []byte {
		buf := make([]byte, sizeContractUpdateHeader)
		buf[0] = byte(kind)
		binary.BigEndian.PutUint16(buf[29:31], payloadLen)
		return buf
	}

	got, err := Length(header(KindUpdateContract, 100))
	require.NoError(t, err)
	require.Equal(t, 131, got)

	got, err = Length(header(KindUntrustedContractUpdate, 0))
	require.NoError(t, err)
	require.Equal(t, 31, got)

	_, err = Length(header(KindUpdateContract, MaxContractUpdatePayload+1))
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Length([]byte{byte(KindUpdateContract), 0x00})
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestLengthRejectsUnknownTags(t *testing.T) {
	_, err := Length(nil)
	require.ErrorIs(t, err, ErrInvalidMessage)

	for _, tag := range []byte{0, 4, 15, 19, 36, 51, 255} {
		_, err := Length([]byte{tag})
		require.ErrorIs(t, err, ErrUnknownKind)
	}
}

func TestPoolOf(t *testing.T) {
	msg := NotifyPool{Pool: 0xdeadbeef}.Encode()
	pool, err := PoolOf(msg)
	require.NoError(t, err)
	require.Equal(t, uint64(0xdeadbeef), pool)

	// Globally scoped kinds report pool 0.
	pool, err = PoolOf(ScheduleUpgrade{Target: common.BytesToAddress([]byte{1})}.Encode())
	require.NoError(t, err)
	require.Zero(t, pool)

	_, err = PoolOf([]byte{byte(KindNotifyPool), 0x01})
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestPoolScoped(t *testing.T) {
	for _, k := range Kinds() {
		require.Equal(t, k >= KindNotifyPool, k.PoolScoped(), k.String())
	}
}

func TestUint128Bounds(t *testing.T) {
	max128 := new(uint256.Int).Sub(
		new(uint256.Int).Lsh(uint256.NewInt(1), 128),
		uint256.NewInt(1),
	)

	buf, err := putUint128(nil, max128)
	require.NoError(t, err)
	require.Len(t, buf, 16)
	require.Equal(t, max128, readUint128(buf))

	over := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	_, err = putUint128(nil, over)
	require.ErrorIs(t, err, ErrInvalidMessage)

	// nil encodes as zero.
	buf, err = putUint128(nil, nil)
	require.NoError(t, err)
	require.True(t, readUint128(buf).IsZero())
}
