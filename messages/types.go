// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messages

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// ShareClassID identifies a share class within a pool.
type ShareClassID [16]byte

// AssetID identifies an asset within the protocol's asset registry.
type AssetID [16]byte

// InvestorID is the chain-agnostic investor account identifier.
type InvestorID [32]byte

// VaultKind selects the vault operation carried by an UpdateVault
// message.
type VaultKind uint8

const (
	VaultDeployAndLink VaultKind = 1
	VaultLink          VaultKind = 2
	VaultUnlink        VaultKind = 3
)

func (v VaultKind) String() string {
	switch v {
	case VaultDeployAndLink:
		return "deploy_and_link"
	case VaultLink:
		return "link"
	case VaultUnlink:
		return "unlink"
	default:
		return fmt.Sprintf("vault_kind(%d)", uint8(v))
	}
}

func checkEncoded(buf []byte, kind Kind, size int) error {
	if len(buf) != size {
		return fmt.Errorf("%w: %s wants %d bytes, got %d", ErrInvalidMessage, kind, size, len(buf))
	}
	if Kind(buf[0]) != kind {
		return fmt.Errorf("%w: tag %d is not %s", ErrInvalidMessage, buf[0], kind)
	}
	return nil
}

// ScheduleUpgrade schedules target as a future upgrade authority.
type ScheduleUpgrade struct {
	Target common.Address
}

func (m ScheduleUpgrade) Encode() []byte {
	buf := make([]byte, 0, sizeScheduleUpgrade)
	buf = append(buf, byte(KindScheduleUpgrade))
	return append(buf, m.Target.Bytes()...)
}

func ParseScheduleUpgrade(buf []byte) (ScheduleUpgrade, error) {
	if err := checkEncoded(buf, KindScheduleUpgrade, sizeScheduleUpgrade); err != nil {
		return ScheduleUpgrade{}, err
	}
	return ScheduleUpgrade{Target: common.BytesToAddress(buf[1:21])}, nil
}

// CancelUpgrade revokes a scheduled upgrade.
type CancelUpgrade struct {
	Target common.Address
}

func (m CancelUpgrade) Encode() []byte {
	buf := make([]byte, 0, sizeCancelUpgrade)
	buf = append(buf, byte(KindCancelUpgrade))
	return append(buf, m.Target.Bytes()...)
}

func ParseCancelUpgrade(buf []byte) (CancelUpgrade, error) {
	if err := checkEncoded(buf, KindCancelUpgrade, sizeCancelUpgrade); err != nil {
		return CancelUpgrade{}, err
	}
	return CancelUpgrade{Target: common.BytesToAddress(buf[1:21])}, nil
}

// RecoverTokens sweeps stranded tokens out of a protocol contract.
type RecoverTokens struct {
	Target common.Address
	Token  common.Address
	To     common.Address
	Amount *uint256.Int
}

func (m RecoverTokens) Encode() ([]byte, error) {
	buf := make([]byte, 0, sizeRecoverTokens)
	buf = append(buf, byte(KindRecoverTokens))
	buf = append(buf, m.Target.Bytes()...)
	buf = append(buf, m.Token.Bytes()...)
	buf = append(buf, m.To.Bytes()...)
	return putUint128(buf, m.Amount)
}

func ParseRecoverTokens(buf []byte) (RecoverTokens, error) {
	if err := checkEncoded(buf, KindRecoverTokens, sizeRecoverTokens); err != nil {
		return RecoverTokens{}, err
	}
	return RecoverTokens{
		Target: common.BytesToAddress(buf[1:21]),
		Token:  common.BytesToAddress(buf[21:41]),
		To:     common.BytesToAddress(buf[41:61]),
		Amount: readUint128(buf[61:77]),
	}, nil
}

// NotifyPool announces a pool to a spoke chain.
type NotifyPool struct {
	Pool uint64
}

func (m NotifyPool) Encode() []byte {
	buf := make([]byte, sizeNotifyPool)
	buf[0] = byte(KindNotifyPool)
	binary.BigEndian.PutUint64(buf[1:9], m.Pool)
	return buf
}

func ParseNotifyPool(buf []byte) (NotifyPool, error) {
	if err := checkEncoded(buf, KindNotifyPool, sizeNotifyPool); err != nil {
		return NotifyPool{}, err
	}
	return NotifyPool{Pool: binary.BigEndian.Uint64(buf[1:9])}, nil
}

// NotifyShareClass announces a share class of a pool to a spoke chain.
type NotifyShareClass struct {
	Pool       uint64
	ShareClass ShareClassID
	Name       [32]byte
	Symbol     [8]byte
	Decimals   uint8
	Hook       common.Address
}

func (m NotifyShareClass) Encode() []byte {
	buf := make([]byte, 0, sizeNotifyShareClass)
	buf = append(buf, byte(KindNotifyShareClass))
	buf = binary.BigEndian.AppendUint64(buf, m.Pool)
	buf = append(buf, m.ShareClass[:]...)
	buf = append(buf, m.Name[:]...)
	buf = append(buf, m.Symbol[:]...)
	buf = append(buf, m.Decimals)
	return append(buf, m.Hook.Bytes()...)
}

func ParseNotifyShareClass(buf []byte) (NotifyShareClass, error) {
	if err := checkEncoded(buf, KindNotifyShareClass, sizeNotifyShareClass); err != nil {
		return NotifyShareClass{}, err
	}
	m := NotifyShareClass{
		Pool:     binary.BigEndian.Uint64(buf[1:9]),
		Decimals: buf[65],
		Hook:     common.BytesToAddress(buf[66:86]),
	}
	copy(m.ShareClass[:], buf[9:25])
	copy(m.Name[:], buf[25:57])
	copy(m.Symbol[:], buf[57:65])
	return m, nil
}

// NotifyPricePoolPerShare pushes a share price observation.
type NotifyPricePoolPerShare struct {
	Pool       uint64
	ShareClass ShareClassID
	Price      *uint256.Int
	Timestamp  uint64
}

func (m NotifyPricePoolPerShare) Encode() ([]byte, error) {
	buf := make([]byte, 0, sizeNotifyPricePoolPerShare)
	buf = append(buf, byte(KindNotifyPricePoolPerShare))
	buf = binary.BigEndian.AppendUint64(buf, m.Pool)
	buf = append(buf, m.ShareClass[:]...)
	buf, err := putUint128(buf, m.Price)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(buf, m.Timestamp), nil
}

func ParseNotifyPricePoolPerShare(buf []byte) (NotifyPricePoolPerShare, error) {
	if err := checkEncoded(buf, KindNotifyPricePoolPerShare, sizeNotifyPricePoolPerShare); err != nil {
		return NotifyPricePoolPerShare{}, err
	}
	m := NotifyPricePoolPerShare{
		Pool:      binary.BigEndian.Uint64(buf[1:9]),
		Price:     readUint128(buf[25:41]),
		Timestamp: binary.BigEndian.Uint64(buf[41:49]),
	}
	copy(m.ShareClass[:], buf[9:25])
	return m, nil
}

// DepositRequest asks the hub to queue a deposit for an investor.
type DepositRequest struct {
	Pool       uint64
	ShareClass ShareClassID
	Investor   InvestorID
	Asset      AssetID
	Amount     *uint256.Int
}

func (m DepositRequest) Encode() ([]byte, error) {
	return encodeRequest(KindDepositRequest, m.Pool, m.ShareClass, m.Investor, m.Asset, m.Amount)
}

func ParseDepositRequest(buf []byte) (DepositRequest, error) {
	if err := checkEncoded(buf, KindDepositRequest, sizeDepositRequest); err != nil {
		return DepositRequest{}, err
	}
	m := DepositRequest{
		Pool:   binary.BigEndian.Uint64(buf[1:9]),
		Amount: readUint128(buf[73:89]),
	}
	copy(m.ShareClass[:], buf[9:25])
	copy(m.Investor[:], buf[25:57])
	copy(m.Asset[:], buf[57:73])
	return m, nil
}

// RedeemRequest asks the hub to queue a redemption for an investor.
type RedeemRequest struct {
	Pool       uint64
	ShareClass ShareClassID
	Investor   InvestorID
	Asset      AssetID
	Amount     *uint256.Int
}

func (m RedeemRequest) Encode() ([]byte, error) {
	return encodeRequest(KindRedeemRequest, m.Pool, m.ShareClass, m.Investor, m.Asset, m.Amount)
}

func ParseRedeemRequest(buf []byte) (RedeemRequest, error) {
	if err := checkEncoded(buf, KindRedeemRequest, sizeRedeemRequest); err != nil {
		return RedeemRequest{}, err
	}
	m := RedeemRequest{
		Pool:   binary.BigEndian.Uint64(buf[1:9]),
		Amount: readUint128(buf[73:89]),
	}
	copy(m.ShareClass[:], buf[9:25])
	copy(m.Investor[:], buf[25:57])
	copy(m.Asset[:], buf[57:73])
	return m, nil
}

func encodeRequest(kind Kind, pool uint64, sc ShareClassID, inv InvestorID, asset AssetID, amount *uint256.Int) ([]byte, error) {
	buf := make([]byte, 0, sizeDepositRequest)
	buf = append(buf, byte(kind))
	buf = binary.BigEndian.AppendUint64(buf, pool)
	buf = append(buf, sc[:]...)
	buf = append(buf, inv[:]...)
	buf = append(buf, asset[:]...)
	return putUint128(buf, amount)
}

// FulfilledDepositRequest reports an executed deposit back to the spoke.
type FulfilledDepositRequest struct {
	Pool        uint64
	ShareClass  ShareClassID
	Investor    InvestorID
	Asset       AssetID
	AssetAmount *uint256.Int
	ShareAmount *uint256.Int
	Cancelled   *uint256.Int
}

func (m FulfilledDepositRequest) Encode() ([]byte, error) {
	return encodeFulfilled(KindFulfilledDepositRequest, m.Pool, m.ShareClass, m.Investor, m.Asset, m.AssetAmount, m.ShareAmount, m.Cancelled)
}

func ParseFulfilledDepositRequest(buf []byte) (FulfilledDepositRequest, error) {
	if err := checkEncoded(buf, KindFulfilledDepositRequest, sizeFulfilledDeposit); err != nil {
		return FulfilledDepositRequest{}, err
	}
	m := FulfilledDepositRequest{
		Pool:        binary.BigEndian.Uint64(buf[1:9]),
		AssetAmount: readUint128(buf[73:89]),
		ShareAmount: readUint128(buf[89:105]),
		Cancelled:   readUint128(buf[105:121]),
	}
	copy(m.ShareClass[:], buf[9:25])
	copy(m.Investor[:], buf[25:57])
	copy(m.Asset[:], buf[57:73])
	return m, nil
}

// FulfilledRedeemRequest reports an executed redemption back to the
// spoke.
type FulfilledRedeemRequest struct {
	Pool        uint64
	ShareClass  ShareClassID
	Investor    InvestorID
	Asset       AssetID
	AssetAmount *uint256.Int
	ShareAmount *uint256.Int
	Cancelled   *uint256.Int
}

func (m FulfilledRedeemRequest) Encode() ([]byte, error) {
	return encodeFulfilled(KindFulfilledRedeemRequest, m.Pool, m.ShareClass, m.Investor, m.Asset, m.AssetAmount, m.ShareAmount, m.Cancelled)
}

func ParseFulfilledRedeemRequest(buf []byte) (FulfilledRedeemRequest, error) {
	if err := checkEncoded(buf, KindFulfilledRedeemRequest, sizeFulfilledRedeem); err != nil {
		return FulfilledRedeemRequest{}, err
	}
	m := FulfilledRedeemRequest{
		Pool:        binary.BigEndian.Uint64(buf[1:9]),
		AssetAmount: readUint128(buf[73:89]),
		ShareAmount: readUint128(buf[89:105]),
		Cancelled:   readUint128(buf[105:121]),
	}
	copy(m.ShareClass[:], buf[9:25])
	copy(m.Investor[:], buf[25:57])
	copy(m.Asset[:], buf[57:73])
	return m, nil
}

func encodeFulfilled(kind Kind, pool uint64, sc ShareClassID, inv InvestorID, asset AssetID, amounts ...*uint256.Int) ([]byte, error) {
	buf := make([]byte, 0, sizeFulfilledDeposit)
	buf = append(buf, byte(kind))
	buf = binary.BigEndian.AppendUint64(buf, pool)
	buf = append(buf, sc[:]...)
	buf = append(buf, inv[:]...)
	buf = append(buf, asset[:]...)
	var err error
	for _, a := range amounts {
		buf, err = putUint128(buf, a)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// UpdateVault deploys, links or unlinks a vault for a (share class,
// asset) pair on a spoke chain.
type UpdateVault struct {
	Pool       uint64
	ShareClass ShareClassID
	Asset      AssetID
	Vault      common.Address
	Kind       VaultKind
}

func (m UpdateVault) Encode() []byte {
	buf := make([]byte, 0, sizeUpdateVault)
	buf = append(buf, byte(KindUpdateVault))
	buf = binary.BigEndian.AppendUint64(buf, m.Pool)
	buf = append(buf, m.ShareClass[:]...)
	buf = append(buf, m.Asset[:]...)
	buf = append(buf, m.Vault.Bytes()...)
	return append(buf, byte(m.Kind))
}

func ParseUpdateVault(buf []byte) (UpdateVault, error) {
	if err := checkEncoded(buf, KindUpdateVault, sizeUpdateVault); err != nil {
		return UpdateVault{}, err
	}
	m := UpdateVault{
		Pool:  binary.BigEndian.Uint64(buf[1:9]),
		Vault: common.BytesToAddress(buf[41:61]),
		Kind:  VaultKind(buf[61]),
	}
	copy(m.ShareClass[:], buf[9:25])
	copy(m.Asset[:], buf[25:41])
	return m, nil
}

// UpdateContract carries an opaque, trusted payload to a pool-bound
// target contract.
type UpdateContract struct {
	Pool    uint64
	Target  common.Address
	Payload []byte
}

func (m UpdateContract) Encode() ([]byte, error) {
	return encodeContractUpdate(KindUpdateContract, m.Pool, m.Target, m.Payload)
}

func ParseUpdateContract(buf []byte) (UpdateContract, error) {
	pool, target, payload, err := parseContractUpdate(KindUpdateContract, buf)
	if err != nil {
		return UpdateContract{}, err
	}
	return UpdateContract{Pool: pool, Target: target, Payload: payload}, nil
}

// UntrustedContractUpdate carries an opaque payload submitted through an
// untrusted path; it must carry at least one payload byte.
type UntrustedContractUpdate struct {
	Pool    uint64
	Target  common.Address
	Payload []byte
}

func (m UntrustedContractUpdate) Encode() ([]byte, error) {
	if len(m.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty untrusted payload", ErrInvalidMessage)
	}
	return encodeContractUpdate(KindUntrustedContractUpdate, m.Pool, m.Target, m.Payload)
}

func ParseUntrustedContractUpdate(buf []byte) (UntrustedContractUpdate, error) {
	pool, target, payload, err := parseContractUpdate(KindUntrustedContractUpdate, buf)
	if err != nil {
		return UntrustedContractUpdate{}, err
	}
	return UntrustedContractUpdate{Pool: pool, Target: target, Payload: payload}, nil
}

func encodeContractUpdate(kind Kind, pool uint64, target common.Address, payload []byte) ([]byte, error) {
	if len(payload) > MaxContractUpdatePayload {
		return nil, fmt.Errorf("%w: payload %d exceeds maximum %d", ErrInvalidMessage, len(payload), MaxContractUpdatePayload)
	}
	buf := make([]byte, 0, sizeContractUpdateHeader+len(payload))
	buf = append(buf, byte(kind))
	buf = binary.BigEndian.AppendUint64(buf, pool)
	buf = append(buf, target.Bytes()...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)))
	return append(buf, payload...), nil
}

func parseContractUpdate(kind Kind, buf []byte) (uint64, common.Address, []byte, error) {
	if len(buf) < sizeContractUpdateHeader || Kind(buf[0]) != kind {
		return 0, common.Address{}, nil, fmt.Errorf("%w: bad %s header", ErrInvalidMessage, kind)
	}
	n := int(binary.BigEndian.Uint16(buf[29:31]))
	if len(buf) != sizeContractUpdateHeader+n {
		return 0, common.Address{}, nil, fmt.Errorf("%w: %s length mismatch", ErrInvalidMessage, kind)
	}
	payload := make([]byte, n)
	copy(payload, buf[31:])
	return binary.BigEndian.Uint64(buf[1:9]), common.BytesToAddress(buf[9:29]), payload, nil
}
