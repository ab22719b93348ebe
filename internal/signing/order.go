package signing

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/internal/config"
	"github.com/vaultswap/vaultswapd/internal/orderbook"
)

var orderTypeHash = Keccak256([]byte("Order(address sellToken,address buyToken,address receiver,uint256 sellAmount,uint256 buyAmount,uint32 validTo,bytes32 appData,uint256 feeAmount,string kind,bool partiallyFillable,string sellTokenBalance,string buyTokenBalance)"))

// OrderUIDLen is the length of an orderbook order UID:
// digest(32) || owner(20) || validTo(4).
const OrderUIDLen = 56

// OrderDigest computes the EIP-712 signing digest of a GPv2 order under
// the settlement contract's domain on one chain.
func OrderDigest(chainID uint64, order *orderbook.Order) [32]byte {
	enc := make([]byte, 0, 13*32)
	enc = append(enc, orderTypeHash...)
	enc = append(enc, addressWord(order.SellToken)...)
	enc = append(enc, addressWord(order.BuyToken)...)
	enc = append(enc, addressWord(order.Receiver)...)
	enc = append(enc, uint256Word(order.SellAmount)...)
	enc = append(enc, uint256Word(order.BuyAmount)...)
	enc = append(enc, uint32Word(order.ValidTo)...)
	enc = append(enc, order.AppData.Bytes()...)
	enc = append(enc, uint256Word(order.FeeAmount)...)
	enc = append(enc, Keccak256([]byte(order.Kind))...)
	enc = append(enc, boolWord(order.PartiallyFillable)...)
	enc = append(enc, Keccak256([]byte(order.SellTokenBalance))...)
	enc = append(enc, Keccak256([]byte(order.BuyTokenBalance))...)

	var structHash [32]byte
	copy(structHash[:], Keccak256(enc))

	domain := DomainSeparator(config.SettlementDomainName, config.SettlementDomainVersion, chainID, config.GPv2Settlement)
	return TypedDataDigest(domain, structHash)
}

// SignOrder signs a GPv2 order and returns the 65-byte signature in the
// r || s || v form the orderbook expects, with v in {27, 28}.
func SignOrder(signer Signer, chainID uint64, order *orderbook.Order) ([]byte, error) {
	digest := OrderDigest(chainID, order)
	sig, err := signer.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("order signature is %d bytes, want 65", len(sig))
	}

	sig[64] += 27
	return sig, nil
}

// OrderUID packs the identifier the orderbook derives for an order:
// the order digest, the owner address, and the validTo timestamp.
func OrderUID(digest [32]byte, owner common.Address, validTo uint32) []byte {
	uid := make([]byte, 0, OrderUIDLen)
	uid = append(uid, digest[:]...)
	uid = append(uid, owner.Bytes()...)

	var ts [4]byte
	binary.BigEndian.PutUint32(ts[:], validTo)
	return append(uid, ts[:]...)
}

// UnpackOrderUID splits a 56-byte order UID into its parts.
func UnpackOrderUID(uid []byte) (digest [32]byte, owner common.Address, validTo uint32, err error) {
	if len(uid) != OrderUIDLen {
		return digest, owner, 0, fmt.Errorf("order uid is %d bytes, want %d", len(uid), OrderUIDLen)
	}
	copy(digest[:], uid[:32])
	owner = common.BytesToAddress(uid[32:52])
	validTo = binary.BigEndian.Uint32(uid[52:56])
	return digest, owner, validTo, nil
}

func uint32Word(v uint32) []byte {
	word := make([]byte, 32)
	binary.BigEndian.PutUint32(word[28:], v)
	return word
}
