// Package signing produces the signed artifacts of a swap: the EIP-2612
// permit that grants the settlement contract an allowance, the app-data
// document that carries the permit as a pre-hook, and the EIP-712 GPv2
// order itself. All hashing is done directly over the encoded words; no
// typed-data reflection.
package signing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Signer signs 32-byte digests with a vault key. Implementations return
// 65-byte r || s || v signatures with v in {0, 1}.
type Signer interface {
	Address() common.Address
	Sign(digest []byte) ([]byte, error)
}

// MaxUint256 is 2^256 - 1, used for unlimited permit value and deadline.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Keccak256 computes the Keccak-256 hash (used by Ethereum).
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

var domainTypeHash = Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

// DomainSeparator hashes an EIP-712 domain of the common four-field shape.
func DomainSeparator(name, version string, chainID uint64, verifyingContract common.Address) [32]byte {
	enc := make([]byte, 0, 5*32)
	enc = append(enc, domainTypeHash...)
	enc = append(enc, Keccak256([]byte(name))...)
	enc = append(enc, Keccak256([]byte(version))...)
	enc = append(enc, uint256Word(new(big.Int).SetUint64(chainID))...)
	enc = append(enc, addressWord(verifyingContract)...)

	var sep [32]byte
	copy(sep[:], Keccak256(enc))
	return sep
}

// TypedDataDigest computes the final EIP-712 signing digest:
// keccak256(0x19 0x01 || domainSeparator || structHash).
func TypedDataDigest(domainSeparator, structHash [32]byte) [32]byte {
	data := make([]byte, 0, 2+2*32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator[:]...)
	data = append(data, structHash[:]...)

	var digest [32]byte
	copy(digest[:], Keccak256(data))
	return digest
}

// Word encoders for EIP-712 struct hashing.

func uint256Word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

func boolWord(b bool) []byte {
	word := make([]byte, 32)
	if b {
		word[31] = 1
	}
	return word
}
