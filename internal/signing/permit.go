package signing

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/internal/config"
	"github.com/vaultswap/vaultswapd/internal/evm"
)

var permitTypeHash = Keccak256([]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"))

// Permit is an EIP-2612 approval message. The daemon always grants the
// vault relayer an unlimited allowance with no deadline; the vault is
// single-use, so there is nothing left to protect once the order settles.
type Permit struct {
	Owner    common.Address
	Spender  common.Address
	Value    *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

// SignedPermit is a permit plus its split signature, ready to be encoded
// as pre-hook calldata.
type SignedPermit struct {
	Permit
	V uint8
	R [32]byte
	S [32]byte
}

// PermitDigest computes the EIP-712 signing digest of a permit under the
// sell token's domain.
func PermitDigest(chainID uint64, tokenAddr common.Address, p *Permit) [32]byte {
	enc := make([]byte, 0, 6*32)
	enc = append(enc, permitTypeHash...)
	enc = append(enc, addressWord(p.Owner)...)
	enc = append(enc, addressWord(p.Spender)...)
	enc = append(enc, uint256Word(p.Value)...)
	enc = append(enc, uint256Word(p.Nonce)...)
	enc = append(enc, uint256Word(p.Deadline)...)

	var structHash [32]byte
	copy(structHash[:], Keccak256(enc))

	domain := DomainSeparator(config.CBBTCPermitName, config.CBBTCPermitVersion, chainID, tokenAddr)
	return TypedDataDigest(domain, structHash)
}

// SignPermit builds and signs the unlimited permit for the vault relayer
// with the token's current nonce for the signer's address.
func SignPermit(signer Signer, chainID uint64, tokenAddr common.Address, nonce *big.Int) (*SignedPermit, error) {
	permit := Permit{
		Owner:    signer.Address(),
		Spender:  config.VaultRelayer,
		Value:    MaxUint256,
		Nonce:    nonce,
		Deadline: MaxUint256,
	}

	digest := PermitDigest(chainID, tokenAddr, &permit)
	sig, err := signer.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign permit: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("permit signature is %d bytes, want 65", len(sig))
	}

	signed := &SignedPermit{
		Permit: permit,
		V:      sig[64] + 27,
	}
	copy(signed.R[:], sig[:32])
	copy(signed.S[:], sig[32:64])
	return signed, nil
}

// Calldata encodes the permit(owner, spender, value, deadline, v, r, s)
// call the solver executes against the sell token before settlement.
func (p *SignedPermit) Calldata() []byte {
	return evm.PackPermit(p.Owner, p.Spender, p.Value, p.Deadline, p.V, p.R, p.S)
}
