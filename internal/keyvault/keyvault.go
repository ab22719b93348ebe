// Package keyvault mints and re-derives per-swap deposit keys from a single
// master key. Derivation is priv = Keccak256(masterKey || salt); only salts
// are ever persisted, so every private key can be recomputed from the master
// key file and nothing secret lives in the database.
package keyvault

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

const (
	// MasterKeyLen is the required master key length in bytes.
	MasterKeyLen = 32

	// SaltLen is the per-vault salt length in bytes.
	SaltLen = 32
)

// Vault derives deposit keys from the master key.
type Vault struct {
	masterKey []byte
}

// Load reads the master key from a file containing 64 hex characters,
// with or without a 0x prefix and surrounding whitespace.
func Load(path string) (*Vault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read master key file: %w", err)
	}

	s := strings.TrimSpace(string(data))
	s = strings.TrimPrefix(s, "0x")

	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	if len(key) != MasterKeyLen {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeyLen, len(key))
	}

	return &Vault{masterKey: key}, nil
}

// Mint generates a fresh salt and returns the derived vault address with it.
// The salt is the only thing the caller needs to persist.
func (v *Vault) Mint() (common.Address, []byte, error) {
	for {
		salt := make([]byte, SaltLen)
		if _, err := rand.Read(salt); err != nil {
			return common.Address{}, nil, fmt.Errorf("failed to generate salt: %w", err)
		}

		key, err := v.Derive(salt)
		if err != nil {
			// Derived scalar fell outside the curve order. Vanishingly
			// rare; try another salt.
			continue
		}

		addr := key.Address()
		key.Destroy()
		return addr, salt, nil
	}
}

// Derive recomputes the deposit key for a persisted salt. The caller must
// Destroy the returned key as soon as signing is done.
func (v *Vault) Derive(salt []byte) (*DerivedKey, error) {
	if len(salt) != SaltLen {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltLen, len(salt))
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(v.masterKey)
	h.Write(salt)
	seed := h.Sum(nil)

	priv, err := crypto.ToECDSA(seed)
	zero(seed)
	if err != nil {
		return nil, fmt.Errorf("derived key invalid: %w", err)
	}

	return &DerivedKey{
		priv: priv,
		addr: crypto.PubkeyToAddress(priv.PublicKey),
	}, nil
}

// Destroy wipes the master key. The vault is unusable afterwards.
func (v *Vault) Destroy() {
	zero(v.masterKey)
	v.masterKey = nil
}

// DerivedKey is a recomputed deposit key.
type DerivedKey struct {
	priv *ecdsa.PrivateKey
	addr common.Address
}

// Address returns the vault address for this key.
func (k *DerivedKey) Address() common.Address {
	return k.addr
}

// Sign signs a 32-byte digest and returns a 65-byte signature in
// r || s || v form with v in {0, 1}.
func (k *DerivedKey) Sign(digest []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("key destroyed")
	}
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	return crypto.Sign(digest, k.priv)
}

// Destroy wipes the private scalar. Safe to call more than once.
func (k *DerivedKey) Destroy() {
	if k.priv == nil {
		return
	}
	b := k.priv.D.Bits()
	for i := range b {
		b[i] = 0
	}
	k.priv = nil
}

func zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
