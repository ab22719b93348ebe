package keyvault

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func writeKeyFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "master.key")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}
	return path
}

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		wantErr  bool
	}{
		{"bare hex", testKeyHex, false},
		{"0x prefix", "0x" + testKeyHex, false},
		{"trailing newline", testKeyHex + "\n", false},
		{"surrounding whitespace", "  " + testKeyHex + "  \n", false},
		{"too short", testKeyHex[:62], true},
		{"too long", testKeyHex + "ff", true},
		{"not hex", strings.Repeat("zz", 32), true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeKeyFile(t, tt.contents)
			v, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(v.masterKey) != MasterKeyLen {
				t.Errorf("master key length = %d, want %d", len(v.masterKey), MasterKeyLen)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.key")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMintDistinct(t *testing.T) {
	v, err := Load(writeKeyFile(t, testKeyHex))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	addr1, salt1, err := v.Mint()
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	addr2, salt2, err := v.Mint()
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if addr1 == addr2 {
		t.Error("two mints produced the same address")
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two mints produced the same salt")
	}
	if len(salt1) != SaltLen {
		t.Errorf("salt length = %d, want %d", len(salt1), SaltLen)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	v, err := Load(writeKeyFile(t, testKeyHex))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	addr, salt, err := v.Mint()
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		key, err := v.Derive(salt)
		if err != nil {
			t.Fatalf("Derive failed: %v", err)
		}
		if key.Address() != addr {
			t.Errorf("derived address %s != minted address %s", key.Address().Hex(), addr.Hex())
		}
		key.Destroy()
	}
}

func TestDeriveDifferentMasterKeys(t *testing.T) {
	v1, err := Load(writeKeyFile(t, testKeyHex))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	v2, err := Load(writeKeyFile(t, "0x"+strings.Repeat("ab", 32)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	salt := bytes.Repeat([]byte{0x01}, SaltLen)

	k1, err := v1.Derive(salt)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	defer k1.Destroy()

	k2, err := v2.Derive(salt)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	defer k2.Destroy()

	if k1.Address() == k2.Address() {
		t.Error("different master keys derived the same address for one salt")
	}
}

func TestDeriveBadSalt(t *testing.T) {
	v, err := Load(writeKeyFile(t, testKeyHex))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := v.Derive([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error for short salt")
	}
	if _, err := v.Derive(nil); err == nil {
		t.Error("expected error for nil salt")
	}
}

func TestSignRecovers(t *testing.T) {
	v, err := Load(writeKeyFile(t, testKeyHex))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	_, salt, err := v.Mint()
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	key, err := v.Derive(salt)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	defer key.Destroy()

	digest := crypto.Keccak256([]byte("vaultswap signing test"))
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}
	if sig[64] != 0 && sig[64] != 1 {
		t.Errorf("recovery id = %d, want 0 or 1", sig[64])
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("SigToPub failed: %v", err)
	}
	if got := crypto.PubkeyToAddress(*pub); got != key.Address() {
		t.Errorf("recovered %s, want %s", got.Hex(), key.Address().Hex())
	}
}

func TestSignRejectsBadDigest(t *testing.T) {
	v, err := Load(writeKeyFile(t, testKeyHex))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_, salt, _ := v.Mint()
	key, err := v.Derive(salt)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	defer key.Destroy()

	if _, err := key.Sign([]byte("short")); err == nil {
		t.Error("expected error for non-32-byte digest")
	}
}

func TestDestroy(t *testing.T) {
	v, err := Load(writeKeyFile(t, testKeyHex))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_, salt, _ := v.Mint()
	key, err := v.Derive(salt)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	priv := key.priv
	key.Destroy()

	if priv.D.Sign() != 0 {
		t.Error("private scalar not zeroed after Destroy")
	}
	if _, err := key.Sign(make([]byte, 32)); err == nil {
		t.Error("expected error signing with destroyed key")
	}

	// Second destroy is a no-op.
	key.Destroy()
}

func TestVaultDestroy(t *testing.T) {
	v, err := Load(writeKeyFile(t, testKeyHex))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	v.Destroy()
	if v.masterKey != nil {
		t.Error("master key not cleared after Destroy")
	}
}
