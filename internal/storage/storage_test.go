package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func testSwap(id string, chainID uint64) *SwapRecord {
	return &SwapRecord{
		ID:               id,
		ChainID:          chainID,
		VaultAddress:     "0xvault-" + id,
		VaultSalt:        "aabbccdd",
		SellToken:        "0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf",
		BuyToken:         "native",
		RecipientAddress: "0x1111111111111111111111111111111111111111",
		RefundAddress:    "0x2222222222222222222222222222222222222222",
		ExpiresAt:        time.Now().Add(24 * time.Hour),
	}
}

func TestNewCreatesSchema(t *testing.T) {
	s := newTestStorage(t)

	var name string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='swaps'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("swaps table not created: %v", err)
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	if err := s.CreateSwap(testSwap("swap-1", 1)); err != nil {
		t.Fatalf("CreateSwap failed: %v", err)
	}
	s.Close()

	// Reopen: schema init and migrations must be idempotent.
	s2, err := New(path)
	if err != nil {
		t.Fatalf("failed to reopen storage: %v", err)
	}
	defer s2.Close()

	swap, err := s2.GetSwap("swap-1")
	if err != nil {
		t.Fatalf("GetSwap after reopen failed: %v", err)
	}
	if swap.ID != "swap-1" {
		t.Errorf("unexpected swap id: %s", swap.ID)
	}
}

func TestNewCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "test.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("failed to create storage in nested dir: %v", err)
	}
	s.Close()
}
