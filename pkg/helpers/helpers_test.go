package helpers

import (
	"math/big"
	"testing"
)

func TestHexToBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"with prefix", "0xdeadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"without prefix", "deadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"empty", "", []byte{}, false},
		{"whitespace", "  0x01  ", []byte{0x01}, false},
		{"odd length", "0xabc", nil, true},
		{"invalid chars", "0xzz", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HexToBytes(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("HexToBytes(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("HexToBytes(%q) error: %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("HexToBytes(%q) = %x, want %x", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("HexToBytes(%q)[%d] = %x, want %x", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBytesToHexRoundTrip(t *testing.T) {
	original := []byte{0x01, 0x02, 0xff, 0x00, 0xab}
	encoded := BytesToHex(original)
	if encoded != "0x0102ff00ab" {
		t.Errorf("BytesToHex = %s, want 0x0102ff00ab", encoded)
	}

	decoded, err := HexToBytes(encoded)
	if err != nil {
		t.Fatalf("HexToBytes error: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("round trip length mismatch: %d != %d", len(decoded), len(original))
	}
	for i := range decoded {
		if decoded[i] != original[i] {
			t.Errorf("round trip byte %d: %x != %x", i, decoded[i], original[i])
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{"whole", big.NewInt(100000000), 8, "1"},
		{"fractional", big.NewInt(150000000), 8, "1.5"},
		{"small", big.NewInt(1), 8, "0.00000001"},
		{"zero decimals", big.NewInt(42), 0, "42"},
		{"zero", big.NewInt(0), 8, "0"},
		{"nil", nil, 8, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAmount(tt.amount, tt.decimals); got != tt.want {
				t.Errorf("FormatAmount = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("123456789012345678901234567890")
	if err != nil {
		t.Fatalf("ParseAmount error: %v", err)
	}
	if got.String() != "123456789012345678901234567890" {
		t.Errorf("ParseAmount = %s", got)
	}

	for _, bad := range []string{"", "-1", "1.5", "0x10", "abc"} {
		if _, err := ParseAmount(bad); err == nil {
			t.Errorf("ParseAmount(%q) expected error", bad)
		}
	}
}
