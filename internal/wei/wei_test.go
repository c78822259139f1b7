// ABOUTME: Tests for decimal-string amount parsing and arithmetic.
// ABOUTME: Covers 256-bit bounds, negative rejection, and floor-share rounding.

package wei

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"zero", "0", false},
		{"empty is zero", "", false},
		{"plain", "1000000000000000000", false},
		{"max 256-bit", strings.Repeat("9", 77), false},
		{"negative", "-1", true},
		{"float", "1.5", true},
		{"garbage", "abc", true},
		{"hex", "0x10", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.in)
			if tc.wantErr && err == nil {
				t.Errorf("Parse(%q): expected error", tc.in)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Parse(%q): %v", tc.in, err)
			}
		})
	}
}

func TestParseOverflow(t *testing.T) {
	// 2^256 is one past the allowed range
	over := "115792089237316195423570985008687907853269984665640564039457584007913129639936"
	if _, err := Parse(over); err == nil {
		t.Error("expected overflow error for 2^256")
	}
	max := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	if _, err := Parse(max); err != nil {
		t.Errorf("2^256-1 should parse: %v", err)
	}
}

func TestCmp(t *testing.T) {
	if Cmp("100", "99") != 1 {
		t.Error("100 > 99")
	}
	if Cmp("5", "50") != -1 {
		t.Error("5 < 50")
	}
	if Cmp("7", "7") != 0 {
		t.Error("7 == 7")
	}
	// Numeric, not lexicographic
	if Cmp("9", "10") != -1 {
		t.Error("9 < 10 numerically")
	}
}

func TestAdd(t *testing.T) {
	sum, err := Add("1000000000000000000", "500000000000000000")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum != "1500000000000000000" {
		t.Errorf("unexpected sum: %s", sum)
	}
}

func TestSub(t *testing.T) {
	diff, err := Sub("100", "40")
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if diff != "60" {
		t.Errorf("unexpected diff: %s", diff)
	}
	if _, err := Sub("40", "100"); err == nil {
		t.Error("expected error for negative result")
	}
}

func TestShare(t *testing.T) {
	tests := []struct {
		amount  string
		percent int
		want    string
	}{
		{"100", 60, "60"},
		{"100", 40, "40"},
		{"101", 50, "50"}, // floor, remainder dropped
		{"1", 33, "0"},
		{"1000000000000000000", 25, "250000000000000000"},
	}
	for _, tc := range tests {
		got, err := Share(tc.amount, tc.percent)
		if err != nil {
			t.Fatalf("Share(%s, %d): %v", tc.amount, tc.percent, err)
		}
		if got != tc.want {
			t.Errorf("Share(%s, %d) = %s, want %s", tc.amount, tc.percent, got, tc.want)
		}
	}
}
