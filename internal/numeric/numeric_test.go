package numeric

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestFractionalDigitsIgnoresTrailingZeros(t *testing.T) {
	cases := map[string]int{
		"100":       0,
		"100.00":    0,
		"100.005":   3,
		"0.007692":  6,
		"-1.250":    2,
		"0.0000001": 7,
	}
	for in, want := range cases {
		if got := FractionalDigits(mustDecimal(t, in)); got != want {
			t.Errorf("FractionalDigits(%s) = %d, want %d", in, got, want)
		}
	}
}

func TestIsMultipleOf(t *testing.T) {
	tick := mustDecimal(t, "0.01")
	if !IsMultipleOf(mustDecimal(t, "100.00"), tick) {
		t.Fatal("100.00 should sit on a 0.01 grid")
	}
	if IsMultipleOf(mustDecimal(t, "100.005"), tick) {
		t.Fatal("100.005 should not sit on a 0.01 grid")
	}
	if !IsMultipleOf(mustDecimal(t, "123.45"), decimal.Zero) {
		t.Fatal("zero step disables the check")
	}
}

func TestDivFloorRoundsTowardZero(t *testing.T) {
	got := DivFloor(mustDecimal(t, "500"), mustDecimal(t, "65000"), 6)
	if got.String() != "0.007692" {
		t.Fatalf("floor(500/65000, 6) = %s, want 0.007692", got)
	}
	if !DivFloor(mustDecimal(t, "1"), decimal.Zero, 6).IsZero() {
		t.Fatal("division by zero yields zero")
	}
}

func TestFloorToScale(t *testing.T) {
	if got := FloorToScale(mustDecimal(t, "0.0076929"), 6); got.String() != "0.007692" {
		t.Fatalf("FloorToScale truncated to %s", got)
	}
}

func TestScaleFromStep(t *testing.T) {
	cases := map[string]int{
		"0.01":   2,
		"0.0100": 2,
		"1":      0,
		"0.001":  3,
		"":       0,
	}
	for in, want := range cases {
		if got := ScaleFromStep(in); got != want {
			t.Errorf("ScaleFromStep(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParse(t *testing.T) {
	if _, ok := Parse("not-a-number"); ok {
		t.Fatal("expected parse failure")
	}
	d, ok := Parse(" 42.5 ")
	if !ok || d.String() != "42.5" {
		t.Fatalf("Parse returned %s, %v", d, ok)
	}
}
