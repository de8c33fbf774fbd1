package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "integer", input: "100", want: "100.00"},
		{name: "two digits", input: "12.34", want: "12.34"},
		{name: "trailing zeros", input: "12.3400", want: "12.34"},
		{name: "negative", input: "-5.5", want: "-5.50"},
		{name: "upper bound", input: "999999.99", want: "999999.99"},
		{name: "three digits", input: "1.005", wantErr: true},
		{name: "too large", input: "1000000", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("expected ErrInvalidAmount, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Fatalf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoundingIsHalfUp(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "0.005", want: "0.01"},
		{input: "0.004", want: "0.00"},
		{input: "2.345", want: "2.35"},
		{input: "333.3333333", want: "333.33"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := New(decimal.RequireFromString(tt.input))
			if got.String() != tt.want {
				t.Fatalf("New(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := MustParse("10.10")
	b := MustParse("0.20")

	if got := a.Add(b).String(); got != "10.30" {
		t.Fatalf("Add = %s", got)
	}
	if got := a.Sub(b).String(); got != "9.90" {
		t.Fatalf("Sub = %s", got)
	}
	if got := MustParse("1000").DivInt(3).String(); got != "333.33" {
		t.Fatalf("DivInt = %s", got)
	}
	if got := MustParse("10").Mul(decimal.RequireFromString("0.333")).String(); got != "3.33" {
		t.Fatalf("Mul = %s", got)
	}
	if !b.LessThan(a) || a.Cmp(b) != 1 || !a.Equal(MustParse("10.1")) {
		t.Fatalf("comparison mismatch")
	}
	if got := Max(Zero, MustParse("-1")); !got.IsZero() {
		t.Fatalf("Max = %s, want 0.00", got)
	}
	if FromCents(1234).String() != "12.34" {
		t.Fatalf("FromCents mismatch")
	}
}

func TestJSON(t *testing.T) {
	var payload struct {
		Value Money `json:"value"`
	}
	if err := json.Unmarshal([]byte(`{"value": 25.5}`), &payload); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if payload.Value.String() != "25.50" {
		t.Fatalf("got %s", payload.Value)
	}
	if err := json.Unmarshal([]byte(`{"value": "25.505"}`), &payload); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for three fractional digits, got %v", err)
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"value":"25.50"}` {
		t.Fatalf("unexpected json %s", out)
	}
}

func TestScanAndValue(t *testing.T) {
	var m Money
	if err := m.Scan([]byte("42.10")); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if v.(string) != "42.10" {
		t.Fatalf("Value = %v", v)
	}
}
