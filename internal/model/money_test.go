package model

import (
	"testing"
)

func TestFromMinorUnits(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{4550, "45.50"},
		{499, "4.99"},
		{0, "0.00"},
		{100000, "1000.00"},
	}

	for _, tt := range tests {
		if got := FromMinorUnits(tt.input).StringFixed(2); got != tt.want {
			t.Errorf("FromMinorUnits(%d) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "45.50", want: "45.5"},
		{input: " 4.99 ", want: "4.99"},
		{input: "60", want: "60"},
		{input: "0.1", want: "0.1"},
		{input: "", wantErr: true},
		{input: "4,99", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAmount(%q) = %s, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// Decimal arithmetic keeps cent amounts exact where float64 would not.
func TestParseAmountIsExact(t *testing.T) {
	a, _ := ParseAmount("0.1")
	b, _ := ParseAmount("0.2")
	if got := a.Add(b).String(); got != "0.3" {
		t.Errorf("0.1 + 0.2 = %s, want 0.3", got)
	}
}

func TestParseOptionalAmount(t *testing.T) {
	got, err := ParseOptionalAmount(nil)
	if err != nil || got != nil {
		t.Errorf("ParseOptionalAmount(nil) = %v, %v", got, err)
	}

	s := "60.00"
	got, err = ParseOptionalAmount(&s)
	if err != nil || got == nil || got.StringFixed(2) != "60.00" {
		t.Errorf("ParseOptionalAmount(60.00) = %v, %v", got, err)
	}

	bad := "sixty"
	if _, err := ParseOptionalAmount(&bad); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}
