package core

import (
	"encoding/json"
	"testing"
)

func TestMoney_JSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Money
		wantOut string
		wantErr bool
	}{
		{name: "whole", in: `18000`, want: 1800000, wantOut: `18000`},
		{name: "fraction", in: `1250.5`, want: 125050, wantOut: `1250.5`},
		{name: "rounding", in: `0.125`, want: 13, wantOut: `0.13`},
		{name: "string", in: `"99.99"`, want: 9999, wantOut: `99.99`},
		{name: "zero", in: `0`, want: 0, wantOut: `0`},
		{name: "garbage", in: `"lol"`, wantErr: true},
		{name: "out of range", in: `1e17`, wantErr: true},
		{name: "out of range negative", in: `"-92233720368547758"`, wantErr: true},
		{name: "upper bound", in: `1000000000000000`, want: 100000000000000000, wantOut: `1000000000000000`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Money
			err := json.Unmarshal([]byte(tt.in), &m)
			if (err != nil) != tt.wantErr {
				t.Fatalf("json.Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if m != tt.want {
				t.Errorf("json.Unmarshal() = %d, want %d", m, tt.want)
			}
			out, err := json.Marshal(m)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			if string(out) != tt.wantOut {
				t.Errorf("json.Marshal() = %s, want %s", out, tt.wantOut)
			}
		})
	}
}

func TestParseMoney(t *testing.T) {
	for _, in := range []string{"1e17", "-1e16", "NaN", "Inf", "1e400"} {
		if _, err := ParseMoney(in); err != errInvalidMoney {
			t.Errorf("ParseMoney(%q) error = %v, want %v", in, err, errInvalidMoney)
		}
	}
	if m, err := ParseMoney(" 42.5 "); err != nil || m != 4250 {
		t.Errorf("ParseMoney() = %d, %v, want 4250", m, err)
	}
}

func TestMoney_Format(t *testing.T) {
	tests := []struct {
		m    Money
		want string
	}{
		{m: 0, want: "₹0"},
		{m: 500000, want: "₹5,000"},
		{m: 123456789, want: "₹1,234,567.89"},
		{m: -200000, want: "-₹2,000"},
		{m: 5, want: "₹0.05"},
	}
	for _, tt := range tests {
		if got := tt.m.Format("₹"); got != tt.want {
			t.Errorf("Money(%d).Format() = %s, want %s", tt.m, got, tt.want)
		}
	}
	if got := Money(125050).String(); got != "1250.50" {
		t.Errorf("Money.String() = %s, want 1250.50", got)
	}
}
