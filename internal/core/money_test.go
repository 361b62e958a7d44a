package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"0.00", 0, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFromEuros(t *testing.T) {
	cases := map[float64]int64{
		4.5:    450,
		0.1:    10,
		19.99:  1999,
		1234.5: 123450,
	}
	for in, want := range cases {
		if got := FromEuros(in).Cents; got != want {
			t.Errorf("FromEuros(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money{Cents: 1234}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"amount":12.34}` {
		t.Fatalf("unexpected encoding %s", b)
	}

	var in struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": 7.5}`), &in); err != nil {
		t.Fatal(err)
	}
	if in.Amount.Cents != 750 {
		t.Fatalf("expected 750 cents, got %d", in.Amount.Cents)
	}
	if err := json.Unmarshal([]byte(`{"amount": "7.5"}`), &in); err == nil {
		t.Fatal("expected error for string amount")
	}
}
