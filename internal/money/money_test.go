package money

import (
	"errors"
	"testing"
)

func TestAdd_Basic(t *testing.T) {
	sum, err := Add(100, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 400 {
		t.Errorf("expected 400, got %s", sum)
	}
}

func TestAdd_Overflow(t *testing.T) {
	if _, err := Add(MaxAmount, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestAdd_MaxExact(t *testing.T) {
	sum, err := Add(MaxAmount-1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != MaxAmount {
		t.Errorf("expected MaxAmount, got %s", sum)
	}
}

func TestSub_Underflow(t *testing.T) {
	if _, err := Sub(5, 6); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow for 5-6, got %v", err)
	}
}

func TestSub_ToZero(t *testing.T) {
	diff, err := Sub(5, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff != 0 {
		t.Errorf("expected 0, got %s", diff)
	}
}

func TestMul_Overflow(t *testing.T) {
	if _, err := Mul(1<<33, 1<<33); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestDiv_Truncates(t *testing.T) {
	q, err := Div(7, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != 3 {
		t.Errorf("expected 3, got %s", q)
	}
}

func TestDiv_ByZero(t *testing.T) {
	if _, err := Div(1, 0); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow for division by zero, got %v", err)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, d Amount
		want    Amount
		wantErr bool
	}{
		{"payout s1 alice", 100, 594, 300, 198, false},
		{"payout s1 carol", 200, 594, 300, 396, false},
		{"truncation", 1, 102, 3, 34, false},
		{"fee one percent", 600, 100, 10000, 6, false},
		{"wide intermediate", MaxAmount, MaxAmount - 1, MaxAmount, MaxAmount - 1, false},
		{"zero denominator", 1, 1, 0, 0, true},
		{"quotient too wide", MaxAmount, 3, 2, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulDiv(tt.a, tt.b, tt.d)
			if tt.wantErr {
				if !errors.Is(err, ErrOverflow) {
					t.Fatalf("expected ErrOverflow, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("MulDiv(%s, %s, %s) = %s, want %s", tt.a, tt.b, tt.d, got, tt.want)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, a := range []Amount{0, 1, 100, MaxAmount} {
		parsed, err := Parse(a.String())
		if err != nil {
			t.Fatalf("parse %s: %v", a, err)
		}
		if parsed != a {
			t.Errorf("round trip %s → %s", a, parsed)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, s := range []string{"", "-1", "1.5", "18446744073709551616", "abc"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("expected error parsing %q", s)
		}
	}
}

func TestAmount_TextMarshal(t *testing.T) {
	text, err := MaxAmount.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(text) != "18446744073709551615" {
		t.Errorf("unexpected text: %s", text)
	}

	var a Amount
	if err := a.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a != MaxAmount {
		t.Errorf("expected MaxAmount, got %s", a)
	}
}
