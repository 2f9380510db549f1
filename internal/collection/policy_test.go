package collection

import "testing"

func TestDecide(t *testing.T) {
	cases := []struct {
		exists bool
		policy Policy
		want   Decision
	}{
		{false, Always, Rebuild},
		{true, Always, Rebuild},
		{false, Never, NoIndex},
		{true, Never, Keep},
		{false, Nocheck, Rebuild},
		{true, Nocheck, Keep},
		{false, Test, Rebuild},
		{true, Test, Verify},
	}
	for _, c := range cases {
		if got := Decide(c.exists, c.policy); got != c.want {
			t.Errorf("Decide(%v, %s) = %s, want %s", c.exists, c.policy, got, c.want)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(" TEST ")
	if err != nil || p != Test {
		t.Errorf("ParsePolicy = %q, %v", p, err)
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestDecisionText(t *testing.T) {
	for _, d := range []Decision{Keep, Rebuild, Verify, NoIndex} {
		b, err := d.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got Decision
		if err := got.UnmarshalText(b); err != nil || got != d {
			t.Errorf("UnmarshalText(%q) = %v, %v", b, got, err)
		}
	}
	var d Decision
	if err := d.UnmarshalText([]byte("maybe")); err == nil {
		t.Error("expected error for unknown decision")
	}
}
