package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5000, 0, 4095); got != 4095 {
		t.Fatalf("Clamp high = %d", got)
	}
	if got := Clamp(-3, 0, 10); got != 0 {
		t.Fatalf("Clamp low = %d", got)
	}
	if got := Clamp(uint16(7), 0, 10); got != 7 {
		t.Fatalf("Clamp inside = %d", got)
	}
}

func TestRoundDiv(t *testing.T) {
	cases := []struct{ a, b, want uint32 }{
		{0, 4095, 0},
		{4095 * 3300, 4095, 3300},
		{2048 * 3300, 4095, 1650},
		{5, 10, 1},
		{4, 10, 0},
		{7, 0, 0},
	}
	for _, c := range cases {
		if got := RoundDiv(c.a, c.b); got != c.want {
			t.Fatalf("RoundDiv(%d,%d) = %d want %d", c.a, c.b, got, c.want)
		}
	}
}
