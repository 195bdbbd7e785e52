package exchange

import "testing"

func TestSideOpposite(t *testing.T) {
	if got := SideBuy.Opposite(); got != SideSell {
		t.Fatalf("BUY opposite = %s", got)
	}
	if got := SideSell.Opposite(); got != SideBuy {
		t.Fatalf("SELL opposite = %s", got)
	}
}

func TestPositionSide(t *testing.T) {
	long := &Position{Quantity: 2.5}
	if long.Side() != SideBuy {
		t.Fatalf("long side = %s", long.Side())
	}
	short := &Position{Quantity: -0.3}
	if short.Side() != SideSell {
		t.Fatalf("short side = %s", short.Side())
	}
	if short.Side().Opposite() != SideBuy {
		t.Fatal("closing a short must buy")
	}
}

func TestOrderFilledClosed(t *testing.T) {
	cases := []struct {
		status string
		filled bool
		closed bool
	}{
		{"NEW", false, false},
		{"PARTIALLY_FILLED", false, false},
		{"FILLED", true, true},
		{"CANCELED", false, true},
		{"EXPIRED", false, true},
	}
	for _, c := range cases {
		o := &Order{Status: c.status}
		if o.Filled() != c.filled {
			t.Errorf("%s: Filled() = %v", c.status, o.Filled())
		}
		if o.Closed() != c.closed {
			t.Errorf("%s: Closed() = %v", c.status, o.Closed())
		}
	}
}
