package poc

import "testing"

func TestParsePlotNameRoundTrip(t *testing.T) {
	name := "123_0_65536"
	m, err := ParsePlotName(name)
	if err != nil {
		t.Fatal(err)
	}
	if m.FileName() != name {
		t.Fatalf("round trip mismatch: got %q, want %q", m.FileName(), name)
	}
	if m.AccountID != 123 || m.StartNonce != 0 || m.Nonces != 65536 {
		t.Fatalf("unexpected fields: %+v", m)
	}
}

func TestParsePlotNameRejectsBadShape(t *testing.T) {
	cases := []string{"123_0", "123_0_1_2", "abc_0_1", "123_abc_1", "123_0_abc", ""}
	for _, c := range cases {
		if _, err := ParsePlotName(c); err == nil {
			t.Errorf("expected error parsing %q", c)
		}
	}
}

func TestMetaExpectedSize(t *testing.T) {
	m := Meta{Nonces: 4}
	want := uint64(4 * NonceSize)
	if got := m.ExpectedSize(); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestMetaOverlapsWith(t *testing.T) {
	a := Meta{AccountID: 42, StartNonce: 0, Nonces: 1000}
	b := Meta{AccountID: 42, StartNonce: 500, Nonces: 1000}
	c := Meta{AccountID: 42, StartNonce: 1000, Nonces: 1000}

	if !a.OverlapsWith(b) {
		t.Error("expected a and b to overlap")
	}
	if a.OverlapsWith(c) {
		t.Error("did not expect a and c to overlap (adjacent ranges)")
	}
}
