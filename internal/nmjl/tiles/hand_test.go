package tiles

import "testing"

func TestNewHand(t *testing.T) {
	h, err := NewHand([]string{"1D", "1d", "E", "joker", "f2", "F"})
	if err != nil {
		t.Fatalf("NewHand: %v", err)
	}
	if h.Size() != 6 {
		t.Errorf("Size = %d, want 6", h.Size())
	}
	if h.Count("1D") != 2 {
		t.Errorf("Count(1D) = %d, want 2", h.Count("1D"))
	}
	if h.Count(Flower) != 2 {
		t.Errorf("Count(flower) = %d, want 2", h.Count(Flower))
	}
	if h.Jokers() != 1 {
		t.Errorf("Jokers = %d, want 1", h.Jokers())
	}

	if _, err := NewHand([]string{"1D", "XX"}); err == nil {
		t.Error("expected error for unknown tile")
	}
}

func TestHandSignature(t *testing.T) {
	a := MustHand("5B", "1D", "joker", "1D", "east")
	b := MustHand("east", "1D", "5B", "1D", "J")

	if a.Signature() != b.Signature() {
		t.Errorf("signatures differ: %s vs %s", a.Signature(), b.Signature())
	}
	if want := "1D:2,5B:1,east:1,joker:1"; a.Signature() != want {
		t.Errorf("Signature = %s, want %s", a.Signature(), want)
	}

	c := MustHand("5B", "1D", "joker", "1D")
	if a.Signature() == c.Signature() {
		t.Error("different hands should have different signatures")
	}
}

func TestHandImmutability(t *testing.T) {
	h := MustHand("1D", "2D")
	added := h.With("3D")
	if h.Size() != 2 || added.Size() != 3 {
		t.Fatalf("With mutated receiver: %d / %d", h.Size(), added.Size())
	}

	removed, err := added.Without("1D")
	if err != nil {
		t.Fatalf("Without: %v", err)
	}
	if removed.Count("1D") != 0 || added.Count("1D") != 1 {
		t.Error("Without mutated receiver")
	}
	if _, err := removed.Without("1D"); err == nil {
		t.Error("expected error removing a tile not held")
	}

	counts := h.Counts()
	counts["1D"] = 10
	if h.Count("1D") != 1 {
		t.Error("Counts should return a copy")
	}
}

func TestHandTilesOrdered(t *testing.T) {
	h := MustHand("joker", "north", "9C", "1D", "1D")
	got := h.Tiles()
	want := []string{"1D", "1D", "9C", "north", "joker"}
	if len(got) != len(want) {
		t.Fatalf("Tiles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tiles[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	natural := h.NaturalCounts()
	if _, ok := natural[Joker]; ok {
		t.Error("NaturalCounts should drop jokers")
	}
}

func TestParseHand(t *testing.T) {
	h, bad := ParseHand([]string{"1D", "zz", "E", "9X", "joker"})
	if h.Size() != 3 {
		t.Errorf("Size() = %d, want 3", h.Size())
	}
	if h.Count(East) != 1 || h.Jokers() != 1 {
		t.Errorf("hand = %s", h)
	}
	if len(bad) != 2 || bad[0] != "zz" || bad[1] != "9X" {
		t.Errorf("unrecognized = %v, want [zz 9X]", bad)
	}
}
