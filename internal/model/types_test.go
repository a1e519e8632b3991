package model

import "testing"

func TestGridShapeRowMajorOrder(t *testing.T) {
	g := GridShape{Cols: 3, Rows: 2}
	want := []SubwindowCoord{
		{0, 0}, {1, 0}, {2, 0},
		{0, 1}, {1, 1}, {2, 1},
	}
	if g.Count() != len(want) {
		t.Fatalf("expected %d subwindows, got %d", len(want), g.Count())
	}
	for i, w := range want {
		if got := g.At(i); got != w {
			t.Fatalf("At(%d): expected %s, got %s", i, w, got)
		}
	}
}

func TestGridShapeContains(t *testing.T) {
	g := GridShape{Cols: 2, Rows: 2}
	cases := []struct {
		ix, iy int
		want   bool
	}{
		{0, 0, true},
		{1, 1, true},
		{2, 0, false},
		{0, 2, false},
		{-1, 0, false},
		{0, -1, false},
	}
	for _, c := range cases {
		if got := g.Contains(c.ix, c.iy); got != c.want {
			t.Fatalf("Contains(%d,%d): expected %v, got %v", c.ix, c.iy, c.want, got)
		}
	}
}

func TestGridShapeString(t *testing.T) {
	if s := (GridShape{Cols: 2, Rows: 2}).String(); s != "2x2" {
		t.Fatalf("expected 2x2, got %s", s)
	}
	if s := (SubwindowCoord{IX: 0, IY: 5}).String(); s != "(0,5)" {
		t.Fatalf("expected (0,5), got %s", s)
	}
}

func TestGridShapeDegenerateCount(t *testing.T) {
	if c := (GridShape{Cols: 0, Rows: 5}).Count(); c != 0 {
		t.Fatalf("expected 0, got %d", c)
	}
}
