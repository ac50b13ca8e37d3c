package game

import "testing"

func TestWinnerAtAllAxes(t *testing.T) {
	dirs := []struct {
		name   string
		dr, dc int
	}{
		{"horizontal", 0, 1},
		{"vertical", 1, 0},
		{"diagonal", 1, 1},
		{"anti-diagonal", 1, -1},
	}
	for _, dir := range dirs {
		t.Run(dir.name, func(t *testing.T) {
			b := NewBoard()
			row, col := 10, 10
			for i := 0; i < WinLength; i++ {
				b.Set(row+dir.dr*i, col+dir.dc*i, OwnerMark)
			}
			// Check from a mid-run cell, not just the endpoint.
			if got := b.WinnerAt(row+dir.dr*2, col+dir.dc*2); got != OwnerMark {
				t.Fatalf("WinnerAt = %v, want owner", got)
			}
		})
	}
}

func TestWinnerAtFourIsNotAWin(t *testing.T) {
	b := NewBoard()
	for i := 0; i < WinLength-1; i++ {
		b.Set(5, 5+i, OpponentMark)
	}
	if got := b.WinnerAt(5, 6); got != Empty {
		t.Fatalf("WinnerAt = %v, want empty for a run of four", got)
	}
}

func TestWinnerAtBrokenRun(t *testing.T) {
	b := NewBoard()
	b.Set(0, 0, OwnerMark)
	b.Set(0, 1, OwnerMark)
	b.Set(0, 2, OpponentMark)
	b.Set(0, 3, OwnerMark)
	b.Set(0, 4, OwnerMark)
	b.Set(0, 5, OwnerMark)
	if got := b.WinnerAt(0, 1); got != Empty {
		t.Fatalf("WinnerAt = %v, want empty across a broken run", got)
	}
}

func TestWinnerAtEdge(t *testing.T) {
	b := NewBoard()
	for i := 0; i < WinLength; i++ {
		b.Set(0, i, OwnerMark)
	}
	if got := b.WinnerAt(0, 0); got != OwnerMark {
		t.Fatalf("WinnerAt at the edge = %v, want owner", got)
	}
}

func TestBoardFromIntsWrongLength(t *testing.T) {
	b := BoardFromInts([]int{1, 2, 0})
	if len(b) != CellCount {
		t.Fatalf("len = %d, want %d", len(b), CellCount)
	}
	for i, m := range b {
		if m != Empty {
			t.Fatalf("cell %d = %v, want empty board for bad snapshot", i, m)
		}
	}
}

func TestMarkOther(t *testing.T) {
	if OwnerMark.Other() != OpponentMark || OpponentMark.Other() != OwnerMark {
		t.Fatal("Other() must swap marks")
	}
	if Empty.Other() != Empty {
		t.Fatal("Other() of empty must stay empty")
	}
}

func TestParseMark(t *testing.T) {
	if ParseMark("owner") != OwnerMark || ParseMark("opponent") != OpponentMark {
		t.Fatal("ParseMark mismatch")
	}
	if ParseMark("referee") != Empty {
		t.Fatal("unknown player must map to empty")
	}
}
