package game

const (
	Rows      = 20
	Cols      = 20
	CellCount = Rows * Cols
	WinLength = 5
)

type Mark uint8

const (
	Empty Mark = iota
	OwnerMark
	OpponentMark
)

func (m Mark) String() string {
	switch m {
	case OwnerMark:
		return "owner"
	case OpponentMark:
		return "opponent"
	}
	return "empty"
}

// ParseMark maps a wire player value to a mark; unknown values map to Empty.
func ParseMark(s string) Mark {
	switch s {
	case "owner":
		return OwnerMark
	case "opponent":
		return OpponentMark
	}
	return Empty
}

// Other returns the opposing mark; Empty maps to itself.
func (m Mark) Other() Mark {
	switch m {
	case OwnerMark:
		return OpponentMark
	case OpponentMark:
		return OwnerMark
	}
	return Empty
}

// Board is the flattened fixed-size grid mirror. Its length never changes
// after creation.
type Board []Mark

func NewBoard() Board {
	return make(Board, CellCount)
}

// BoardFromInts rebuilds a board from the wire representation. A snapshot of
// the wrong length is ignored in favor of an empty board.
func BoardFromInts(cells []int) Board {
	b := NewBoard()
	if len(cells) != CellCount {
		return b
	}
	for i, v := range cells {
		if v == int(OwnerMark) || v == int(OpponentMark) {
			b[i] = Mark(v)
		}
	}
	return b
}

func (b Board) Ints() []int {
	out := make([]int, len(b))
	for i, m := range b {
		out[i] = int(m)
	}
	return out
}

func Index(row, col int) int { return row*Cols + col }

func InBounds(row, col int) bool {
	return row >= 0 && row < Rows && col >= 0 && col < Cols
}

func (b Board) At(row, col int) Mark {
	return b[Index(row, col)]
}

func (b Board) Set(row, col int, m Mark) {
	b[Index(row, col)] = m
}

func (b Board) Clone() Board {
	out := make(Board, len(b))
	copy(out, b)
	return out
}

func (b Board) IsFull() bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

var axes = [4][2]int{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal
	{1, -1}, // anti-diagonal
}

// WinnerAt checks whether the mark at (row, col) completes a run of five
// along any axis through that cell. The local check is advisory; the server's
// judgment always wins on conflict.
func (b Board) WinnerAt(row, col int) Mark {
	mark := b.At(row, col)
	if mark == Empty {
		return Empty
	}
	for _, axis := range axes {
		count := 1
		for _, dir := range [2]int{1, -1} {
			r, c := row+axis[0]*dir, col+axis[1]*dir
			for InBounds(r, c) && b.At(r, c) == mark {
				count++
				r += axis[0] * dir
				c += axis[1] * dir
			}
		}
		if count >= WinLength {
			return mark
		}
	}
	return Empty
}
