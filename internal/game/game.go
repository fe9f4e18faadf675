package game

// PlayerMark represents the mark of a seat (X for the first seat, O for the second) or an empty cell.
type PlayerMark string

const (
	// Player marks
	None    PlayerMark = ""
	PlayerX PlayerMark = "X"
	PlayerO PlayerMark = "O"

	// BoardSize is the number of cells on the board.
	BoardSize = 9
)

// WinLines holds the 8 index triples that complete a line: 3 rows, 3 columns, 2 diagonals.
var WinLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Outcome is the result of evaluating a board right after a move.
type Outcome int

const (
	Continue Outcome = iota
	Win
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "continue"
	}
}

// Board is the 3x3 grid stored row-major.
type Board [BoardSize]PlayerMark

// InBounds reports whether cell is a valid index.
func InBounds(cell int) bool {
	return cell >= 0 && cell < BoardSize
}

// HasLine reports whether mark fills any win line.
func (b *Board) HasLine(mark PlayerMark) bool {
	if mark == None {
		return false
	}
	for _, line := range WinLines {
		if b[line[0]] == mark && b[line[1]] == mark && b[line[2]] == mark {
			return true
		}
	}
	return false
}

// IsFull reports whether every cell is occupied.
func (b *Board) IsFull() bool {
	for _, cell := range b {
		if cell == None {
			return false
		}
	}
	return true
}

// Evaluate decides the outcome after mover has placed a mark. A win is checked before a full board,
// so a ninth move that completes a line is a win, not a draw.
func (b *Board) Evaluate(mover PlayerMark) Outcome {
	if b.HasLine(mover) {
		return Win
	}
	if b.IsFull() {
		return Draw
	}
	return Continue
}

// Reset clears every cell.
func (b *Board) Reset() {
	*b = Board{}
}
