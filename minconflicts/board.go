package minconflicts

import "errors"

// ErrInvalidSize is returned when a board size below 1 is requested.
var ErrInvalidSize = errors.New("board size must be at least 1")

// BoardState represents an N-Queens board as a permutation with incremental
// diagonal conflict bookkeeping. board[row] holds the column of the queen in
// that row; because the values form a permutation, row and column conflicts
// are impossible and only diagonal attacks have to be tracked.
//
// Two frequency counters of length 2n-1 hold, per diagonal and anti-diagonal,
// the number of queens currently on that line. A queen at (row, col) sits on
// diagonal row-col+n-1 and anti-diagonal row+col. This makes conflict queries
// O(1) and a swap of two queens O(1).
type BoardState struct {
	n        int
	board    []int
	diag     []int // indexed by row-col+n-1
	antidiag []int // indexed by row+col
}

// NewBoardState builds a board from a fresh random permutation drawn from the
// given source and initializes both counters in a single pass.
func NewBoardState(n int, random RandomSource) (*BoardState, error) {
	if n < 1 {
		return nil, ErrInvalidSize
	}
	return newBoardStateFromPermutation(random.Perm(n)), nil
}

// newBoardStateFromPermutation wraps an existing permutation without copying
// it. The caller hands over ownership of the slice.
func newBoardStateFromPermutation(perm []int) *BoardState {
	n := len(perm)
	b := &BoardState{
		n:        n,
		board:    perm,
		diag:     make([]int, 2*n-1),
		antidiag: make([]int, 2*n-1),
	}

	for row, col := range b.board {
		b.diag[row-col+n-1]++
		b.antidiag[row+col]++
	}

	return b
}

// Size returns the board dimension n.
func (b *BoardState) Size() int {
	return b.n
}

// Column returns the column of the queen in the given row.
func (b *BoardState) Column(row int) int {
	return b.board[row]
}

// Board returns a copy of the current permutation.
func (b *BoardState) Board() []int {
	board := make([]int, b.n)
	copy(board, b.board)
	return board
}

// ConflictsAt returns the number of queens attacking position (row, col).
// The queen occupying that cell is not counted against itself, hence the -1
// per counter. col does not have to match the queen currently in row; the
// search uses this to read the conflicts of the two queens just moved by a
// probe swap.
func (b *BoardState) ConflictsAt(row, col int) int {
	conflicts := (b.diag[row-col+b.n-1] - 1) + (b.antidiag[row+col] - 1)
	if conflicts < 0 {
		conflicts = 0
	}
	return conflicts
}

// ConflictsForQueen returns the conflicts of the queen currently in row.
func (b *BoardState) ConflictsForQueen(row int) int {
	return b.ConflictsAt(row, b.board[row])
}

// TotalConflicts returns the number of attacking queen pairs on the board.
// A diagonal holding c queens contributes c*(c-1)/2 pairs. This is an O(n)
// scan over the counters and is used only for the terminal check, never for
// move selection.
func (b *BoardState) TotalConflicts() int {
	total := 0
	for _, c := range b.diag {
		total += c * (c - 1) / 2
	}
	for _, c := range b.antidiag {
		total += c * (c - 1) / 2
	}
	return total
}

// Swap exchanges the columns of the queens in row1 and row2 and updates both
// counters. Swapping the same pair twice restores the exact prior state; the
// search relies on this to probe candidate moves and revert them without
// copying the board. Swapping a row with itself is a no-op.
func (b *BoardState) Swap(row1, row2 int) {
	if row1 == row2 {
		return
	}

	n := b.n
	col1 := b.board[row1]
	col2 := b.board[row2]

	b.diag[row1-col1+n-1]--
	b.antidiag[row1+col1]--
	b.diag[row2-col2+n-1]--
	b.antidiag[row2+col2]--

	b.board[row1] = col2
	b.board[row2] = col1

	b.diag[row1-col2+n-1]++
	b.antidiag[row1+col2]++
	b.diag[row2-col1+n-1]++
	b.antidiag[row2+col1]++
}
