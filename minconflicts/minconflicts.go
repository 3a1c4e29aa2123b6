package minconflicts

import (
	"errors"
	"log"
	"math/rand"
	"strings"
	"time"
)

// RandomSource provides the randomness the search depends on: uniform
// permutations for restart boards and uniform choices for tie-breaking.
// Injecting it makes runs reproducible under a fixed seed.
type RandomSource interface {
	Perm(n int) []int
	Intn(n int) int
}

// StandardRandomSource provides standard Go random number generation.
type StandardRandomSource struct {
	rng *rand.Rand
}

// NewStandardRandomSource creates a random source seeded with the given seed.
func NewStandardRandomSource(seed int64) *StandardRandomSource {
	return &StandardRandomSource{rng: rand.New(rand.NewSource(seed))}
}

// Perm returns a uniform random permutation of {0, ..., n-1}.
func (s *StandardRandomSource) Perm(n int) []int {
	return s.rng.Perm(n)
}

// Intn returns a uniform random integer in [0, n).
func (s *StandardRandomSource) Intn(n int) int {
	return s.rng.Intn(n)
}

// Config contains configuration for the search engine.
type Config struct {
	MaxIterations int          // iteration budget per restart
	MaxRestarts   int          // restart budget per solve
	RandomSeed    int64        // used when RandomSource is nil
	RandomSource  RandomSource // overrides RandomSeed when set
	LogProgress   bool
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 10000,
		MaxRestarts:   100,
		RandomSeed:    time.Now().UnixNano(),
	}
}

// Result contains the outcome of a solve call. When Success is false, Board
// is nil and the budgets were exhausted without finding a solution; this is a
// normal outcome for unsatisfiable sizes such as n=2 and n=3.
type Result struct {
	Board      []int
	Iterations int
	Restarts   int
	Success    bool
}

// SearchEngine solves N-Queens by randomized hill-climbing over permutations
// with restarts. Each iteration it selects one of the most-conflicted queens,
// evaluates every swap partner by probing the swap and reverting it, and
// commits the best swap. Each restart discards the previous board entirely.
//
// An engine is single-threaded; independent solve calls on separately seeded
// engines may run concurrently with no shared state.
type SearchEngine struct {
	config Config
	random RandomSource

	// scratch buffers reused across iterations
	candidates []int
	partners   []int
}

// NewSearchEngine creates a search engine from the given configuration.
func NewSearchEngine(config Config) (*SearchEngine, error) {
	if config.MaxIterations <= 0 {
		return nil, errors.New("max iterations must be positive")
	}

	if config.MaxRestarts <= 0 {
		return nil, errors.New("max restarts must be positive")
	}

	random := config.RandomSource
	if random == nil {
		seed := config.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		random = NewStandardRandomSource(seed)
	}

	return &SearchEngine{
		config: config,
		random: random,
	}, nil
}

// Solve searches for a zero-conflict placement of n queens. It returns
// ErrInvalidSize for n < 1. Budget exhaustion is not an error: the result
// reports Success == false with MaxIterations*MaxRestarts iterations used.
func (e *SearchEngine) Solve(n int) (*Result, error) {
	if n < 1 {
		return nil, ErrInvalidSize
	}

	for restart := 1; restart <= e.config.MaxRestarts; restart++ {
		board, err := NewBoardState(n, e.random)
		if err != nil {
			return nil, err
		}

		for iteration := 1; iteration <= e.config.MaxIterations; iteration++ {
			if board.TotalConflicts() == 0 {
				return &Result{
					Board:      board.Board(),
					Iterations: (restart-1)*e.config.MaxIterations + iteration,
					Restarts:   restart,
					Success:    true,
				}, nil
			}

			row, ok := e.selectMostConflicted(board)
			if !ok {
				// No queen reports conflicts even though the total is
				// positive. Burn the iteration instead of failing so the
				// budget still bounds the work.
				continue
			}

			partner, ok := e.selectBestPartner(board, row)
			if !ok {
				continue
			}

			board.Swap(row, partner)
		}

		if e.config.LogProgress {
			log.Printf("restart %d/%d: %d conflicts after %d iterations",
				restart, e.config.MaxRestarts, board.TotalConflicts(), e.config.MaxIterations)
		}
	}

	return &Result{
		Iterations: e.config.MaxIterations * e.config.MaxRestarts,
		Restarts:   e.config.MaxRestarts,
		Success:    false,
	}, nil
}

// selectMostConflicted returns a uniformly chosen row among those whose queen
// has the maximum number of conflicts. ok is false when every queen is
// conflict-free.
func (e *SearchEngine) selectMostConflicted(board *BoardState) (row int, ok bool) {
	maxConflicts := 0
	e.candidates = e.candidates[:0]

	for r := 0; r < board.Size(); r++ {
		conflicts := board.ConflictsForQueen(r)
		if conflicts > maxConflicts {
			maxConflicts = conflicts
			e.candidates = append(e.candidates[:0], r)
		} else if conflicts == maxConflicts && maxConflicts > 0 {
			e.candidates = append(e.candidates, r)
		}
	}

	if maxConflicts == 0 {
		return 0, false
	}

	return e.candidates[e.random.Intn(len(e.candidates))], true
}

// selectBestPartner evaluates every candidate partner row for a swap with
// row. Each candidate is probed by performing the swap, reading the conflicts
// of exactly the two moved queens, and swapping back, so the whole evaluation
// is O(n) rather than O(n^2). Ties are broken uniformly at random. ok is
// false only when the board has a single row.
func (e *SearchEngine) selectBestPartner(board *BoardState, row int) (partner int, ok bool) {
	minCost := -1
	e.partners = e.partners[:0]

	for other := 0; other < board.Size(); other++ {
		if other == row {
			continue
		}

		board.Swap(row, other)
		cost := board.ConflictsForQueen(row) + board.ConflictsForQueen(other)
		board.Swap(row, other)

		if minCost < 0 || cost < minCost {
			minCost = cost
			e.partners = append(e.partners[:0], other)
		} else if cost == minCost {
			e.partners = append(e.partners, other)
		}
	}

	if len(e.partners) == 0 {
		return 0, false
	}

	return e.partners[e.random.Intn(len(e.partners))], true
}

// Solve searches for a zero-conflict placement of n queens using the default
// configuration.
func Solve(n int) (*Result, error) {
	engine, err := NewSearchEngine(DefaultConfig())
	if err != nil {
		return nil, err
	}
	return engine.Solve(n)
}

// PairwiseConflicts counts attacking queen pairs by scanning all pairs
// directly. It is the O(n^2) reference scorer: the engine never calls it, but
// tests and callers use it to cross-check the incremental counters.
func PairwiseConflicts(board []int) int {
	conflicts := 0
	for i := 0; i < len(board); i++ {
		for j := i + 1; j < len(board); j++ {
			rowDiff := j - i
			colDiff := board[i] - board[j]
			if colDiff < 0 {
				colDiff = -colDiff
			}
			if colDiff == rowDiff {
				conflicts++
			}
		}
	}
	return conflicts
}

// IsSolution reports whether board is a valid permutation with no attacking
// pairs.
func IsSolution(board []int) bool {
	n := len(board)
	if n == 0 {
		return false
	}

	seen := make([]bool, n)
	for _, col := range board {
		if col < 0 || col >= n || seen[col] {
			return false
		}
		seen[col] = true
	}

	return PairwiseConflicts(board) == 0
}

// FormatBoard renders a board as an ASCII grid with Q for queens and . for
// empty cells, one row per line.
func FormatBoard(board []int) string {
	if len(board) == 0 {
		return "No solution found\n"
	}

	var sb strings.Builder
	n := len(board)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			if board[row] == col {
				sb.WriteString("Q ")
			} else {
				sb.WriteString(". ")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
