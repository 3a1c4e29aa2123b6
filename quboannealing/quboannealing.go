// Package quboannealing solves N-Queens through a QUBO formulation: the board
// becomes n*n binary variables in a one-hot encoding, the constraints become
// quadratic penalty terms, and a simulated annealer searches for a
// zero-energy assignment. It exists as an alternative strategy to the
// permutation-based local search in the minconflicts package and shares no
// state with it.
package quboannealing

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// DefaultPenaltyWeight is the penalty coefficient applied to every violated
// constraint term.
const DefaultPenaltyWeight = 10.0

// QUBO holds the quadratic model for an n*n one-hot N-Queens encoding.
// Variable v = row*n + col is 1 when a queen stands at (row, col). Q is upper
// triangular including the diagonal (linear terms), and Offset is the
// constant contributed by the squared exactly-one penalties, so a valid
// solution has energy exactly zero.
type QUBO struct {
	N      int
	Weight float64
	Q      [][]float64
	Offset float64
}

// BuildQUBO constructs the quadratic model for board size n.
//
// Row and column constraints are squared exactly-one penalties
// w*(sum - 1)^2; expanding them puts -2w on each variable's linear term
// (once for its row, once for its column), 2w on each same-row and
// same-column pair, and a constant w per row and per column. Diagonals and
// anti-diagonals are at-most-one constraints encoded as a penalty w on every
// variable pair sharing the line.
func BuildQUBO(n int, penaltyWeight float64) (*QUBO, error) {
	if n < 1 {
		return nil, errors.New("board size must be at least 1")
	}

	if penaltyWeight <= 0 {
		penaltyWeight = DefaultPenaltyWeight
	}

	numVars := n * n
	q := make([][]float64, numVars)
	for i := range q {
		q[i] = make([]float64, numVars)
	}

	w := penaltyWeight

	for v := 0; v < numVars; v++ {
		q[v][v] = -2 * w
	}

	for v1 := 0; v1 < numVars; v1++ {
		r1, c1 := v1/n, v1%n
		for v2 := v1 + 1; v2 < numVars; v2++ {
			r2, c2 := v2/n, v2%n

			if r1 == r2 || c1 == c2 {
				q[v1][v2] += 2 * w
			}
			if r1 != r2 && r1-c1 == r2-c2 {
				q[v1][v2] += w
			}
			if r1 != r2 && r1+c1 == r2+c2 {
				q[v1][v2] += w
			}
		}
	}

	return &QUBO{
		N:      n,
		Weight: w,
		Q:      q,
		Offset: 2 * float64(n) * w,
	}, nil
}

// Energy evaluates the model on a binary assignment of length N*N.
func (m *QUBO) Energy(bits []int) float64 {
	energy := m.Offset
	for v1 := 0; v1 < len(bits); v1++ {
		if bits[v1] == 0 {
			continue
		}
		energy += m.Q[v1][v1]
		for v2 := v1 + 1; v2 < len(bits); v2++ {
			if bits[v2] == 1 {
				energy += m.Q[v1][v2]
			}
		}
	}
	return energy
}

// Config contains configuration for the annealer.
type Config struct {
	PenaltyWeight      float64
	InitialTemperature float64
	FinalTemperature   float64
	CoolingRate        float64
	MaxIterations      int // flip attempts per restart
	MaxRestarts        int
	RandomSeed         int64
}

// DefaultConfig returns the default annealing configuration.
func DefaultConfig() Config {
	return Config{
		PenaltyWeight:      DefaultPenaltyWeight,
		InitialTemperature: 50.0,
		FinalTemperature:   0.05,
		CoolingRate:        0.9999,
		MaxIterations:      100000,
		MaxRestarts:        20,
		RandomSeed:         time.Now().UnixNano(),
	}
}

// Result contains the outcome of an annealing run. Board is the n*n binary
// grid of the best assignment found. Assignment maps row to column and is
// only set when Valid is true.
type Result struct {
	Board      [][]int
	Assignment []int
	Energy     float64
	Iterations int
	Restarts   int
	Valid      bool
}

// Annealer searches a QUBO energy landscape with single-bit-flip moves and a
// Metropolis acceptance criterion under an exponential cooling schedule.
type Annealer struct {
	config Config
	random *rand.Rand
}

// NewAnnealer creates an annealer from the given configuration.
func NewAnnealer(config Config) (*Annealer, error) {
	if config.MaxIterations <= 0 {
		return nil, errors.New("max iterations must be positive")
	}

	if config.MaxRestarts <= 0 {
		return nil, errors.New("max restarts must be positive")
	}

	if config.CoolingRate <= 0 || config.CoolingRate >= 1 {
		return nil, errors.New("cooling rate must be in (0, 1)")
	}

	if config.InitialTemperature <= config.FinalTemperature {
		return nil, errors.New("initial temperature must be greater than final temperature")
	}

	if config.PenaltyWeight <= 0 {
		config.PenaltyWeight = DefaultPenaltyWeight
	}

	if config.RandomSeed == 0 {
		config.RandomSeed = time.Now().UnixNano()
	}

	return &Annealer{
		config: config,
		random: rand.New(rand.NewSource(config.RandomSeed)),
	}, nil
}

// annealState tracks a binary assignment together with per-line occupancy
// counts, so a bit flip costs O(1) to evaluate and apply. Its energy function
// is algebraically identical to QUBO.Energy on the same assignment.
type annealState struct {
	n        int
	w        float64
	bits     []int
	rowCount []int
	colCount []int
	diag     []int // indexed by row-col+n-1
	antidiag []int // indexed by row+col
}

func newAnnealState(n int, w float64, random *rand.Rand) *annealState {
	s := &annealState{
		n:        n,
		w:        w,
		bits:     make([]int, n*n),
		rowCount: make([]int, n),
		colCount: make([]int, n),
		diag:     make([]int, 2*n-1),
		antidiag: make([]int, 2*n-1),
	}

	// Start from n queens dropped on distinct random cells.
	for _, v := range random.Perm(n * n)[:n] {
		s.set(v/n, v%n, 1)
	}

	return s
}

func (s *annealState) set(row, col, value int) {
	v := row*s.n + col
	if s.bits[v] == value {
		return
	}
	delta := 2*value - 1 // +1 on set, -1 on clear
	s.bits[v] = value
	s.rowCount[row] += delta
	s.colCount[col] += delta
	s.diag[row-col+s.n-1] += delta
	s.antidiag[row+col] += delta
}

// energy is the QUBO objective expressed through the occupancy counts:
// squared exactly-one penalties for rows and columns, pairwise penalties for
// both diagonal families.
func (s *annealState) energy() float64 {
	var exactOne, pairs float64
	for i := 0; i < s.n; i++ {
		r := float64(s.rowCount[i] - 1)
		c := float64(s.colCount[i] - 1)
		exactOne += r*r + c*c
	}
	for _, k := range s.diag {
		pairs += float64(k * (k - 1) / 2)
	}
	for _, k := range s.antidiag {
		pairs += float64(k * (k - 1) / 2)
	}
	return s.w * (exactOne + pairs)
}

// flipDelta returns the energy change of flipping the bit at (row, col)
// without applying it.
func (s *annealState) flipDelta(row, col int) float64 {
	v := row*s.n + col
	sign := 1
	if s.bits[v] == 1 {
		sign = -1
	}

	lineTerm := func(count int) float64 {
		before := float64(count - 1)
		after := float64(count + sign - 1)
		return after*after - before*before
	}
	pairTerm := func(count int) float64 {
		after := count + sign
		return float64(after*(after-1)/2 - count*(count-1)/2)
	}

	delta := lineTerm(s.rowCount[row]) + lineTerm(s.colCount[col]) +
		pairTerm(s.diag[row-col+s.n-1]) + pairTerm(s.antidiag[row+col])
	return s.w * delta
}

func (s *annealState) flip(row, col int) {
	v := row*s.n + col
	s.set(row, col, 1-s.bits[v])
}

func (s *annealState) board() [][]int {
	board := make([][]int, s.n)
	for row := 0; row < s.n; row++ {
		board[row] = make([]int, s.n)
		for col := 0; col < s.n; col++ {
			board[row][col] = s.bits[row*s.n+col]
		}
	}
	return board
}

// Solve anneals toward a zero-energy assignment for board size n. Budget
// exhaustion is a normal outcome: the result then carries the best assignment
// seen with Valid reporting whether it satisfies every constraint.
func (a *Annealer) Solve(size int) (*Result, error) {
	if size < 1 {
		return nil, errors.New("board size must be at least 1")
	}

	var best [][]int
	bestEnergy := math.Inf(1)
	iterations := 0

	for restart := 1; restart <= a.config.MaxRestarts; restart++ {
		state := newAnnealState(size, a.config.PenaltyWeight, a.random)
		energy := state.energy()
		temperature := a.config.InitialTemperature

		for iteration := 0; iteration < a.config.MaxIterations; iteration++ {
			iterations++

			if energy < bestEnergy {
				bestEnergy = energy
				best = state.board()
			}

			if energy == 0 {
				return a.result(best, bestEnergy, iterations, restart), nil
			}

			row := a.random.Intn(size)
			col := a.random.Intn(size)
			delta := state.flipDelta(row, col)

			if delta <= 0 || a.random.Float64() < math.Exp(-delta/temperature) {
				state.flip(row, col)
				energy += delta
			}

			temperature *= a.config.CoolingRate
			if temperature < a.config.FinalTemperature {
				temperature = a.config.FinalTemperature
			}
		}

		if energy < bestEnergy {
			bestEnergy = energy
			best = state.board()
		}
		if bestEnergy == 0 {
			return a.result(best, bestEnergy, iterations, restart), nil
		}
	}

	return a.result(best, bestEnergy, iterations, a.config.MaxRestarts), nil
}

func (a *Annealer) result(board [][]int, energy float64, iterations, restarts int) *Result {
	result := &Result{
		Board:      board,
		Energy:     energy,
		Iterations: iterations,
		Restarts:   restarts,
		Valid:      board != nil && ValidateBoard(board),
	}

	if result.Valid {
		n := len(board)
		result.Assignment = make([]int, n)
		for row := 0; row < n; row++ {
			for col := 0; col < n; col++ {
				if board[row][col] == 1 {
					result.Assignment[row] = col
				}
			}
		}
	}

	return result
}

// Solve anneals toward a solution for board size n using the default
// configuration.
func Solve(n int) (*Result, error) {
	annealer, err := NewAnnealer(DefaultConfig())
	if err != nil {
		return nil, err
	}
	return annealer.Solve(n)
}

// ValidateBoard checks an n*n binary board against every N-Queens constraint:
// n queens total, exactly one per row and per column, at most one per
// diagonal and anti-diagonal.
func ValidateBoard(board [][]int) bool {
	n := len(board)
	if n == 0 {
		return false
	}

	total := 0
	colSums := make([]int, n)
	diagSums := make([]int, 2*n-1)
	antidiagSums := make([]int, 2*n-1)

	for row := 0; row < n; row++ {
		if len(board[row]) != n {
			return false
		}
		rowSum := 0
		for col := 0; col < n; col++ {
			bit := board[row][col]
			if bit != 0 && bit != 1 {
				return false
			}
			rowSum += bit
			colSums[col] += bit
			diagSums[row-col+n-1] += bit
			antidiagSums[row+col] += bit
			total += bit
		}
		if rowSum != 1 {
			return false
		}
	}

	if total != n {
		return false
	}
	for _, sum := range colSums {
		if sum != 1 {
			return false
		}
	}
	for _, sum := range diagSums {
		if sum > 1 {
			return false
		}
	}
	for _, sum := range antidiagSums {
		if sum > 1 {
			return false
		}
	}

	return true
}
