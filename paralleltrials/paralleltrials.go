// Package paralleltrials runs repeated independent N-Queens solves and
// aggregates their statistics. Trials share no state: each one gets its own
// search engine seeded from the base seed plus the trial index, so runs are
// reproducible and can execute on any number of workers.
package paralleltrials

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/nqueenslab/nqueens-in-golang/minconflicts"
)

// Config contains configuration for a trial run.
type Config struct {
	N             int
	NumTrials     int
	NumWorkers    int
	MaxIterations int
	MaxRestarts   int
	RandomSeed    int64
	LogProgress   bool
}

// DefaultConfig returns the default trial configuration.
func DefaultConfig() Config {
	return Config{
		N:             8,
		NumTrials:     10,
		NumWorkers:    runtime.NumCPU(),
		MaxIterations: 10000,
		MaxRestarts:   100,
		RandomSeed:    time.Now().UnixNano(),
	}
}

// TrialResult contains the outcome of a single independent solve.
type TrialResult struct {
	TrialID    int
	N          int
	Board      []int
	Iterations int
	Restarts   int
	Success    bool
	Duration   time.Duration
}

// TrialStatistics aggregates the outcomes of a trial run. Averages are
// computed over successful trials only; with zero successes they are zero.
type TrialStatistics struct {
	N             int
	NumTrials     int
	SuccessCount  int
	SuccessRate   float64 // percentage
	AvgIterations float64
	AvgRestarts   float64
	AvgDuration   time.Duration
	TotalDuration time.Duration
	Trials        []TrialResult
}

// TrialRunner executes independent trials on a pool of workers.
type TrialRunner struct {
	config Config

	streamMutex sync.RWMutex
	stream      chan<- TrialResult
}

// NewTrialRunner creates a trial runner from the given configuration.
func NewTrialRunner(config Config) (*TrialRunner, error) {
	if config.N < 1 {
		return nil, errors.New("board size must be at least 1")
	}

	if config.NumTrials <= 0 {
		return nil, errors.New("number of trials must be positive")
	}

	if config.NumWorkers <= 0 {
		config.NumWorkers = runtime.NumCPU()
	}

	if config.MaxIterations <= 0 {
		config.MaxIterations = 10000
	}

	if config.MaxRestarts <= 0 {
		config.MaxRestarts = 100
	}

	if config.RandomSeed == 0 {
		config.RandomSeed = time.Now().UnixNano()
	}

	return &TrialRunner{config: config}, nil
}

// StreamResults registers a channel that receives each trial result as soon
// as it completes. Sends are non-blocking: a full channel drops the update
// rather than stalling the workers. The caller owns the channel.
func (tr *TrialRunner) StreamResults(ch chan<- TrialResult) {
	tr.streamMutex.Lock()
	tr.stream = ch
	tr.streamMutex.Unlock()
}

// Run executes all configured trials and aggregates their statistics. The
// context cancels the run between trials; results collected so far are still
// aggregated and returned together with the context error.
func (tr *TrialRunner) Run(ctx context.Context) (*TrialStatistics, error) {
	start := time.Now()

	trialChan := make(chan int, tr.config.NumTrials)
	resultChan := make(chan TrialResult, tr.config.NumTrials)

	var wg sync.WaitGroup
	for w := 0; w < tr.config.NumWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trialID := range trialChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				resultChan <- tr.runTrial(trialID)
			}
		}()
	}

	for i := 0; i < tr.config.NumTrials; i++ {
		trialChan <- i
	}
	close(trialChan)

	wg.Wait()
	close(resultChan)

	trials := make([]TrialResult, 0, tr.config.NumTrials)
	for result := range resultChan {
		trials = append(trials, result)
	}

	stats := aggregate(tr.config.N, tr.config.NumTrials, trials)
	stats.TotalDuration = time.Since(start)

	if tr.config.LogProgress {
		log.Printf("n=%d: %d/%d trials succeeded (%.0f%%) in %v",
			tr.config.N, stats.SuccessCount, tr.config.NumTrials, stats.SuccessRate, stats.TotalDuration)
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (tr *TrialRunner) runTrial(trialID int) TrialResult {
	config := minconflicts.Config{
		MaxIterations: tr.config.MaxIterations,
		MaxRestarts:   tr.config.MaxRestarts,
		RandomSeed:    tr.config.RandomSeed + int64(trialID),
	}

	engine, err := minconflicts.NewSearchEngine(config)
	if err != nil {
		// Config was validated in NewTrialRunner, so this cannot happen.
		return TrialResult{TrialID: trialID, N: tr.config.N}
	}

	start := time.Now()
	solved, err := engine.Solve(tr.config.N)
	duration := time.Since(start)

	result := TrialResult{
		TrialID:  trialID,
		N:        tr.config.N,
		Duration: duration,
	}
	if err == nil {
		result.Board = solved.Board
		result.Iterations = solved.Iterations
		result.Restarts = solved.Restarts
		result.Success = solved.Success
	}

	tr.publish(result)
	return result
}

func (tr *TrialRunner) publish(result TrialResult) {
	tr.streamMutex.RLock()
	stream := tr.stream
	tr.streamMutex.RUnlock()

	if stream == nil {
		return
	}

	select {
	case stream <- result:
	default:
	}
}

func aggregate(n, numTrials int, trials []TrialResult) *TrialStatistics {
	stats := &TrialStatistics{
		N:         n,
		NumTrials: numTrials,
		Trials:    trials,
	}

	var sumIterations, sumRestarts int
	var sumDuration time.Duration
	for _, trial := range trials {
		if !trial.Success {
			continue
		}
		stats.SuccessCount++
		sumIterations += trial.Iterations
		sumRestarts += trial.Restarts
		sumDuration += trial.Duration
	}

	if stats.SuccessCount > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(numTrials) * 100
		stats.AvgIterations = float64(sumIterations) / float64(stats.SuccessCount)
		stats.AvgRestarts = float64(sumRestarts) / float64(stats.SuccessCount)
		stats.AvgDuration = sumDuration / time.Duration(stats.SuccessCount)
	}

	return stats
}

// RunSizeSweep runs a full trial set for every board size and returns the
// per-size statistics in input order. Each size derives its own seed range so
// no two trials in the sweep share a generator seed.
func RunSizeSweep(ctx context.Context, config Config, sizes []int) ([]*TrialStatistics, error) {
	if len(sizes) == 0 {
		return nil, errors.New("at least one board size is required")
	}

	if config.RandomSeed == 0 {
		config.RandomSeed = time.Now().UnixNano()
	}

	results := make([]*TrialStatistics, 0, len(sizes))
	for i, n := range sizes {
		sizeConfig := config
		sizeConfig.N = n
		sizeConfig.RandomSeed = config.RandomSeed + int64(i)*int64(config.NumTrials+1)

		runner, err := NewTrialRunner(sizeConfig)
		if err != nil {
			return results, err
		}

		stats, err := runner.Run(ctx)
		if err != nil {
			return append(results, stats), err
		}
		results = append(results, stats)
	}

	return results, nil
}

// FormatReport renders sweep statistics as a plain-text comparison table.
func FormatReport(results []*TrialStatistics) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%6s %8s %12s %16s %12s %12s\n",
		"n", "trials", "success", "avg iterations", "avg restarts", "avg time"))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteByte('\n')

	for _, stats := range results {
		sb.WriteString(fmt.Sprintf("%6d %8d %11.0f%% %16.0f %12.1f %12v\n",
			stats.N, stats.NumTrials, stats.SuccessRate,
			stats.AvgIterations, stats.AvgRestarts, stats.AvgDuration.Round(time.Microsecond)))
	}

	return sb.String()
}
