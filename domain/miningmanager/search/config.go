package search

import (
	"strings"
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/pkg/errors"
)

const (
	defaultBatchSize      = 64
	defaultReportInterval = time.Second

	// DisjointRangeShift places worker i's range at StartNonce + i<<DisjointRangeShift.
	DisjointRangeShift = 40

	maxErrorBackoff     = time.Second
	initialErrorBackoff = 10 * time.Millisecond
)

// ErrNoEvaluator is returned by Run when the config has no evaluator factory.
var ErrNoEvaluator = errors.New("no evaluator factory configured")

// Evaluator evaluates single nonces for one worker. Each worker gets its own
// Evaluator, so implementations need not be safe for concurrent use.
type Evaluator interface {
	Evaluate(nonce seed.Nonce) (*pow.Candidate, error)
	// Verify independently reproduces c. It may rescore c in place when c's
	// product was inexact. A winning candidate is only accepted if it still
	// meets the target after Verify succeeds.
	Verify(c *pow.Candidate) error
}

// EvaluatorFactory creates the Evaluator of the given worker.
type EvaluatorFactory func(worker int) (Evaluator, error)

// Partition selects how nonces are distributed over workers.
type Partition int

const (
	// PartitionShared hands out contiguous batches from one shared cursor.
	PartitionShared Partition = iota
	// PartitionDisjoint gives every worker its own pre-assigned range.
	PartitionDisjoint
)

var partitionNames = map[Partition]string{
	PartitionShared:   "shared",
	PartitionDisjoint: "disjoint",
}

func (p Partition) String() string {
	name, ok := partitionNames[p]
	if !ok {
		return "unknown"
	}
	return name
}

// ParsePartition parses a partition name.
func ParsePartition(s string) (Partition, error) {
	for partition, name := range partitionNames {
		if strings.EqualFold(s, name) {
			return partition, nil
		}
	}
	return 0, errors.Errorf("unknown partition %q", s)
}

// Config represents a search configuration
type Config struct {
	Target  difficulty.Target
	Workers int
	// BatchSize is the number of nonces a worker claims at once. It only
	// tunes throughput.
	BatchSize uint64
	// Iterations is the evaluation budget. Zero means unbounded.
	Iterations uint64
	Partition  Partition
	StartNonce seed.Nonce

	ReportInterval time.Duration
	Sink           Sink

	NewEvaluator EvaluatorFactory
}

// DefaultConfig returns a search configuration with default tuning
func DefaultConfig(target difficulty.Target, workers int, newEvaluator EvaluatorFactory) *Config {
	return &Config{
		Target:         target,
		Workers:        workers,
		BatchSize:      defaultBatchSize,
		Partition:      PartitionShared,
		ReportInterval: defaultReportInterval,
		Sink:           LogSink{},
		NewEvaluator:   newEvaluator,
	}
}

func (cfg *Config) normalized() *Config {
	normalized := *cfg
	if normalized.Workers < 1 {
		normalized.Workers = 1
	}
	if normalized.BatchSize == 0 {
		normalized.BatchSize = defaultBatchSize
	}
	if normalized.ReportInterval <= 0 {
		normalized.ReportInterval = defaultReportInterval
	}
	return &normalized
}
