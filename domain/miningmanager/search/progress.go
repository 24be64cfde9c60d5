package search

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"golang.org/x/term"
)

// Progress is a periodic summary of a running search.
type Progress struct {
	Time        time.Time
	Evaluations uint64
	// BestScore is -1 until the first evaluation is reported.
	BestScore int
	Target    difficulty.Target
	// Rate is evaluations per second since the search started.
	Rate float64
	// ETA is the expected time until a solution at the current rate, zero
	// when unknown.
	ETA time.Duration
}

func newProgress(target difficulty.Target, evaluations uint64, bestScore int,
	elapsed time.Duration, now time.Time) *Progress {

	progress := &Progress{
		Time:        now,
		Evaluations: evaluations,
		BestScore:   bestScore,
		Target:      target,
	}
	if seconds := elapsed.Seconds(); seconds > 0 {
		progress.Rate = float64(evaluations) / seconds
	}
	progress.ETA = expectedTimeToSolution(target, evaluations, progress.Rate)
	return progress
}

func expectedTimeToSolution(target difficulty.Target, evaluations uint64, rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	remaining := target.ExpectedEvaluations() - float64(evaluations)
	if remaining <= 0 {
		return 0
	}
	nanoseconds := remaining / rate * float64(time.Second)
	if nanoseconds >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(nanoseconds)
}

func (p *Progress) String() string {
	eta := "unknown"
	if p.ETA > 0 {
		eta = p.ETA.Round(time.Second).String()
	}
	return fmt.Sprintf("%d evaluations, %.2f/s, best %d/%d bits, eta %s",
		p.Evaluations, p.Rate, p.BestScore, p.Target, eta)
}

// Sink receives progress summaries. Report is called from the reporter
// goroutine, never from a worker.
type Sink interface {
	Report(progress *Progress)
}

// LogSink writes progress to the search log.
type LogSink struct{}

// Report implements Sink.
func (LogSink) Report(progress *Progress) {
	log.Infof("Progress: %s", progress)
}

// terminalSink rewrites one status line on an interactive terminal.
type terminalSink struct {
	out io.Writer
}

func (s *terminalSink) Report(progress *Progress) {
	fmt.Fprintf(s.out, "\r\033[K%s %s", progress.Time.Format("15:04:05"), progress)
}

// NewConsoleSink returns a sink rewriting a single status line when out is
// an interactive terminal, and a LogSink otherwise.
func NewConsoleSink(out *os.File) Sink {
	if term.IsTerminal(int(out.Fd())) {
		return &terminalSink{out: out}
	}
	return LogSink{}
}
