package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/solutionstore"
	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matmul"
	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/Hoosat-Oy/htnupow/infrastructure/config"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/pebble"
	"github.com/btcsuite/btcutil/base58"
	"github.com/davecgh/go-spew/spew"
)

// fakeChallengeServer serves a fixed seed and validates submissions by
// recomputing them.
type fakeChallengeServer struct {
	seed      seed.Seed
	diffBits  int
	validMath bool

	mutex       sync.Mutex
	submissions []*pow.Solution
}

func (s *fakeChallengeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/upow/seed":
		w.Write(s.seed[:])
	case r.URL.Path == "/api/chain/stats":
		fmt.Fprintf(w, `{"stats":{"diff_bits":%d}}`, s.diffBits)
	case strings.HasPrefix(r.URL.Path, "/api/upow/validate/"):
		solution, err := pow.SolutionFromBytes(base58.Decode(strings.TrimPrefix(r.URL.Path, "/api/upow/validate/")))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mutex.Lock()
		s.submissions = append(s.submissions, solution)
		s.mutex.Unlock()

		hash, err := pow.VerifySolution(solution, nil)
		validMath := err == nil && s.validMath
		valid := validMath && difficulty.Score(hash) >= s.diffBits
		fmt.Fprintf(w, `{"valid":%t,"valid_math":%t,"score":%d}`, valid, validMath, difficulty.Score(hash))
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeChallengeServer) submissionCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.submissions)
}

func newFakeChallengeServer(t *testing.T, diffBits int, validMath bool) (*fakeChallengeServer, string) {
	fake := &fakeChallengeServer{diffBits: diffBits, validMath: validMath}
	for i := range fake.seed[:seed.NonceOffset] {
		fake.seed[i] = byte(i)
	}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, server.URL
}

func testConfig(t *testing.T, rpcURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.AppDir = t.TempDir()
	cfg.LogDir = cfg.AppDir
	cfg.RPCURL = rpcURL
	cfg.Workers = 2
	cfg.BatchSize = 1
	cfg.RetryMax = 1
	cfg.JSON = true
	return cfg
}

func readResultLine(t *testing.T, out *bytes.Buffer) *resultLine {
	line := &resultLine{}
	err := json.Unmarshal(out.Bytes(), line)
	if err != nil {
		t.Fatalf("failed to decode result line %q: %s", out.String(), err)
	}
	return line
}

func readJournal(t *testing.T, cfg *config.Config) []*solutionstore.Entry {
	db, err := pebble.NewPebbleDB(cfg.JournalDir(), 8)
	if err != nil {
		t.Fatalf("NewPebbleDB: %s", err)
	}
	defer db.Close()
	entries, err := solutionstore.New(db).All()
	if err != nil {
		t.Fatalf("All: %s", err)
	}
	return entries
}

func TestRunFindsAndSubmits(t *testing.T) {
	fake, url := newFakeChallengeServer(t, 0, true)
	cfg := testConfig(t, url)

	out := &bytes.Buffer{}
	err := Run(context.Background(), cfg, out)
	if err != nil {
		t.Fatalf("TestRunFindsAndSubmits: %s", err)
	}

	line := readResultLine(t, out)
	if !line.Found || line.Iterations != 1 || line.Nonce == "" || line.Valid == nil || !*line.Valid {
		t.Fatalf("TestRunFindsAndSubmits: unexpected result %s", spew.Sdump(line))
	}
	// Startup validation and the found solution.
	if fake.submissionCount() != 2 {
		t.Fatalf("TestRunFindsAndSubmits: expected 2 submissions, got %d", fake.submissionCount())
	}

	entries := readJournal(t, cfg)
	if len(entries) != 1 || entries[0].Status != solutionstore.StatusAccepted || entries[0].SolutionHex != line.SolutionHex {
		t.Fatalf("TestRunFindsAndSubmits: unexpected journal %s", spew.Sdump(entries))
	}
}

func TestRunNoSubmitKeepsSolutionPending(t *testing.T) {
	fake, url := newFakeChallengeServer(t, 0, true)
	cfg := testConfig(t, url)
	cfg.NoSubmit = true
	cfg.DBType = config.DBTypeLevelDB

	out := &bytes.Buffer{}
	err := Run(context.Background(), cfg, out)
	if err != nil {
		t.Fatalf("TestRunNoSubmitKeepsSolutionPending: %s", err)
	}
	if fake.submissionCount() != 0 {
		t.Fatalf("TestRunNoSubmitKeepsSolutionPending: expected no submissions, got %d", fake.submissionCount())
	}
	line := readResultLine(t, out)
	if !line.Found || line.Valid != nil {
		t.Fatalf("TestRunNoSubmitKeepsSolutionPending: unexpected result %s", spew.Sdump(line))
	}

	// The next run resubmits the pending solution before mining.
	cfg.NoSubmit = false
	cfg.Iterations = 1
	cfg.Difficulty = 256
	cfg.Target = 256
	out.Reset()
	err = Run(context.Background(), cfg, out)
	if err != nil {
		t.Fatalf("TestRunNoSubmitKeepsSolutionPending: second run: %s", err)
	}
	// Resubmission and startup validation.
	if fake.submissionCount() != 2 {
		t.Fatalf("TestRunNoSubmitKeepsSolutionPending: expected 2 submissions, got %d", fake.submissionCount())
	}
	line = readResultLine(t, out)
	if line.Found || line.State != "exhausted" || line.Iterations != 1 {
		t.Fatalf("TestRunNoSubmitKeepsSolutionPending: unexpected second result %s", spew.Sdump(line))
	}
}

func TestInvalidMathDisablesAcceleratedPath(t *testing.T) {
	_, url := newFakeChallengeServer(t, 0, false)
	cfg := testConfig(t, url)
	cfg.DeviceName = matmul.DeviceSoftFloat32

	m, err := newMiner(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("TestInvalidMathDisablesAcceleratedPath: %s", err)
	}
	defer m.close()
	if !m.engine.Accelerated() {
		t.Fatalf("TestInvalidMathDisablesAcceleratedPath: expected the float32 device to pass its self-check")
	}

	err = m.run(context.Background())
	if err != nil {
		t.Fatalf("TestInvalidMathDisablesAcceleratedPath: %s", err)
	}
	stats := m.engine.Stats()
	if m.engine.Accelerated() || !strings.Contains(stats.DisabledReason, "valid_math") {
		t.Fatalf("TestInvalidMathDisablesAcceleratedPath: unexpected engine stats %s", spew.Sdump(stats))
	}

	entries, err := m.journal.All()
	if err != nil {
		t.Fatalf("TestInvalidMathDisablesAcceleratedPath: %s", err)
	}
	if len(entries) != 1 || entries[0].Status != solutionstore.StatusRejected || entries[0].ValidMath {
		t.Fatalf("TestInvalidMathDisablesAcceleratedPath: unexpected journal %s", spew.Sdump(entries))
	}
}

func TestUnknownDeviceFallsBackToScalar(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DeviceName = "tpu"
	engine, err := newEngine(cfg)
	if err != nil {
		t.Fatalf("TestUnknownDeviceFallsBackToScalar: %s", err)
	}
	defer engine.Close()
	if engine.Accelerated() {
		t.Fatalf("TestUnknownDeviceFallsBackToScalar: expected the scalar path")
	}
}

func TestRunSeedTemplate(t *testing.T) {
	_, url := newFakeChallengeServer(t, 0, true)
	cfg := testConfig(t, url)
	cfg.NoSubmit = true
	cfg.Difficulty = 0
	cfg.Target = 0

	template := seed.TemplateFromFields(&seed.Fields{Epoch: [seed.EpochSize]byte{7}})
	serialized, err := json.Marshal(template)
	if err != nil {
		t.Fatalf("TestRunSeedTemplate: %s", err)
	}
	cfg.SeedTemplate = filepath.Join(cfg.AppDir, "seed.json")
	err = os.WriteFile(cfg.SeedTemplate, serialized, 0600)
	if err != nil {
		t.Fatalf("TestRunSeedTemplate: %s", err)
	}

	out := &bytes.Buffer{}
	err = Run(context.Background(), cfg, out)
	if err != nil {
		t.Fatalf("TestRunSeedTemplate: %s", err)
	}
	line := readResultLine(t, out)
	solution, err := pow.SolutionFromHex(line.SolutionHex)
	if err != nil {
		t.Fatalf("TestRunSeedTemplate: %s", err)
	}
	s := solution.Seed()
	if s.Decode().Epoch[0] != 7 {
		t.Fatalf("TestRunSeedTemplate: solution was not built from the template")
	}
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	fake, url := newFakeChallengeServer(t, 0, true)
	cfg := testConfig(t, url)
	cfg.Loop = true
	cfg.LoopDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, &bytes.Buffer{})
	}()

	deadline := time.After(30 * time.Second)
	for fake.submissionCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("TestRunLoopStopsOnCancel: loop did not submit repeatedly")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("TestRunLoopStopsOnCancel: %s", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatalf("TestRunLoopStopsOnCancel: Run did not return after cancel")
	}
}
