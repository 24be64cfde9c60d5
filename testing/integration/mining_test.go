package integration

import (
	"testing"

	"github.com/Hoosat-Oy/htnupow/domain/miningmanager/search"
	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matmul"
	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/Hoosat-Oy/htnupow/infrastructure/config"
)

func checkAcceptedSolution(t *testing.T, harness *appHarness, line *resultLine) {
	if !line.Found || line.Valid == nil || !*line.Valid || line.ValidMath == nil || !*line.ValidMath {
		t.Fatalf("expected an accepted solution, got %+v", line)
	}
	solution, err := pow.SolutionFromHex(line.SolutionHex)
	if err != nil {
		t.Fatalf("SolutionFromHex: %s", err)
	}
	if difficulty.Score(solution.Hash()) < harness.challenge.diffBits {
		t.Fatalf("solution scores below the difficulty")
	}
	if solution.Nonce().String() != line.Nonce {
		t.Fatalf("result nonce %s does not match the solution nonce %s", line.Nonce, solution.Nonce())
	}
}

func TestMineSharedPartition(t *testing.T) {
	harness := setupHarness(t, &harnessParams{diffBits: 2})
	harness.run(t)

	lines := harness.results(t)
	if len(lines) != 1 {
		t.Fatalf("TestMineSharedPartition: expected one result line, got %d", len(lines))
	}
	checkAcceptedSolution(t, harness, lines[0])
}

func TestMineDisjointPartitionOnFloat32Device(t *testing.T) {
	harness := setupHarness(t, &harnessParams{
		diffBits: 2,
		configure: func(cfg *config.Config) {
			cfg.Partition = search.PartitionDisjoint
			cfg.DeviceName = matmul.DeviceSoftFloat32
			cfg.SelfCheckInterval = 1
			cfg.DBType = config.DBTypePebbleV1
		},
	})
	harness.run(t)

	lines := harness.results(t)
	if len(lines) != 1 {
		t.Fatalf("TestMineDisjointPartitionOnFloat32Device: expected one result line, got %d", len(lines))
	}
	checkAcceptedSolution(t, harness, lines[0])
}

func TestMineRefetch(t *testing.T) {
	harness := setupHarness(t, &harnessParams{
		diffBits: 2,
		configure: func(cfg *config.Config) {
			cfg.Refetch = true
			cfg.Workers = 2
		},
	})
	harness.run(t)

	lines := harness.results(t)
	if len(lines) != 1 {
		t.Fatalf("TestMineRefetch: expected one result line, got %d", len(lines))
	}
	checkAcceptedSolution(t, harness, lines[0])
	if harness.challenge.nextNonce.Load() < lines[0].Iterations {
		t.Fatalf("TestMineRefetch: expected a fetch per evaluation")
	}
}

func TestMineExhaustsBudget(t *testing.T) {
	harness := setupHarness(t, &harnessParams{
		diffBits: 0,
		configure: func(cfg *config.Config) {
			cfg.Difficulty = difficulty.MaxTarget
			cfg.Target = difficulty.MaxTarget
			cfg.Iterations = 6
			cfg.NoSubmit = true
		},
	})
	harness.run(t)

	lines := harness.results(t)
	if len(lines) != 1 {
		t.Fatalf("TestMineExhaustsBudget: expected one result line, got %d", len(lines))
	}
	line := lines[0]
	if line.Found || line.State != search.StateExhausted.String() || line.Iterations != 6 || line.BestBits < 0 {
		t.Fatalf("TestMineExhaustsBudget: unexpected result %+v", line)
	}
}

func TestHealthServerDuringMining(t *testing.T) {
	harness := setupHarness(t, &harnessParams{
		diffBits: 1,
		configure: func(cfg *config.Config) {
			cfg.HealthListen = healthAddress
		},
	})
	harness.run(t)

	lines := harness.results(t)
	if len(lines) != 1 {
		t.Fatalf("TestHealthServerDuringMining: expected one result line, got %d", len(lines))
	}
	checkAcceptedSolution(t, harness, lines[0])
}
