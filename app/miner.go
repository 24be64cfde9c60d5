package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/miningmanager/search"
	"github.com/Hoosat-Oy/htnupow/domain/solutionstore"
	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matmul"
	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/Hoosat-Oy/htnupow/infrastructure/config"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database"
	"github.com/Hoosat-Oy/htnupow/infrastructure/network/healthserver"
	"github.com/Hoosat-Oy/htnupow/infrastructure/network/upowclient"
	"github.com/pkg/errors"
)

// errInvalidMath is the reason the accelerated path is disabled after the
// challenge server disagrees with a submitted product.
var errInvalidMath = errors.New("challenge server reported valid_math=false")

// miner runs fetch, search and submit rounds.
type miner struct {
	cfg     *config.Config
	client  *upowclient.Client
	engine  *matmul.Engine
	db      database.Database
	journal *solutionstore.Store
	health  *healthserver.Server
	sink    search.Sink
	out     io.Writer

	startupValidated bool
}

func newMiner(cfg *config.Config, out io.Writer) (*miner, error) {
	m := &miner{cfg: cfg, out: out, sink: search.LogSink{}}
	err := m.open()
	if err != nil {
		m.close()
		return nil, err
	}
	return m, nil
}

func (m *miner) open() error {
	cfg := m.cfg
	var err error

	if !cfg.JSON {
		m.sink = search.NewConsoleSink(os.Stdout)
	}

	m.client, err = upowclient.New(cfg.RPCURL, upowclient.Options{
		Proxy:         cfg.Proxy,
		ProxyUser:     cfg.ProxyUser,
		ProxyPassword: cfg.ProxyPass,
		Retry: upowclient.RetryPolicy{
			MaxAttempts:  cfg.RetryMax,
			InitialDelay: cfg.RetryInitial,
			MaxDelay:     cfg.RetryMaxDelay,
			Multiplier:   2,
		},
	})
	if err != nil {
		return err
	}

	m.engine, err = newEngine(cfg)
	if err != nil {
		return err
	}

	m.db, err = openDB(cfg)
	if err != nil {
		return err
	}
	m.journal = solutionstore.New(m.db)

	if cfg.HealthListen != "" {
		m.health, err = healthserver.New(cfg.HealthListen)
		if err != nil {
			return err
		}
		m.health.Start()
	}
	return nil
}

// newEngine builds the product engine. An unavailable device degrades to the
// scalar path.
func newEngine(cfg *config.Config) (*matmul.Engine, error) {
	engineConfig := &matmul.Config{
		ChunkSize:         cfg.ChunkSize,
		SelfCheckSamples:  cfg.SelfCheckSamples,
		SelfCheckInterval: cfg.SelfCheckInterval,
	}
	if cfg.DeviceName != matmul.DeviceNone {
		device, err := matmul.OpenDevice(cfg.DeviceName)
		if err != nil {
			log.Warnf("Accelerated device unavailable, using the scalar path: %s", err)
		} else {
			engineConfig.Device = device
		}
	}
	return matmul.NewEngine(engineConfig)
}

func (m *miner) close() {
	if m.health != nil {
		m.health.Stop()
	}
	if m.engine != nil {
		err := m.engine.Close()
		if err != nil {
			log.Warnf("Failed to close the product engine: %s", err)
		}
	}
	if m.db != nil {
		err := m.db.Close()
		if err != nil {
			log.Errorf("Failed to close the solution journal: %s", err)
		}
	}
}

// run resubmits pending journal entries and then mines one round, or rounds
// until ctx is done in loop mode.
func (m *miner) run(ctx context.Context) error {
	m.resubmitPending(ctx)

	if !m.cfg.Loop {
		return m.round(ctx)
	}
	for {
		err := m.round(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Errorf("Mining round failed, retrying in %s: %s", m.cfg.LoopDelay, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(m.cfg.LoopDelay):
			}
		}
	}
}

// round fetches a challenge, searches it and submits what it finds.
func (m *miner) round(ctx context.Context) error {
	target, err := m.target(ctx)
	if err != nil {
		return err
	}
	factory, err := m.evaluatorFactory(ctx)
	if err != nil {
		return err
	}

	searchConfig := search.DefaultConfig(target, m.cfg.Workers, factory)
	searchConfig.BatchSize = m.cfg.BatchSize
	searchConfig.Iterations = m.cfg.Iterations
	searchConfig.Partition = m.cfg.Partition
	searchConfig.StartNonce = seed.NonceFromUint64(m.cfg.StartNonce)
	searchConfig.ReportInterval = m.cfg.ReportInterval
	searchConfig.Sink = m.sink

	m.setSearching(true)
	result, err := search.Run(ctx, searchConfig)
	m.setSearching(false)
	if err != nil {
		return err
	}

	line := newResultLine(result)
	if result.State == search.StateFound {
		submitResult, err := m.handleFound(ctx, result.Candidate)
		if err != nil {
			log.Errorf("Failed to submit solution for nonce %s: %s", result.Candidate.Nonce, err)
		} else if submitResult != nil {
			line.Valid = &submitResult.Valid
			line.ValidMath = &submitResult.ValidMath
		}
	}

	if m.cfg.JSON {
		return line.write(m.out)
	}
	return nil
}

func (m *miner) setSearching(searching bool) {
	if m.health != nil {
		m.health.SetSearching(searching)
	}
}

func (m *miner) target(ctx context.Context) (difficulty.Target, error) {
	if m.cfg.Difficulty != config.DifficultyFromServer {
		return m.cfg.Target, nil
	}
	target, err := m.client.FetchDifficulty(ctx)
	if err != nil {
		return 0, err
	}
	log.Infof("Challenge server difficulty is %d bits", target)
	return target, nil
}

// baseSeed returns the seed to mine, built from the template file when one is
// configured and fetched from the challenge server otherwise.
func (m *miner) baseSeed(ctx context.Context) (seed.Seed, error) {
	if m.cfg.SeedTemplate != "" {
		template, err := seed.LoadTemplate(m.cfg.SeedTemplate)
		if err != nil {
			return seed.Seed{}, err
		}
		return template.Seed()
	}
	return m.client.FetchSeed(ctx)
}

func (m *miner) evaluatorFactory(ctx context.Context) (search.EvaluatorFactory, error) {
	if m.cfg.Refetch {
		log.Infof("Fetching a fresh seed and matrices for every evaluation")
		return func(int) (search.Evaluator, error) {
			return pow.NewRefetchEvaluator(ctx, m.client, m.engine), nil
		}, nil
	}

	base, err := m.baseSeed(ctx)
	if err != nil {
		return nil, err
	}
	log.Debugf("Mining seed %s", base)

	if !m.startupValidated && !m.cfg.NoSubmit {
		m.validateStartup(ctx, base)
		m.startupValidated = true
	}

	return func(int) (search.Evaluator, error) {
		return pow.NewEvaluator(base, m.engine, m.cfg.XOF), nil
	}, nil
}

// validateStartup submits the product of the base seed with nonce zero so a
// disagreement on the math is seen before the first search.
func (m *miner) validateStartup(ctx context.Context, base seed.Seed) {
	candidate, err := pow.NewEvaluator(base, m.engine, m.cfg.XOF).Evaluate(seed.Nonce{})
	if err != nil {
		log.Warnf("Startup validation could not evaluate nonce 0: %s", err)
		return
	}
	result, err := m.submit(ctx, candidate.Solution)
	if err != nil {
		log.Warnf("Startup validation could not be submitted: %s", err)
		return
	}
	log.Infof("Startup validation: valid=%t valid_math=%t (score %d)", result.Valid, result.ValidMath, candidate.Score)
}

// handleFound journals candidate and submits it unless submission is
// disabled. The returned result is nil when nothing was submitted.
func (m *miner) handleFound(ctx context.Context, candidate *pow.Candidate) (*upowclient.SubmitResult, error) {
	log.Infof("Found solution for nonce %s with score %d: %s", candidate.Nonce, candidate.Score, candidate.Hash)

	entry := solutionstore.NewEntry(candidate, time.Now())
	err := m.journal.Put(entry)
	if err != nil {
		log.Errorf("Failed to journal solution %s: %s", candidate.Hash, err)
	}
	if m.cfg.NoSubmit {
		return nil, nil
	}

	result, err := m.submit(ctx, candidate.Solution)
	if err != nil {
		return nil, err
	}
	err = m.journal.MarkSubmitted(candidate.Hash, solutionstore.Outcome{Valid: result.Valid, ValidMath: result.ValidMath})
	if err != nil {
		log.Errorf("Failed to record the outcome of solution %s: %s", candidate.Hash, err)
	}
	if result.Valid {
		log.Infof("Solution for nonce %s accepted", candidate.Nonce)
	} else {
		log.Warnf("Solution for nonce %s rejected: %s", candidate.Nonce, result.Error)
	}
	return result, nil
}

// submit sends solution and reacts to valid_math=false by disabling the
// accelerated path.
func (m *miner) submit(ctx context.Context, solution *pow.Solution) (*upowclient.SubmitResult, error) {
	result, err := m.client.Submit(ctx, solution)
	if err != nil {
		return nil, err
	}
	if !result.ValidMath {
		log.Warnf("Challenge server rejected the product of solution %s", solution.Hash())
		m.engine.DisableAccelerated(errInvalidMath)
	}
	return result, nil
}

// resubmitPending submits journal entries whose outcome is unknown, which
// happens when the miner stopped between finding and submitting.
func (m *miner) resubmitPending(ctx context.Context) {
	if m.cfg.NoSubmit {
		return
	}
	pending, err := m.journal.Pending()
	if err != nil {
		log.Errorf("Failed to read pending solutions: %s", err)
		return
	}
	if len(pending) > 0 {
		log.Infof("Resubmitting %d pending solutions", len(pending))
	}
	for _, entry := range pending {
		solution, err := entry.Solution()
		if err != nil {
			log.Warnf("Skipping pending solution for nonce %s: %s", entry.Nonce, err)
			continue
		}
		result, err := m.submit(ctx, solution)
		if err != nil {
			log.Warnf("Failed to resubmit solution for nonce %s: %s", entry.Nonce, err)
			continue
		}
		err = m.journal.MarkSubmitted(solution.Hash(), solutionstore.Outcome{Valid: result.Valid, ValidMath: result.ValidMath})
		if err != nil {
			log.Errorf("Failed to record the outcome of solution for nonce %s: %s", entry.Nonce, err)
		}
	}
}
