package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hoosat-Oy/htnupow/infrastructure/config"
	"github.com/Hoosat-Oy/htnupow/infrastructure/logger"
	"github.com/Hoosat-Oy/htnupow/util/panics"
)

// StartApp starts the miner and blocks until it finishes or is interrupted.
func StartApp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	unlock, err := cfg.LockAppDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer unlock()

	err = logger.InitLog(cfg.LogFile(), cfg.ErrLogFile())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer logger.Close()
	defer panics.HandlePanic(log, "MAIN", nil)

	log.Infof("Version %s", config.Version())

	if cfg.Profile != "" {
		startProfiling(cfg.Profile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = Run(ctx, cfg, os.Stdout)
	if err != nil {
		log.Criticalf("%+v", err)
		return err
	}
	return nil
}

// Run mines with cfg until the configured work is done or ctx is cancelled.
// Result lines are written to out when cfg.JSON is set.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	m, err := newMiner(cfg, out)
	if err != nil {
		return err
	}
	defer m.close()

	err = m.run(ctx)
	if ctx.Err() != nil {
		log.Infof("Interrupted, shutting down")
		return nil
	}
	return err
}
