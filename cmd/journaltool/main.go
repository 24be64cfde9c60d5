package main

import (
	"fmt"
	"os"

	"github.com/Hoosat-Oy/htnupow/infrastructure/logger"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

func main() {
	// Progress of fuse and migrate is reported through the database loggers.
	logger.InitLogStdout(logger.LevelInfo)
	logger.SetLogLevels(logger.LevelInfo)

	subCmd, config, err := parseCommandLine(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	switch subCmd {
	case listSubCmd:
		err = list(config.(*listConfig), os.Stdout)
	case fuseSubCmd:
		err = fuse(config.(*fuseConfig))
	case migrateSubCmd:
		err = migrate(config.(*migrateConfig))
	default:
		err = errors.Errorf("unknown command %s", subCmd)
	}

	if err != nil {
		printErrorAndExit(err)
	}
}

func printErrorAndExit(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}
