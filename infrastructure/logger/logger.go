package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	backendLog = NewBackend()

	subsystemLoggersMutex sync.Mutex
	subsystemLoggers      = make(map[string]*Logger)

	initLock  sync.Mutex
	initiated = false
)

// RegisterSubSystem registers a new subsystem logger with the given tag and
// returns it. Registering the same tag twice returns the same logger.
func RegisterSubSystem(subsystem string) *Logger {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()
	if logger, ok := subsystemLoggers[subsystem]; ok {
		return logger
	}
	logger := backendLog.Logger(subsystem)
	subsystemLoggers[subsystem] = logger
	return logger
}

// InitLog attaches stdout and the log files to the backend. Messages of every
// level go to logFile, messages of LevelWarn and above also go to errLogFile.
func InitLog(logFile, errLogFile string) error {
	initLock.Lock()
	defer initLock.Unlock()
	if initiated {
		return errors.New("logger is already initiated")
	}
	if err := backendLog.AddLogFile(logFile, LevelTrace); err != nil {
		return err
	}
	if err := backendLog.AddLogFile(errLogFile, LevelWarn); err != nil {
		return err
	}
	backendLog.AddWriter(os.Stdout, LevelInfo)
	initiated = true
	return nil
}

// InitLogStdout attaches stdout only, at the given minimum level. Useful for
// tools and tests that don't keep log files.
func InitLogStdout(logLevel Level) {
	initLock.Lock()
	defer initLock.Unlock()
	if initiated {
		return
	}
	backendLog.AddWriter(os.Stdout, logLevel)
	initiated = true
}

// Close closes the log files of the backend.
func Close() {
	initLock.Lock()
	defer initLock.Unlock()
	backendLog.Close()
	initiated = false
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) error {
	level, ok := LevelFromString(logLevel)
	if !ok {
		return errors.Errorf("the specified debug level [%s] is invalid", logLevel)
	}
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return nil
	}
	logger.SetLevel(level)
	return nil
}

// SetLogLevels sets the log level for all subsystem loggers to the passed level.
func SetLogLevels(logLevel Level) {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()
	for _, logger := range subsystemLoggers {
		logger.SetLevel(logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for logging purposes.
func SupportedSubsystems() []string {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ParseAndSetLogLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid. The accepted forms are a single level ("debug") or a comma
// separated list of subsystem=level pairs ("SRCH=trace,UPCL=debug").
func ParseAndSetLogLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		level, ok := LevelFromString(debugLevel)
		if !ok {
			return errors.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(level)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return errors.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]",
				logLevelPair)
		}
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		subsystemLoggersMutex.Lock()
		_, exists := subsystemLoggers[subsysID]
		subsystemLoggersMutex.Unlock()
		if !exists {
			return errors.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if err := SetLogLevel(subsysID, logLevel); err != nil {
			return err
		}
	}
	return nil
}

// Printf writes directly to stdout, bypassing subsystem levels. Used for the
// final machine-readable result line.
func Printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}
