package logger

import (
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	logRotationThresholdKB = 10 * 1024
	logRotationMaxRolls    = 8
)

// newRotator creates the directory of logFile if needed and returns a
// rotator that rolls the file every logRotationThresholdKB.
func newRotator(logFile string) (*rotator.Rotator, error) {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		err := os.MkdirAll(logDir, 0700)
		if err != nil {
			return nil, err
		}
	}
	return rotator.New(logFile, logRotationThresholdKB, false, logRotationMaxRolls)
}
