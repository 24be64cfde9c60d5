package integration

import (
	"os"
	"testing"
	"time"

	"github.com/Hoosat-Oy/htnupow/infrastructure/config"
)

const (
	healthAddress = "127.0.0.1:0"

	defaultTimeout = 60 * time.Second
)

func setConfig(t *testing.T, harness *appHarness) {
	harness.config = commonConfig()
	harness.config.AppDir = randomDirectory(t)
	harness.config.LogDir = harness.config.AppDir
	harness.config.RPCURL = harness.server.URL
}

func commonConfig() *config.Config {
	commonConfig := config.DefaultConfig()

	commonConfig.Workers = 4
	commonConfig.BatchSize = 2
	commonConfig.RetryMax = 2
	commonConfig.RetryInitial = time.Millisecond
	commonConfig.ReportInterval = 100 * time.Millisecond
	commonConfig.JSON = true

	return commonConfig
}

func randomDirectory(t *testing.T) string {
	dir, err := os.MkdirTemp("", "integration-test")
	if err != nil {
		t.Fatalf("Error creating temporary directory for test: %+v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	return dir
}
