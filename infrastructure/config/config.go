package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/miningmanager/search"
	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matmul"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/Hoosat-Oy/htnupow/infrastructure/db/database/backends"
	"github.com/Hoosat-Oy/htnupow/infrastructure/logger"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename = "htnupow.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "htnupow.log"
	defaultErrLogFilename = "htnupow_err.log"
	defaultJournalDirname = "journal"
	defaultLogLevel       = "info"
	defaultRPCURL         = "https://testnet-rpc.ama.one"
	defaultBatchSize      = 64
	defaultReportInterval = time.Second
	defaultLoopDelay      = 5 * time.Second
	defaultDBCacheMiB     = 16
	defaultRetryMax       = 5
	defaultRetryInitial   = 500 * time.Millisecond
	defaultRetryMaxDelay  = 10 * time.Second

	// DifficultyFromServer means the target is fetched from the challenge server.
	DifficultyFromServer = -1
)

// Journal backends.
const (
	DBTypePebble   = backends.Pebble
	DBTypePebbleV1 = backends.PebbleV1
	DBTypeLevelDB  = backends.LevelDB
)

var (
	// DefaultAppDir is the default home directory for htnupow.
	DefaultAppDir = appDataDir("htnupow")

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
)

// Flags defines the command line and config file options.
//
// See LoadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDir      string `short:"b" long:"appdir" description:"Directory to store the solution journal and logs"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	RPCURL        string        `long:"rpcurl" description:"Base URL of the challenge server"`
	SeedTemplate  string        `long:"seedtemplate" description:"Mine a seed built from this YAML or JSON template instead of fetching one"`
	Difficulty    int           `long:"difficulty" description:"Required leading zero bits; -1 fetches the target from the challenge server"`
	Proxy         string        `long:"proxy" description:"Connect to the challenge server through this SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser     string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass     string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	RetryMax      int           `long:"retry-max" description:"Attempts per challenge server request"`
	RetryInitial  time.Duration `long:"retry-initial" description:"Delay before the first retry of a failed request"`
	RetryMaxDelay time.Duration `long:"retry-maxdelay" description:"Upper bound of the delay between retries"`

	Workers        int           `short:"w" long:"workers" description:"Number of search workers (default: number of CPUs)"`
	BatchSize      uint64        `long:"batchsize" description:"Nonces claimed by a worker at once"`
	Iterations     uint64        `short:"n" long:"iterations" description:"Evaluation budget per search; 0 searches until a solution is found"`
	PartitionName  string        `long:"partition" description:"Nonce partitioning between workers {shared, disjoint}"`
	StartNonce     uint64        `long:"startnonce" description:"First nonce to evaluate"`
	Refetch        bool          `long:"refetch" description:"Fetch a fresh seed with server-computed matrices for every evaluation"`
	Loop           bool          `long:"loop" description:"Keep fetching, mining and submitting until interrupted"`
	LoopDelay      time.Duration `long:"loopdelay" description:"Delay before retrying after a failed round in loop mode"`
	ReportInterval time.Duration `long:"report-interval" description:"Interval between progress reports"`

	DeviceName        string `long:"device" description:"Accelerated matrix multiplication device {none, cpu-f32}"`
	ChunkSize         int    `long:"chunksize" description:"Inner-dimension chunk size of the accelerated path"`
	SelfCheckSamples  int    `long:"selfcheck-samples" description:"Sample products verified before the accelerated path is trusted"`
	SelfCheckInterval uint64 `long:"selfcheck-interval" description:"Re-verify every Nth accelerated product against the scalar path; 0 disables"`
	XOFName           string `long:"xof" description:"Matrix expansion function {blake3, shake256}"`

	DBType       string `long:"dbtype" description:"Solution journal backend {pebble, pebble-v1, leveldb}"`
	DBCacheMiB   int    `long:"dbcache" description:"Journal database cache size in MiB"`
	HealthListen string `long:"healthlisten" description:"Serve gRPC health checks on this address (eg. 127.0.0.1:16120)"`
	Profile      string `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	JSON         bool   `long:"json" description:"Print a JSON result line to stdout after each search"`
	NoSubmit     bool   `long:"no-submit" description:"Do not submit solutions to the challenge server"`
}

// Config defines the configuration options for htnupow.
type Config struct {
	*Flags

	// Target is only meaningful when Difficulty is not DifficultyFromServer.
	Target    difficulty.Target
	Partition search.Partition
	XOF       matrix.XOF
}

// DefaultConfig returns the default htnupow configuration
func DefaultConfig() *Config {
	return &Config{
		Flags: &Flags{
			ConfigFile:        defaultConfigFile,
			AppDir:            DefaultAppDir,
			DebugLevel:        defaultLogLevel,
			RPCURL:            defaultRPCURL,
			Difficulty:        DifficultyFromServer,
			RetryMax:          defaultRetryMax,
			RetryInitial:      defaultRetryInitial,
			RetryMaxDelay:     defaultRetryMaxDelay,
			Workers:           runtime.NumCPU(),
			BatchSize:         defaultBatchSize,
			PartitionName:     search.PartitionShared.String(),
			LoopDelay:         defaultLoopDelay,
			ReportInterval:    defaultReportInterval,
			DeviceName:        matmul.DeviceNone,
			ChunkSize:         matmul.DefaultChunkSize,
			SelfCheckSamples:  matmul.DefaultSelfCheckSamples,
			SelfCheckInterval: matmul.DefaultSelfCheckInterval,
			XOFName:           matrix.Blake3XOF{}.Name(),
			DBType:            DBTypePebble,
			DBCacheMiB:        defaultDBCacheMiB,
		},
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in htnupow functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options. Command line options always take precedence.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := DefaultConfig()
	preParser := flags.NewParser(preCfg.Flags, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			return nil, err
		}
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	parser := flags.NewParser(cfg.Flags, flags.Default)
	configFile := preCfg.ConfigFile
	if configFile == defaultConfigFile && preCfg.AppDir != DefaultAppDir {
		configFile = filepath.Join(cleanAndExpandPath(preCfg.AppDir), defaultConfigFilename)
	}
	if _, statErr := os.Stat(configFile); statErr == nil {
		err := flags.NewIniParser(parser).ParseFile(configFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", configFile)
		}
	} else if preCfg.ConfigFile != defaultConfigFile {
		return nil, errors.Errorf("config file %s does not exist", configFile)
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	err = cfg.resolve()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve cleans paths, validates every option and fills the derived fields.
func (cfg *Config) resolve() error {
	cfg.AppDir = cleanAndExpandPath(cfg.AppDir)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.AppDir, defaultLogDirname)
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.SeedTemplate != "" {
		cfg.SeedTemplate = cleanAndExpandPath(cfg.SeedTemplate)
	}

	err := logger.ParseAndSetLogLevels(cfg.DebugLevel)
	if err != nil {
		return err
	}

	if cfg.Difficulty != DifficultyFromServer {
		cfg.Target, err = difficulty.NewTarget(cfg.Difficulty)
		if err != nil {
			return errors.Wrap(err, "invalid --difficulty")
		}
	}
	cfg.Partition, err = search.ParsePartition(cfg.PartitionName)
	if err != nil {
		return err
	}
	cfg.XOF, err = matrix.XOFByName(cfg.XOFName)
	if err != nil {
		return err
	}

	if !backends.IsSupported(cfg.DBType) {
		return errors.Errorf("unknown --dbtype %q, expected one of %s", cfg.DBType, strings.Join(backends.Names(), ", "))
	}

	if cfg.Workers < 1 {
		return errors.Errorf("--workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.BatchSize == 0 {
		return errors.New("--batchsize must be at least 1")
	}
	if cfg.ChunkSize < 1 {
		return errors.Errorf("--chunksize must be at least 1, got %d", cfg.ChunkSize)
	}
	if maxExact := matmul.MaxExactChunkSize(24); cfg.ChunkSize > maxExact {
		log.Warnf("--chunksize %d exceeds %d, the largest chunk a float32 device can sum exactly; "+
			"the self-check will most likely keep the accelerated path disabled", cfg.ChunkSize, maxExact)
	}
	if cfg.SelfCheckSamples < 1 {
		return errors.Errorf("--selfcheck-samples must be at least 1, got %d", cfg.SelfCheckSamples)
	}
	if cfg.RetryMax < 1 {
		return errors.Errorf("--retry-max must be at least 1, got %d", cfg.RetryMax)
	}
	if cfg.RetryInitial < 0 || cfg.RetryMaxDelay < 0 || cfg.LoopDelay < 0 {
		return errors.New("durations must not be negative")
	}
	if cfg.ReportInterval <= 0 {
		return errors.New("--report-interval must be positive")
	}

	if cfg.Refetch && cfg.SeedTemplate != "" {
		return errors.New("--refetch and --seedtemplate cannot be used together")
	}
	if cfg.Refetch && cfg.Partition == search.PartitionDisjoint {
		return errors.New("--partition=disjoint has no effect with --refetch")
	}

	if cfg.Profile != "" {
		profilePort, err := parsePort(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			return errors.Errorf("the profile port must be between 1024 and 65535, got %s", cfg.Profile)
		}
	}
	return nil
}

// JournalDir returns the directory of the solution journal for the configured
// backend.
func (cfg *Config) JournalDir() string {
	return filepath.Join(cfg.AppDir, defaultJournalDirname, cfg.DBType)
}

// LogFile returns the path of the main log file.
func (cfg *Config) LogFile() string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}

// ErrLogFile returns the path of the warnings and errors log file.
func (cfg *Config) ErrLogFile() string {
	return filepath.Join(cfg.LogDir, defaultErrLogFilename)
}
