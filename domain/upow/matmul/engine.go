package matmul

import (
	"sync"
	"sync/atomic"

	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/pkg/errors"
)

// Default tuning of the accelerated path.
const (
	DefaultChunkSize         = 500
	DefaultSelfCheckSamples  = 3
	DefaultSelfCheckInterval = 4096
)

// Config configures an Engine.
type Config struct {
	// Device is the accelerated device. A nil Device leaves the engine on the
	// scalar path.
	Device Device
	// ChunkSize is the inner-dimension chunk of the accelerated path.
	ChunkSize int
	// SelfCheckSamples is the number of sample pairs verified before the
	// accelerated path is enabled. Values below 1 are raised to 1.
	SelfCheckSamples int
	// SelfCheckInterval re-verifies every n-th accelerated product against
	// the scalar path. Zero disables the periodic check.
	SelfCheckInterval uint64
}

// DefaultConfig returns a Config for the given device with default tuning.
func DefaultConfig(device Device) *Config {
	return &Config{
		Device:            device,
		ChunkSize:         DefaultChunkSize,
		SelfCheckSamples:  DefaultSelfCheckSamples,
		SelfCheckInterval: DefaultSelfCheckInterval,
	}
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Device           string
	Accelerated      bool
	DisabledReason   string
	AcceleratedCalls uint64
	ScalarCalls      uint64
	DeviceFailures   uint64
	PeriodicChecks   uint64
}

// Engine computes exact products, preferring the accelerated device when it
// has proven exact and falling back to the scalar path otherwise. Once the
// accelerated path is disabled it stays disabled for the life of the engine.
// Engine is safe for concurrent use.
type Engine struct {
	device        Device
	chunkSize     int
	checkInterval uint64

	deviceLock sync.Mutex
	chunker    *chunker

	accelerated    atomic.Bool
	disableOnce    sync.Once
	disabledReason atomic.Value

	acceleratedCalls atomic.Uint64
	scalarCalls      atomic.Uint64
	deviceFailures   atomic.Uint64
	periodicChecks   atomic.Uint64
}

// NewEngine creates an engine and, when a device is configured, runs the
// mandatory self-check. A failed self-check is not an error: the engine
// starts on the scalar path and the reason is logged and kept in Stats.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg.Device != nil && cfg.ChunkSize <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	e := &Engine{
		device:        cfg.Device,
		chunkSize:     cfg.ChunkSize,
		checkInterval: cfg.SelfCheckInterval,
	}
	if cfg.Device == nil {
		e.disabledReason.Store("no accelerated device")
		return e, nil
	}

	e.chunker = newChunker(cfg.ChunkSize)
	if cfg.ChunkSize > MaxExactChunkSize(float32MantissaBits) {
		log.Warnf("Chunk size %d exceeds the float32 exactness bound of %d; relying on the self-check",
			cfg.ChunkSize, MaxExactChunkSize(float32MantissaBits))
	}

	samples := cfg.SelfCheckSamples
	if samples < 1 {
		samples = 1
	}
	err := SelfCheck(cfg.Device, cfg.ChunkSize, SamplePairs(samples))
	if err != nil {
		e.DisableAccelerated(errors.Wrap(err, "self-check failed"))
		return e, nil
	}
	log.Infof("Accelerated path enabled on %s (chunk size %d, %d self-check samples)",
		cfg.Device.Name(), cfg.ChunkSize, samples)
	e.accelerated.Store(true)
	return e, nil
}

// Multiply returns the exact product of p.
func (e *Engine) Multiply(p *matrix.Pair) (*matrix.Product, error) {
	if !e.accelerated.Load() {
		e.scalarCalls.Add(1)
		return Scalar(p)
	}

	call := e.acceleratedCalls.Add(1)
	product, err := e.multiplyAccelerated(p)
	if err != nil {
		if errors.Is(err, ErrPrecisionMismatch) {
			e.DisableAccelerated(err)
		} else {
			failures := e.deviceFailures.Add(1)
			log.Debugf("Device failure #%d, using the scalar path for this product: %s", failures, err)
		}
		e.scalarCalls.Add(1)
		return Scalar(p)
	}

	if e.checkInterval > 0 && call%e.checkInterval == 0 {
		e.periodicChecks.Add(1)
		expected, err := Scalar(p)
		if err != nil {
			return nil, err
		}
		err = compare(e.device.Name(), e.chunkSize, expected, product)
		if err != nil {
			e.DisableAccelerated(err)
			return expected, nil
		}
	}
	return product, nil
}

func (e *Engine) multiplyAccelerated(p *matrix.Pair) (*matrix.Product, error) {
	e.deviceLock.Lock()
	defer e.deviceLock.Unlock()

	return e.chunker.multiply(e.device, p)
}

// Reconcile compares a product returned by Multiply with the exact product.
// A divergence permanently disables the accelerated path and is returned as a
// PrecisionMismatchError.
func (e *Engine) Reconcile(exact, product *matrix.Product) error {
	err := compare(e.deviceName(), e.chunkSize, exact, product)
	if err != nil {
		e.DisableAccelerated(err)
	}
	return err
}

// DisableAccelerated permanently switches the engine to the scalar path.
// Only the first call has an effect.
func (e *Engine) DisableAccelerated(reason error) {
	e.disableOnce.Do(func() {
		e.accelerated.Store(false)
		e.disabledReason.Store(reason.Error())
		log.Warnf("Accelerated path on %s disabled, continuing on the scalar path: %s", e.deviceName(), reason)
	})
}

func (e *Engine) deviceName() string {
	if e.device == nil {
		return "none"
	}
	return e.device.Name()
}

// Accelerated reports whether the accelerated path is in use.
func (e *Engine) Accelerated() bool {
	return e.accelerated.Load()
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	stats := Stats{
		Device:           e.deviceName(),
		Accelerated:      e.accelerated.Load(),
		AcceleratedCalls: e.acceleratedCalls.Load(),
		ScalarCalls:      e.scalarCalls.Load(),
		DeviceFailures:   e.deviceFailures.Load(),
		PeriodicChecks:   e.periodicChecks.Load(),
	}
	if reason, ok := e.disabledReason.Load().(string); ok {
		stats.DisabledReason = reason
	}
	return stats
}

// Close releases the accelerated device.
func (e *Engine) Close() error {
	if e.device == nil {
		return nil
	}
	e.deviceLock.Lock()
	defer e.deviceLock.Unlock()

	return e.device.Close()
}
