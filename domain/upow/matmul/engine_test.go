package matmul

import (
	"sync"
	"testing"

	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/pkg/errors"
)

// faultyDevice wraps a device and can be switched to corrupt results or to
// fail outright.
type faultyDevice struct {
	Device
	mu      sync.Mutex
	corrupt bool
	fail    bool
}

func (d *faultyDevice) set(corrupt, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.corrupt, d.fail = corrupt, fail
}

func (d *faultyDevice) MatMulF32(a, b []float32, m, k, n int, out []float32) error {
	d.mu.Lock()
	corrupt, fail := d.corrupt, d.fail
	d.mu.Unlock()

	if fail {
		return errors.New("device lost")
	}
	err := d.Device.MatMulF32(a, b, m, k, n, out)
	if err != nil {
		return err
	}
	if corrupt {
		out[0]++
	}
	return nil
}

func newTestEngine(t *testing.T, device Device, interval uint64) *Engine {
	engine, err := NewEngine(&Config{
		Device:            device,
		ChunkSize:         DefaultChunkSize,
		SelfCheckSamples:  1,
		SelfCheckInterval: interval,
	})
	if err != nil {
		t.Fatalf("NewEngine: %s", err)
	}
	return engine
}

func TestEngineAcceleratedPath(t *testing.T) {
	engine := newTestEngine(t, NewSoftFloat32Device(24), 0)
	defer engine.Close()

	if !engine.Accelerated() {
		t.Fatalf("TestEngineAcceleratedPath: expected the accelerated path to be enabled: %s",
			engine.Stats().DisabledReason)
	}
	pair := testPair(2)
	expected, err := Scalar(pair)
	if err != nil {
		t.Fatalf("TestEngineAcceleratedPath: Scalar: %s", err)
	}
	actual, err := engine.Multiply(pair)
	if err != nil {
		t.Fatalf("TestEngineAcceleratedPath: Multiply: %s", err)
	}
	if !expected.Equal(actual) {
		t.Fatalf("TestEngineAcceleratedPath: product differs from scalar")
	}
	stats := engine.Stats()
	if stats.AcceleratedCalls != 1 || stats.ScalarCalls != 0 {
		t.Fatalf("TestEngineAcceleratedPath: unexpected stats %+v", stats)
	}
}

func TestEngineWithoutDevice(t *testing.T) {
	engine := newTestEngine(t, nil, 0)
	if engine.Accelerated() {
		t.Fatalf("TestEngineWithoutDevice: expected the scalar path")
	}
	_, err := engine.Multiply(testPair(3))
	if err != nil {
		t.Fatalf("TestEngineWithoutDevice: Multiply: %s", err)
	}
	if engine.Stats().ScalarCalls != 1 {
		t.Fatalf("TestEngineWithoutDevice: expected one scalar call, got %+v", engine.Stats())
	}
}

func TestEngineSelfCheckFailure(t *testing.T) {
	engine := newTestEngine(t, NewSoftFloat32Device(11), 0)
	if engine.Accelerated() {
		t.Fatalf("TestEngineSelfCheckFailure: expected the accelerated path to be disabled")
	}
	if engine.Stats().DisabledReason == "" {
		t.Fatalf("TestEngineSelfCheckFailure: expected a disabled reason")
	}

	pair := testPair(4)
	expected, err := Scalar(pair)
	if err != nil {
		t.Fatalf("TestEngineSelfCheckFailure: Scalar: %s", err)
	}
	actual, err := engine.Multiply(pair)
	if err != nil {
		t.Fatalf("TestEngineSelfCheckFailure: Multiply: %s", err)
	}
	if !expected.Equal(actual) {
		t.Fatalf("TestEngineSelfCheckFailure: product differs from scalar")
	}
}

func TestEnginePeriodicCheckDisables(t *testing.T) {
	device := &faultyDevice{Device: NewSoftFloat32Device(24)}
	engine := newTestEngine(t, device, 1)
	if !engine.Accelerated() {
		t.Fatalf("TestEnginePeriodicCheckDisables: expected the accelerated path to be enabled")
	}

	device.set(true, false)
	pair := testPair(5)
	expected, err := Scalar(pair)
	if err != nil {
		t.Fatalf("TestEnginePeriodicCheckDisables: Scalar: %s", err)
	}
	actual, err := engine.Multiply(pair)
	if err != nil {
		t.Fatalf("TestEnginePeriodicCheckDisables: Multiply: %s", err)
	}
	if !expected.Equal(actual) {
		t.Fatalf("TestEnginePeriodicCheckDisables: a corrupted product was returned")
	}
	if engine.Accelerated() {
		t.Fatalf("TestEnginePeriodicCheckDisables: expected the accelerated path to be disabled")
	}

	// Disabling is permanent even after the device recovers.
	device.set(false, false)
	_, err = engine.Multiply(pair)
	if err != nil {
		t.Fatalf("TestEnginePeriodicCheckDisables: Multiply: %s", err)
	}
	stats := engine.Stats()
	if stats.Accelerated || stats.AcceleratedCalls != 1 || stats.ScalarCalls != 1 || stats.PeriodicChecks != 1 {
		t.Fatalf("TestEnginePeriodicCheckDisables: unexpected stats %+v", stats)
	}
}

func TestEngineDeviceFailureFallsBack(t *testing.T) {
	device := &faultyDevice{Device: NewSoftFloat32Device(24)}
	engine := newTestEngine(t, device, 0)

	device.set(false, true)
	pair := testPair(6)
	expected, err := Scalar(pair)
	if err != nil {
		t.Fatalf("TestEngineDeviceFailureFallsBack: Scalar: %s", err)
	}
	actual, err := engine.Multiply(pair)
	if err != nil {
		t.Fatalf("TestEngineDeviceFailureFallsBack: Multiply: %s", err)
	}
	if !expected.Equal(actual) {
		t.Fatalf("TestEngineDeviceFailureFallsBack: product differs from scalar")
	}
	stats := engine.Stats()
	if !stats.Accelerated || stats.DeviceFailures != 1 {
		t.Fatalf("TestEngineDeviceFailureFallsBack: unexpected stats %+v", stats)
	}
}

func TestEngineConcurrentMultiply(t *testing.T) {
	engine := newTestEngine(t, NewSoftFloat32Device(24), 3)

	pairs := make([]*matrix.Pair, 4)
	expected := make([]*matrix.Product, len(pairs))
	for i := range pairs {
		pairs[i] = testPair(uint64(10 + i))
		var err error
		expected[i], err = Scalar(pairs[i])
		if err != nil {
			t.Fatalf("TestEngineConcurrentMultiply: Scalar: %s", err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(pairs))
	for i := range pairs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actual, err := engine.Multiply(pairs[i])
			if err != nil {
				errs <- err
				return
			}
			if !expected[i].Equal(actual) {
				errs <- errors.Errorf("pair %d differs from scalar", i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("TestEngineConcurrentMultiply: %s", err)
	}
}
