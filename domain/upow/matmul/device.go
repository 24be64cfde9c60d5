package matmul

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// ErrDeviceUnavailable is returned when an accelerated device cannot be
// initialized or has stopped answering.
var ErrDeviceUnavailable = errors.New("accelerated device unavailable")

// Device is a matrix unit limited to float32 arithmetic. Implementations are
// not required to be safe for concurrent use; the Engine serializes access.
type Device interface {
	Name() string
	// MatMulF32 computes out = a·b for row-major a (m×k) and b (k×n).
	MatMulF32(a, b []float32, m, k, n int, out []float32) error
	Close() error
}

// Supported device names.
const (
	DeviceNone        = "none"
	DeviceSoftFloat32 = "cpu-f32"
)

// OpenDevice opens the accelerated device registered under name.
func OpenDevice(name string) (Device, error) {
	switch strings.ToLower(name) {
	case DeviceSoftFloat32:
		return NewSoftFloat32Device(float32MantissaBits), nil
	default:
		return nil, errors.Wrapf(ErrDeviceUnavailable, "no driver for device %q", name)
	}
}

// float32MantissaBits is the significand precision of IEEE-754 binary32,
// including the implicit bit.
const float32MantissaBits = 24

// SoftFloat32Device multiplies in float32 on the CPU, one rounding per
// multiply and per add. MantissaBits below 24 additionally rounds every
// partial sum to that many significant bits, modelling reduced-precision
// accumulators such as TF32 or bfloat16 units.
type SoftFloat32Device struct {
	MantissaBits int
}

// NewSoftFloat32Device returns a soft device with the given accumulator precision.
func NewSoftFloat32Device(mantissaBits int) *SoftFloat32Device {
	return &SoftFloat32Device{MantissaBits: mantissaBits}
}

// Name implements Device.
func (d *SoftFloat32Device) Name() string {
	if d.MantissaBits <= 0 || d.MantissaBits >= float32MantissaBits {
		return DeviceSoftFloat32
	}
	return fmt.Sprintf("%s/m%d", DeviceSoftFloat32, d.MantissaBits)
}

// MatMulF32 implements Device.
func (d *SoftFloat32Device) MatMulF32(a, b []float32, m, k, n int, out []float32) error {
	if len(a) < m*k || len(b) < k*n || len(out) < m*n {
		return errors.Errorf("operand buffers too small for %dx%dx%d", m, k, n)
	}
	for i := 0; i < m; i++ {
		row := out[i*n : (i+1)*n]
		for j := range row {
			row[j] = 0
		}
		for kk := 0; kk < k; kk++ {
			av := a[i*k+kk]
			bRow := b[kk*n : (kk+1)*n]
			for j, bv := range bRow {
				// The explicit conversion keeps the compiler from fusing
				// the multiply into the add.
				product := float32(av * bv)
				row[j] = d.round(row[j] + product)
			}
		}
	}
	return nil
}

func (d *SoftFloat32Device) round(v float32) float32 {
	if d.MantissaBits <= 0 || d.MantissaBits >= float32MantissaBits {
		return v
	}
	drop := uint(float32MantissaBits - d.MantissaBits)
	bits := math.Float32bits(v)
	bits += 1 << (drop - 1)
	bits &^= (1 << drop) - 1
	return math.Float32frombits(bits)
}

// Close implements Device.
func (d *SoftFloat32Device) Close() error {
	return nil
}
