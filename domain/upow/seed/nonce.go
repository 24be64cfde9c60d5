package seed

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Nonce is the 96-bit value stored in the last 12 bytes of a seed, little
// endian: Lo occupies bytes 228..236 and Hi bytes 236..240.
type Nonce struct {
	Lo uint64
	Hi uint32
}

// NonceFromUint64 returns a nonce whose high 32 bits are zero.
func NonceFromUint64(n uint64) Nonce {
	return Nonce{Lo: n}
}

// Add returns n+delta, wrapping around at 2^96.
func (n Nonce) Add(delta uint64) Nonce {
	lo, carry := bits.Add64(n.Lo, delta, 0)
	return Nonce{Lo: lo, Hi: n.Hi + uint32(carry)}
}

// Bytes returns the 12-byte little-endian encoding of the nonce.
func (n Nonce) Bytes() [NonceSize]byte {
	var b [NonceSize]byte
	n.put(b[:])
	return b
}

func (n Nonce) put(b []byte) {
	binary.LittleEndian.PutUint64(b[:8], n.Lo)
	binary.LittleEndian.PutUint32(b[8:NonceSize], n.Hi)
}

func (n Nonce) String() string {
	if n.Hi == 0 {
		return fmt.Sprintf("%d", n.Lo)
	}
	return fmt.Sprintf("0x%08x%016x", n.Hi, n.Lo)
}
