package seed

import (
	"encoding/binary"
	"encoding/hex"
)

// Field sizes of the fixed challenge seed layout.
const (
	EpochSize         = 4
	SegmentVRHashSize = 32
	PKSize            = 48
	PopSize           = 96
	NonceSize         = 12

	// Size is the total length of a seed in bytes.
	Size = EpochSize + SegmentVRHashSize + PKSize + PopSize + PKSize + NonceSize
)

// Field offsets within a seed.
const (
	epochOffset         = 0
	segmentVRHashOffset = epochOffset + EpochSize
	pkOffset            = segmentVRHashOffset + SegmentVRHashSize
	popOffset           = pkOffset + PKSize
	pkRepeatOffset      = popOffset + PopSize

	// NonceOffset is the offset of the 12-byte nonce field.
	NonceOffset = pkRepeatOffset + PKSize
)

// Seed is the fixed 240-byte challenge record. The zero value is a valid
// all-zero seed.
type Seed [Size]byte

// Fields holds the decoded fields of a seed.
type Fields struct {
	Epoch         [EpochSize]byte
	SegmentVRHash [SegmentVRHashSize]byte
	PK            [PKSize]byte
	Pop           [PopSize]byte
	PKRepeat      [PKSize]byte
	Nonce         Nonce
}

// Encode builds a seed from its externally supplied fields. Every field must
// have its exact length, except pop which is right-padded with zero bytes
// when shorter than PopSize. The pk field is written twice and the nonce
// starts at zero.
func Encode(epoch, segmentVRHash, pk, pop []byte) (Seed, error) {
	var s Seed
	if len(epoch) != EpochSize {
		return s, newMalformedSeedFieldError("epoch", EpochSize, len(epoch))
	}
	if len(segmentVRHash) != SegmentVRHashSize {
		return s, newMalformedSeedFieldError("segment_vr_hash", SegmentVRHashSize, len(segmentVRHash))
	}
	if len(pk) != PKSize {
		return s, newMalformedSeedFieldError("pk", PKSize, len(pk))
	}
	if len(pop) > PopSize {
		return s, newMalformedSeedFieldError("pop", PopSize, len(pop))
	}

	copy(s[epochOffset:], epoch)
	copy(s[segmentVRHashOffset:], segmentVRHash)
	copy(s[pkOffset:], pk)
	copy(s[popOffset:], pop)
	copy(s[pkRepeatOffset:], pk)
	return s, nil
}

// Parse interprets raw as a complete seed, as served by the challenge server.
func Parse(raw []byte) (Seed, error) {
	var s Seed
	if len(raw) != Size {
		return s, newMalformedSeedFieldError("seed", Size, len(raw))
	}
	copy(s[:], raw)
	return s, nil
}

// Decode splits the seed into its fields.
func (s *Seed) Decode() *Fields {
	fields := &Fields{}
	copy(fields.Epoch[:], s[epochOffset:segmentVRHashOffset])
	copy(fields.SegmentVRHash[:], s[segmentVRHashOffset:pkOffset])
	copy(fields.PK[:], s[pkOffset:popOffset])
	copy(fields.Pop[:], s[popOffset:pkRepeatOffset])
	copy(fields.PKRepeat[:], s[pkRepeatOffset:NonceOffset])
	fields.Nonce = s.Nonce()
	return fields
}

// WithNonce returns a copy of the seed whose nonce field holds n. No other
// byte is changed.
func (s Seed) WithNonce(n Nonce) Seed {
	n.put(s[NonceOffset:])
	return s
}

// SetNonce overwrites the nonce field in place. Used by workers that reuse a
// seed buffer across evaluations.
func (s *Seed) SetNonce(n Nonce) {
	n.put(s[NonceOffset:])
}

// Nonce returns the nonce currently stored in the seed.
func (s *Seed) Nonce() Nonce {
	return Nonce{
		Lo: binary.LittleEndian.Uint64(s[NonceOffset:]),
		Hi: binary.LittleEndian.Uint32(s[NonceOffset+8:]),
	}
}

// Bytes returns the seed as a byte slice backed by a copy.
func (s *Seed) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, s[:])
	return b
}

// String returns the seed as a hex string.
func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

// EpochLE returns the 4-byte little-endian encoding of epoch.
func EpochLE(epoch uint32) []byte {
	b := make([]byte, EpochSize)
	binary.LittleEndian.PutUint32(b, epoch)
	return b
}
