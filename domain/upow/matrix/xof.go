package matrix

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// XOF is an extendable-output function used to expand a seed.
type XOF interface {
	Name() string
	// Fill writes len(out) bytes of output for input into out.
	Fill(out, input []byte)
}

// Blake3XOF is the BLAKE3 XOF, the one used by the challenge server.
type Blake3XOF struct{}

// Name implements XOF.
func (Blake3XOF) Name() string { return "blake3" }

// Fill implements XOF.
func (Blake3XOF) Fill(out, input []byte) {
	hasher := blake3.New(32, nil)
	_, _ = hasher.Write(input)
	_, _ = hasher.XOF().Read(out)
}

// Shake256XOF is SHAKE256, for challenge servers that expand seeds with SHA-3.
type Shake256XOF struct{}

// Name implements XOF.
func (Shake256XOF) Name() string { return "shake256" }

// Fill implements XOF.
func (Shake256XOF) Fill(out, input []byte) {
	shake := sha3.NewShake256()
	_, _ = shake.Write(input)
	_, _ = shake.Read(out)
}

// XOFByName returns the XOF registered under name.
func XOFByName(name string) (XOF, error) {
	switch strings.ToLower(name) {
	case "", "blake3":
		return Blake3XOF{}, nil
	case "shake256":
		return Shake256XOF{}, nil
	default:
		return nil, errors.Errorf("unknown XOF %q (supported: blake3, shake256)", name)
	}
}
