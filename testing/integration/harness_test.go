package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Hoosat-Oy/htnupow/app"
	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/Hoosat-Oy/htnupow/infrastructure/config"
	"github.com/btcsuite/btcutil/base58"
)

// challengeServer mimics the public challenge server. Every request for a
// seed with matrices hands out the next nonce of the same base seed.
type challengeServer struct {
	base     seed.Seed
	diffBits int

	nextNonce atomic.Uint64

	mutex    sync.Mutex
	accepted []*pow.Solution
	rejected int
}

func (s *challengeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/upow/seed":
		w.Write(s.base[:])
	case r.URL.Path == "/api/upow/seed_with_matrix_a_b":
		challenge := s.base.WithNonce(seed.NonceFromUint64(s.nextNonce.Add(1) - 1))
		pair := matrix.Expand(challenge)
		body := make([]byte, 0, seed.Size+matrix.XOFSize)
		body = append(body, challenge[:]...)
		body = append(body, pair.A...)
		for _, v := range pair.B {
			body = append(body, byte(v))
		}
		w.Write(body)
	case r.URL.Path == "/api/chain/stats":
		fmt.Fprintf(w, `{"stats":{"diff_bits":%d}}`, s.diffBits)
	case strings.HasPrefix(r.URL.Path, "/api/upow/validate/"):
		solution, err := pow.SolutionFromBytes(base58.Decode(strings.TrimPrefix(r.URL.Path, "/api/upow/validate/")))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hash, err := pow.VerifySolution(solution, nil)
		validMath := err == nil
		valid := validMath && difficulty.Score(hash) >= s.diffBits

		s.mutex.Lock()
		if valid {
			s.accepted = append(s.accepted, solution)
		} else {
			s.rejected++
		}
		s.mutex.Unlock()
		fmt.Fprintf(w, `{"valid":%t,"valid_math":%t}`, valid, validMath)
	default:
		http.NotFound(w, r)
	}
}

type appHarness struct {
	challenge *challengeServer
	server    *httptest.Server
	config    *config.Config
	out       *bytes.Buffer
}

type harnessParams struct {
	diffBits  int
	configure func(cfg *config.Config)
}

func setupHarness(t *testing.T, params *harnessParams) *appHarness {
	challenge := &challengeServer{diffBits: params.diffBits}
	for i := 0; i < seed.NonceOffset; i++ {
		challenge.base[i] = byte(i * 31)
	}
	harness := &appHarness{
		challenge: challenge,
		server:    httptest.NewServer(challenge),
		out:       &bytes.Buffer{},
	}
	t.Cleanup(harness.server.Close)

	setConfig(t, harness)
	if params.configure != nil {
		params.configure(harness.config)
	}
	return harness
}

func (h *appHarness) run(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	err := app.Run(ctx, h.config, h.out)
	if err != nil {
		t.Fatalf("app.Run: %+v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("app.Run timed out")
	}
}

type resultLine struct {
	Found       bool   `json:"found"`
	State       string `json:"state"`
	Iterations  uint64 `json:"iterations"`
	BestBits    int    `json:"best_bits"`
	Nonce       string `json:"nonce"`
	SolutionHex string `json:"solution_hex"`
	Valid       *bool  `json:"valid"`
	ValidMath   *bool  `json:"valid_math"`
}

func (h *appHarness) results(t *testing.T) []*resultLine {
	var lines []*resultLine
	decoder := json.NewDecoder(bytes.NewReader(h.out.Bytes()))
	for decoder.More() {
		line := &resultLine{}
		err := decoder.Decode(line)
		if err != nil {
			t.Fatalf("failed to decode result line: %s", err)
		}
		lines = append(lines, line)
	}
	return lines
}
