package upowclient

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/btcsuite/go-socks/socks"
	"github.com/pkg/errors"
)

const (
	seedPath           = "/api/upow/seed"
	seedWithMatrixPath = "/api/upow/seed_with_matrix_a_b"
	statsPath          = "/api/chain/stats"
	validatePath       = "/api/upow/validate/"

	// DefaultDifficultyBits is used when the chain stats carry no diff_bits.
	DefaultDifficultyBits = 20

	defaultTimeout       = 10 * time.Second
	defaultMatrixTimeout = 30 * time.Second

	// maxErrorBodySize bounds how much of an error response is kept.
	maxErrorBodySize = 512
)

// Options configures a Client.
type Options struct {
	// Timeout bounds a single request. MatrixTimeout is used instead for the
	// much larger seed_with_matrix_a_b response.
	Timeout       time.Duration
	MatrixTimeout time.Duration

	// Proxy is an optional SOCKS5 proxy address (host:port).
	Proxy         string
	ProxyUser     string
	ProxyPassword string

	Retry RetryPolicy
}

// Client talks to the challenge server.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	matrixTimeout time.Duration
	retry         RetryPolicy
}

// SubmitResult is the challenge server's verdict on a solution.
type SubmitResult struct {
	Valid     bool    `json:"valid"`
	ValidMath bool    `json:"valid_math"`
	Score     float64 `json:"score"`
	Error     string  `json:"error,omitempty"`
}

// New returns a client for the challenge server at baseURL.
func New(baseURL string, options Options) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, errors.Errorf("challenge server URL %q must start with http:// or https://", baseURL)
	}
	if options.Timeout <= 0 {
		options.Timeout = defaultTimeout
	}
	if options.MatrixTimeout <= 0 {
		options.MatrixTimeout = defaultMatrixTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if options.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:     options.Proxy,
			Username: options.ProxyUser,
			Password: options.ProxyPassword,
		}
		transport.Proxy = nil
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return proxy.Dial(network, addr)
		}
		log.Infof("Connecting to %s through SOCKS5 proxy %s", baseURL, options.Proxy)
	}

	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Transport: transport},
		timeout:       options.Timeout,
		matrixTimeout: options.MatrixTimeout,
		retry:         options.Retry,
	}, nil
}

// get performs a GET on path and returns the whole body.
func (c *Client) get(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize))
		return nil, errors.WithStack(&statusError{code: response.StatusCode, body: strings.TrimSpace(string(body))})
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return body, nil
}

// FetchSeed fetches the current 240-byte challenge seed.
func (c *Client) FetchSeed(ctx context.Context) (seed.Seed, error) {
	var result seed.Seed
	err := c.retry.Do(ctx, "fetch seed", func(ctx context.Context) error {
		body, err := c.get(ctx, seedPath, c.timeout)
		if err != nil {
			return err
		}
		result, err = seed.Parse(body)
		return err
	})
	if err != nil {
		return seed.Seed{}, err
	}
	log.Debugf("Fetched seed %s", result)
	return result, nil
}

// FetchSeedWithMatrices fetches a seed together with the server-expanded A
// and B operands.
func (c *Client) FetchSeedWithMatrices(ctx context.Context) (seed.Seed, *matrix.Pair, error) {
	var (
		resultSeed seed.Seed
		resultPair *matrix.Pair
	)
	err := c.retry.Do(ctx, "fetch seed with matrices", func(ctx context.Context) error {
		body, err := c.get(ctx, seedWithMatrixPath, c.matrixTimeout)
		if err != nil {
			return err
		}
		if len(body) != seed.Size+matrix.XOFSize {
			return errors.Errorf("seed with matrices must be %d bytes, got %d", seed.Size+matrix.XOFSize, len(body))
		}
		resultSeed, err = seed.Parse(body[:seed.Size])
		if err != nil {
			return err
		}
		resultPair, err = matrix.PairFromBytes(body[seed.Size:])
		return err
	})
	if err != nil {
		return seed.Seed{}, nil, err
	}
	return resultSeed, resultPair, nil
}

type chainStats struct {
	Stats struct {
		DiffBits *int `json:"diff_bits"`
	} `json:"stats"`
}

// FetchDifficulty fetches the current difficulty target. A response without
// diff_bits yields DefaultDifficultyBits.
func (c *Client) FetchDifficulty(ctx context.Context) (difficulty.Target, error) {
	var target difficulty.Target
	err := c.retry.Do(ctx, "fetch difficulty", func(ctx context.Context) error {
		body, err := c.get(ctx, statsPath, c.timeout)
		if err != nil {
			return err
		}
		stats := &chainStats{}
		err = json.Unmarshal(body, stats)
		if err != nil {
			return errors.Wrap(err, "failed to decode chain stats")
		}
		bits := DefaultDifficultyBits
		if stats.Stats.DiffBits != nil {
			bits = *stats.Stats.DiffBits
		}
		target, err = difficulty.NewTarget(bits)
		return err
	})
	if err != nil {
		return 0, err
	}
	return target, nil
}

// Submit sends solution to the validation endpoint.
func (c *Client) Submit(ctx context.Context, solution *pow.Solution) (*SubmitResult, error) {
	result := &SubmitResult{}
	err := c.retry.Do(ctx, "submit solution", func(ctx context.Context) error {
		body, err := c.get(ctx, validatePath+solution.Base58(), c.timeout)
		if err != nil {
			return err
		}
		return errors.Wrap(json.Unmarshal(body, result), "failed to decode validation result")
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("Submitted solution %s: valid=%t valid_math=%t", solution.Hash(), result.Valid, result.ValidMath)
	return result, nil
}
