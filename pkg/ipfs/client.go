package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/KovaSystems/ipfs_sdk_go/internal/httpx"
	"github.com/KovaSystems/ipfs_sdk_go/internal/ipfsapi"
)

// Construction defaults for a locally running daemon.
const (
	DefaultHost   = "127.0.0.1"
	DefaultPort   = 5001
	DefaultScheme = "http"
)

type connState int

const (
	stateUnconnected connState = iota
	stateConnected
	stateClosed
)

// Option configures a Client.
type Option func(*Client)

// WithHost sets the daemon host.
func WithHost(host string) Option {
	return func(c *Client) {
		if host != "" {
			c.host = host
		}
	}
}

// WithPort sets the daemon API port.
func WithPort(port int) Option {
	return func(c *Client) {
		if port > 0 {
			c.port = port
		}
	}
}

// WithScheme sets the transport scheme (http or https).
func WithScheme(scheme string) Option {
	return func(c *Client) {
		if scheme != "" {
			c.scheme = scheme
		}
	}
}

// WithTimeout sets the per-call deadline enforced on every operation.
// Zero disables deadline enforcement. Defaults to httpx.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient overrides the HTTP client used for transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFs overrides the filesystem used by AddFile and GetFile.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithBackend substitutes the transport entirely (e.g. the mock package).
// Connect still probes the backend before marking the client connected.
func WithBackend(b Backend) Option {
	return func(c *Client) {
		c.override = b
	}
}

// Client manages one logical connection to a node's HTTP API and exposes
// typed operations over it.
//
// The client moves through Unconnected -> Connected -> Closed. Data
// operations require an explicit Connect first; calling one while not
// connected fails with ErrConnection (there is no auto-connect). Close is
// idempotent, and a closed client can be reconnected with a fresh Connect.
//
// Connect and Close mutate state under a mutex; the data operations only
// read it, and the HTTP backend is safe for concurrent use, so operations
// may be issued concurrently once connected. No operation retries
// internally.
type Client struct {
	host       string
	port       int
	scheme     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
	fs         afero.Fs
	override   Backend

	mu      sync.Mutex
	state   connState
	backend Backend
}

// New constructs a Client for scheme://host:port/api/v0. The zero
// configuration targets a local daemon on 127.0.0.1:5001 over http.
func New(opts ...Option) *Client {
	c := &Client{
		host:    DefaultHost,
		port:    DefaultPort,
		scheme:  DefaultScheme,
		timeout: httpx.DefaultTimeout,
		logger:  zap.NewNop(),
		fs:      afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIURL returns the base URL of the node API the client targets.
func (c *Client) APIURL() string {
	return fmt.Sprintf("%s://%s/api/v0", c.scheme, net.JoinHostPort(c.host, strconv.Itoa(c.port)))
}

// Connect establishes the transport handle and probes the node's identity
// endpoint. Any failure, including an unreachable host or a bad handshake,
// surfaces as ErrConnection. Connecting an already-connected client is a
// no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateConnected {
		return nil
	}

	backend := c.override
	if backend == nil {
		hc, err := httpx.NewClient(c.APIURL(),
			httpx.WithTimeout(c.timeout),
			httpx.WithHTTPClient(c.httpClient),
		)
		if err != nil {
			return connError("connect", err)
		}
		backend = &httpBackend{client: hc}
	}

	identity, err := backend.ID(ctx)
	if err != nil {
		return connError("connect", err)
	}

	c.backend = backend
	c.state = stateConnected
	c.logger.Debug("connected to node",
		zap.String("api", c.APIURL()),
		zap.String("peer", identity.ID),
	)
	return nil
}

// Close releases the transport handle. It is idempotent: closing an
// already-closed or never-opened client is a no-op. Subsequent operations
// fail with ErrConnection until Connect is called again.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if closer, ok := c.backend.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
	c.backend = nil
	c.state = stateClosed
	return nil
}

// Session runs fn against a connected client and guarantees Close runs
// afterwards, whether fn succeeds or not.
func (c *Client) Session(ctx context.Context, fn func(*Client) error) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func (c *Client) acquire(op string) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateConnected:
		return c.backend, nil
	case stateClosed:
		return nil, connError(op, errors.New("client is closed"))
	default:
		return nil, connError(op, errors.New("client is not connected"))
	}
}

// AddFile reads the file at path and submits it to the node, returning the
// resulting content identifier. The content is pinned unless opts disable it.
func (c *Client) AddFile(ctx context.Context, path string, opts *AddOptions) (string, error) {
	b, err := c.acquire("add file")
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return "", opError("add file", err)
	}
	cid, err := b.Add(ctx, data, opts.pin())
	if err != nil {
		return "", opError("add file", err)
	}
	c.logger.Debug("added file",
		zap.String("path", path),
		zap.String("cid", cid),
		zap.Int("bytes", len(data)),
	)
	return cid, nil
}

// AddData serializes payload per its tag and submits the bytes to the node.
func (c *Client) AddData(ctx context.Context, payload Payload, opts *AddOptions) (string, error) {
	b, err := c.acquire("add data")
	if err != nil {
		return "", err
	}
	data, err := payload.Encode()
	if err != nil {
		return "", opError("add data", err)
	}
	cid, err := b.Add(ctx, data, opts.pin())
	if err != nil {
		return "", opError("add data", err)
	}
	c.logger.Debug("added data",
		zap.Stringer("kind", payload.Kind()),
		zap.String("cid", cid),
		zap.Int("bytes", len(data)),
	)
	return cid, nil
}

// GetFile fetches the full object for cid. When outputPath is non-empty the
// bytes are also written there, creating parent directories as needed and
// overwriting existing content. The bytes are returned either way.
func (c *Client) GetFile(ctx context.Context, cid string, outputPath string) ([]byte, error) {
	b, err := c.acquire("get file")
	if err != nil {
		return nil, err
	}
	data, err := b.Cat(ctx, cid)
	if err != nil {
		return nil, opError("get file", err)
	}
	if outputPath != "" {
		if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
			if err := c.fs.MkdirAll(dir, 0o755); err != nil {
				return nil, opError("get file", err)
			}
		}
		if err := afero.WriteFile(c.fs, outputPath, data, 0o644); err != nil {
			return nil, opError("get file", err)
		}
	}
	c.logger.Debug("fetched file",
		zap.String("cid", cid),
		zap.String("output", outputPath),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}

// GetData fetches the bytes for cid and decodes them opportunistically:
// JSON first, then UTF-8 text, then raw bytes. Decode ambiguity never
// fails; only the fetch can.
func (c *Client) GetData(ctx context.Context, cid string) (Payload, error) {
	b, err := c.acquire("get data")
	if err != nil {
		return Payload{}, err
	}
	data, err := b.Cat(ctx, cid)
	if err != nil {
		return Payload{}, opError("get data", err)
	}
	return DecodePayload(data), nil
}

// Pin asks the node to recursively pin cid.
func (c *Client) Pin(ctx context.Context, cid string) error {
	b, err := c.acquire("pin")
	if err != nil {
		return err
	}
	if err := b.PinAdd(ctx, cid); err != nil {
		return opError("pin", err)
	}
	return nil
}

// Unpin asks the node to remove the recursive pin for cid. Unpinning a
// not-currently-pinned identifier surfaces the node's own error.
func (c *Client) Unpin(ctx context.Context, cid string) error {
	b, err := c.acquire("unpin")
	if err != nil {
		return err
	}
	if err := b.PinRm(ctx, cid); err != nil {
		return opError("unpin", err)
	}
	return nil
}

// ListPins returns all recursively pinned identifiers, sorted.
func (c *Client) ListPins(ctx context.Context) ([]string, error) {
	b, err := c.acquire("list pins")
	if err != nil {
		return nil, err
	}
	cids, err := b.PinLs(ctx)
	if err != nil {
		return nil, opError("list pins", err)
	}
	return cids, nil
}

// Stats returns the node's bandwidth statistics verbatim.
func (c *Client) Stats(ctx context.Context) (*BandwidthStats, error) {
	b, err := c.acquire("stats")
	if err != nil {
		return nil, err
	}
	stats, err := b.StatsBW(ctx)
	if err != nil {
		return nil, opError("stats", err)
	}
	return stats, nil
}

// IsConnected probes the node's identity endpoint and reports liveness.
// It returns false on any failure and never returns an error.
func (c *Client) IsConnected(ctx context.Context) bool {
	c.mu.Lock()
	b := c.backend
	connected := c.state == stateConnected
	c.mu.Unlock()

	if !connected || b == nil {
		return false
	}
	_, err := b.ID(ctx)
	return err == nil
}

// httpBackend talks to a live node over its HTTP RPC. The daemon expects
// POST for every endpoint.
type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) do(ctx context.Context, req *httpx.Request) (*http.Response, error) {
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			return nil, ipfsapi.DecodeError(httpErr.StatusCode, httpErr.Body)
		}
		return nil, err
	}
	return resp, nil
}

func (b *httpBackend) Add(ctx context.Context, data []byte, pin bool) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "file")
	if err != nil {
		return "", fmt.Errorf("build add request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build add request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build add request: %w", err)
	}

	resp, err := b.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "add",
		Query:  url.Values{"pin": {strconv.FormatBool(pin)}},
		Header: http.Header{"Content-Type": {mw.FormDataContentType()}},
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	payload, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return "", err
	}
	return ipfsapi.ParseAddResponse(payload)
}

func (b *httpBackend) Cat(ctx context.Context, cid string) ([]byte, error) {
	resp, err := b.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "cat",
		Query:  url.Values{"arg": {cid}},
	})
	if err != nil {
		return nil, err
	}
	return httpx.ReadAllAndClose(resp.Body)
}

func (b *httpBackend) PinAdd(ctx context.Context, cid string) error {
	resp, err := b.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "pin/add",
		Query:  url.Values{"arg": {cid}},
	})
	if err != nil {
		return err
	}
	_, err = httpx.ReadAllAndClose(resp.Body)
	return err
}

func (b *httpBackend) PinRm(ctx context.Context, cid string) error {
	resp, err := b.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "pin/rm",
		Query:  url.Values{"arg": {cid}},
	})
	if err != nil {
		return err
	}
	_, err = httpx.ReadAllAndClose(resp.Body)
	return err
}

func (b *httpBackend) PinLs(ctx context.Context) ([]string, error) {
	resp, err := b.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "pin/ls",
		Query:  url.Values{"type": {"recursive"}},
	})
	if err != nil {
		return nil, err
	}
	payload, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, err
	}
	return ipfsapi.ParsePinLs(payload)
}

func (b *httpBackend) StatsBW(ctx context.Context) (*BandwidthStats, error) {
	resp, err := b.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "stats/bw",
	})
	if err != nil {
		return nil, err
	}
	payload, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, err
	}
	var stats BandwidthStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return nil, fmt.Errorf("decode stats/bw response: %w", err)
	}
	return &stats, nil
}

func (b *httpBackend) ID(ctx context.Context) (*NodeIdentity, error) {
	resp, err := b.do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "id",
	})
	if err != nil {
		return nil, err
	}
	payload, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, err
	}
	var identity NodeIdentity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return nil, fmt.Errorf("decode id response: %w", err)
	}
	return &identity, nil
}

func (b *httpBackend) CloseIdleConnections() {
	b.client.CloseIdleConnections()
}
