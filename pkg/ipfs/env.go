package ipfs

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const envAPIURL = "IPFS_API_URL"

// NewFromEnv initialises a Client from the IPFS_API_URL environment
// variable, e.g. "http://127.0.0.1:5001". Extra options are applied after
// the parsed connection parameters.
func NewFromEnv(opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(os.Getenv(envAPIURL))
	if raw == "" {
		return nil, fmt.Errorf("ipfs: %s is not set", envAPIURL)
	}
	parsed, err := parseAPIURL(raw)
	if err != nil {
		return nil, err
	}
	return New(append(parsed, opts...)...), nil
}

func parseAPIURL(raw string) ([]Option, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("ipfs: invalid %s: %w", envAPIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ipfs: invalid %s: unsupported scheme %q", envAPIURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("ipfs: invalid %s: missing host", envAPIURL)
	}

	opts := []Option{WithScheme(u.Scheme), WithHost(u.Hostname())}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 {
			return nil, fmt.Errorf("ipfs: invalid %s: bad port %q", envAPIURL, p)
		}
		opts = append(opts, WithPort(port))
	}
	return opts, nil
}
