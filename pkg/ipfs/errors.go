package ipfs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind partitions every failure the client can surface.
type Kind int

const (
	// KindOperation covers any failure not otherwise classified: a missing
	// file, a rejected add or pin, a malformed response.
	KindOperation Kind = iota
	// KindConnection covers failures to establish or keep the transport
	// handle to the node.
	KindConnection
	// KindTimeout covers operations that exceeded their per-call deadline.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	default:
		return "operation"
	}
}

// Sentinels for errors.Is checks. ErrOperation matches every error the
// client returns; ErrConnection and ErrTimeout match only their kind.
var (
	ErrOperation  = errors.New("ipfs: operation failed")
	ErrConnection = errors.New("ipfs: connection failed")
	ErrTimeout    = errors.New("ipfs: operation timed out")
)

// OpError is the only error type that crosses the package boundary. It
// carries the failed operation, its kind, and the underlying cause.
type OpError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ipfs: %s: %s failed", e.Op, e.Kind)
	}
	return fmt.Sprintf("ipfs: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Is folds every kind into ErrOperation while keeping ErrConnection and
// ErrTimeout kind-specific.
func (e *OpError) Is(target error) bool {
	switch target {
	case ErrOperation:
		return true
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrTimeout:
		return e.Kind == KindTimeout
	}
	return false
}

// classify maps a transport-level failure onto the taxonomy:
// deadline and net timeouts onto KindTimeout, dial/DNS/socket failures onto
// KindConnection, everything else (HTTP status errors, decode failures,
// filesystem errors) onto KindOperation.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	return KindOperation
}

// opError wraps err as an *OpError, classifying its kind. Errors that are
// already classified pass through unchanged.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Kind: classify(err), Op: op, Err: err}
}

// connError wraps err as a connection-kind *OpError regardless of cause.
func connError(op string, err error) error {
	return &OpError{Kind: KindConnection, Op: op, Err: err}
}
