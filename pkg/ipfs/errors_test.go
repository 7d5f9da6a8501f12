package ipfs

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KovaSystems/ipfs_sdk_go/internal/ipfsapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "context deadline",
			err:  context.DeadlineExceeded,
			want: KindTimeout,
		},
		{
			name: "net timeout",
			err:  &net.DNSError{Err: "lookup timed out", IsTimeout: true},
			want: KindTimeout,
		},
		{
			name: "dial refused",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			want: KindConnection,
		},
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host"},
			want: KindConnection,
		},
		{
			name: "node error envelope",
			err:  ipfsapi.DecodeError(500, []byte(`{"Message":"not pinned"}`)),
			want: KindOperation,
		},
		{
			name: "filesystem error",
			err:  &fs.PathError{Op: "open", Path: "/missing", Err: os.ErrNotExist},
			want: KindOperation,
		},
		{
			name: "plain error",
			err:  errors.New("something else"),
			want: KindOperation,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, classify(tc.err))
		})
	}
}

func TestOpErrorIsFolding(t *testing.T) {
	timeout := &OpError{Kind: KindTimeout, Op: "get data", Err: context.DeadlineExceeded}
	require.ErrorIs(t, timeout, ErrOperation)
	require.ErrorIs(t, timeout, ErrTimeout)
	require.NotErrorIs(t, timeout, ErrConnection)

	conn := &OpError{Kind: KindConnection, Op: "connect", Err: errors.New("refused")}
	require.ErrorIs(t, conn, ErrOperation)
	require.ErrorIs(t, conn, ErrConnection)
	require.NotErrorIs(t, conn, ErrTimeout)

	op := &OpError{Kind: KindOperation, Op: "pin", Err: errors.New("rejected")}
	require.ErrorIs(t, op, ErrOperation)
	require.NotErrorIs(t, op, ErrConnection)
	require.NotErrorIs(t, op, ErrTimeout)
}

func TestOpErrorWrapsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := opError("add data", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "add data")
	require.Contains(t, err.Error(), "root cause")
}

func TestOpErrorPassthrough(t *testing.T) {
	// Already-classified errors keep their kind and operation.
	inner := connError("connect", errors.New("refused"))
	outer := opError("stats", inner)
	require.Same(t, inner, outer)
	require.ErrorIs(t, outer, ErrConnection)
}

func TestOpErrorNil(t *testing.T) {
	require.NoError(t, opError("noop", nil))
}
