package rankserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sublinear-mpc/matching/internal/mpc/exchange"
	"github.com/sublinear-mpc/matching/pkg/utils"
)

func TestServer_StartAndShutdown(t *testing.T) {
	logger := &utils.NullLogger{}

	self, err := grpc.NewClient("127.0.0.1:0", grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	conns := []grpc.ClientConnInterface{self}
	transport, err := exchange.NewGRPCTransport(0, conns)
	require.NoError(t, err)

	srv := New("127.0.0.1:0", transport, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Give the listener goroutine a moment to bind before shutting down;
	// Start itself races with net.Listen so there is nothing else to
	// synchronize on here.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop after Shutdown")
	}
}
