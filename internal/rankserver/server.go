// Package rankserver hosts one MPC rank's gRPC Exchange endpoint so a
// genuine multi-process deployment can run the phases over
// exchange.GRPCTransport instead of the in-process transport used by
// tests and single-binary runs.
package rankserver

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/sublinear-mpc/matching/internal/mpc/exchange"
	"github.com/sublinear-mpc/matching/pkg/errors"
	"github.com/sublinear-mpc/matching/pkg/utils"
)

// Server wraps a grpc.Server registered with one rank's ExchangeServer
// implementation, listening for Transfer RPCs from every peer rank.
type Server struct {
	addr       string
	logger     utils.Logger
	grpcServer *grpc.Server
	listener   net.Listener
}

// New builds a rank server that will register transport's ExchangeServer
// once Start is called.
func New(addr string, transport *exchange.GRPCTransport, logger utils.Logger) *Server {
	gs := grpc.NewServer()
	exchange.RegisterExchangeServer(gs, transport.Server())
	return &Server{
		addr:       addr,
		logger:     logger,
		grpcServer: gs,
	}
}

// Start binds addr and blocks serving Transfer RPCs until Shutdown is
// called or Serve returns an error.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrap(errors.CodeIOError, fmt.Sprintf("listening on %s", s.addr), err)
	}
	s.listener = lis

	s.logger.Info("rank server listening at %s", s.addr)
	if err := s.grpcServer.Serve(lis); err != nil {
		return errors.Wrap(errors.CodeIOError, "serving exchange rpc", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight Transfer
// calls to complete. ctx is honored by forcing a stop if it expires
// before GracefulStop returns.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		return ctx.Err()
	}
}
