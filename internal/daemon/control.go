package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/config"
	"github.com/matheus3301/relay/internal/status"
)

// ServiceName is the health service name reported for relayd.
const ServiceName = "relay.Relayd"

// ControlServer exposes gRPC health checking on the daemon's Unix socket.
type ControlServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	bus        *bus.Bus
	logger     *zap.Logger
	unsub      func()
	done       chan struct{}
}

// NewControlServer creates a gRPC server bound to the control socket.
func NewControlServer(cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*ControlServer, error) {
	socketPath := cfg.SocketPath()

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &ControlServer{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		bus:        b,
		logger:     logger,
		done:       make(chan struct{}),
	}, nil
}

// SocketPath returns the control socket path.
func (s *ControlServer) SocketPath() string {
	return s.socketPath
}

// Watch mirrors the daemon state machine into the health service.
func (s *ControlServer) Watch(m *status.Machine) {
	s.setState(m.Current())
	if s.bus == nil {
		return
	}
	ch, unsub := s.bus.Subscribe("daemon.", 16)
	s.unsub = unsub
	go func() {
		for {
			select {
			case evt := <-ch:
				if change, ok := evt.Payload.(status.StatusChange); ok {
					s.setState(change.To)
				}
			case <-s.done:
				return
			}
		}
	}()
}

func (s *ControlServer) setState(st status.State) {
	hs := healthpb.HealthCheckResponse_NOT_SERVING
	if st == status.Serving {
		hs = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", hs)
	s.health.SetServingStatus(ServiceName, hs)
	s.logger.Info("daemon state", zap.String("state", string(st)))
}

// Start begins serving gRPC requests. Blocks until stopped.
func (s *ControlServer) Start() error {
	s.logger.Info("control server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop shuts down gracefully, forcing it when ctx expires, and removes the
// socket file.
func (s *ControlServer) Stop(ctx context.Context) {
	s.logger.Info("control server stopping")
	if s.unsub != nil {
		s.unsub()
	}
	close(s.done)
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	// Serve closes the listener on stop; this covers a server that never started.
	_ = s.listener.Close()
	_ = os.Remove(s.socketPath)
}
