// Package healthserver exposes the miner's state over the standard gRPC
// health checking protocol.
package healthserver

import (
	"net"
	"sync"

	"github.com/Hoosat-Oy/htnupow/util/panics"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reporting whether a search is running.
const ServiceName = "htnupow.Search"

var spawn = panics.GoroutineWrapperFunc(log)

// Server serves gRPC health checks.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server

	stopOnce sync.Once
}

// New listens on listenAddr. The search service starts NOT_SERVING.
func New(listenAddr string) (*Server, error) {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", listenAddr)
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
	}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start serves health checks in the background.
func (s *Server) Start() {
	log.Infof("Health server listening on %s", s.listener.Addr())
	spawn("healthserver.Serve", func() {
		err := s.grpcServer.Serve(s.listener)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Errorf("Health server stopped: %s", err)
		}
	})
}

// SetSearching reports whether a search is currently running.
func (s *Server) SetSearching(searching bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if searching {
		status = healthpb.HealthCheckResponse_SERVING
	}
	log.Tracef("Search health status is now %s", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks every service NOT_SERVING and stops the server.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	})
}
