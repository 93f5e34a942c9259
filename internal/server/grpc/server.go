package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/emmett/voxrec/internal/logging"
	"github.com/emmett/voxrec/internal/recording"
)

// Server wraps the gRPC server and services
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	addr       string
	log        *zap.Logger
}

// Config holds server configuration
type Config struct {
	Host string
	Port int

	// ChunkQueue bounds the buffers waiting to be streamed per recording
	ChunkQueue int
}

// NewServer creates a gRPC server exposing the capture service for rec
func NewServer(cfg Config, rec *recording.Recorder, log *zap.Logger) *Server {
	log = logging.OrNop(log)

	s := &Server{
		grpcServer: grpc.NewServer(
			grpc.ChainUnaryInterceptor(unaryLogger(log)),
			grpc.ChainStreamInterceptor(streamLogger(log)),
		),
		health: health.NewServer(),
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		log:    log,
	}

	RegisterCaptureServer(s.grpcServer, NewCaptureService(rec, cfg.ChunkQueue, log))
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(CaptureServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// Start listens on the configured address and serves until stopped
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the server
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func unaryLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("unary call",
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return resp, err
	}
}

func streamLogger(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		log.Debug("stream call",
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}
}
