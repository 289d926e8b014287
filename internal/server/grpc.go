package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

const healthProbeInterval = 15 * time.Second

// HealthServer serves grpc.health.v1 and tracks database reachability.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	db     Pinger
	logger *zap.Logger
}

func NewHealthServer(db Pinger, log *zap.Logger) *HealthServer {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// reflection for grpcurl
	reflection.Register(gs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{grpc: gs, health: hs, db: db, logger: logger.OrNop(log).Named("grpc")}
}

// Serve blocks until ctx ends, then stops gracefully.
func (h *HealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go h.probe(ctx)
	go func() {
		<-ctx.Done()
		h.health.Shutdown()
		h.grpc.GracefulStop()
	}()
	h.logger.Info("grpc.health.listening", zap.String("addr", addr))
	if err := h.grpc.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (h *HealthServer) probe(ctx context.Context) {
	if h.db == nil {
		return
	}
	t := time.NewTicker(healthProbeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// Check pings the database once and updates the overall serving status.
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if h.db != nil {
		if err := h.db.HealthCheck(ctx, 2*time.Second); err != nil {
			h.logger.Warn("grpc.health.db_failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", st)
	return st
}
