package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/01011010/notesum-hybrid/internal/logging"
	"github.com/01011010/notesum-hybrid/internal/models"
	"github.com/01011010/notesum-hybrid/internal/rpc"
)

// PagesService is the part of services.PagesService the handlers use.
type PagesService interface {
	QueryPages(ctx context.Context, userID string, req *rpc.QueryPagesRequest) (*rpc.QueryPagesResponse, error)
	QueryTombstones(ctx context.Context, userID string, req *rpc.QueryTombstonesRequest) (*rpc.QueryTombstonesResponse, error)
	GetPage(ctx context.Context, userID, id string) (*models.RemotePage, error)
	BatchWrite(ctx context.Context, userID string, req *rpc.BatchWriteRequest) (*rpc.BatchWriteResponse, error)
	PutTombstone(ctx context.Context, userID, pageID string) (models.Tombstone, error)
	ExportSnapshot(ctx context.Context, userID string) (*rpc.ExportSnapshotResponse, error)
}

type GRPCServer struct {
	rpc.UnimplementedNotesSyncServer
	address   string
	pages     PagesService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, ps PagesService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		pages:     ps,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	rpc.RegisterNotesSyncServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
