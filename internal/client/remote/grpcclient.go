// Package remote talks to the notes server over gRPC.
package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/models"
	"github.com/01011010/notesum-hybrid/internal/rpc"
)

const pingTimeout = 3 * time.Second

type GRPCClient struct {
	conn   *grpc.ClientConn
	client *rpc.NotesSyncClient
	health healthpb.HealthClient

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.Token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient prepares a lazy connection to endpoint. Extra dial options
// are appended after the defaults.
func NewGRPCClient(endpoint, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{accessToken: accessToken}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client: %w", err)
	}
	c.conn = conn
	c.client = rpc.NewNotesSyncClient(conn)
	c.health = healthpb.NewHealthClient(conn)
	return c, nil
}

func (s *GRPCClient) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) SetToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.NotFound:
		return common.ErrNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrValidation, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

// Ping asks the server's health service whether the sync service is up.
func (s *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}

func (s *GRPCClient) QueryPages(ctx context.Context, since time.Time, cursor string, limit int) ([]models.RemotePage, string, error) {
	resp, err := s.client.QueryPages(ctx, &rpc.QueryPagesRequest{Since: since, Cursor: cursor, Limit: limit})
	if err != nil {
		return nil, "", s.mapError(err)
	}
	return resp.Pages, resp.NextCursor, nil
}

func (s *GRPCClient) QueryTombstones(ctx context.Context, since time.Time, cursor string, limit int) ([]models.Tombstone, string, error) {
	resp, err := s.client.QueryTombstones(ctx, &rpc.QueryTombstonesRequest{Since: since, Cursor: cursor, Limit: limit})
	if err != nil {
		return nil, "", s.mapError(err)
	}
	return resp.Tombstones, resp.NextCursor, nil
}

func (s *GRPCClient) GetPage(ctx context.Context, id string) (*models.RemotePage, error) {
	resp, err := s.client.GetPage(ctx, &rpc.GetPageRequest{ID: id})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Page, nil
}

// BatchWrite commits upserts and deletes atomically and returns the time
// the server stamped on them.
func (s *GRPCClient) BatchWrite(ctx context.Context, upserts []models.RemotePage, deletes []string) (time.Time, error) {
	resp, err := s.client.BatchWrite(ctx, &rpc.BatchWriteRequest{Upserts: upserts, Deletes: deletes})
	if err != nil {
		return time.Time{}, s.mapError(err)
	}
	return resp.SyncedAt, nil
}

func (s *GRPCClient) PutTombstone(ctx context.Context, pageID string) error {
	_, err := s.client.PutTombstone(ctx, &rpc.PutTombstoneRequest{PageID: pageID})
	return s.mapError(err)
}

func (s *GRPCClient) ExportSnapshot(ctx context.Context) (*rpc.ExportSnapshotResponse, error) {
	resp, err := s.client.ExportSnapshot(ctx, &rpc.ExportSnapshotRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}
