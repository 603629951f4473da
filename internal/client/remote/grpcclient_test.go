package remote

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/models"
	"github.com/01011010/notesum-hybrid/internal/rpc"
)

var t0 = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

type fakeServer struct {
	rpc.UnimplementedNotesSyncServer
	token     string
	err       error
	lastQuery *rpc.QueryPagesRequest
	lastWrite *rpc.BatchWriteRequest
	tombFor   string
}

func (f *fakeServer) record(ctx context.Context) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
			f.token = v[0]
		}
	}
}

func (f *fakeServer) QueryPages(ctx context.Context, req *rpc.QueryPagesRequest) (*rpc.QueryPagesResponse, error) {
	f.record(ctx)
	f.lastQuery = req
	if f.err != nil {
		return nil, f.err
	}
	return &rpc.QueryPagesResponse{Pages: []models.RemotePage{{ID: "a", SyncedAt: t0}}, NextCursor: "c1"}, nil
}

func (f *fakeServer) QueryTombstones(ctx context.Context, req *rpc.QueryTombstonesRequest) (*rpc.QueryTombstonesResponse, error) {
	return &rpc.QueryTombstonesResponse{Tombstones: []models.Tombstone{{ID: 1, PageID: "gone"}}}, nil
}

func (f *fakeServer) GetPage(ctx context.Context, req *rpc.GetPageRequest) (*rpc.GetPageResponse, error) {
	if req.ID != "a" {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return &rpc.GetPageResponse{Page: models.RemotePage{ID: "a", Content: "x"}}, nil
}

func (f *fakeServer) BatchWrite(ctx context.Context, req *rpc.BatchWriteRequest) (*rpc.BatchWriteResponse, error) {
	f.lastWrite = req
	if f.err != nil {
		return nil, f.err
	}
	return &rpc.BatchWriteResponse{SyncedAt: t0, Written: len(req.Upserts)}, nil
}

func (f *fakeServer) PutTombstone(ctx context.Context, req *rpc.PutTombstoneRequest) (*rpc.PutTombstoneResponse, error) {
	f.tombFor = req.PageID
	return &rpc.PutTombstoneResponse{}, nil
}

func (f *fakeServer) ExportSnapshot(ctx context.Context, _ *rpc.ExportSnapshotRequest) (*rpc.ExportSnapshotResponse, error) {
	return &rpc.ExportSnapshotResponse{URL: "https://s3/k", Key: "k", Pages: 2}, nil
}

func newClient(t *testing.T, srv rpc.NotesSyncServer, servingStatus healthpb.HealthCheckResponse_ServingStatus) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterNotesSyncServer(s, srv)
	hs := health.NewServer()
	hs.SetServingStatus(rpc.ServiceName, servingStatus)
	healthpb.RegisterHealthServer(s, hs)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", "tok-1",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClient_CallsCarryToken(t *testing.T) {
	srv := &fakeServer{}
	c := newClient(t, srv, healthpb.HealthCheckResponse_SERVING)
	ctx := context.Background()

	list, next, err := c.QueryPages(ctx, t0, "", 50)
	require.NoError(t, err)
	assert.Equal(t, "c1", next)
	require.Len(t, list, 1)
	assert.True(t, list[0].SyncedAt.Equal(t0))
	assert.Equal(t, "tok-1", srv.token)
	assert.Equal(t, 50, srv.lastQuery.Limit)

	c.SetToken("tok-2")
	_, _, err = c.QueryPages(ctx, t0, "c1", 50)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", srv.token)
	assert.Equal(t, "c1", srv.lastQuery.Cursor)
}

func TestGRPCClient_Operations(t *testing.T) {
	srv := &fakeServer{}
	c := newClient(t, srv, healthpb.HealthCheckResponse_SERVING)
	ctx := context.Background()

	ts, _, err := c.QueryTombstones(ctx, time.Time{}, "", 10)
	require.NoError(t, err)
	assert.Equal(t, "gone", ts[0].PageID)

	p, err := c.GetPage(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "x", p.Content)

	_, err = c.GetPage(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	at, err := c.BatchWrite(ctx, []models.RemotePage{{ID: "a"}}, []string{"b"})
	require.NoError(t, err)
	assert.True(t, at.Equal(t0))
	assert.Equal(t, []string{"b"}, srv.lastWrite.Deletes)

	require.NoError(t, c.PutTombstone(ctx, "z"))
	assert.Equal(t, "z", srv.tombFor)

	snap, err := c.ExportSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Pages)
}

func TestGRPCClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unauthenticated", status.Error(codes.Unauthenticated, "missing token"), ErrUnauthorized},
		{"permission", status.Error(codes.PermissionDenied, "no"), ErrUnauthorized},
		{"unavailable", status.Error(codes.Unavailable, "down"), ErrUnavailable},
		{"validation", status.Error(codes.InvalidArgument, "bad"), common.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(t, &fakeServer{err: tc.err}, healthpb.HealthCheckResponse_SERVING)

			_, err := c.BatchWrite(context.Background(), nil, nil)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	c := newClient(t, &fakeServer{err: status.Error(codes.Internal, "internal error")}, healthpb.HealthCheckResponse_SERVING)
	_, _, err := c.QueryPages(context.Background(), t0, "", 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "rpc error")
}

func TestGRPCClient_Ping(t *testing.T) {
	c := newClient(t, &fakeServer{}, healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, c.Ping(context.Background()))

	c = newClient(t, &fakeServer{}, healthpb.HealthCheckResponse_NOT_SERVING)
	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}
