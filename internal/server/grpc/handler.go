package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/rpc"
)

// toStatus maps service errors onto gRPC codes. Unexpected errors are
// logged and reported as Internal without their details.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "Request failed", "method", method, "error", err)
	return status.Error(codes.Internal, "internal error")
}

func userID(ctx context.Context) (string, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthorized")
	}
	return id, nil
}

func (s *GRPCServer) QueryPages(ctx context.Context, req *rpc.QueryPagesRequest) (*rpc.QueryPagesResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.pages.QueryPages(ctx, uid, req)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodQueryPages, err)
	}
	return resp, nil
}

func (s *GRPCServer) QueryTombstones(ctx context.Context, req *rpc.QueryTombstonesRequest) (*rpc.QueryTombstonesResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.pages.QueryTombstones(ctx, uid, req)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodQueryTombstones, err)
	}
	return resp, nil
}

func (s *GRPCServer) GetPage(ctx context.Context, req *rpc.GetPageRequest) (*rpc.GetPageResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.pages.GetPage(ctx, uid, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodGetPage, err)
	}
	return &rpc.GetPageResponse{Page: *p}, nil
}

func (s *GRPCServer) BatchWrite(ctx context.Context, req *rpc.BatchWriteRequest) (*rpc.BatchWriteResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.pages.BatchWrite(ctx, uid, req)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodBatchWrite, err)
	}
	s.logger.Info(ctx, "Batch written", "user", uid, "written", resp.Written, "deleted", resp.Deleted)
	return resp, nil
}

func (s *GRPCServer) PutTombstone(ctx context.Context, req *rpc.PutTombstoneRequest) (*rpc.PutTombstoneResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	ts, err := s.pages.PutTombstone(ctx, uid, req.PageID)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodPutTombstone, err)
	}
	return &rpc.PutTombstoneResponse{Tombstone: ts}, nil
}

func (s *GRPCServer) ExportSnapshot(ctx context.Context, _ *rpc.ExportSnapshotRequest) (*rpc.ExportSnapshotResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.pages.ExportSnapshot(ctx, uid)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodExportSnapshot, err)
	}
	s.logger.Info(ctx, "Snapshot exported", "user", uid, "key", resp.Key, "pages", resp.Pages)
	return resp, nil
}
