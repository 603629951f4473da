// Package rpc is the wire contract between the notepad client and the
// remote page store.
//
// The service is described by a hand-written grpc.ServiceDesc and carried
// with the JSON codec registered in this package, so no generated code is
// involved. Both sides share the message types in messages.go.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "notesum.sync.NotesSync"

const (
	MethodQueryPages      = "QueryPages"
	MethodQueryTombstones = "QueryTombstones"
	MethodGetPage         = "GetPage"
	MethodBatchWrite      = "BatchWrite"
	MethodPutTombstone    = "PutTombstone"
	MethodExportSnapshot  = "ExportSnapshot"
)

// FullMethod returns the gRPC method path, e.g. "/notesum.sync.NotesSync/GetPage".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// NotesSyncServer is implemented by the remote page store.
type NotesSyncServer interface {
	QueryPages(ctx context.Context, req *QueryPagesRequest) (*QueryPagesResponse, error)
	QueryTombstones(ctx context.Context, req *QueryTombstonesRequest) (*QueryTombstonesResponse, error)
	GetPage(ctx context.Context, req *GetPageRequest) (*GetPageResponse, error)
	BatchWrite(ctx context.Context, req *BatchWriteRequest) (*BatchWriteResponse, error)
	PutTombstone(ctx context.Context, req *PutTombstoneRequest) (*PutTombstoneResponse, error)
	ExportSnapshot(ctx context.Context, req *ExportSnapshotRequest) (*ExportSnapshotResponse, error)
}

// UnimplementedNotesSyncServer answers every call with codes.Unimplemented.
// Embed it to stay forward compatible.
type UnimplementedNotesSyncServer struct{}

func (UnimplementedNotesSyncServer) QueryPages(context.Context, *QueryPagesRequest) (*QueryPagesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method QueryPages not implemented")
}

func (UnimplementedNotesSyncServer) QueryTombstones(context.Context, *QueryTombstonesRequest) (*QueryTombstonesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method QueryTombstones not implemented")
}

func (UnimplementedNotesSyncServer) GetPage(context.Context, *GetPageRequest) (*GetPageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPage not implemented")
}

func (UnimplementedNotesSyncServer) BatchWrite(context.Context, *BatchWriteRequest) (*BatchWriteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method BatchWrite not implemented")
}

func (UnimplementedNotesSyncServer) PutTombstone(context.Context, *PutTombstoneRequest) (*PutTombstoneResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PutTombstone not implemented")
}

func (UnimplementedNotesSyncServer) ExportSnapshot(context.Context, *ExportSnapshotRequest) (*ExportSnapshotResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ExportSnapshot not implemented")
}

func unary[Req, Resp any](method string, call func(NotesSyncServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(NotesSyncServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(NotesSyncServer), ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes NotesSync for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NotesSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodQueryPages, NotesSyncServer.QueryPages),
		unary(MethodQueryTombstones, NotesSyncServer.QueryTombstones),
		unary(MethodGetPage, NotesSyncServer.GetPage),
		unary(MethodBatchWrite, NotesSyncServer.BatchWrite),
		unary(MethodPutTombstone, NotesSyncServer.PutTombstone),
		unary(MethodExportSnapshot, NotesSyncServer.ExportSnapshot),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notesum/sync",
}

func RegisterNotesSyncServer(s grpc.ServiceRegistrar, srv NotesSyncServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NotesSyncClient is the client stub. Every call uses the JSON codec.
type NotesSyncClient struct {
	cc grpc.ClientConnInterface
}

func NewNotesSyncClient(cc grpc.ClientConnInterface) *NotesSyncClient {
	return &NotesSyncClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *NotesSyncClient) QueryPages(ctx context.Context, in *QueryPagesRequest, opts ...grpc.CallOption) (*QueryPagesResponse, error) {
	return invoke[QueryPagesResponse](ctx, c.cc, MethodQueryPages, in, opts)
}

func (c *NotesSyncClient) QueryTombstones(ctx context.Context, in *QueryTombstonesRequest, opts ...grpc.CallOption) (*QueryTombstonesResponse, error) {
	return invoke[QueryTombstonesResponse](ctx, c.cc, MethodQueryTombstones, in, opts)
}

func (c *NotesSyncClient) GetPage(ctx context.Context, in *GetPageRequest, opts ...grpc.CallOption) (*GetPageResponse, error) {
	return invoke[GetPageResponse](ctx, c.cc, MethodGetPage, in, opts)
}

func (c *NotesSyncClient) BatchWrite(ctx context.Context, in *BatchWriteRequest, opts ...grpc.CallOption) (*BatchWriteResponse, error) {
	return invoke[BatchWriteResponse](ctx, c.cc, MethodBatchWrite, in, opts)
}

func (c *NotesSyncClient) PutTombstone(ctx context.Context, in *PutTombstoneRequest, opts ...grpc.CallOption) (*PutTombstoneResponse, error) {
	return invoke[PutTombstoneResponse](ctx, c.cc, MethodPutTombstone, in, opts)
}

func (c *NotesSyncClient) ExportSnapshot(ctx context.Context, in *ExportSnapshotRequest, opts ...grpc.CallOption) (*ExportSnapshotResponse, error) {
	return invoke[ExportSnapshotResponse](ctx, c.cc, MethodExportSnapshot, in, opts)
}
