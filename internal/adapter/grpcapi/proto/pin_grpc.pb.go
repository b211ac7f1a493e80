//go:build grpc

// Hand-written gRPC service definitions for the pin service, using a JSON
// codec as the wire format.

package proto

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

func init() {
	// Registers process-wide; calls opt in with grpc.CallContentSubtype("json").
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

const serviceName = "pinengine.v1.PinService"

// PinServiceClient is the client API for PinService.
type PinServiceClient interface {
	SetPin(ctx context.Context, in *SetPinRequest, opts ...grpc.CallOption) (*SetPinResponse, error)
	ApplyBatch(ctx context.Context, in *ApplyBatchRequest, opts ...grpc.CallOption) (*ApplyBatchResponse, error)
	ReadPin(ctx context.Context, in *PinRequest, opts ...grpc.CallOption) (*ReadPinResponse, error)
	ReadADC(ctx context.Context, in *PinRequest, opts ...grpc.CallOption) (*ReadADCResponse, error)
	Blink(ctx context.Context, in *BlinkRequest, opts ...grpc.CallOption) (*BlinkResponse, error)
	ListPins(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListPinsResponse, error)
	Status(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*StatusResponse, error)
}

type pinServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPinServiceClient creates a new PinServiceClient.
func NewPinServiceClient(cc grpc.ClientConnInterface) PinServiceClient {
	return &pinServiceClient{cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append(opts, grpc.CallContentSubtype("json"))
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pinServiceClient) SetPin(ctx context.Context, in *SetPinRequest, opts ...grpc.CallOption) (*SetPinResponse, error) {
	return invoke[SetPinRequest, SetPinResponse](ctx, c.cc, "SetPin", in, opts)
}

func (c *pinServiceClient) ApplyBatch(ctx context.Context, in *ApplyBatchRequest, opts ...grpc.CallOption) (*ApplyBatchResponse, error) {
	return invoke[ApplyBatchRequest, ApplyBatchResponse](ctx, c.cc, "ApplyBatch", in, opts)
}

func (c *pinServiceClient) ReadPin(ctx context.Context, in *PinRequest, opts ...grpc.CallOption) (*ReadPinResponse, error) {
	return invoke[PinRequest, ReadPinResponse](ctx, c.cc, "ReadPin", in, opts)
}

func (c *pinServiceClient) ReadADC(ctx context.Context, in *PinRequest, opts ...grpc.CallOption) (*ReadADCResponse, error) {
	return invoke[PinRequest, ReadADCResponse](ctx, c.cc, "ReadADC", in, opts)
}

func (c *pinServiceClient) Blink(ctx context.Context, in *BlinkRequest, opts ...grpc.CallOption) (*BlinkResponse, error) {
	return invoke[BlinkRequest, BlinkResponse](ctx, c.cc, "Blink", in, opts)
}

func (c *pinServiceClient) ListPins(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListPinsResponse, error) {
	return invoke[Empty, ListPinsResponse](ctx, c.cc, "ListPins", in, opts)
}

func (c *pinServiceClient) Status(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[Empty, StatusResponse](ctx, c.cc, "Status", in, opts)
}

// PinServiceServer is the server API for PinService.
type PinServiceServer interface {
	SetPin(context.Context, *SetPinRequest) (*SetPinResponse, error)
	ApplyBatch(context.Context, *ApplyBatchRequest) (*ApplyBatchResponse, error)
	ReadPin(context.Context, *PinRequest) (*ReadPinResponse, error)
	ReadADC(context.Context, *PinRequest) (*ReadADCResponse, error)
	Blink(context.Context, *BlinkRequest) (*BlinkResponse, error)
	ListPins(context.Context, *Empty) (*ListPinsResponse, error)
	Status(context.Context, *Empty) (*StatusResponse, error)
	mustEmbedUnimplementedPinServiceServer()
}

// UnimplementedPinServiceServer provides default implementations.
type UnimplementedPinServiceServer struct{}

func (UnimplementedPinServiceServer) SetPin(context.Context, *SetPinRequest) (*SetPinResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetPin not implemented")
}
func (UnimplementedPinServiceServer) ApplyBatch(context.Context, *ApplyBatchRequest) (*ApplyBatchResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ApplyBatch not implemented")
}
func (UnimplementedPinServiceServer) ReadPin(context.Context, *PinRequest) (*ReadPinResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReadPin not implemented")
}
func (UnimplementedPinServiceServer) ReadADC(context.Context, *PinRequest) (*ReadADCResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReadADC not implemented")
}
func (UnimplementedPinServiceServer) Blink(context.Context, *BlinkRequest) (*BlinkResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Blink not implemented")
}
func (UnimplementedPinServiceServer) ListPins(context.Context, *Empty) (*ListPinsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListPins not implemented")
}
func (UnimplementedPinServiceServer) Status(context.Context, *Empty) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Status not implemented")
}
func (UnimplementedPinServiceServer) mustEmbedUnimplementedPinServiceServer() {}

// RegisterPinServiceServer registers the PinService with a gRPC server.
func RegisterPinServiceServer(s grpc.ServiceRegistrar, srv PinServiceServer) {
	s.RegisterService(&PinService_ServiceDesc, srv)
}

// unaryHandler adapts one typed server method to a grpc.MethodDesc handler.
func unaryHandler[Req any](method string, call func(PinServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	full := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PinServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PinServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PinService_ServiceDesc is the grpc.ServiceDesc for PinService.
var PinService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PinServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetPin", Handler: unaryHandler("SetPin", func(s PinServiceServer, ctx context.Context, in *SetPinRequest) (any, error) {
			return s.SetPin(ctx, in)
		})},
		{MethodName: "ApplyBatch", Handler: unaryHandler("ApplyBatch", func(s PinServiceServer, ctx context.Context, in *ApplyBatchRequest) (any, error) {
			return s.ApplyBatch(ctx, in)
		})},
		{MethodName: "ReadPin", Handler: unaryHandler("ReadPin", func(s PinServiceServer, ctx context.Context, in *PinRequest) (any, error) {
			return s.ReadPin(ctx, in)
		})},
		{MethodName: "ReadADC", Handler: unaryHandler("ReadADC", func(s PinServiceServer, ctx context.Context, in *PinRequest) (any, error) {
			return s.ReadADC(ctx, in)
		})},
		{MethodName: "Blink", Handler: unaryHandler("Blink", func(s PinServiceServer, ctx context.Context, in *BlinkRequest) (any, error) {
			return s.Blink(ctx, in)
		})},
		{MethodName: "ListPins", Handler: unaryHandler("ListPins", func(s PinServiceServer, ctx context.Context, in *Empty) (any, error) {
			return s.ListPins(ctx, in)
		})},
		{MethodName: "Status", Handler: unaryHandler("Status", func(s PinServiceServer, ctx context.Context, in *Empty) (any, error) {
			return s.Status(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pin.proto",
}
