package proto

import (
	"FeatureBench/logger"
	"FeatureBench/monitor"
	"FeatureBench/pipeline"
	"FeatureBench/service"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "featurebench.BenchService"

// BenchServiceServer is implemented by Server. Payloads are generic Structs
// carrying the JSON form of pipeline and service types.
type BenchServiceServer interface {
	RunOnce(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func unaryHandler[Req any](method string, call func(BenchServiceServer, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BenchServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(BenchServiceServer), ctx, req.(*Req))
			})
		},
	}
}

var BenchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BenchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("RunOnce", BenchServiceServer.RunOnce),
		unaryHandler("Sweep", BenchServiceServer.Sweep),
		unaryHandler("GetRun", BenchServiceServer.GetRun),
		unaryHandler("ListRuns", BenchServiceServer.ListRuns),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "featurebench/bench.proto",
}

func RegisterBenchServiceServer(s grpc.ServiceRegistrar, srv BenchServiceServer) {
	s.RegisterService(&BenchServiceDesc, srv)
}

type Server struct {
	svc *service.Service
	log *zap.Logger
}

func NewServer(svc *service.Service) *Server {
	return &Server{svc: svc, log: logger.Log()}
}

func decode(in *structpb.Struct, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in.AsMap()); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

// encode goes through JSON so the Struct carries the same field names as the
// REST API.
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return structpb.NewStruct(m)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

// RunOnce queues one combination and blocks until it finished.
func (s *Server) RunOnce(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var combo pipeline.Combination
	if err := decode(req, &combo); err != nil {
		return nil, err
	}
	job, err := s.svc.SubmitRun(combo)
	if err != nil {
		return nil, toStatus(err)
	}
	s.log.Info("gRPC run submitted", zap.String("id", job.ID), zap.Stringer("combination", combo))
	job, err = s.svc.Wait(ctx, job.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(job)
}

// Sweep queues a sweep and returns without waiting; poll GetRun for the result.
func (s *Server) Sweep(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var cfg pipeline.SweepConfig
	if err := decode(req, &cfg); err != nil {
		return nil, err
	}
	job, err := s.svc.SubmitSweep(cfg)
	if err != nil {
		return nil, toStatus(err)
	}
	s.log.Info("gRPC sweep submitted", zap.String("id", job.ID))
	return encode(job)
}

func (s *Server) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var q struct {
		ID string `mapstructure:"id"`
	}
	if err := decode(req, &q); err != nil {
		return nil, err
	}
	if q.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id cannot be empty")
	}
	job, err := s.svc.Get(q.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(job)
}

func (s *Server) ListRuns(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encode(map[string]any{"jobs": s.svc.List()})
}

// NewGRPCServer builds a gRPC server with the bench service registered.
// metrics may be nil.
func NewGRPCServer(svc *service.Service, metrics *monitor.Metrics) *grpc.Server {
	var opts []grpc.ServerOption
	if metrics != nil {
		opts = append(opts, grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			metrics.Request("grpc", info.FullMethod)
			return handler(ctx, req)
		}))
	}
	s := grpc.NewServer(opts...)
	RegisterBenchServiceServer(s, NewServer(svc))
	return s
}

func StartGRPCServer(port int, svc *service.Service, metrics *monitor.Metrics) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	s := NewGRPCServer(svc, metrics)
	go func() {
		logger.Log().Info("gRPC server listening", zap.Int("port", port))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s, nil
}

// Client is a thin typed wrapper over a connection to BenchService.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in any) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) RunOnce(ctx context.Context, combo pipeline.Combination) (map[string]any, error) {
	in, err := structpb.NewStruct(map[string]any{
		"detector":   combo.Detector,
		"descriptor": combo.Descriptor,
		"matcher":    combo.Matcher,
		"selector":   combo.Selector,
	})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "RunOnce", in)
}

func anyList(v []string) []any {
	out := make([]any, len(v))
	for i, s := range v {
		out[i] = s
	}
	return out
}

func (c *Client) Sweep(ctx context.Context, cfg pipeline.SweepConfig) (map[string]any, error) {
	in, err := structpb.NewStruct(map[string]any{
		"detectors":   anyList(cfg.Detectors),
		"descriptors": anyList(cfg.Descriptors),
		"matchers":    anyList(cfg.Matchers),
		"selectors":   anyList(cfg.Selectors),
	})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "Sweep", in)
}

func (c *Client) GetRun(ctx context.Context, id string) (map[string]any, error) {
	in, err := structpb.NewStruct(map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "GetRun", in)
}

func (c *Client) ListRuns(ctx context.Context) ([]any, error) {
	out, err := c.invoke(ctx, "ListRuns", &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	jobs, _ := out["jobs"].([]any)
	return jobs, nil
}
