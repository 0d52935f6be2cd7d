package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/cipherkit/internal/cipher"
	"github.com/RowanDark/cipherkit/internal/logging"
	"github.com/RowanDark/cipherkit/internal/observability/metrics"
)

// RequestIDKey is the metadata key carrying the request ID in both
// directions.
const RequestIDKey = "x-request-id"

// Server implements CipherServer on top of a cipher registry.
type Server struct {
	registry        *cipher.Registry
	detector        cipher.Detector
	defaults        cipher.DefaultsFunc
	audit           *logging.AuditLogger
	log             *slog.Logger
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry sets the operation registry. The default registry is used
// otherwise.
func WithRegistry(r *cipher.Registry) Option {
	return func(s *Server) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithDetector sets the detector used by Detect.
func WithDetector(d cipher.Detector) Option {
	return func(s *Server) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithDefaults sets per-operation parameter defaults.
func WithDefaults(fn cipher.DefaultsFunc) Option {
	return func(s *Server) {
		s.defaults = fn
	}
}

// WithAuditLogger configures the audit logger for executed operations.
func WithAuditLogger(l *logging.AuditLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.audit = l
		}
	}
}

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithShutdownTimeout bounds the graceful stop before connections are
// closed forcibly.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer builds a Cipher service implementation.
func NewServer(opts ...Option) *Server {
	s := &Server{
		registry:        cipher.DefaultRegistry(),
		detector:        cipher.NewSmartDetector(),
		audit:           logging.Discard(),
		log:             slog.Default(),
		shutdownTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve runs a gRPC server on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.UnaryInterceptor()))
	RegisterCipherServer(srv, s)

	go func() {
		<-ctx.Done()

		done := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(s.shutdownTimeout):
			srv.Stop()
		}
	}()

	s.log.Info("grpc api listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil {
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
	return nil
}

type requestIDCtxKey struct{}

// RequestID returns the request ID attached by UnaryInterceptor.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// UnaryInterceptor attaches a request ID to every call, echoes it in the
// response header and logs the call.
func (s *Server) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDKey); len(vals) > 0 {
				id = strings.TrimSpace(vals[0])
			}
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, id))
		ctx = context.WithValue(ctx, requestIDCtxKey{}, id)

		start := time.Now()
		resp, err := handler(ctx, req)
		metrics.RecordRequest("grpc", info.FullMethod, status.Code(err).String())
		s.log.Debug("grpc request",
			"request_id", id,
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start))
		return resp, err
	}
}

// Execute runs a single operation.
// Request: {operation, input, params}. Response: {output}.
func (s *Server) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	name, err := stringField(fields, "operation")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "operation is required")
	}
	input, err := stringField(fields, "input")
	if err != nil {
		return nil, err
	}
	params, err := mapField(fields, "params")
	if err != nil {
		return nil, err
	}

	op, ok := s.registry.Get(name)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "%v: %s", cipher.ErrUnknownOperation, name)
	}
	if s.defaults != nil {
		params = cipher.MergeParams(s.defaults(name), params)
	}

	start := time.Now()
	result, err := op.Execute(ctx, []byte(input), params)
	metrics.ObserveOperation("grpc", name, time.Since(start), err)
	_ = s.audit.Operation(RequestID(ctx), name, params, []byte(input), result, err)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return structpb.NewStruct(map[string]any{"output": string(result)})
}

// Pipeline runs a sequence of operations, or its inverse when reverse is
// set. Request: {input, operations: [{name, parameters}], reverse}.
// Response: {output, pipeline}.
func (s *Server) Pipeline(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	input, err := stringField(fields, "input")
	if err != nil {
		return nil, err
	}
	reverse, err := boolField(fields, "reverse")
	if err != nil {
		return nil, err
	}
	ops, err := operationsField(fields, "operations")
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, status.Error(codes.InvalidArgument, "operations must not be empty")
	}

	p := &cipher.Pipeline{Operations: ops, Reversible: true}
	if reverse {
		if p, err = s.registry.Invert(p); err != nil {
			return nil, toStatus(ctx, err)
		}
	}
	p = p.WithDefaults(s.defaults)

	names := make([]any, len(p.Operations))
	for i, step := range p.Operations {
		names[i] = step.Name
	}

	start := time.Now()
	result, err := s.registry.Run(ctx, p, []byte(input))
	metrics.ObserveOperation("grpc", "pipeline", time.Since(start), err)
	event := logging.AuditEvent{
		RequestID:  RequestID(ctx),
		EventType:  logging.EventPipelineExecuted,
		Operation:  joinNames(names),
		InputSize:  len(input),
		OutputSize: len(result),
		Decision:   logging.DecisionSuccess,
		Metadata:   map[string]any{"steps": len(p.Operations), "reverse": reverse, "transport": "grpc"},
	}
	if err != nil {
		event.Decision = logging.DecisionFailure
		event.Reason = err.Error()
	}
	_ = s.audit.Emit(event)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return structpb.NewStruct(map[string]any{
		"output":   string(result),
		"pipeline": names,
	})
}

// Detect ranks likely ciphers for the input.
// Request: {input}. Response: {detections: [...]}.
func (s *Server) Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input, err := stringField(req.AsMap(), "input")
	if err != nil {
		return nil, err
	}
	if input == "" {
		return nil, status.Error(codes.InvalidArgument, "input is required")
	}

	results, err := s.detector.Detect(ctx, []byte(input))
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	_ = s.audit.Emit(logging.AuditEvent{
		RequestID: RequestID(ctx),
		EventType: logging.EventDetectionRun,
		InputSize: len(input),
		Decision:  logging.DecisionInfo,
		Metadata:  map[string]any{"results": len(results), "transport": "grpc"},
	})

	detections := make([]any, len(results))
	for i, r := range results {
		metrics.RecordDetection(r.Encoding)
		d := map[string]any{
			"encoding":   r.Encoding,
			"confidence": r.Confidence,
			"reasoning":  r.Reasoning,
			"operation":  r.Operation,
		}
		if len(r.Params) > 0 {
			d["params"] = r.Params
		}
		detections[i] = d
	}
	resp, err := structpb.NewStruct(map[string]any{"detections": detections})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode detections: %v", err)
	}
	return resp, nil
}

// ListOperations describes the registered operations, optionally filtered
// by a list of types. Request: {types}. Response: {operations: [...]}.
func (s *Server) ListOperations(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, err := listField(req.AsMap(), "types")
	if err != nil {
		return nil, err
	}
	var types []cipher.OperationType
	for _, t := range raw {
		name, ok := t.(string)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "types: %v is not a string", t)
		}
		types = append(types, cipher.OperationType(name))
	}

	infos := s.registry.Describe(types...)
	ops := make([]any, len(infos))
	for i, info := range infos {
		ops[i] = map[string]any{
			"name":        info.Name,
			"type":        info.Type,
			"description": info.Description,
			"reversible":  info.Reversible,
		}
	}
	return structpb.NewStruct(map[string]any{"operations": ops})
}

// toStatus maps cipher errors onto gRPC codes.
func toStatus(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return status.FromContextError(ctxErr).Err()
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, cipher.ErrUnknownOperation):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, cipher.ErrNotReversible):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

func joinNames(names []any) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
