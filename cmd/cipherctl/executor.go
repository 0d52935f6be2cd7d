package main

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/RowanDark/cipherkit/internal/cipher"
	"github.com/RowanDark/cipherkit/internal/rpc"
)

// executor runs operations either in process or against a cipherd server.
type executor interface {
	Execute(ctx context.Context, op, input string, params map[string]any) (string, error)
	Pipeline(ctx context.Context, ops []cipher.OperationConfig, input string, reverse bool) (string, error)
	Detect(ctx context.Context, input string) ([]cipher.DetectionResult, error)
	Operations(ctx context.Context, types []cipher.OperationType) ([]cipher.OperationInfo, error)
}

type localExecutor struct {
	registry *cipher.Registry
	detector cipher.Detector
	defaults cipher.DefaultsFunc
}

func newLocalExecutor(registry *cipher.Registry, detector cipher.Detector, defaults cipher.DefaultsFunc) *localExecutor {
	return &localExecutor{registry: registry, detector: detector, defaults: defaults}
}

func (e *localExecutor) Execute(ctx context.Context, op, input string, params map[string]any) (string, error) {
	operation, ok := e.registry.Get(op)
	if !ok {
		return "", fmt.Errorf("%w: %s", cipher.ErrUnknownOperation, op)
	}
	if e.defaults != nil {
		params = cipher.MergeParams(e.defaults(op), params)
	}
	out, err := operation.Execute(ctx, []byte(input), params)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (e *localExecutor) Pipeline(ctx context.Context, ops []cipher.OperationConfig, input string, reverse bool) (string, error) {
	p := &cipher.Pipeline{Operations: ops, Reversible: true}
	if reverse {
		inverted, err := e.registry.Invert(p)
		if err != nil {
			return "", err
		}
		p = inverted
	}
	out, err := e.registry.Run(ctx, p.WithDefaults(e.defaults), []byte(input))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (e *localExecutor) Detect(ctx context.Context, input string) ([]cipher.DetectionResult, error) {
	return e.detector.Detect(ctx, []byte(input))
}

func (e *localExecutor) Operations(_ context.Context, types []cipher.OperationType) ([]cipher.OperationInfo, error) {
	return e.registry.Describe(types...), nil
}

// remoteExecutor forwards every call to the cipherd gRPC service. The server
// applies its own configured defaults.
type remoteExecutor struct {
	conn   *grpc.ClientConn
	client *rpc.Client
}

func dialRemote(addr string) (*remoteExecutor, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &remoteExecutor{conn: conn, client: rpc.NewClient(conn)}, nil
}

func (e *remoteExecutor) Close() error {
	return e.conn.Close()
}

func (e *remoteExecutor) Execute(ctx context.Context, op, input string, params map[string]any) (string, error) {
	return e.client.Execute(ctx, op, input, params)
}

func (e *remoteExecutor) Pipeline(ctx context.Context, ops []cipher.OperationConfig, input string, reverse bool) (string, error) {
	out, _, err := e.client.Pipeline(ctx, ops, input, reverse)
	return out, err
}

func (e *remoteExecutor) Detect(ctx context.Context, input string) ([]cipher.DetectionResult, error) {
	return e.client.Detect(ctx, input)
}

func (e *remoteExecutor) Operations(ctx context.Context, types []cipher.OperationType) ([]cipher.OperationInfo, error) {
	return e.client.ListOperations(ctx, types)
}
