package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/cipherkit/internal/cipher"
)

// Client calls the Cipher service over an established connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn, typically a *grpc.ClientConn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Execute runs one operation on the server and returns its output.
func (c *Client) Execute(ctx context.Context, op, input string, params map[string]any, opts ...grpc.CallOption) (string, error) {
	req := map[string]any{"operation": op, "input": input}
	if len(params) > 0 {
		req["params"] = params
	}
	resp, err := c.call(ctx, "Execute", req, opts...)
	if err != nil {
		return "", err
	}
	output, _ := resp["output"].(string)
	return output, nil
}

// Pipeline runs ops on the server, inverted when reverse is set. It returns
// the output and the names of the steps that ran.
func (c *Client) Pipeline(ctx context.Context, ops []cipher.OperationConfig, input string, reverse bool, opts ...grpc.CallOption) (string, []string, error) {
	resp, err := c.call(ctx, "Pipeline", map[string]any{
		"input":      input,
		"operations": operationsValue(ops),
		"reverse":    reverse,
	}, opts...)
	if err != nil {
		return "", nil, err
	}
	output, _ := resp["output"].(string)
	raw, _ := resp["pipeline"].([]any)
	names := make([]string, 0, len(raw))
	for _, n := range raw {
		if s, ok := n.(string); ok {
			names = append(names, s)
		}
	}
	return output, names, nil
}

// Detect returns the server's ranked detections for input.
func (c *Client) Detect(ctx context.Context, input string, opts ...grpc.CallOption) ([]cipher.DetectionResult, error) {
	resp, err := c.call(ctx, "Detect", map[string]any{"input": input}, opts...)
	if err != nil {
		return nil, err
	}
	raw, _ := resp["detections"].([]any)
	results := make([]cipher.DetectionResult, 0, len(raw))
	for _, item := range raw {
		d, ok := item.(map[string]any)
		if !ok {
			continue
		}
		r := cipher.DetectionResult{}
		r.Encoding, _ = d["encoding"].(string)
		r.Confidence, _ = d["confidence"].(float64)
		r.Reasoning, _ = d["reasoning"].(string)
		r.Operation, _ = d["operation"].(string)
		r.Params, _ = d["params"].(map[string]any)
		results = append(results, r)
	}
	return results, nil
}

// ListOperations describes the server's operations, optionally filtered by
// type.
func (c *Client) ListOperations(ctx context.Context, types []cipher.OperationType, opts ...grpc.CallOption) ([]cipher.OperationInfo, error) {
	req := map[string]any{}
	if len(types) > 0 {
		list := make([]any, len(types))
		for i, t := range types {
			list[i] = string(t)
		}
		req["types"] = list
	}
	resp, err := c.call(ctx, "ListOperations", req, opts...)
	if err != nil {
		return nil, err
	}
	raw, _ := resp["operations"].([]any)
	infos := make([]cipher.OperationInfo, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		info := cipher.OperationInfo{}
		info.Name, _ = m["name"].(string)
		info.Type, _ = m["type"].(string)
		info.Description, _ = m["description"].(string)
		info.Reversible, _ = m["reversible"].(bool)
		infos = append(infos, info)
	}
	return infos, nil
}
