package rpc

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RowanDark/cipherkit/internal/cipher"
)

// Field readers for Struct requests. Missing fields read as zero values;
// fields of the wrong kind are InvalidArgument errors.

func stringField(fields map[string]any, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", key)
	}
	return s, nil
}

func boolField(fields map[string]any, key string) (bool, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, status.Errorf(codes.InvalidArgument, "%s must be a boolean", key)
	}
	return b, nil
}

func mapField(fields map[string]any, key string) (map[string]any, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be an object", key)
	}
	return m, nil
}

func listField(fields map[string]any, key string) ([]any, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return nil, nil
	}
	l, ok := raw.([]any)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a list", key)
	}
	return l, nil
}

func operationsField(fields map[string]any, key string) ([]cipher.OperationConfig, error) {
	raw, err := listField(fields, key)
	if err != nil {
		return nil, err
	}
	ops := make([]cipher.OperationConfig, 0, len(raw))
	for i, item := range raw {
		step, ok := item.(map[string]any)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "%s[%d] must be an object", key, i)
		}
		name, err := stringField(step, "name")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, status.Errorf(codes.InvalidArgument, "%s[%d]: name is required", key, i)
		}
		params, err := mapField(step, "parameters")
		if err != nil {
			return nil, err
		}
		ops = append(ops, cipher.OperationConfig{Name: name, Parameters: params})
	}
	return ops, nil
}

// operationsValue renders pipeline steps in the shape operationsField reads.
func operationsValue(ops []cipher.OperationConfig) []any {
	out := make([]any, len(ops))
	for i, op := range ops {
		step := map[string]any{"name": op.Name}
		if len(op.Parameters) > 0 {
			step["parameters"] = op.Parameters
		}
		out[i] = step
	}
	return out
}
