package rpc

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/cipherkit/internal/cipher"
	"github.com/RowanDark/cipherkit/internal/config"
	"github.com/RowanDark/cipherkit/internal/logging"
)

const (
	dickensPlain  = "It was the best of times, it was the worst of times, it was the age of wisdom"
	dickensShift7 = "Pa dhz aol ilza vm aptlz, pa dhz aol dvyza vm aptlz, pa dhz aol hnl vm dpzkvt"
)

// syncBuffer guards a bytes.Buffer shared with server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startServer serves the Cipher service on a loopback listener and returns
// a connected client together with the audit log.
func startServer(t *testing.T, opts ...Option) (*Client, *syncBuffer) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	auditBuf := &syncBuffer{}
	audit, err := logging.NewAuditLogger("rpc_test", logging.WithoutStdout(), logging.WithWriter(auditBuf))
	require.NoError(t, err)

	srv := NewServer(append([]Option{WithAuditLogger(audit)}, opts...)...)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down after context cancellation")
		}
	})

	return NewClient(conn), auditBuf
}

func callCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestExecute(t *testing.T) {
	client, auditBuf := startServer(t)
	ctx := callCtx(t)

	out, err := client.Execute(ctx, "caesar_encrypt", "Attack at dawn!", map[string]any{"shift": 3})
	require.NoError(t, err)
	assert.Equal(t, "Dwwdfn dw gdzq!", out)

	out, err = client.Execute(ctx, "bacon_decode", "abaababaaaabbabbabbb", nil)
	require.NoError(t, err)
	assert.Equal(t, "jinx", out)

	out, err = client.Execute(ctx, "bacon_encode", "jv", map[string]any{"version": 1})
	require.NoError(t, err)
	assert.Equal(t, "abaaabaabb", out)

	assert.Contains(t, auditBuf.String(), `"operation":"caesar_encrypt"`)
	assert.NotContains(t, auditBuf.String(), "Attack at dawn")
}

func TestExecuteErrors(t *testing.T) {
	client, _ := startServer(t)
	ctx := callCtx(t)

	tests := []struct {
		name   string
		op     string
		input  string
		params map[string]any
		code   codes.Code
	}{
		{name: "missing operation", op: "", input: "abc", code: codes.InvalidArgument},
		{name: "unknown operation", op: "vigenere", input: "abc", code: codes.NotFound},
		{name: "missing shift", op: "caesar_encrypt", input: "abc", code: codes.InvalidArgument},
		{name: "bad version", op: "bacon_encode", input: "abc", params: map[string]any{"version": 7}, code: codes.InvalidArgument},
		{name: "short cover", op: "bacon_hide", input: "hello", params: map[string]any{"cover": "too short"}, code: codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Execute(ctx, tt.op, tt.input, tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err), err.Error())
		})
	}
}

func TestExecuteWithDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Caesar.IncludeForeignChars = false
	client, _ := startServer(t, WithDefaults(cfg.OperationDefaults))
	ctx := callCtx(t)

	out, err := client.Execute(ctx, "caesar_encrypt", "a b!", map[string]any{"shift": 1})
	require.NoError(t, err)
	assert.Equal(t, "bc", out)

	out, err = client.Execute(ctx, "caesar_encrypt", "a b!", map[string]any{"shift": 1, "include_foreign_chars": true})
	require.NoError(t, err)
	assert.Equal(t, "b c!", out)
}

func TestPipeline(t *testing.T) {
	client, auditBuf := startServer(t)
	ctx := callCtx(t)

	ops := []cipher.OperationConfig{
		{Name: "caesar_encrypt", Parameters: map[string]interface{}{"shift": 1}},
		{Name: "bacon_encode"},
	}

	out, names, err := client.Pipeline(ctx, ops, "ab", false)
	require.NoError(t, err)
	assert.Equal(t, "aaaabaaaba", out)
	assert.Equal(t, []string{"caesar_encrypt", "bacon_encode"}, names)

	out, names, err = client.Pipeline(ctx, ops, "aaaabaaaba", true)
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
	assert.Equal(t, []string{"bacon_decode", "caesar_decrypt"}, names)

	assert.Contains(t, auditBuf.String(), string(logging.EventPipelineExecuted))
}

func TestPipelineErrors(t *testing.T) {
	client, _ := startServer(t)
	ctx := callCtx(t)

	tests := []struct {
		name    string
		ops     []cipher.OperationConfig
		reverse bool
		code    codes.Code
	}{
		{name: "empty", code: codes.InvalidArgument},
		{name: "unknown step", ops: []cipher.OperationConfig{{Name: "rot13"}, {Name: "nope"}}, code: codes.NotFound},
		{name: "failing step", ops: []cipher.OperationConfig{{Name: "caesar_decrypt"}}, code: codes.InvalidArgument},
		{name: "irreversible", ops: []cipher.OperationConfig{{Name: "bacon_scatter"}}, reverse: true, code: codes.FailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := client.Pipeline(ctx, tt.ops, "abc", tt.reverse)
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err), err.Error())
		})
	}
}

func TestDetect(t *testing.T) {
	client, _ := startServer(t)
	ctx := callCtx(t)

	results, err := client.Detect(ctx, dickensShift7)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "caesar", top.Encoding)
	assert.Equal(t, "caesar_decrypt", top.Operation)
	assert.Equal(t, float64(7), top.Params["shift"])

	// The suggestion runs as-is against the same server.
	out, err := client.Execute(ctx, top.Operation, dickensShift7, top.Params)
	require.NoError(t, err)
	assert.Equal(t, dickensPlain, out)

	_, err = client.Detect(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListOperations(t *testing.T) {
	client, _ := startServer(t)
	ctx := callCtx(t)

	all, err := client.ListOperations(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 8)
	assert.Equal(t, "bacon_decode", all[0].Name)

	hidden, err := client.ListOperations(ctx, []cipher.OperationType{cipher.OperationTypeHide})
	require.NoError(t, err)
	require.Len(t, hidden, 1)
	assert.Equal(t, cipher.OperationInfo{
		Name:        "bacon_hide",
		Type:        "hide",
		Description: hidden[0].Description,
		Reversible:  true,
	}, hidden[0])
	assert.NotEmpty(t, hidden[0].Description)
}

func TestRequestIDHeader(t *testing.T) {
	client, auditBuf := startServer(t)

	id := uuid.NewString()
	ctx := metadata.AppendToOutgoingContext(callCtx(t), RequestIDKey, id)
	var header metadata.MD
	_, err := client.Execute(ctx, "rot13", "abc", nil, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{id}, header.Get(RequestIDKey))
	assert.Contains(t, auditBuf.String(), id)

	header = nil
	_, err = client.Execute(callCtx(t), "rot13", "abc", nil, grpc.Header(&header))
	require.NoError(t, err)
	generated := header.Get(RequestIDKey)
	require.Len(t, generated, 1)
	_, err = uuid.Parse(generated[0])
	assert.NoError(t, err)
}

func TestMalformedRequest(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewServer().Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	req, err := structpb.NewStruct(map[string]any{"operation": 42, "input": "abc"})
	require.NoError(t, err)
	err = conn.Invoke(callCtx(t), fullMethod("Execute"), req, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	req, err = structpb.NewStruct(map[string]any{"operations": []any{"rot13"}})
	require.NoError(t, err)
	err = conn.Invoke(callCtx(t), fullMethod("Pipeline"), req, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.True(t, strings.Contains(err.Error(), "operations[0]"), err.Error())
}

func TestServeStopsOnCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewServer(WithShutdownTimeout(time.Second)).Serve(ctx, lis)
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
