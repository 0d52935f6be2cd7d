package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/RowanDark/cipherkit/internal/redact"
)

type EventType string

const (
	EventOperationExecuted EventType = "operation_executed"
	EventOperationFailed   EventType = "operation_failed"
	EventPipelineExecuted  EventType = "pipeline_executed"
	EventDetectionRun      EventType = "detection_run"
	EventRecipeSaved       EventType = "recipe_saved"
	EventRecipeDeleted     EventType = "recipe_deleted"
)

type Decision string

const (
	DecisionInfo    Decision = "info"
	DecisionSuccess Decision = "success"
	DecisionFailure Decision = "failure"
)

// AuditEvent is one JSON line of the audit log. Input and output text never
// appear in it; only their sizes do.
type AuditEvent struct {
	Timestamp  time.Time      `json:"timestamp"`
	Component  string         `json:"component"`
	RequestID  string         `json:"request_id,omitempty"`
	EventType  EventType      `json:"event_type"`
	Operation  string         `json:"operation,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	InputSize  int            `json:"input_size,omitempty"`
	OutputSize int            `json:"output_size,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Decision   Decision       `json:"decision,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// ErrClosed is returned by Emit after the root logger has been closed.
var ErrClosed = errors.New("audit logger closed")

// Option configures the destinations of a new AuditLogger. Events go to
// stdout unless WithoutStdout is given.
type Option func(*sinks) error

type sinks struct {
	stdout bool
	extra  []io.Writer
	files  []*os.File
}

func (s *sinks) writer() (io.Writer, error) {
	ws := s.extra
	if s.stdout {
		ws = append([]io.Writer{os.Stdout}, ws...)
	}
	switch len(ws) {
	case 0:
		return nil, errors.New("audit logger has no writers")
	case 1:
		return ws[0], nil
	default:
		return io.MultiWriter(ws...), nil
	}
}

func (s *sinks) closeFiles() {
	for _, f := range s.files {
		_ = f.Close()
	}
}

func WithWriter(w io.Writer) Option {
	return func(s *sinks) error {
		if w == nil {
			return errors.New("audit writer is nil")
		}
		s.extra = append(s.extra, w)
		return nil
	}
}

// WithFile appends events to path, creating it with owner-only permissions.
func WithFile(path string) Option {
	return func(s *sinks) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("audit file path is empty")
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		s.extra = append(s.extra, f)
		s.files = append(s.files, f)
		return nil
	}
}

func WithoutStdout() Option {
	return func(s *sinks) error {
		s.stdout = false
		return nil
	}
}

// sink is the encoder shared by a root logger and everything derived from it.
type sink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	files  []*os.File
	closed bool
}

func (k *sink) write(event AuditEvent) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}
	return k.enc.Encode(event)
}

func (k *sink) close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	var errs []error
	for _, f := range k.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// AuditLogger writes AuditEvents as JSON lines. Loggers derived with
// WithComponent or WithRequest share the sink of their root and fill in the
// component and request ID of events that leave them empty.
type AuditLogger struct {
	sink      *sink
	component string
	requestID string
	root      bool
}

func NewAuditLogger(component string, opts ...Option) (*AuditLogger, error) {
	s := &sinks{stdout: true}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.closeFiles()
			return nil, err
		}
	}
	w, err := s.writer()
	if err != nil {
		s.closeFiles()
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &AuditLogger{
		sink:      &sink{enc: enc, files: s.files},
		component: component,
		root:      true,
	}, nil
}

// Discard returns a logger that drops every event.
func Discard() *AuditLogger {
	return MustNewAuditLogger("discard", WithoutStdout(), WithWriter(io.Discard))
}

func MustNewAuditLogger(component string, opts ...Option) *AuditLogger {
	logger, err := NewAuditLogger(component, opts...)
	if err != nil {
		panic(err)
	}
	return logger
}

// Close releases the files of a root logger. It is a no-op on derived loggers.
func (l *AuditLogger) Close() error {
	if l == nil || !l.root || l.sink == nil {
		return nil
	}
	return l.sink.close()
}

func (l *AuditLogger) Emit(event AuditEvent) error {
	if l == nil || l.sink == nil {
		return errors.New("nil audit logger")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Timestamp = event.Timestamp.UTC()
	if event.Component == "" {
		event.Component = l.component
	}
	if event.RequestID == "" {
		event.RequestID = l.requestID
	}
	event.Reason = redact.String(event.Reason)
	event.Params = redact.Params(event.Params)
	event.Metadata = redact.Params(event.Metadata)
	return l.sink.write(event)
}

// Operation records the outcome of one operation or pipeline run. A nil err
// gives a success event.
func (l *AuditLogger) Operation(requestID, name string, params map[string]any, input, output []byte, err error) error {
	event := AuditEvent{
		RequestID: requestID,
		EventType: EventOperationExecuted,
		Operation: name,
		Params:    params,
		InputSize: len(input),
		Decision:  DecisionSuccess,
	}
	if err != nil {
		event.EventType = EventOperationFailed
		event.Decision = DecisionFailure
		event.Reason = err.Error()
	} else {
		event.OutputSize = len(output)
	}
	return l.Emit(event)
}

func (l *AuditLogger) WithComponent(component string) *AuditLogger {
	return l.derive(func(d *AuditLogger) { d.component = component })
}

// WithRequest returns a logger that tags events with requestID.
func (l *AuditLogger) WithRequest(requestID string) *AuditLogger {
	return l.derive(func(d *AuditLogger) { d.requestID = requestID })
}

func (l *AuditLogger) derive(set func(*AuditLogger)) *AuditLogger {
	if l == nil || l.sink == nil {
		return nil
	}
	d := &AuditLogger{sink: l.sink, component: l.component, requestID: l.requestID}
	set(d)
	return d
}
