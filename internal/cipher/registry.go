package cipher

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a concurrency-safe set of operations keyed by name.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

// defaultRegistry holds the built-in operations, registered in init.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry of built-in operations.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds an operation. Names must be unique.
func (r *Registry) Register(op Operation) error {
	if op == nil {
		return fmt.Errorf("cannot register nil operation")
	}

	name := op.Name()
	if name == "" {
		return fmt.Errorf("operation name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("operation %s is already registered", name)
	}

	r.ops[name] = op
	return nil
}

// Get retrieves an operation by name
func (r *Registry) Get(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, exists := r.ops[name]
	return op, exists
}

// List returns all operations sorted by name. A non-empty types list keeps
// only operations of those types.
func (r *Registry) List(types ...OperationType) []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		if len(types) > 0 && !hasType(types, op.Type()) {
			continue
		}
		ops = append(ops, op)
	}

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Name() < ops[j].Name()
	})

	return ops
}

// OperationInfo is the serializable summary of a registered operation.
type OperationInfo struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Reversible  bool   `json:"reversible" yaml:"reversible"`
}

// Describe summarizes the operations List would return.
func (r *Registry) Describe(types ...OperationType) []OperationInfo {
	ops := r.List(types...)
	infos := make([]OperationInfo, len(ops))
	for i, op := range ops {
		_, reversible := op.Reverse()
		infos[i] = OperationInfo{
			Name:        op.Name(),
			Type:        string(op.Type()),
			Description: op.Description(),
			Reversible:  reversible,
		}
	}
	return infos
}

// Unregister removes an operation. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.ops, name)
}

func hasType(types []OperationType, t OperationType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// RegisterOperation adds an operation to the default registry
func RegisterOperation(op Operation) error {
	return defaultRegistry.Register(op)
}

// GetOperation retrieves an operation from the default registry by name
func GetOperation(name string) (Operation, bool) {
	return defaultRegistry.Get(name)
}

// ListOperations returns all operations of the default registry
func ListOperations() []Operation {
	return defaultRegistry.List()
}

// ListOperationsByType returns default registry operations filtered by type
func ListOperationsByType(opType OperationType) []Operation {
	return defaultRegistry.List(opType)
}
