// Package registry holds the catalog of operations a server exposes and
// validates invocation arguments against each operation's parameter schema.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Handler performs an operation. Arguments have already been validated and
// have defaults applied.
type Handler func(ctx context.Context, args Args) (any, error)

// Descriptor is the serializable part of an Operation, as sent in a catalog.
type Descriptor struct {
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	ParameterSchema ParamSchema `json:"parameter_schema"`
}

// Operation is a named, described, parameter-validated callable.
type Operation struct {
	Descriptor
	Handler Handler `json:"-"`
}

type entry struct {
	op     Operation
	schema *gojsonschema.Schema
}

// Registry is an ordered catalog of operations. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	index   map[string]int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds op to the catalog.
func (r *Registry) Register(op Operation) error {
	if op.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidOperation)
	}
	if op.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidOperation, op.Name)
	}
	if op.ParameterSchema == nil {
		op.ParameterSchema = ParamSchema{}
	}

	schema, err := op.ParameterSchema.compile()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidOperation, op.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[op.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, op.Name)
	}
	r.index[op.Name] = len(r.entries)
	r.entries = append(r.entries, entry{op: op, schema: schema})
	return nil
}

// Lookup returns the operation with the given name.
func (r *Registry) Lookup(name string) (Operation, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Operation{}, err
	}
	return e.op, nil
}

func (r *Registry) lookup(name string) (entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return entry{}, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	return r.entries[i], nil
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// All returns the operations in registration order. Each iteration reads a
// snapshot of the catalog taken when it starts.
func (r *Registry) All() iter.Seq[Operation] {
	return func(yield func(Operation) bool) {
		r.mu.RLock()
		entries := make([]entry, len(r.entries))
		copy(entries, r.entries)
		r.mu.RUnlock()

		for _, e := range entries {
			if !yield(e.op) {
				return
			}
		}
	}
}

// Descriptors returns the catalog in registration order.
func (r *Registry) Descriptors() []Descriptor {
	descriptors := make([]Descriptor, 0, r.Len())
	for op := range r.All() {
		descriptors = append(descriptors, op.Descriptor)
	}
	return descriptors
}

// Validate checks args against the named operation's schema and returns a
// copy with defaults applied for absent optional parameters.
func (r *Registry) Validate(name string, args Args) (Args, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = Args{}
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, &ParamError{Err: ErrTypeMismatch, Param: "(root)", Detail: err.Error()}
	}

	result, err := e.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate arguments for %s: %w", name, err)
	}
	if !result.Valid() {
		return nil, classify(result.Errors())
	}

	validated := args.clone()
	for pname, p := range e.op.ParameterSchema {
		if _, ok := validated[pname]; !ok && p.Default != nil {
			validated[pname] = p.Default
		}
	}
	return validated, nil
}
