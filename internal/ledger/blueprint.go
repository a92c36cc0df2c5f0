package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/ledgerunit/internal/ir"
)

// Function is the native implementation of a blueprint function or method.
// Methods see their component through rt.Self and rt.State.
type Function func(rt *Runtime, args []ir.IRValue) (*Output, error)

// Output is what a call hands back: a value recorded in the receipt, buckets
// placed on the worktop and proofs placed in the auth zone.
type Output struct {
	Value   ir.IRValue
	Buckets []*Bucket
	Proofs  []Proof
}

// Return builds an Output.
func Return(v ir.IRValue, buckets ...*Bucket) *Output {
	return &Output{Value: v, Buckets: buckets}
}

// Blueprint is a component template implemented in Go.
type Blueprint struct {
	Name      string
	Functions map[string]Function
	Methods   map[string]Function
}

// Registry maps native blueprint IDs, as named in package manifests, to
// their implementations.
type Registry struct {
	mu      sync.RWMutex
	natives map[string]*Blueprint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{natives: make(map[string]*Blueprint)}
}

// Register adds bp under id. IDs are unique.
func (r *Registry) Register(id string, bp *Blueprint) error {
	if id == "" || bp == nil {
		return fmt.Errorf("register blueprint: id and blueprint are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.natives[id]; exists {
		return fmt.Errorf("register blueprint: %q already registered", id)
	}
	r.natives[id] = bp
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(id string, bp *Blueprint) *Registry {
	if err := r.Register(id, bp); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the blueprint registered under id.
func (r *Registry) Lookup(id string) (*Blueprint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bp, ok := r.natives[id]
	return bp, ok
}

// IDs returns the registered IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.natives))
	for id := range r.natives {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Arg returns args[i] as T.
func Arg[T ir.IRValue](args []ir.IRValue, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("missing argument %d (got %d)", i, len(args))
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("argument %d: want %T, got %T", i, zero, args[i])
	}
	return v, nil
}

// ExpectArgs fails unless exactly n arguments were passed.
func ExpectArgs(args []ir.IRValue, n int) error {
	if len(args) != n {
		return fmt.Errorf("want %d arguments, got %d", n, len(args))
	}
	return nil
}
