// Package registry stores named values with a "current selection".
//
// The harness keeps one Registry of users and one of packages. Selection is
// tracked by name, so the current value is always one that was inserted and
// follows overwrites of the selected name.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	// ErrNotFound is returned when a name was never registered.
	ErrNotFound = errors.New("not found")

	// ErrNoCurrent is returned when no selection has been made.
	ErrNoCurrent = errors.New("no current selection")

	// ErrDuplicateName is returned by Add for a name already registered.
	ErrDuplicateName = errors.New("duplicate name")
)

// SelectionPolicy decides whether inserting a value changes the current
// selection.
type SelectionPolicy int

const (
	// FirstWriteWins selects the first inserted value and keeps it until an
	// explicit Select.
	FirstWriteWins SelectionPolicy = iota

	// LastWriteWins selects every newly inserted value.
	LastWriteWins
)

// String returns the configuration spelling of the policy.
func (p SelectionPolicy) String() string {
	switch p {
	case FirstWriteWins:
		return "first-write-wins"
	case LastWriteWins:
		return "last-write-wins"
	default:
		return fmt.Sprintf("SelectionPolicy(%d)", int(p))
	}
}

// ParseSelectionPolicy parses "first-write-wins" or "last-write-wins".
// Underscores and case are ignored; "" means FirstWriteWins.
func ParseSelectionPolicy(s string) (SelectionPolicy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "", "first-write-wins", "first":
		return FirstWriteWins, nil
	case "last-write-wins", "last":
		return LastWriteWins, nil
	default:
		return 0, fmt.Errorf("unknown selection policy %q (want first-write-wins or last-write-wins)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for config files.
func (p *SelectionPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseSelectionPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p SelectionPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Registry maps names to values of type T. It is not safe for concurrent
// use; the harness owning it is single-threaded.
type Registry[T any] struct {
	kind    string
	policy  SelectionPolicy
	entries map[string]T
	order   []string
	current string
}

// New creates an empty registry. kind names the values in error messages
// ("user", "package").
func New[T any](kind string, policy SelectionPolicy) *Registry[T] {
	return &Registry[T]{
		kind:    kind,
		policy:  policy,
		entries: make(map[string]T),
	}
}

// Policy returns the selection policy.
func (r *Registry[T]) Policy() SelectionPolicy {
	return r.policy
}

// Add inserts a new name. Existing names fail with ErrDuplicateName.
func (r *Registry[T]) Add(name string, v T) error {
	if name == "" {
		return fmt.Errorf("%s name must not be empty", r.kind)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%s %q: %w", r.kind, name, ErrDuplicateName)
	}
	r.insert(name, v)
	return nil
}

// Put inserts or overwrites name.
func (r *Registry[T]) Put(name string, v T) error {
	if name == "" {
		return fmt.Errorf("%s name must not be empty", r.kind)
	}
	r.insert(name, v)
	return nil
}

func (r *Registry[T]) insert(name string, v T) {
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = v
	if r.current == "" || r.policy == LastWriteWins {
		r.current = name
	}
}

// Get returns the value registered under name.
func (r *Registry[T]) Get(name string) (T, error) {
	v, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, name, ErrNotFound)
	}
	return v, nil
}

// Select makes name the current selection.
func (r *Registry[T]) Select(name string) error {
	if _, ok := r.entries[name]; !ok {
		return fmt.Errorf("%s %q: %w", r.kind, name, ErrNotFound)
	}
	r.current = name
	return nil
}

// Current returns the selected value.
func (r *Registry[T]) Current() (T, error) {
	if r.current == "" {
		var zero T
		return zero, fmt.Errorf("%s: %w", r.kind, ErrNoCurrent)
	}
	return r.entries[r.current], nil
}

// CurrentName returns the selected name, or "" when nothing is selected.
func (r *Registry[T]) CurrentName() string {
	return r.current
}

// Len returns the number of distinct names.
func (r *Registry[T]) Len() int {
	return len(r.entries)
}

// Names returns the registered names in insertion order.
func (r *Registry[T]) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SortedNames returns the registered names sorted.
func (r *Registry[T]) SortedNames() []string {
	out := r.Names()
	sort.Strings(out)
	return out
}

// All returns a copy of the name to value mapping.
func (r *Registry[T]) All() map[string]T {
	out := make(map[string]T, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}
