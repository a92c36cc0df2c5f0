package inspect

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/ledgerunit/internal/ir"
)

// DefaultMaxDepth bounds the nesting Walk accepts. It matches the codec's
// nesting limit with room to spare.
const DefaultMaxDepth = 512

// ErrMaxDepth is returned when a value nests deeper than the walk allows.
var ErrMaxDepth = errors.New("state nests too deeply")

// VisitFunc is called for every node. path locates the node from the root
// ("$", "$.reserve", "$.vaults[0].value").
type VisitFunc func(path string, v ir.IRValue) error

// Walk visits root and every value beneath it, depth-first, in a
// deterministic order: struct and object fields by sorted key, map entries
// and array elements in order. maxDepth <= 0 means DefaultMaxDepth.
func Walk(root ir.IRValue, maxDepth int, fn VisitFunc) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return walk("$", root, 0, maxDepth, fn)
}

func walk(path string, v ir.IRValue, depth, maxDepth int, fn VisitFunc) error {
	if depth > maxDepth {
		return fmt.Errorf("%s: %w (limit %d)", path, ErrMaxDepth, maxDepth)
	}
	if err := fn(path, v); err != nil {
		return err
	}
	switch val := v.(type) {
	case ir.IRStruct:
		for _, k := range val.Fields.SortedKeys() {
			if err := walk(path+"."+k, val.Fields[k], depth+1, maxDepth, fn); err != nil {
				return err
			}
		}
	case ir.IRObject:
		for _, k := range val.SortedKeys() {
			if err := walk(path+"."+k, val[k], depth+1, maxDepth, fn); err != nil {
				return err
			}
		}
	case ir.IRMap:
		for i, e := range val {
			p := path + "[" + strconv.Itoa(i) + "]"
			if err := walk(p+".key", e.Key, depth+1, maxDepth, fn); err != nil {
				return err
			}
			if err := walk(p+".value", e.Value, depth+1, maxDepth, fn); err != nil {
				return err
			}
		}
	case ir.IRArray:
		for i, elem := range val {
			if err := walk(path+"["+strconv.Itoa(i)+"]", elem, depth+1, maxDepth, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// VaultRef is a vault found in a state tree.
type VaultRef struct {
	Vault ir.IRVault
	Path  string
}

// CollectVaults returns every vault reference in root, in walk order. A
// vault referenced twice is reported once, at its first path.
func CollectVaults(root ir.IRValue, maxDepth int) ([]VaultRef, error) {
	var refs []VaultRef
	seen := make(map[ir.IRVault]bool)
	err := Walk(root, maxDepth, func(path string, v ir.IRValue) error {
		vault, ok := v.(ir.IRVault)
		if !ok || seen[vault] {
			return nil
		}
		seen[vault] = true
		refs = append(refs, VaultRef{Vault: vault, Path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
