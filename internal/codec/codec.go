// Package codec encodes ledger values as self-describing CBOR.
//
// Component state and instruction outputs cross the ledger boundary as
// opaque byte blobs; this package is the only place that knows their layout.
// Primitive values map onto native CBOR major types. Variants with no native
// CBOR form carry a tag from the private range starting at tagBase.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/ledgerunit/internal/ir"
)

const tagBase = 0x6c75_0000 // "lu"

const (
	tagStruct uint64 = tagBase + iota
	tagMap
	tagDecimal
	tagAddress
	tagVault
)

// MaxNestedLevels bounds decoder recursion. Every tag counts as a level.
const MaxNestedLevels = 1024

// ErrMalformed is returned for blobs that are not a valid encoding of an
// ir value, whether or not they are valid CBOR.
var ErrMalformed = errors.New("malformed value encoding")

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		IndefLength:      cbor.IndefLengthForbidden,
		IntDec:           cbor.IntDecConvertNone,
		MaxArrayElements: 1_000_000,
		MaxMapPairs:      1_000_000,
		MaxNestedLevels:  MaxNestedLevels,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Encode returns the CBOR encoding of v. Encoding is deterministic: equal
// values always produce identical bytes.
func Encode(v ir.IRValue) ([]byte, error) {
	raw, err := toCBOR(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encMode.NewEncoder(&buf).Encode(raw); err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return buf.Bytes(), nil
}

// MustEncode is like Encode but panics on error.
// Use only in tests or when the value is known to be valid.
func MustEncode(v ir.IRValue) []byte {
	data, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (ir.IRValue, error) {
	var raw any
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode value: %w: %w", ErrMalformed, err)
	}
	return fromCBOR(raw)
}

func toCBOR(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("encode value: nil IRValue")
	case ir.IRNull:
		return nil, nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.Decimal:
		return cbor.Tag{Number: tagDecimal, Content: val.String()}, nil
	case ir.Address:
		return cbor.Tag{Number: tagAddress, Content: string(val)}, nil
	case ir.IRVault:
		return cbor.Tag{Number: tagVault, Content: string(val)}, nil
	case ir.IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			enc, err := toCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			out[i] = enc
		}
		return out, nil
	case ir.IRObject:
		return objectToCBOR(val)
	case ir.IRStruct:
		fields, err := objectToCBOR(val.Fields)
		if err != nil {
			return nil, fmt.Errorf("struct %s: %w", val.Name, err)
		}
		return cbor.Tag{Number: tagStruct, Content: []any{val.Name, fields}}, nil
	case ir.IRMap:
		entries := make([]any, len(val))
		for i, e := range val {
			k, err := toCBOR(e.Key)
			if err != nil {
				return nil, fmt.Errorf("map key %d: %w", i, err)
			}
			mv, err := toCBOR(e.Value)
			if err != nil {
				return nil, fmt.Errorf("map value %d: %w", i, err)
			}
			entries[i] = []any{k, mv}
		}
		return cbor.Tag{Number: tagMap, Content: entries}, nil
	default:
		return nil, fmt.Errorf("encode value: unsupported type %T", v)
	}
}

func objectToCBOR(obj ir.IRObject) (map[string]any, error) {
	out := make(map[string]any, len(obj))
	for k, elem := range obj {
		enc, err := toCBOR(elem)
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

func fromCBOR(raw any) (ir.IRValue, error) {
	switch val := raw.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(val), nil
	case bool:
		return ir.IRBool(val), nil
	case int64:
		return ir.IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%w: integer %d overflows int64", ErrMalformed, val)
		}
		return ir.IRInt(int64(val)), nil
	case []any:
		arr := make(ir.IRArray, len(val))
		for i, elem := range val {
			dec, err := fromCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = dec
		}
		return arr, nil
	case map[any]any:
		return objectFromCBOR(val)
	case cbor.Tag:
		return tagFromCBOR(val)
	default:
		return nil, fmt.Errorf("%w: unexpected CBOR item %T", ErrMalformed, raw)
	}
}

func objectFromCBOR(m map[any]any) (ir.IRObject, error) {
	obj := make(ir.IRObject, len(m))
	for k, elem := range m {
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key %v is not a string", ErrMalformed, k)
		}
		dec, err := fromCBOR(elem)
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", key, err)
		}
		obj[key] = dec
	}
	return obj, nil
}

func tagFromCBOR(tag cbor.Tag) (ir.IRValue, error) {
	switch tag.Number {
	case tagDecimal:
		s, ok := tag.Content.(string)
		if !ok {
			return nil, fmt.Errorf("%w: decimal content %T", ErrMalformed, tag.Content)
		}
		return ir.NewDecimal(s)
	case tagAddress:
		s, ok := tag.Content.(string)
		if !ok {
			return nil, fmt.Errorf("%w: address content %T", ErrMalformed, tag.Content)
		}
		return ir.ParseAddress(s)
	case tagVault:
		s, ok := tag.Content.(string)
		if !ok {
			return nil, fmt.Errorf("%w: vault content %T", ErrMalformed, tag.Content)
		}
		return ir.IRVault(s), nil
	case tagStruct:
		parts, ok := tag.Content.([]any)
		if !ok || len(parts) != 2 {
			return nil, fmt.Errorf("%w: struct content", ErrMalformed)
		}
		name, ok := parts[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: struct name %T", ErrMalformed, parts[0])
		}
		fieldMap, ok := parts[1].(map[any]any)
		if !ok {
			return nil, fmt.Errorf("%w: struct %s fields %T", ErrMalformed, name, parts[1])
		}
		fields, err := objectFromCBOR(fieldMap)
		if err != nil {
			return nil, fmt.Errorf("struct %s: %w", name, err)
		}
		return ir.IRStruct{Name: name, Fields: fields}, nil
	case tagMap:
		entries, ok := tag.Content.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: map content %T", ErrMalformed, tag.Content)
		}
		out := make(ir.IRMap, 0, len(entries))
		for i, e := range entries {
			pair, ok := e.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: map entry %d", ErrMalformed, i)
			}
			k, err := fromCBOR(pair[0])
			if err != nil {
				return nil, fmt.Errorf("map key %d: %w", i, err)
			}
			v, err := fromCBOR(pair[1])
			if err != nil {
				return nil, fmt.Errorf("map value %d: %w", i, err)
			}
			out = append(out, ir.IRMapEntry{Key: k, Value: v})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrMalformed, tag.Number)
	}
}
