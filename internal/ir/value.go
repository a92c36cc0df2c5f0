package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the values a component may hold in its
// state or pass as call arguments. Implemented by IRNull, IRString, IRInt,
// IRBool, IRArray, IRObject, IRStruct, IRMap, IRVault, Decimal and Address.
// There is no float variant: amounts are Decimal.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull is the unit value.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString is a UTF-8 string.
type IRString string

func (IRString) irValue() {}

// IRInt is a signed 64-bit integer.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered sequence of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// IRStruct is a named record. Component state is always an IRStruct whose
// Name is the blueprint name.
type IRStruct struct {
	Name   string
	Fields IRObject
}

func (IRStruct) irValue() {}

// Field returns the named field or IRNull when absent.
func (s IRStruct) Field(name string) IRValue {
	if v, ok := s.Fields[name]; ok {
		return v
	}
	return IRNull{}
}

// With returns a copy of s with field name set to v.
func (s IRStruct) With(name string, v IRValue) IRStruct {
	fields := make(IRObject, len(s.Fields)+1)
	for k, fv := range s.Fields {
		fields[k] = fv
	}
	fields[name] = v
	return IRStruct{Name: s.Name, Fields: fields}
}

// IRMapEntry is one key/value pair of an IRMap.
type IRMapEntry struct {
	Key   IRValue
	Value IRValue
}

// IRMap is an insertion-ordered map whose keys may be any value.
// Keys are compared with Equal.
type IRMap []IRMapEntry

func (IRMap) irValue() {}

// Get returns the value stored under key.
func (m IRMap) Get(key IRValue) (IRValue, bool) {
	for _, e := range m {
		if Equal(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// Set returns a map with key bound to v, replacing an existing entry in place.
func (m IRMap) Set(key, v IRValue) IRMap {
	out := make(IRMap, len(m), len(m)+1)
	copy(out, m)
	for i, e := range out {
		if Equal(e.Key, key) {
			out[i].Value = v
			return out
		}
	}
	return append(out, IRMapEntry{Key: key, Value: v})
}

// IRVault is an opaque reference to a vault substate held by a component.
type IRVault string

func (IRVault) irValue() {}

// NewStruct builds an IRStruct from typed pairs.
func NewStruct(name string, pairs ...IRPair) IRStruct {
	return IRStruct{Name: name, Fields: NewIRObjectFromPairs(pairs...)}
}

// IRPair is a key-value pair for typed IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// NewIRObjectFromPairs creates an IRObject from typed key-value pairs.
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// O is a shorthand for IRPair.
// Example: NewStruct("Hello", O("state", IRInt(0)))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// Equal reports whether a and b are the same value. Decimals compare
// numerically, so 1.50 equals 1.5.
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case IRNull:
		_, ok := b.(IRNull)
		return ok
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRInt:
		bv, ok := b.(IRInt)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRVault:
		bv, ok := b.(IRVault)
		return ok && av == bv
	case Address:
		bv, ok := b.(Address)
		return ok && av == bv
	case Decimal:
		bv, ok := b.(Decimal)
		return ok && av.Cmp(bv) == 0
	case IRArray:
		bv, ok := b.(IRArray)
		return ok && slices.EqualFunc(av, bv, Equal)
	case IRObject:
		bv, ok := b.(IRObject)
		return ok && objectsEqual(av, bv)
	case IRStruct:
		bv, ok := b.(IRStruct)
		return ok && av.Name == bv.Name && objectsEqual(av.Fields, bv.Fields)
	case IRMap:
		bv, ok := b.(IRMap)
		return ok && slices.EqualFunc(av, bv, func(x, y IRMapEntry) bool {
			return Equal(x.Key, y.Key) && Equal(x.Value, y.Value)
		})
	default:
		return false
	}
}

func objectsEqual(a, b IRObject) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for astral runes.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// MarshalIRValue renders a value as display JSON for CLI output and logs.
// Struct, map and vault values use the same tagged shapes as MarshalCanonical
// but without NFC normalisation. Use MarshalCanonical for hashing.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return json.Marshal(int64(val))
	case IRBool:
		return json.Marshal(bool(val))
	case Decimal:
		return json.Marshal(val.String())
	case Address:
		return json.Marshal(string(val))
	case IRVault:
		return marshalDisplayObject(IRObject{"$vault": IRString(val)})
	case IRArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case IRObject:
		return marshalDisplayObject(val)
	case IRStruct:
		return marshalDisplayObject(structEnvelope(val))
	case IRMap:
		return MarshalIRValue(mapEnvelope(val))
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return marshalDisplayObject(obj)
}

func marshalDisplayObject(obj IRObject) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// structEnvelope and mapEnvelope give the non-JSON variants a tagged object
// shape shared by display and canonical encodings.
func structEnvelope(s IRStruct) IRObject {
	fields := s.Fields
	if fields == nil {
		fields = IRObject{}
	}
	return IRObject{"$struct": IRString(s.Name), "fields": fields}
}

func mapEnvelope(m IRMap) IRObject {
	entries := make(IRArray, len(m))
	for i, e := range m {
		entries[i] = IRArray{e.Key, e.Value}
	}
	return IRObject{"$map": entries}
}
