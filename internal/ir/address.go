package ir

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// EntityKind is the kind of a global ledger entity, encoded in its address.
type EntityKind string

const (
	KindPackage   EntityKind = "package"
	KindComponent EntityKind = "component"
	KindAccount   EntityKind = "account"
	KindResource  EntityKind = "resource"
)

// addressHRP separates the kind prefix from the hex body.
const addressHRP = "_sim1"

// addressBodyLen is the hex length of the 20-byte address body.
const addressBodyLen = 40

// Address identifies a global entity: "<kind>_sim1<40 hex chars>".
type Address string

func (Address) irValue() {}

// NativeToken is the ledger's native fungible resource (XRD).
var NativeToken = DeriveAddress(KindResource, []byte("native-token"), 0)

// SystemPackage hosts the native Account blueprint.
var SystemPackage = DeriveAddress(KindPackage, []byte("system-package"), 0)

// DeriveAddress deterministically derives an address of the given kind from
// a seed and an index: SHA3-256(kind || 0x00 || seed || index)[:20].
func DeriveAddress(kind EntityKind, seed []byte, index uint64) Address {
	return Address(string(kind) + addressHRP + deriveBody(string(kind), seed, index))
}

// DeriveVault derives a vault reference the same way.
func DeriveVault(seed []byte, index uint64) IRVault {
	return IRVault("vault" + addressHRP + deriveBody("vault", seed, index))
}

func deriveBody(kind string, seed []byte, index uint64) string {
	buf := make([]byte, 0, len(kind)+1+len(seed)+8)
	buf = append(buf, kind...)
	buf = append(buf, 0x00)
	buf = append(buf, seed...)
	buf = binary.BigEndian.AppendUint64(buf, index)
	sum := sha3.Sum256(buf)
	return hex.EncodeToString(sum[:addressBodyLen/2])
}

// ParseAddress validates s and returns it as an Address.
func ParseAddress(s string) (Address, error) {
	kind, body, ok := strings.Cut(s, addressHRP)
	if !ok {
		return "", fmt.Errorf("address %q: missing %q separator", s, addressHRP)
	}
	switch EntityKind(kind) {
	case KindPackage, KindComponent, KindAccount, KindResource:
	default:
		return "", fmt.Errorf("address %q: unknown entity kind %q", s, kind)
	}
	if len(body) != addressBodyLen {
		return "", fmt.Errorf("address %q: body must be %d hex chars", s, addressBodyLen)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("address %q: %w", s, err)
	}
	return Address(s), nil
}

// Kind returns the entity kind prefix, or "" for malformed addresses.
func (a Address) Kind() EntityKind {
	kind, _, ok := strings.Cut(string(a), addressHRP)
	if !ok {
		return ""
	}
	return EntityKind(kind)
}

// Short returns a log-friendly abbreviation.
func (a Address) Short() string {
	s := string(a)
	if len(s) <= 16 {
		return s
	}
	return s[:len(s)-addressBodyLen+8] + ".."
}
