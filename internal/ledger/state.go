package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/ledgerunit/internal/codec"
	"github.com/roach88/ledgerunit/internal/ir"
	"github.com/roach88/ledgerunit/internal/store"
)

// Substate records. Each is stored as an encoded IRStruct.

type resourceRecord struct {
	Divisibility uint8
	TotalSupply  ir.Decimal
	Metadata     map[string]string
}

type vaultRecord struct {
	Resource ir.Address
	Amount   ir.Decimal
}

type componentInfo struct {
	Package     ir.Address
	Blueprint   string
	AccessRules AccessRules
}

type packageRecord struct {
	Name       string
	CodeHash   string
	Blueprints []BlueprintRef
}

// AccessRules maps a method name to the resource whose proof it requires.
// Methods not listed are public.
type AccessRules map[string]ir.Address

func (r resourceRecord) toStruct() ir.IRStruct {
	meta := make(ir.IRObject, len(r.Metadata))
	for k, v := range r.Metadata {
		meta[k] = ir.IRString(v)
	}
	return ir.NewStruct("Resource",
		ir.O("divisibility", ir.IRInt(r.Divisibility)),
		ir.O("total_supply", r.TotalSupply),
		ir.O("metadata", meta),
	)
}

func resourceFromStruct(s ir.IRStruct) (resourceRecord, error) {
	div, ok1 := s.Field("divisibility").(ir.IRInt)
	supply, ok2 := s.Field("total_supply").(ir.Decimal)
	meta, ok3 := s.Field("metadata").(ir.IRObject)
	if !ok1 || !ok2 || !ok3 {
		return resourceRecord{}, fmt.Errorf("malformed resource record")
	}
	r := resourceRecord{Divisibility: uint8(div), TotalSupply: supply, Metadata: make(map[string]string, len(meta))}
	for k, v := range meta {
		if s, ok := v.(ir.IRString); ok {
			r.Metadata[k] = string(s)
		}
	}
	return r, nil
}

func (v vaultRecord) toStruct() ir.IRStruct {
	return ir.NewStruct("Vault", ir.O("resource", v.Resource), ir.O("amount", v.Amount))
}

func vaultFromStruct(s ir.IRStruct) (vaultRecord, error) {
	res, ok1 := s.Field("resource").(ir.Address)
	amt, ok2 := s.Field("amount").(ir.Decimal)
	if !ok1 || !ok2 {
		return vaultRecord{}, fmt.Errorf("malformed vault record")
	}
	return vaultRecord{Resource: res, Amount: amt}, nil
}

func (c componentInfo) toStruct() ir.IRStruct {
	rules := make(ir.IRObject, len(c.AccessRules))
	for method, res := range c.AccessRules {
		rules[method] = res
	}
	return ir.NewStruct("ComponentInfo",
		ir.O("package", c.Package),
		ir.O("blueprint", ir.IRString(c.Blueprint)),
		ir.O("access_rules", rules),
	)
}

func componentInfoFromStruct(s ir.IRStruct) (componentInfo, error) {
	pkg, ok1 := s.Field("package").(ir.Address)
	bp, ok2 := s.Field("blueprint").(ir.IRString)
	rules, ok3 := s.Field("access_rules").(ir.IRObject)
	if !ok1 || !ok2 || !ok3 {
		return componentInfo{}, fmt.Errorf("malformed component info")
	}
	info := componentInfo{Package: pkg, Blueprint: string(bp), AccessRules: make(AccessRules, len(rules))}
	for method, v := range rules {
		res, ok := v.(ir.Address)
		if !ok {
			return componentInfo{}, fmt.Errorf("malformed access rule for %q", method)
		}
		info.AccessRules[method] = res
	}
	return info, nil
}

func (p packageRecord) toStruct() ir.IRStruct {
	bps := make(ir.IRArray, len(p.Blueprints))
	for i, ref := range p.Blueprints {
		bps[i] = ir.IRArray{ir.IRString(ref.Name), ir.IRString(ref.Native)}
	}
	return ir.NewStruct("Package",
		ir.O("name", ir.IRString(p.Name)),
		ir.O("code_hash", ir.IRString(p.CodeHash)),
		ir.O("blueprints", bps),
	)
}

func packageFromStruct(s ir.IRStruct) (packageRecord, error) {
	name, ok1 := s.Field("name").(ir.IRString)
	hash, ok2 := s.Field("code_hash").(ir.IRString)
	bps, ok3 := s.Field("blueprints").(ir.IRArray)
	if !ok1 || !ok2 || !ok3 {
		return packageRecord{}, fmt.Errorf("malformed package record")
	}
	p := packageRecord{Name: string(name), CodeHash: string(hash)}
	for _, e := range bps {
		pair, ok := e.(ir.IRArray)
		if !ok || len(pair) != 2 {
			return packageRecord{}, fmt.Errorf("malformed package blueprint entry")
		}
		bpName, ok1 := pair[0].(ir.IRString)
		native, ok2 := pair[1].(ir.IRString)
		if !ok1 || !ok2 {
			return packageRecord{}, fmt.Errorf("malformed package blueprint entry")
		}
		p.Blueprints = append(p.Blueprints, BlueprintRef{Name: string(bpName), Native: string(native)})
	}
	return p, nil
}

func (p packageRecord) native(blueprint string) (string, bool) {
	m := PackageManifest{Blueprints: p.Blueprints}
	return m.Native(blueprint)
}

// substateReader is satisfied by *store.Store and *store.Tx.
type substateReader interface {
	ReadSubstate(ctx context.Context, address string) (store.Substate, error)
}

// loadStruct reads and decodes a substate, checking its kind. A missing or
// mismatched substate yields store.ErrNotFound.
func loadStruct(ctx context.Context, r substateReader, address, kind string) (ir.IRStruct, error) {
	sub, err := r.ReadSubstate(ctx, address)
	if err != nil {
		return ir.IRStruct{}, err
	}
	if sub.Kind != kind {
		return ir.IRStruct{}, fmt.Errorf("%s is a %s, not a %s: %w", address, sub.Kind, kind, store.ErrNotFound)
	}
	v, err := codec.Decode(sub.Data)
	if err != nil {
		return ir.IRStruct{}, fmt.Errorf("decode %s %s: %w", kind, address, err)
	}
	s, ok := v.(ir.IRStruct)
	if !ok {
		return ir.IRStruct{}, fmt.Errorf("decode %s %s: want struct, got %T", kind, address, v)
	}
	return s, nil
}

func saveStruct(ctx context.Context, tx *store.Tx, address, kind string, v ir.IRStruct) error {
	data, err := codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, address, err)
	}
	return tx.WriteSubstate(ctx, store.Substate{Address: address, Kind: kind, Data: data})
}

func loadVault(ctx context.Context, r substateReader, vault ir.IRVault) (vaultRecord, error) {
	s, err := loadStruct(ctx, r, string(vault), store.KindVault)
	if err != nil {
		return vaultRecord{}, err
	}
	return vaultFromStruct(s)
}

func loadResource(ctx context.Context, r substateReader, resource ir.Address) (resourceRecord, error) {
	s, err := loadStruct(ctx, r, string(resource), store.KindResource)
	if err != nil {
		return resourceRecord{}, err
	}
	return resourceFromStruct(s)
}

func loadComponentInfo(ctx context.Context, r substateReader, component ir.Address) (componentInfo, error) {
	s, err := loadStruct(ctx, r, infoKey(component), store.KindComponentInfo)
	if err != nil {
		return componentInfo{}, err
	}
	return componentInfoFromStruct(s)
}

func loadPackage(ctx context.Context, r substateReader, pkg ir.Address) (packageRecord, error) {
	s, err := loadStruct(ctx, r, string(pkg), store.KindPackage)
	if err != nil {
		return packageRecord{}, err
	}
	return packageFromStruct(s)
}

// infoKey is the substate key holding a component's metadata, kept apart
// from its state blob.
func infoKey(component ir.Address) string {
	return string(component) + "/info"
}

// nextAddress allocates a fresh entity address from the store counter so
// rolled-back transactions do not consume addresses.
func nextAddress(ctx context.Context, tx *store.Tx, kind ir.EntityKind) (ir.Address, error) {
	n, err := tx.NextCounter(ctx, "entities")
	if err != nil {
		return "", err
	}
	return ir.DeriveAddress(kind, []byte("ledgerunit"), n), nil
}

func nextVault(ctx context.Context, tx *store.Tx) (ir.IRVault, error) {
	n, err := tx.NextCounter(ctx, "entities")
	if err != nil {
		return "", err
	}
	return ir.DeriveVault([]byte("ledgerunit"), n), nil
}

// Account state: {owner, vaults: IRMap[resource]vault}.

const accountBlueprint = "Account"

func newAccountState(owner PublicKey) ir.IRStruct {
	return ir.NewStruct(accountBlueprint,
		ir.O("owner", ir.IRString(owner)),
		ir.O("vaults", ir.IRMap{}),
	)
}

func accountOwner(state ir.IRStruct) (PublicKey, error) {
	owner, ok := state.Field("owner").(ir.IRString)
	if !ok || state.Name != accountBlueprint {
		return "", fmt.Errorf("not an account state")
	}
	return PublicKey(owner), nil
}

func accountVaults(state ir.IRStruct) (ir.IRMap, error) {
	vaults, ok := state.Field("vaults").(ir.IRMap)
	if !ok {
		return nil, fmt.Errorf("account state has no vault map")
	}
	return vaults, nil
}

func accountVault(state ir.IRStruct, resource ir.Address) (ir.IRVault, bool, error) {
	vaults, err := accountVaults(state)
	if err != nil {
		return "", false, err
	}
	v, ok := vaults.Get(resource)
	if !ok {
		return "", false, nil
	}
	vault, ok := v.(ir.IRVault)
	if !ok {
		return "", false, fmt.Errorf("account vault entry for %s is %T", resource, v)
	}
	return vault, true, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
