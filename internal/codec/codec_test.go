package codec

import (
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerunit/internal/ir"
)

func TestEncodeDecodeComponentState(t *testing.T) {
	badge := ir.DeriveAddress(ir.KindResource, []byte("t"), 1)
	state := ir.NewStruct("Hello",
		ir.O("state", ir.IRInt(42)),
		ir.O("admin_badge", badge),
		ir.O("treasury", ir.IRMap{
			{Key: badge, Value: ir.IRVault("vault_sim1aa")},
			{Key: ir.IRString("spare"), Value: ir.IRArray{ir.IRVault("vault_sim1bb"), ir.IRNull{}}},
		}),
		ir.O("price", ir.MustDecimal("12.5")),
		ir.O("open", ir.IRBool(true)),
		ir.O("tags", ir.IRObject{"a": ir.IRString("x")}),
		ir.O("debt", ir.IRInt(-7)),
	)

	data, err := Encode(state)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, ir.Equal(state, decoded), "decoded value differs: %#v", decoded)
}

func TestEncodeDeterministic(t *testing.T) {
	v := ir.IRObject{"b": ir.IRInt(1), "a": ir.IRInt(2), "c": ir.IRString("z")}
	first := MustEncode(v)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, MustEncode(v))
	}
}

func TestEncodeRejectsNil(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)

	_, err = Encode(ir.IRArray{ir.IRInt(1), nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[1]")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	data, err := cbor.Marshal(cbor.Tag{Number: tagBase + 99, Content: "x"})
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsNonStringObjectKeys(t *testing.T) {
	data, err := cbor.Marshal(map[int]string{1: "x"})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsMalformedAddress(t *testing.T) {
	data, err := cbor.Marshal(cbor.Tag{Number: tagAddress, Content: "nope"})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.Error(t, err)
}

func TestDecodeNestingLimit(t *testing.T) {
	var v ir.IRValue = ir.IRInt(0)
	for i := 0; i < MaxNestedLevels+10; i++ {
		v = ir.IRArray{v}
	}
	data, err := Encode(v)
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "nest"), err.Error())
}
