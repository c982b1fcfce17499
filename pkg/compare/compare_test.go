// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package compare

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/schema"
)

func TestMakeMatrix(t *testing.T) {
	type args struct {
		pt common.PhyType
		so common.SortOrder
	}
	kases := []struct {
		name    string
		args    args
		wantErr bool
	}{
		{name: "signed boolean", args: args{pt: common.BOOLEAN, so: common.SortSigned}},
		{name: "signed int32", args: args{pt: common.INT32, so: common.SortSigned}},
		{name: "signed int64", args: args{pt: common.INT64, so: common.SortSigned}},
		{name: "signed int96", args: args{pt: common.INT96, so: common.SortSigned}},
		{name: "signed float", args: args{pt: common.FLOAT, so: common.SortSigned}},
		{name: "signed double", args: args{pt: common.DOUBLE, so: common.SortSigned}},
		{name: "signed byte array", args: args{pt: common.BYTE_ARRAY, so: common.SortSigned}},
		{name: "signed flba", args: args{pt: common.FIXED_LEN_BYTE_ARRAY, so: common.SortSigned}},
		{name: "unsigned int32", args: args{pt: common.INT32, so: common.SortUnsigned}},
		{name: "unsigned int64", args: args{pt: common.INT64, so: common.SortUnsigned}},
		{name: "unsigned int96", args: args{pt: common.INT96, so: common.SortUnsigned}},
		{name: "unsigned byte array", args: args{pt: common.BYTE_ARRAY, so: common.SortUnsigned}},
		{name: "unsigned flba", args: args{pt: common.FIXED_LEN_BYTE_ARRAY, so: common.SortUnsigned}},
		{name: "unsigned boolean", args: args{pt: common.BOOLEAN, so: common.SortUnsigned}, wantErr: true},
		{name: "unsigned float", args: args{pt: common.FLOAT, so: common.SortUnsigned}, wantErr: true},
		{name: "unsigned double", args: args{pt: common.DOUBLE, so: common.SortUnsigned}, wantErr: true},
		{name: "unknown order", args: args{pt: common.INT32, so: common.SortUnknown}, wantErr: true},
		{name: "invalid physical", args: args{pt: common.INVALID, so: common.SortSigned}, wantErr: true},
	}
	for _, kase := range kases {
		t.Run(kase.name, func(t *testing.T) {
			cmp, err := Make(kase.args.pt, kase.args.so)
			if kase.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedComparison)
				assert.Nil(t, cmp)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, cmp)
			}
		})
	}
}

// ascending sample rows per comparator. every pair of positions must
// agree with the order, which also pins asymmetry and transitivity.
func TestStrictWeakOrdering(t *testing.T) {
	kases := []struct {
		name      string
		cmp       Comparator
		ascending []*common.Value
	}{
		{
			name: "default_boolean",
			cmp:  DefaultBoolean,
			ascending: []*common.Value{
				common.NewBoolValue(false),
				common.NewBoolValue(true),
			},
		},
		{
			name: "default_int32",
			cmp:  DefaultInt32,
			ascending: []*common.Value{
				common.NewInt32Value(math.MinInt32),
				common.NewInt32Value(-1),
				common.NewInt32Value(0),
				common.NewInt32Value(1),
				common.NewInt32Value(math.MaxInt32),
			},
		},
		{
			name: "unsigned_int32",
			cmp:  UnsignedInt32,
			ascending: []*common.Value{
				common.NewInt32Value(0),
				common.NewInt32Value(1),
				common.NewInt32Value(math.MaxInt32),
				common.NewInt32Value(math.MinInt32),
				common.NewInt32Value(-1),
			},
		},
		{
			name: "default_int64",
			cmp:  DefaultInt64,
			ascending: []*common.Value{
				common.NewInt64Value(math.MinInt64),
				common.NewInt64Value(-1),
				common.NewInt64Value(0),
				common.NewInt64Value(math.MaxInt64),
			},
		},
		{
			name: "unsigned_int64",
			cmp:  UnsignedInt64,
			ascending: []*common.Value{
				common.NewInt64Value(0),
				common.NewInt64Value(math.MaxInt64),
				common.NewInt64Value(math.MinInt64),
				common.NewInt64Value(-1),
			},
		},
		{
			name: "default_int96",
			cmp:  DefaultInt96,
			ascending: []*common.Value{
				common.NewInt96Value(common.NewInt96(9, 9, 0x80000000)),
				common.NewInt96Value(common.NewInt96(9, 9, 0xFFFFFFFF)),
				common.NewInt96Value(common.NewInt96(0, 0, 0)),
				common.NewInt96Value(common.NewInt96(1, 0, 0)),
				common.NewInt96Value(common.NewInt96(0, 1, 0)),
				common.NewInt96Value(common.NewInt96(0, 0, 1)),
				common.NewInt96Value(common.NewInt96(0, 0, 0x7FFFFFFF)),
			},
		},
		{
			name: "unsigned_int96",
			cmp:  UnsignedInt96,
			ascending: []*common.Value{
				common.NewInt96Value(common.NewInt96(0, 0, 0)),
				common.NewInt96Value(common.NewInt96(0xFFFFFFFF, 0xFFFFFFFF, 0)),
				common.NewInt96Value(common.NewInt96(0, 0, 1)),
				common.NewInt96Value(common.NewInt96(0, 0, 0x80000000)),
				common.NewInt96Value(common.NewInt96(0, 0, 0xFFFFFFFF)),
			},
		},
		{
			name: "default_float",
			cmp:  DefaultFloat,
			ascending: []*common.Value{
				common.NewFloatValue(float32(math.Inf(-1))),
				common.NewFloatValue(-2.5),
				common.NewFloatValue(0),
				common.NewFloatValue(2.5),
				common.NewFloatValue(float32(math.Inf(1))),
			},
		},
		{
			name: "default_double",
			cmp:  DefaultDouble,
			ascending: []*common.Value{
				common.NewDoubleValue(math.Inf(-1)),
				common.NewDoubleValue(-1e300),
				common.NewDoubleValue(0),
				common.NewDoubleValue(1e-300),
				common.NewDoubleValue(math.Inf(1)),
			},
		},
		{
			name: "unsigned_byte_array",
			cmp:  UnsignedByteArray,
			ascending: []*common.Value{
				common.NewBytesValue(common.BYTE_ARRAY, []byte{}),
				common.NewBytesValue(common.BYTE_ARRAY, []byte("abc")),
				common.NewBytesValue(common.BYTE_ARRAY, []byte("abcd")),
				common.NewBytesValue(common.BYTE_ARRAY, []byte("abd")),
				common.NewBytesValue(common.BYTE_ARRAY, []byte{0x80}),
				common.NewBytesValue(common.BYTE_ARRAY, []byte{0xFF}),
			},
		},
		{
			// a strict prefix stays first under the signed bytes too,
			// the empty sequence before the negative ones
			name: "default_byte_array",
			cmp:  DefaultByteArray,
			ascending: []*common.Value{
				common.NewBytesValue(common.BYTE_ARRAY, []byte{}),
				common.NewBytesValue(common.BYTE_ARRAY, []byte{0x80}),
				common.NewBytesValue(common.BYTE_ARRAY, []byte{0x80, 0x01}),
				common.NewBytesValue(common.BYTE_ARRAY, []byte{0xFF}),
				common.NewBytesValue(common.BYTE_ARRAY, []byte("abc")),
				common.NewBytesValue(common.BYTE_ARRAY, []byte("abcd")),
				common.NewBytesValue(common.BYTE_ARRAY, []byte{0x7F}),
			},
		},
		{
			name: "unsigned_flba",
			cmp:  UnsignedFLBA,
			ascending: []*common.Value{
				common.NewBytesValue(common.FIXED_LEN_BYTE_ARRAY, []byte{0x00, 0x10}),
				common.NewBytesValue(common.FIXED_LEN_BYTE_ARRAY, []byte{0x00, 0x20}),
				common.NewBytesValue(common.FIXED_LEN_BYTE_ARRAY, []byte{0x7F, 0x00}),
				common.NewBytesValue(common.FIXED_LEN_BYTE_ARRAY, []byte{0x80, 0x00}),
			},
		},
		{
			name: "default_flba",
			cmp:  DefaultFLBA,
			ascending: []*common.Value{
				common.NewBytesValue(common.FIXED_LEN_BYTE_ARRAY, []byte{0x80, 0x00}),
				common.NewBytesValue(common.FIXED_LEN_BYTE_ARRAY, []byte{0xFF, 0x00}),
				common.NewBytesValue(common.FIXED_LEN_BYTE_ARRAY, []byte{0x00, 0x10}),
				common.NewBytesValue(common.FIXED_LEN_BYTE_ARRAY, []byte{0x7F, 0x00}),
			},
		},
	}
	for _, kase := range kases {
		t.Run(kase.name, func(t *testing.T) {
			vals := kase.ascending
			for i := 0; i < len(vals); i++ {
				assert.False(t, kase.cmp.LessThan(vals[i], vals[i]), "irreflexive at %d", i)
				for j := i + 1; j < len(vals); j++ {
					assert.True(t, kase.cmp.LessThan(vals[i], vals[j]), "%d before %d", i, j)
					assert.False(t, kase.cmp.LessThan(vals[j], vals[i]), "%d not before %d", j, i)
				}
			}
		})
	}
}

// a negative top word must decide the order alone. inspecting the
// lower words after unequal top words flips the result here.
func TestInt96TopWordDecides(t *testing.T) {
	neg := common.NewInt96Value(common.NewInt96(9, 9, 0xFFFFFFFF))
	pos := common.NewInt96Value(common.NewInt96(5, 5, 0))
	assert.True(t, DefaultInt96.LessThan(neg, pos))
	assert.False(t, DefaultInt96.LessThan(pos, neg))

	small := common.NewInt96Value(common.NewInt96(9, 9, 3))
	big := common.NewInt96Value(common.NewInt96(1, 1, 5))
	assert.True(t, DefaultInt96.LessThan(small, big))
	assert.False(t, DefaultInt96.LessThan(big, small))

	// the full 32 bits of the top word take part
	one := common.NewInt96Value(common.NewInt96(0, 0, 1))
	hundred := common.NewInt96Value(common.NewInt96(0, 0, 0x100))
	assert.True(t, DefaultInt96.LessThan(one, hundred))
	assert.False(t, DefaultInt96.LessThan(hundred, one))
}

func TestInt96LowerWordsUnsigned(t *testing.T) {
	// middle words equal tops, 0x80000000 must count as large
	a := common.NewInt96Value(common.NewInt96(0, 1, 7))
	b := common.NewInt96Value(common.NewInt96(0, 0x80000000, 7))
	assert.True(t, DefaultInt96.LessThan(a, b))
	assert.False(t, DefaultInt96.LessThan(b, a))

	// lowest word on fully equal upper words
	c := common.NewInt96Value(common.NewInt96(0, 3, 3))
	d := common.NewInt96Value(common.NewInt96(0xFFFFFFFF, 3, 3))
	assert.True(t, DefaultInt96.LessThan(c, d))
	assert.False(t, DefaultInt96.LessThan(d, c))

	same := common.NewInt96Value(common.NewInt96(4, 5, 6))
	same2 := common.NewInt96Value(common.NewInt96(4, 5, 6))
	assert.False(t, DefaultInt96.LessThan(same, same2))
	assert.False(t, DefaultInt96.LessThan(same2, same))
}

func TestInt96UnsignedTopWord(t *testing.T) {
	hi := common.NewInt96Value(common.NewInt96(0, 0, 0xFFFFFFFF))
	lo := common.NewInt96Value(common.NewInt96(9, 9, 0))
	// signed reads the top word as -1, unsigned as the largest word
	assert.True(t, DefaultInt96.LessThan(hi, lo))
	assert.True(t, UnsignedInt96.LessThan(lo, hi))
	assert.False(t, UnsignedInt96.LessThan(hi, lo))
}

func TestFloatNaN(t *testing.T) {
	nan := common.NewDoubleValue(math.NaN())
	one := common.NewDoubleValue(1)
	assert.False(t, DefaultDouble.LessThan(nan, one))
	assert.False(t, DefaultDouble.LessThan(one, nan))
	assert.False(t, DefaultDouble.LessThan(nan, nan))

	nan32 := common.NewFloatValue(float32(math.NaN()))
	assert.False(t, DefaultFloat.LessThan(nan32, nan32))
}

func TestMinMaxFold(t *testing.T) {
	fold := func(cmp Comparator, vals []*common.Value) (*common.Value, *common.Value) {
		minVal := vals[0]
		maxVal := vals[0]
		for _, v := range vals[1:] {
			if cmp.LessThan(v, minVal) {
				minVal = v
			}
			if cmp.LessThan(maxVal, v) {
				maxVal = v
			}
		}
		return minVal, maxVal
	}

	rows := []*common.Value{
		common.NewInt32Value(5),
		common.NewInt32Value(-3),
		common.NewInt32Value(7),
		common.NewInt32Value(-3),
		common.NewInt32Value(0),
	}
	minVal, maxVal := fold(DefaultInt32, rows)
	assert.Equal(t, int32(-3), minVal.I32)
	assert.Equal(t, int32(7), maxVal.I32)

	// the same bit patterns fold differently without the sign
	minVal, maxVal = fold(UnsignedInt32, rows)
	assert.Equal(t, int32(0), minVal.I32)
	assert.Equal(t, int32(-3), maxVal.I32)
}

func TestForColumn(t *testing.T) {
	city, err := schema.NewColumn("city", common.BYTE_ARRAY, common.CT_UTF8)
	require.NoError(t, err)
	cmp, err := ForColumn(city)
	require.NoError(t, err)
	assert.True(t, cmp.LessThan(
		common.NewBytesValue(common.BYTE_ARRAY, []byte{0x10}),
		common.NewBytesValue(common.BYTE_ARRAY, []byte{0x80})))

	raw, err := schema.NewColumn("raw", common.BYTE_ARRAY, common.CT_NONE)
	require.NoError(t, err)
	cmp, err = ForColumn(raw)
	require.NoError(t, err)
	assert.True(t, cmp.LessThan(
		common.NewBytesValue(common.BYTE_ARRAY, []byte{0x80}),
		common.NewBytesValue(common.BYTE_ARRAY, []byte{0x10})))

	price, err := schema.NewDecimalColumn("price", common.INT32, 0, 9, 2)
	require.NoError(t, err)
	_, err = ForColumn(price)
	assert.ErrorIs(t, err, ErrUnsupportedComparison)
}

func TestRegistry(t *testing.T) {
	cmp, has := Lookup("default_int96")
	require.True(t, has)
	assert.True(t, cmp.LessThan(
		common.NewInt96Value(common.NewInt96(9, 9, 0xFFFFFFFF)),
		common.NewInt96Value(common.NewInt96(0, 0, 0))))

	_, has = Lookup("default_int128")
	assert.False(t, has)

	names := Names()
	assert.GreaterOrEqual(t, len(names), 13)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}

	assert.Error(t, Register("default_int32", DefaultInt32))
	assert.Error(t, Register("", DefaultInt32))
}
